package daemon

import (
	"log/slog"
	"os"

	"github.com/nextlevelbuilder/msgcode/internal/toolbus"
	"github.com/nextlevelbuilder/msgcode/internal/tools"
)

// busFor returns the cached tool bus for a workspace, building and
// registering it on first use. Rebuilding is cheap relative to a chat
// turn, so invalidateBus (driven by the hot-reload watcher) simply drops
// the cache entry and lets the next dispatch rebuild it.
func (d *Daemon) busFor(workspacePath string) (*toolbus.Bus, error) {
	d.busMu.Lock()
	defer d.busMu.Unlock()

	if bus, ok := d.buses[workspacePath]; ok {
		return bus, nil
	}

	bus, err := d.buildBus(workspacePath)
	if err != nil {
		return nil, err
	}
	d.buses[workspacePath] = bus
	return bus, nil
}

func (d *Daemon) invalidateBus(workspacePath string) {
	d.busMu.Lock()
	defer d.busMu.Unlock()
	if _, ok := d.buses[workspacePath]; ok {
		delete(d.buses, workspacePath)
		slog.Info("daemon.bus_invalidated", "workspace", workspacePath)
	}
}

func (d *Daemon) buildBus(workspacePath string) (*toolbus.Bus, error) {
	bus := toolbus.New()
	if d.metricsCollector != nil {
		bus.SetMetricsRecorder(d.metricsCollector)
	}

	bus.Register("read_file", tools.ReadFile(workspacePath))
	bus.Register("write_file", tools.WriteFile(workspacePath))
	bus.Register("edit_file", tools.EditFile(workspacePath))
	bus.Register("bash", tools.Bash(workspacePath))
	bus.Register("desktop", tools.Desktop(workspacePath))
	bus.Register("browser", tools.Browser())

	mediaCfg := tools.MediaBackendConfig{
		Endpoint: os.Getenv("MSGCODE_MEDIA_BACKEND_URL"),
		APIKey:   os.Getenv("MSGCODE_MEDIA_BACKEND_API_KEY"),
	}
	bus.Register("tts", tools.TTS(mediaCfg))
	bus.Register("asr", tools.ASR(mediaCfg))
	bus.Register("vision", tools.Vision(mediaCfg))

	memStore, err := tools.NewMemStore(workspacePath, nil)
	if err != nil {
		slog.Warn("daemon.mem_store_unavailable", "workspace", workspacePath, "error", err)
	} else {
		bus.Register("mem", tools.Mem(memStore))
	}

	return bus, nil
}
