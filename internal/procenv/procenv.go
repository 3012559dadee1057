// Package procenv binds the process-global environment variables
// (MSGCODE_CONFIG_DIR, WORKSPACE_ROOT, ...) into a typed struct via struct
// tags, using caarlos0/env/v11. Per-workspace config (wsconfig) keeps its
// own flat-JSON + legacy-alias reader and is never touched by this
// package.
package procenv

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config is the full process-global environment surface.
type Config struct {
	ConfigDir         string `env:"MSGCODE_CONFIG_DIR"`
	WorkspaceRoot     string `env:"WORKSPACE_ROOT"`
	RoutesFilePath    string `env:"ROUTES_FILE_PATH"`
	StateFilePath     string `env:"STATE_FILE_PATH"`
	LogLevel          string `env:"LOG_LEVEL"`
	DevMode           bool   `env:"MSGCODE_DEV_MODE"`
	RemoteHint        bool   `env:"MSGCODE_REMOTE_HINT" envDefault:"true"`
	RemoteHintText    string `env:"MSGCODE_REMOTE_HINT_TEXT"`
	LogPlaintextInput bool   `env:"MSGCODE_LOG_PLAINTEXT_INPUT"`

	// Ambient additions not named individually but needed to make the
	// added features (tracing, metrics,
	// transport probe binary) externally configurable without a
	// workspace-scoped config entry — each has a zero-value default that
	// disables the feature, off by default.
	OTelCollectorEndpoint string `env:"MSGCODE_OTEL_ENDPOINT"`
	MetricsAddr           string `env:"MSGCODE_METRICS_ADDR"`
	TransportCLIPath      string `env:"MSGCODE_TRANSPORT_CLI" envDefault:"msgcode-transport"`
	TransportWSURL        string `env:"MSGCODE_TRANSPORT_WS_URL"`
	TransportEventsWSURL  string `env:"MSGCODE_TRANSPORT_EVENTS_WS_URL"`
}

// Load parses the environment into a Config and fills in the defaults spec
// the defaults for unset path variables (config dir under
// ~/.config/msgcode, routes/state files under the resolved config dir).
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.ConfigDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.ConfigDir = filepath.Join(home, ".config", "msgcode")
	}
	if cfg.RoutesFilePath == "" {
		cfg.RoutesFilePath = filepath.Join(cfg.ConfigDir, "routes.json")
	}
	if cfg.StateFilePath == "" {
		cfg.StateFilePath = filepath.Join(cfg.ConfigDir, "state.json")
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = filepath.Join(cfg.ConfigDir, "workspaces")
	}
	return cfg, nil
}
