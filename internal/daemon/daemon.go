// Package daemon wires every component into the long-running msgcode
// process: startup acquires the singleton lock, loads the durable stores,
// dials the transport, and drives the ingestion pipeline until a shutdown
// signal drains in-flight work and releases the lock.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nextlevelbuilder/msgcode/internal/command"
	"github.com/nextlevelbuilder/msgcode/internal/ingest"
	"github.com/nextlevelbuilder/msgcode/internal/lock"
	"github.com/nextlevelbuilder/msgcode/internal/metrics"
	"github.com/nextlevelbuilder/msgcode/internal/probe"
	"github.com/nextlevelbuilder/msgcode/internal/procenv"
	"github.com/nextlevelbuilder/msgcode/internal/routestore"
	"github.com/nextlevelbuilder/msgcode/internal/sessionctl"
	"github.com/nextlevelbuilder/msgcode/internal/settings"
	"github.com/nextlevelbuilder/msgcode/internal/soul"
	"github.com/nextlevelbuilder/msgcode/internal/statestore"
	"github.com/nextlevelbuilder/msgcode/internal/steer"
	"github.com/nextlevelbuilder/msgcode/internal/summary"
	"github.com/nextlevelbuilder/msgcode/internal/thread"
	"github.com/nextlevelbuilder/msgcode/internal/toolbus"
	"github.com/nextlevelbuilder/msgcode/internal/toolloop"
	"github.com/nextlevelbuilder/msgcode/internal/tools"
	"github.com/nextlevelbuilder/msgcode/internal/tracing"
	"github.com/nextlevelbuilder/msgcode/internal/transport"
	"github.com/nextlevelbuilder/msgcode/internal/window"
	"github.com/nextlevelbuilder/msgcode/internal/wsconfig"
)

const (
	lockName         = "msgcode"
	shutdownDrainCap = 30 * time.Second
	summaryTrigger   = 20
)

// Daemon owns every long-lived component and the per-workspace caches that
// back the ingestion dispatcher.
type Daemon struct {
	cfg procenv.Config

	lk       *lock.Lock
	Routes   *routestore.Store
	State    *statestore.Store
	Settings *settings.Store
	Threads  *thread.Store
	Steer    *steer.Queues
	Router   *command.Router
	Pipeline *ingest.Pipeline

	replier *transport.Client
	watcher *transport.Watcher
	tmux    sessionctl.TmuxController

	metricsCollector *metrics.Collector
	metricsServer    *http.Server
	tracingShutdown  func(context.Context) error

	httpClient *http.Client
	hot        *hotReload

	busMu sync.Mutex
	buses map[string]*toolbus.Bus

	inFlightWG sync.WaitGroup
}

// New performs the startup sequence: acquire the singleton lock, load the
// durable stores, run the health probes, and wire the ingestion pipeline.
// It does not yet dial the transport or start serving; call Run for that.
func New(ctx context.Context, cfg procenv.Config) (*Daemon, error) {
	acquired, pid, lk, err := lock.Acquire(cfg.ConfigDir, lockName)
	if err != nil {
		return nil, fmt.Errorf("daemon: acquire lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("daemon: another instance is already running (pid %d)", pid)
	}

	d := &Daemon{
		cfg:        cfg,
		lk:         lk,
		Routes:     routestore.New(cfg.RoutesFilePath),
		State:      statestore.New(cfg.StateFilePath),
		Settings:   settings.New(settings.Path(cfg.ConfigDir)),
		Threads:    thread.New(),
		Steer:      steer.New(),
		tmux:       NewCLITmuxController(cfg.WorkspaceRoot),
		httpClient: newHTTPClient(),
		buses:      map[string]*toolbus.Bus{},
	}

	if err := d.Routes.Load(); err != nil {
		_ = d.lk.Release()
		return nil, fmt.Errorf("daemon: load routes: %w", err)
	}
	if err := d.State.Load(); err != nil {
		_ = d.lk.Release()
		return nil, fmt.Errorf("daemon: load state: %w", err)
	}
	if err := d.Settings.Load(); err != nil {
		_ = d.lk.Release()
		return nil, fmt.Errorf("daemon: load settings: %w", err)
	}

	level, source := d.Settings.LogLevelWithSource()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})))
	slog.Info("daemon.log_level", "level", level, "source", source)

	shutdownTracing, err := tracing.Setup(ctx, "msgcode", cfg.OTelCollectorEndpoint)
	if err != nil {
		slog.Warn("daemon.tracing_setup_failed", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	d.tracingShutdown = shutdownTracing

	if cfg.MetricsAddr != "" {
		d.metricsCollector = metrics.New()
	}

	d.Router = &command.Router{
		Routes:        d.Routes,
		State:         d.State,
		Settings:      d.Settings,
		Threads:       d.Threads,
		WorkspaceRoot: cfg.WorkspaceRoot,
		ConfigDir:     cfg.ConfigDir,
		TmuxOf:        func(string) sessionctl.TmuxController { return d.tmux },
	}

	hot, err := newHotReload(d.invalidateBus)
	if err != nil {
		slog.Warn("daemon.hot_reload_unavailable", "error", err)
	}
	d.hot = hot

	report := probe.Run(ctx, probe.Config{
		TransportCLIPath: cfg.TransportCLIPath,
		RoutesPath:       cfg.RoutesFilePath,
		WorkspaceRoot:    cfg.WorkspaceRoot,
	})
	if !report.AllOK {
		for _, p := range report.Probes {
			if !p.OK {
				slog.Warn("daemon.probe_failed", "probe", p.Name, "details", p.Details, "fixHint", p.FixHint)
			}
		}
	}

	return d, nil
}

// Run dials the transport, starts the hot-reload watcher and optional
// metrics server, and blocks serving inbound messages until ctx is
// cancelled, at which point it drains in-flight work and shuts down.
func (d *Daemon) Run(ctx context.Context) error {
	if d.cfg.TransportWSURL == "" {
		return fmt.Errorf("daemon: MSGCODE_TRANSPORT_WS_URL is not set")
	}
	eventsURL := d.cfg.TransportEventsWSURL
	if eventsURL == "" {
		eventsURL = d.cfg.TransportWSURL
	}
	replier, watcher, err := transport.Dial(ctx, d.cfg.TransportWSURL, eventsURL)
	if err != nil {
		return fmt.Errorf("daemon: dial transport: %w", err)
	}
	d.replier = replier
	d.watcher = watcher
	d.Pipeline = ingest.New(d.Routes, d.State, d.Router, d.dispatch, d.replier)

	if d.hot != nil {
		go d.hot.Run()
	}
	if d.metricsCollector != nil {
		d.metricsServer = &http.Server{Addr: d.cfg.MetricsAddr, Handler: d.metricsCollector.Handler()}
		go func() {
			if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("daemon.metrics_server_failed", "error", err)
			}
		}()
	}

	watchErrCh := make(chan error, 1)
	go func() {
		watchErrCh <- d.watcher.Watch(ctx, d.handleInboundEvent)
	}()

	slog.Info("daemon.started", "configDir", d.cfg.ConfigDir, "workspaceRoot", d.cfg.WorkspaceRoot)

	select {
	case <-ctx.Done():
	case err := <-watchErrCh:
		if err != nil {
			slog.Error("daemon.transport_watch_failed", "error", err)
		}
	}

	return d.shutdown()
}

func (d *Daemon) handleInboundEvent(ev transport.InboundEvent) {
	d.inFlightWG.Add(1)
	go func() {
		defer d.inFlightWG.Done()
		d.Pipeline.Process(context.Background(), ingest.InboundMessage{
			ChatGUID:    ev.ChatGUID,
			Sender:      ev.Sender,
			Text:        ev.Text,
			RowID:       ev.RowID,
			MessageID:   ev.MessageID,
			IsFromMe:    ev.IsFromMe,
			Attachments: ev.Attachments,
		})
	}()
}

// shutdown stops accepting new messages (the caller already stopped the
// watcher loop), drains in-flight per-chat workers with a capped wait,
// flushes the durable stores, and releases the lock.
func (d *Daemon) shutdown() error {
	slog.Info("daemon.shutting_down")

	drained := make(chan struct{})
	go func() {
		d.inFlightWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(shutdownDrainCap):
		slog.Warn("daemon.shutdown_drain_timeout")
	}

	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = d.metricsServer.Shutdown(shutdownCtx)
		cancel()
	}
	if d.hot != nil {
		_ = d.hot.Close()
	}
	if d.tracingShutdown != nil {
		_ = d.tracingShutdown(context.Background())
	}

	if err := d.Routes.Save(); err != nil {
		slog.Error("daemon.save_routes_failed", "error", err)
	}
	if err := d.State.Save(); err != nil {
		slog.Error("daemon.save_state_failed", "error", err)
	}

	if err := d.lk.Release(); err != nil {
		return fmt.Errorf("daemon: release lock: %w", err)
	}
	slog.Info("daemon.stopped")
	return nil
}

// dispatch is the ChatDispatcher: it assembles the routed chat turn, runs
// the tool loop, and persists the result back to the session window,
// rolling summary, and thread transcript.
func (d *Daemon) dispatch(ctx context.Context, route *routestore.RouteEntry, text string) (string, error) {
	wsCfg, err := wsconfig.Load(route.WorkspacePath)
	if err != nil {
		return "", fmt.Errorf("dispatch: load workspace config: %w", err)
	}
	if d.hot != nil {
		d.hot.Track(route.WorkspacePath)
	}

	bus, err := d.busFor(route.WorkspacePath)
	if err != nil {
		return "", fmt.Errorf("dispatch: build tool bus: %w", err)
	}

	history, err := window.Load(route.WorkspacePath, route.ChatGUID)
	if err != nil {
		return "", fmt.Errorf("dispatch: load window: %w", err)
	}
	sum, err := summary.Load(route.WorkspacePath, route.ChatGUID)
	if err != nil {
		return "", fmt.Errorf("dispatch: load summary: %w", err)
	}
	trimResult := window.TrimWithResult(history, defaultMaxWindowMessages-1)
	if trimResult.WasTrimmed {
		extracted := summary.Extract(trimResult.Trimmed, history)
		merged := mergeSummaries(sum, extracted)
		if summary.ShouldGenerate(len(history), len(trimResult.Kept), summaryTrigger, false) {
			if err := summary.Save(route.WorkspacePath, route.ChatGUID, merged); err != nil {
				slog.Warn("dispatch.summary_save_failed", "chat_id", route.ChatGUID, "error", err)
			} else {
				sum = merged
			}
		}
	}

	soulText := soul.Resolve(route.WorkspacePath, d.cfg.ConfigDir).FormatForInjection()
	policy := wsCfg.DerivePolicy()
	executorModel := orDefaultModel(wsCfg.GetString(wsconfig.KeyModelExecutor), "local-model")
	responderModel := orDefaultModel(wsCfg.GetString(wsconfig.KeyModelResponder), executorModel)

	call := newCallModel(d.httpClient, resolveBaseURL(wsCfg))
	ro := toolloop.RoutedOptions{
		Options: toolloop.Options{
			ChatID:        route.ChatGUID,
			WorkspacePath: route.WorkspacePath,
			Tools:         tools.ToolDefinitions(),
			ToolPolicy:    toolbus.Policy{Mode: policy.Mode, Allow: policy.Allow},
			SoulInjection: soulText,
			Summary:       summary.FormatMarkdown(sum),
			History:       trimResult.Kept,
			CurrentUser:   text,
		},
		ResponderModel: responderModel,
		ExecutorModel:  executorModel,
		ToolsAvailable: policy.Mode != "explicit",
	}

	result := toolloop.RunRoutedChat(ctx, ro, call, bus, d.Steer)
	if result.ErrorCode != "" {
		slog.Warn("dispatch.tool_loop_failed", "chat_id", route.ChatGUID, "error_code", result.ErrorCode)
	}

	now := time.Now()
	if err := window.Append(route.WorkspacePath, route.ChatGUID, window.Message{Role: "user", Content: text, Timestamp: now}); err != nil {
		slog.Warn("dispatch.window_append_failed", "chat_id", route.ChatGUID, "error", err)
	}
	if err := window.Append(route.WorkspacePath, route.ChatGUID, window.Message{Role: "assistant", Content: result.Content, Timestamp: now}); err != nil {
		slog.Warn("dispatch.window_append_failed", "chat_id", route.ChatGUID, "error", err)
	}

	meta := thread.Meta{RuntimeKind: wsCfg.RuntimeKind(), AgentProvider: wsCfg.AgentProvider(), TmuxClient: wsCfg.TmuxClient()}
	if err := d.Threads.AppendTurn(route.WorkspacePath, route.ChatGUID, text, meta, text, result.Content); err != nil {
		slog.Warn("dispatch.thread_append_failed", "chat_id", route.ChatGUID, "error", err)
	}

	return result.Content, nil
}

const defaultMaxWindowMessages = 20

func mergeSummaries(base, extracted summary.Summary) summary.Summary {
	return summary.Summary{
		Goal:        firstNonEmpty(base.Goal, extracted.Goal),
		Constraints: append(base.Constraints, extracted.Constraints...),
		Decisions:   append(base.Decisions, extracted.Decisions...),
		OpenItems:   append(base.OpenItems, extracted.OpenItems...),
		ToolFacts:   append(base.ToolFacts, extracted.ToolFacts...),
	}
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}

func orDefaultModel(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
