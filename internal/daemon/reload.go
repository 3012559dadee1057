package daemon

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// hotReload watches every bound workspace's SOUL.md and .msgcode/config.json
// for external edits and invalidates that
// workspace's cached tool bus so the next dispatch rebuilds it against the
// fresh config — wsconfig.Load and soul.Resolve already re-read their files
// on every call, so the only thing actually cached per workspace is the
// bus (and its media/mem tool bodies, which are built once from config).
type hotReload struct {
	watcher *fsnotify.Watcher
	watched map[string]bool
	onEvent func(workspacePath string)
}

func newHotReload(onEvent func(workspacePath string)) (*hotReload, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &hotReload{watcher: w, watched: map[string]bool{}, onEvent: onEvent}, nil
}

// Track starts watching a workspace's config directory, idempotently.
func (h *hotReload) Track(workspacePath string) {
	dir := filepath.Join(workspacePath, ".msgcode")
	if h.watched[dir] {
		return
	}
	if err := h.watcher.Add(workspacePath); err != nil {
		slog.Warn("daemon.hot_reload_watch_failed", "path", workspacePath, "error", err)
	}
	if err := h.watcher.Add(dir); err != nil {
		slog.Warn("daemon.hot_reload_watch_failed", "path", dir, "error", err)
	}
	h.watched[dir] = true
}

// Run drains fsnotify events until Close is called, invoking onEvent with
// the owning workspace path for any SOUL.md/config.json write/create.
func (h *hotReload) Run() {
	for {
		select {
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if !(ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
				continue
			}
			base := filepath.Base(ev.Name)
			if base != "SOUL.md" && base != "config.json" {
				continue
			}
			workspacePath := workspaceRootOf(ev.Name)
			slog.Info("daemon.hot_reload_detected", "file", ev.Name)
			h.onEvent(workspacePath)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("daemon.hot_reload_error", "error", err)
		}
	}
}

func (h *hotReload) Close() error {
	return h.watcher.Close()
}

// workspaceRootOf derives the workspace root from a path under it or under
// its .msgcode directory (SOUL.md lives at the root; config.json lives at
// <root>/.msgcode/config.json).
func workspaceRootOf(path string) string {
	dir := filepath.Dir(path)
	if filepath.Base(dir) == ".msgcode" {
		return filepath.Dir(dir)
	}
	return dir
}
