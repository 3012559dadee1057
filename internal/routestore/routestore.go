// Package routestore implements the durable chatGuid→workspace binding map.
// Persistence goes through internal/atomicfile so writers never leave
// readers observing a partially written file.
package routestore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/msgcode/internal/atomicfile"
	"github.com/nextlevelbuilder/msgcode/internal/msgerr"
)

const fileVersion = 1

const chatGUIDPrefix = "any;+;"

// Status values for a RouteEntry.
const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusArchived = "archived"
)

// RouteEntry is a binding of a chat to a workspace directory.
type RouteEntry struct {
	ChatGUID      string    `json:"chatGuid"`
	ChatID        string    `json:"chatId"`
	WorkspacePath string    `json:"workspacePath"`
	Label         string    `json:"label,omitempty"`
	BotType       string    `json:"botType,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type onDisk struct {
	Version int                    `json:"version"`
	Routes  map[string]*RouteEntry `json:"routes"`
}

// Store is the in-memory, lock-protected, file-backed route table.
type Store struct {
	mu   sync.RWMutex
	path string
	data onDisk
}

// New creates a store bound to path without loading it yet.
func New(path string) *Store {
	return &Store{path: path, data: onDisk{Version: fileVersion, Routes: map[string]*RouteEntry{}}}
}

// Load reads the routes file. A missing file is treated as empty. A version
// mismatch is a hard failure. Unparseable timestamps are
// auto-repaired to the current time and the file re-persisted.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var d onDisk
	err := atomicfile.ReadJSON(s.path, &d)
	if os.IsNotExist(err) {
		s.data = onDisk{Version: fileVersion, Routes: map[string]*RouteEntry{}}
		return nil
	}
	if err != nil {
		return msgerr.Wrap(msgerr.CorruptState, "routestore: load "+s.path, err)
	}
	if d.Version != fileVersion {
		return msgerr.New(msgerr.VersionMismatch, fmt.Sprintf("routestore: version %d != %d", d.Version, fileVersion))
	}
	if d.Routes == nil {
		d.Routes = map[string]*RouteEntry{}
	}

	repaired := false
	now := time.Now()
	for _, r := range d.Routes {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
			repaired = true
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
			repaired = true
		}
	}
	s.data = d
	if repaired {
		if err := s.saveLocked(); err != nil {
			slog.Warn("routestore.repair_save_failed", "error", err)
		}
	}
	return nil
}

// Save persists the current in-memory table.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	return atomicfile.WriteJSON(s.path, s.data)
}

// normalizeChatGUID adds the "any;+;" prefix if the caller's id lacks it.
func normalizeChatGUID(id string) string {
	if strings.HasPrefix(id, chatGUIDPrefix) {
		return id
	}
	return chatGUIDPrefix + id
}

// GetByChatID matches a normalized chatGuid; if id lacks the "any;+;" prefix,
// a normalized lookup is attempted as a fallback.
func (s *Store) GetByChatID(id string) (*RouteEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.data.Routes[id]; ok {
		return r, true
	}
	norm := normalizeChatGUID(id)
	if r, ok := s.data.Routes[norm]; ok {
		return r, true
	}
	return nil, false
}

// SetRoute replaces (or inserts) an entry as-is.
func (s *Store) SetRoute(r *RouteEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Routes[r.ChatGUID] = r
}

// DeleteRoute removes a binding entirely.
func (s *Store) DeleteRoute(chatGUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Routes, chatGUID)
}

// CreateRoute resolves relPath against workspaceRoot, rejects ".." or
// absolute paths, creates the directory, and records the binding.
func (s *Store) CreateRoute(chatGUID, workspaceRoot, relPath string, label, botType string) (*RouteEntry, error) {
	if filepath.IsAbs(relPath) {
		return nil, msgerr.New(msgerr.PathUnsafe, "bind path must be relative")
	}
	cleaned := filepath.Clean(relPath)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, string(filepath.Separator)+"..") {
		return nil, msgerr.New(msgerr.PathUnsafe, "bind path must not escape workspace root")
	}
	abs := filepath.Join(workspaceRoot, cleaned)
	if !strings.HasPrefix(abs, filepath.Clean(workspaceRoot)+string(filepath.Separator)) && abs != filepath.Clean(workspaceRoot) {
		return nil, msgerr.New(msgerr.PathUnsafe, "bind path escapes workspace root")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("routestore: mkdir workspace: %w", err)
	}

	norm := normalizeChatGUID(chatGUID)
	now := time.Now()
	entry := &RouteEntry{
		ChatGUID:      norm,
		ChatID:        chatGUID,
		WorkspacePath: abs,
		Label:         label,
		BotType:       botType,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.data.Routes[norm] = entry
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateRouteStatus sets the status on an existing binding.
func (s *Store) UpdateRouteStatus(chatGUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	norm := normalizeChatGUID(chatGUID)
	r, ok := s.data.Routes[norm]
	if !ok {
		return msgerr.New(msgerr.RouteNotFound, "no route for "+chatGUID)
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return s.saveLocked()
}

// GetActiveRoutes returns a snapshot slice of all routes with status=active.
func (s *Store) GetActiveRoutes() []*RouteEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*RouteEntry
	for _, r := range s.data.Routes {
		if r.Status == StatusActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}
