// Package settings implements the process-global settings.json: log level
// and the owner allow-list, persisted under the config directory alongside
// routes.json/state.json. `LOG_LEVEL` overrides a persisted value and is
// reported as source "env".
package settings

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/nextlevelbuilder/msgcode/internal/atomicfile"
)

const fileVersion = 1

type onDisk struct {
	Version  int      `json:"version"`
	LogLevel string   `json:"logLevel"`
	Owners   []string `json:"owners"`
}

// Store is the lock-protected, file-backed process settings table.
type Store struct {
	mu   sync.RWMutex
	path string
	data onDisk
}

// Path returns the settings.json location for a config directory.
func Path(configDir string) string {
	return filepath.Join(configDir, "settings.json")
}

func New(path string) *Store {
	return &Store{path: path, data: onDisk{Version: fileVersion, LogLevel: "info"}}
}

// Load reads settings.json; a missing file is treated as defaults.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var d onDisk
	err := atomicfile.ReadJSON(s.path, &d)
	if os.IsNotExist(err) {
		s.data = onDisk{Version: fileVersion, LogLevel: "info"}
		return nil
	}
	if err != nil {
		return err
	}
	if d.LogLevel == "" {
		d.LogLevel = "info"
	}
	s.data = d
	return nil
}

func (s *Store) save() error {
	return atomicfile.WriteJSON(s.path, s.data)
}

// LogLevel returns the persisted log level. LOG_LEVEL, when set, overrides
// it; callers that need to report the source use LogLevelWithSource.
func (s *Store) LogLevel() string {
	level, _ := s.LogLevelWithSource()
	return level
}

// LogLevelWithSource returns the effective log level plus "env" or
// "persisted" depending on which one supplied it.
func (s *Store) LogLevelWithSource() (level, source string) {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		return env, "env"
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.LogLevel, "persisted"
}

// SetLogLevel persists a new log level (does not affect the env override).
func (s *Store) SetLogLevel(level string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.LogLevel = level
	return s.save()
}

// Owners returns a snapshot of the owner allow-list.
func (s *Store) Owners() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.data.Owners))
	copy(out, s.data.Owners)
	return out
}

// IsOwner reports whether id is in the owner allow-list. An empty allow-list
// means ownership is not yet configured and every caller is treated as owner
// ("unconfigured == unrestricted" bootstrap stance).
func (s *Store) IsOwner(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.data.Owners) == 0 {
		return true
	}
	for _, o := range s.data.Owners {
		if o == id {
			return true
		}
	}
	return false
}

// AddOwner appends id to the allow-list if not already present.
func (s *Store) AddOwner(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.data.Owners {
		if o == id {
			return nil
		}
	}
	s.data.Owners = append(s.data.Owners, id)
	return s.save()
}

// RemoveOwner deletes id from the allow-list, if present.
func (s *Store) RemoveOwner(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.data.Owners[:0]
	for _, o := range s.data.Owners {
		if o != id {
			out = append(out, o)
		}
	}
	s.data.Owners = out
	return s.save()
}
