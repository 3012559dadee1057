// Package statestore implements the per-chat resume cursor so ingestion
// can idempotently pick up where it left off across restarts.
package statestore

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nextlevelbuilder/msgcode/internal/atomicfile"
	"github.com/nextlevelbuilder/msgcode/internal/msgerr"
)

const fileVersion = 1

// ChatCursor is the per-chat resume pointer.
type ChatCursor struct {
	ChatGUID      string    `json:"chatGuid"`
	LastSeenRowid int64     `json:"lastSeenRowid"`
	LastMessageID string    `json:"lastMessageId"`
	LastSeenAt    time.Time `json:"lastSeenAt"`
	MessageCount  int64     `json:"messageCount"`
}

type onDisk struct {
	Version int                    `json:"version"`
	Cursors map[string]*ChatCursor `json:"cursors"`
}

// Store is the lock-protected, file-backed cursor table.
type Store struct {
	mu   sync.RWMutex
	path string
	data onDisk
}

func New(path string) *Store {
	return &Store{path: path, data: onDisk{Version: fileVersion, Cursors: map[string]*ChatCursor{}}}
}

// Load reads the state file. Corrupt JSON is a fatal load error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var d onDisk
	err := atomicfile.ReadJSON(s.path, &d)
	if os.IsNotExist(err) {
		s.data = onDisk{Version: fileVersion, Cursors: map[string]*ChatCursor{}}
		return nil
	}
	if err != nil {
		return msgerr.Wrap(msgerr.CorruptState, "statestore: load "+s.path, err)
	}
	if d.Version != fileVersion {
		return msgerr.New(msgerr.VersionMismatch, fmt.Sprintf("statestore: version %d != %d", d.Version, fileVersion))
	}
	if d.Cursors == nil {
		d.Cursors = map[string]*ChatCursor{}
	}
	s.data = d
	return nil
}

func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return atomicfile.WriteJSON(s.path, s.data)
}

// GetChatState returns the cursor for chatID, if any.
func (s *Store) GetChatState(chatID string) (*ChatCursor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data.Cursors[chatID]
	return c, ok
}

// UpdateLastSeen advances the cursor monotonically: a call that would
// decrease lastSeenRowid is silently ignored.
func (s *Store) UpdateLastSeen(chatID string, rowid int64, msgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.Cursors[chatID]
	if !ok {
		c = &ChatCursor{ChatGUID: chatID}
		s.data.Cursors[chatID] = c
	}
	if rowid < c.LastSeenRowid {
		return
	}
	c.LastSeenRowid = rowid
	c.LastMessageID = msgID
	c.LastSeenAt = time.Now()
	c.MessageCount++
}

// ResetChatState drops the cursor entirely.
func (s *Store) ResetChatState(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Cursors, chatID)
}
