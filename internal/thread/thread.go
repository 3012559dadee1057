// Package thread implements the human-readable per-conversation transcript
// files: one Markdown file per thread, between two /clear calls, with a
// YAML front-matter header and appended turns.
package thread

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
)

const maxTitleWidth = 24

var titleStrip = strings.NewReplacer(
	"<", "", ">", "", ":", "", "\"", "", "/", "", "\\", "", "|", "", "?", "", "*", "",
)

// Info describes the active thread for a chat.
type Info struct {
	ThreadID      string
	ChatID        string
	WorkspacePath string
	FilePath      string
	TurnCount     int
	CreatedAt     time.Time
}

// Store tracks the active thread per chat; an empty cache entry means the
// next user message starts a new thread file.
type Store struct {
	mu      sync.Mutex
	active  map[string]*Info
	nowFunc func() time.Time
}

func New() *Store {
	return &Store{active: map[string]*Info{}, nowFunc: time.Now}
}

// Meta carries the YAML front-matter fields written into a new thread file.
type Meta struct {
	RuntimeKind   string
	AgentProvider string
	TmuxClient    string
}

// EnsureThread returns the active thread for chatID, creating a new file
// (titled from firstUserMessage) if none is cached.
func (s *Store) EnsureThread(workspacePath, chatID, firstUserMessage string, meta Meta) (*Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info, ok := s.active[chatID]; ok {
		return info, nil
	}

	now := s.nowFunc()
	title := sanitizeTitle(firstUserMessage)
	dir := filepath.Join(workspacePath, ".msgcode", "threads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("thread: mkdir: %w", err)
	}

	datePrefix := now.Format("2006-01-02")
	base := datePrefix + "_" + title
	path := filepath.Join(dir, base+".md")
	suffix := 2
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%d.md", base, suffix))
		suffix++
	}

	threadID := uuid.NewString()
	frontMatter := fmt.Sprintf(
		"---\nthreadId: %s\nchatId: %s\nworkspace: %s\nworkspacePath: %s\ncreatedAt: %s\nruntimeKind: %s\nagentProvider: %s\ntmuxClient: %s\n---\n",
		threadID, chatID, filepath.Base(workspacePath), workspacePath, now.Format(time.RFC3339),
		meta.RuntimeKind, meta.AgentProvider, meta.TmuxClient,
	)
	if err := os.WriteFile(path, []byte(frontMatter), 0o644); err != nil {
		return nil, fmt.Errorf("thread: write front matter: %w", err)
	}

	info := &Info{ThreadID: threadID, ChatID: chatID, WorkspacePath: workspacePath, FilePath: path, CreatedAt: now}
	s.active[chatID] = info
	return info, nil
}

// AppendTurn appends one user/assistant turn to the chat's active thread.
func (s *Store) AppendTurn(workspacePath, chatID, firstUserMessage string, meta Meta, user, assistant string) error {
	info, err := s.EnsureThread(workspacePath, chatID, firstUserMessage, meta)
	if err != nil {
		return err
	}

	s.mu.Lock()
	info.TurnCount++
	turnNum := info.TurnCount
	s.mu.Unlock()

	now := time.Now()
	entry := fmt.Sprintf(
		"\n## Turn %d - %s\n\n### User\n%s\n\n### Assistant\n%s\n",
		turnNum, now.Format(time.RFC3339), user, assistant,
	)

	f, err := os.OpenFile(info.FilePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("thread: append: %w", err)
	}
	defer f.Close()
	_, err = f.WriteString(entry)
	return err
}

// ResetThread drops the cache entry so the next user message starts a new
// thread file.
func (s *Store) ResetThread(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, chatID)
}

// sanitizeTitle trims the first user message to <=24 visible (rune-width
// aware) characters, strips filesystem-unsafe characters, and falls back to
// "untitled" when nothing usable remains.
func sanitizeTitle(firstUserMessage string) string {
	line := firstUserMessage
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(titleStrip.Replace(line))
	if line == "" {
		return "untitled"
	}
	return truncateToWidth(line, maxTitleWidth)
}

func truncateToWidth(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	var b strings.Builder
	w := 0
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if w+rw > max {
			break
		}
		b.WriteRune(r)
		w += rw
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "untitled"
	}
	return out
}
