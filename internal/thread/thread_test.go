package thread

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureThreadCreatesFileWithFrontMatter(t *testing.T) {
	ws := t.TempDir()
	s := New()
	info, err := s.EnsureThread(ws, "c1", "你好", Meta{RuntimeKind: "agent", AgentProvider: "lmstudio", TmuxClient: "none"})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(info.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "threadId: "+info.ThreadID) {
		t.Fatalf("missing front matter threadId: %s", data)
	}
	if !strings.Contains(filepath.Base(info.FilePath), "你好") {
		t.Fatalf("expected title derived from first message, got %s", info.FilePath)
	}
}

func TestEnsureThreadIsCachedUntilReset(t *testing.T) {
	ws := t.TempDir()
	s := New()
	first, _ := s.EnsureThread(ws, "c1", "hello", Meta{})
	second, _ := s.EnsureThread(ws, "c1", "ignored second message", Meta{})
	if first.ThreadID != second.ThreadID {
		t.Fatal("expected same thread while cached")
	}

	s.ResetThread("c1")
	third, _ := s.EnsureThread(ws, "c1", "new topic", Meta{})
	if third.ThreadID == first.ThreadID {
		t.Fatal("expected a new thread after reset")
	}
}

func TestAppendTurnIncrementsCount(t *testing.T) {
	ws := t.TempDir()
	s := New()
	if err := s.AppendTurn(ws, "c1", "hi", Meta{}, "hi", "hello there"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTurn(ws, "c1", "hi", Meta{}, "again", "sure"); err != nil {
		t.Fatal(err)
	}
	info, _ := s.EnsureThread(ws, "c1", "hi", Meta{})
	if info.TurnCount != 2 {
		t.Fatalf("expected turn count 2, got %d", info.TurnCount)
	}
	data, err := os.ReadFile(info.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "## Turn 1") || !strings.Contains(string(data), "## Turn 2") {
		t.Fatalf("expected two turn headers, got:\n%s", data)
	}
}

func TestSanitizeTitleFallsBackToUntitled(t *testing.T) {
	if got := sanitizeTitle("???"); got != "untitled" {
		t.Fatalf("expected untitled, got %q", got)
	}
}

func TestCollisionSuffix(t *testing.T) {
	ws := t.TempDir()
	s1 := New()
	info1, err := s1.EnsureThread(ws, "c1", "same title", Meta{})
	if err != nil {
		t.Fatal(err)
	}
	s2 := New()
	info2, err := s2.EnsureThread(ws, "c2", "same title", Meta{})
	if err != nil {
		t.Fatal(err)
	}
	if info1.FilePath == info2.FilePath {
		t.Fatal("expected collision suffix for second thread with same title")
	}
}
