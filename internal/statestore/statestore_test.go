package statestore

import (
	"path/filepath"
	"testing"
)

func TestUpdateLastSeenIsMonotonic(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"))

	s.UpdateLastSeen("c1", 5, "m5")
	s.UpdateLastSeen("c1", 3, "m3") // must be ignored: decreasing
	c, ok := s.GetChatState("c1")
	if !ok {
		t.Fatal("expected cursor to exist")
	}
	if c.LastSeenRowid != 5 {
		t.Fatalf("expected rowid to stay at 5, got %d", c.LastSeenRowid)
	}
	if c.LastMessageID != "m5" {
		t.Fatalf("expected last message id m5, got %q", c.LastMessageID)
	}

	s.UpdateLastSeen("c1", 9, "m9")
	c, _ = s.GetChatState("c1")
	if c.LastSeenRowid != 9 {
		t.Fatalf("expected advance to 9, got %d", c.LastSeenRowid)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := New(path)
	s.UpdateLastSeen("c1", 42, "abc")
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	s2 := New(path)
	if err := s2.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	c, ok := s2.GetChatState("c1")
	if !ok || c.LastSeenRowid != 42 {
		t.Fatalf("expected cursor to survive reload, got %+v ok=%v", c, ok)
	}
}

func TestResetChatState(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"))
	s.UpdateLastSeen("c1", 1, "a")
	s.ResetChatState("c1")
	if _, ok := s.GetChatState("c1"); ok {
		t.Fatal("expected cursor removed after reset")
	}
}
