package routestore

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateRouteRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	s := New(filepath.Join(root, "routes.json"))

	for _, bad := range []string{"../escape", "/etc/passwd", "a/../../b"} {
		if _, err := s.CreateRoute("c1", root, bad, "", ""); err == nil {
			t.Fatalf("expected rejection for %q", bad)
		}
	}
}

func TestCreateRouteUnderWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	s := New(filepath.Join(root, "routes.json"))

	entry, err := s.CreateRoute("c1", root, "acme/ops", "", "")
	if err != nil {
		t.Fatalf("create route: %v", err)
	}
	if !strings.HasPrefix(entry.WorkspacePath, root) {
		t.Fatalf("workspace path %q not under root %q", entry.WorkspacePath, root)
	}
	if strings.Contains(entry.WorkspacePath, "..") {
		t.Fatalf("workspace path contains ..: %q", entry.WorkspacePath)
	}
	if entry.ChatGUID != "any;+;c1" {
		t.Fatalf("expected normalized chatGuid, got %q", entry.ChatGUID)
	}

	got, ok := s.GetByChatID("c1")
	if !ok {
		t.Fatalf("expected lookup by unprefixed id to succeed")
	}
	if got.WorkspacePath != entry.WorkspacePath {
		t.Fatalf("lookup mismatch")
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "routes.json")
	s := New(path)
	if _, err := s.CreateRoute("c2", root, "team/x", "Team X", "imessage"); err != nil {
		t.Fatal(err)
	}

	s2 := New(path)
	if err := s2.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := s2.GetByChatID("c2")
	if !ok {
		t.Fatalf("expected route to survive reload")
	}
	if got.Label != "Team X" {
		t.Fatalf("label not persisted: %q", got.Label)
	}
}

func TestGetActiveRoutesFiltersStatus(t *testing.T) {
	root := t.TempDir()
	s := New(filepath.Join(root, "routes.json"))
	if _, err := s.CreateRoute("c3", root, "a", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateRoute("c4", root, "b", "", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateRouteStatus("c4", StatusArchived); err != nil {
		t.Fatal(err)
	}
	active := s.GetActiveRoutes()
	if len(active) != 1 || active[0].ChatID != "c3" {
		t.Fatalf("expected exactly c3 active, got %+v", active)
	}
}
