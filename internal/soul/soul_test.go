package soul

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePrefersWorkspaceSoul(t *testing.T) {
	ws := t.TempDir()
	cfg := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "SOUL.md"), []byte("workspace persona"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := Resolve(ws, cfg)
	if r.Source != SourceWorkspace || r.Content != "workspace persona" {
		t.Fatalf("unexpected resolution: %+v", r)
	}
}

func TestResolveFallsBackToActiveGlobal(t *testing.T) {
	ws := t.TempDir()
	cfg := t.TempDir()
	soulsDir := filepath.Join(cfg, "souls", "default")
	if err := os.MkdirAll(soulsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(soulsDir, "abc.md"), []byte("global persona"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg, "souls", "active.json"), []byte(`{"id":"abc"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	r := Resolve(ws, cfg)
	if r.Source != SourceGlobal || r.Content != "global persona" {
		t.Fatalf("unexpected resolution: %+v", r)
	}
}

func TestResolveNoneWhenNothingConfigured(t *testing.T) {
	r := Resolve(t.TempDir(), t.TempDir())
	if r.Source != SourceNone {
		t.Fatalf("expected none, got %+v", r)
	}
	if r.FormatForInjection() != "" {
		t.Fatal("expected empty injection for source=none")
	}
}

func TestFormatForInjectionWrapsContent(t *testing.T) {
	r := Resolved{Source: SourceWorkspace, Content: "hi"}
	out := r.FormatForInjection()
	if out == "" {
		t.Fatal("expected non-empty injection")
	}
}
