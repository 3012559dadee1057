package sessionctl

import (
	"errors"
	"testing"

	"github.com/nextlevelbuilder/msgcode/internal/thread"
	"github.com/nextlevelbuilder/msgcode/internal/window"
	"github.com/nextlevelbuilder/msgcode/internal/wsconfig"
)

type fakeTmux struct {
	created, killed []string
	failStatus      bool
}

func (f *fakeTmux) CreateSession(name string) error { f.created = append(f.created, name); return nil }
func (f *fakeTmux) KillSession(name string) error    { f.killed = append(f.killed, name); return nil }
func (f *fakeTmux) Status(name string) (string, error) {
	if f.failStatus {
		return "", errors.New("boom")
	}
	return "running", nil
}
func (f *fakeTmux) CapturePane(name string) (string, error) { return "pane content", nil }
func (f *fakeTmux) SendEscape(name string) error             { return nil }

func TestDirectRunnerNoSessionNeeded(t *testing.T) {
	res := Resolution{Runner: RunnerDirect}
	if out := Start(res, nil, "s1"); out.Message != "no session needed" {
		t.Fatalf("unexpected: %+v", out)
	}
	if out := Status(res, nil, "s1"); out.Message != "direct (no tmux)" {
		t.Fatalf("unexpected: %+v", out)
	}
	if out := Snapshot(res, nil, "s1"); out.OK {
		t.Fatal("expected snapshot unsupported for direct runner")
	}
	if out := Esc(res, nil, "s1"); out.OK {
		t.Fatal("expected esc unsupported for direct runner")
	}
}

func TestTmuxRunnerDrivesController(t *testing.T) {
	tmux := &fakeTmux{}
	res := Resolution{Runner: RunnerTmux}
	Start(res, tmux, "s1")
	Stop(res, tmux, "s1")
	if len(tmux.created) != 1 || len(tmux.killed) != 1 {
		t.Fatalf("expected create+kill called once each, got %+v", tmux)
	}
}

func TestClearSessionArtifactsRequiresBoundWorkspace(t *testing.T) {
	if err := ClearSessionArtifacts("", "c1", nil); err == nil {
		t.Fatal("expected error for unbound workspace")
	}
}

func TestClearSessionArtifactsClearsWindowAndResetsThread(t *testing.T) {
	ws := t.TempDir()
	if err := window.Append(ws, "c1", window.Message{Role: "user", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	threads := thread.New()
	threads.EnsureThread(ws, "c1", "hi", thread.Meta{})

	if err := ClearSessionArtifacts(ws, "c1", threads); err != nil {
		t.Fatal(err)
	}
	msgs, err := window.Load(ws, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected window cleared, got %+v", msgs)
	}
}

func TestResolveRunnerBlocksTmuxUnderLocalOnlyPolicy(t *testing.T) {
	// The default policy.mode is local-only.
	cfg, err := wsconfig.Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetRuntimeKind("tmux"); err != nil {
		t.Fatal(err)
	}
	res := ResolveRunner(cfg)
	if res.Runner != RunnerTmux || res.BlockedReason == "" {
		t.Fatalf("expected a blocked tmux resolution, got %+v", res)
	}
}
