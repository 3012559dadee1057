package wsconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsOnMissingFile(t *testing.T) {
	ws := t.TempDir()
	c, err := Load(ws)
	if err != nil {
		t.Fatal(err)
	}
	if c.RuntimeKind() != "agent" || c.AgentProvider() != "none" || c.TmuxClient() != "none" {
		t.Fatalf("unexpected defaults: %+v", c.data)
	}
}

func TestLegacyRunnerDefaultAliasing(t *testing.T) {
	ws := t.TempDir()
	if err := os.MkdirAll(filepath.Join(ws, ".msgcode"), 0o755); err != nil {
		t.Fatal(err)
	}
	raw := `{"runner.default":"codex"}`
	if err := os.WriteFile(Path(ws), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(ws)
	if err != nil {
		t.Fatal(err)
	}
	if c.RuntimeKind() != "tmux" || c.AgentProvider() != "none" || c.TmuxClient() != "codex" {
		t.Fatalf("expected codex alias triple, got kind=%s provider=%s client=%s",
			c.RuntimeKind(), c.AgentProvider(), c.TmuxClient())
	}
	if got := c.GetDefaultRunner(); got != "codex" {
		t.Fatalf("expected reverse mapping to codex, got %q", got)
	}
}

func TestExplicitModernKeysOverrideLegacy(t *testing.T) {
	ws := t.TempDir()
	if err := os.MkdirAll(filepath.Join(ws, ".msgcode"), 0o755); err != nil {
		t.Fatal(err)
	}
	raw := `{"runner.default":"codex","runtime.kind":"agent","agent.provider":"openai","tmux.client":"none"}`
	if err := os.WriteFile(Path(ws), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(ws)
	if err != nil {
		t.Fatal(err)
	}
	if c.RuntimeKind() != "agent" || c.AgentProvider() != "openai" {
		t.Fatalf("expected explicit keys to win over legacy alias, got kind=%s provider=%s", c.RuntimeKind(), c.AgentProvider())
	}
}

func TestWritersNeverEmitLegacyKey(t *testing.T) {
	ws := t.TempDir()
	c, err := Load(ws)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetDefaultRunner("lmstudio"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(Path(ws))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); contains(got, `"runner.default"`) {
		t.Fatalf("expected writers to never persist runner.default, got: %s", got)
	}
	if c.RuntimeKind() != "agent" || c.AgentProvider() != "lmstudio" || c.TmuxClient() != "none" {
		t.Fatalf("unexpected triple after SetDefaultRunner: %+v", c.data)
	}
}

func TestValidateRequiresEgressAllowedForTmux(t *testing.T) {
	ws := t.TempDir()
	c, err := Load(ws)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetRuntimeKind("tmux"); err != nil {
		t.Fatal(err)
	}
	if err := c.Validate(); err == nil {
		t.Fatal("expected validation error for tmux without egress-allowed policy")
	}
}

func TestDerivePolicy(t *testing.T) {
	ws := t.TempDir()
	c, err := Load(ws)
	if err != nil {
		t.Fatal(err)
	}
	p := c.DerivePolicy()
	if p.Mode != "explicit" {
		t.Fatalf("expected explicit default mode, got %s", p.Mode)
	}
	if !p.Allow["tts"] || !p.Allow["asr"] || !p.Allow["vision"] {
		t.Fatalf("expected default allow-list, got %+v", p.Allow)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
