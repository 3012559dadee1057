package command

import "testing"

func TestParseCommand(t *testing.T) {
	p := ParseCommand("/bind acme/ops")
	if p.Command != "bind" || len(p.Args) != 1 || p.Args[0] != "acme/ops" {
		t.Fatalf("unexpected parse: %+v", p)
	}
}

func TestIsRouteCommandSubset(t *testing.T) {
	if !IsRouteCommand("/bind a/b") {
		t.Fatal("expected bind to be a route command")
	}
	if IsRouteCommand("/policy on") {
		t.Fatal("expected policy not to be a route command")
	}
}

func TestIsCommandRejectsNonSlash(t *testing.T) {
	if IsCommand("hello") {
		t.Fatal("expected plain text to not be a command")
	}
	if !IsCommand("/help") {
		t.Fatal("expected /help to be a command")
	}
}

func TestModelAlias(t *testing.T) {
	kind, provider, client, ok := ModelAlias("codex")
	if !ok || kind != "tmux" || provider != "none" || client != "codex" {
		t.Fatalf("unexpected alias: %s %s %s %v", kind, provider, client, ok)
	}
	if _, _, _, ok := ModelAlias("unknown"); ok {
		t.Fatal("expected unknown provider to fail")
	}
}
