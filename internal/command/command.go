// Package command implements the slash-command router: command parsing,
// the routing-command subset, and handler result shapes.
package command

import "strings"

// routeCommands are the subset isRouteCommand recognizes.
var routeCommands = map[string]bool{
	"bind": true, "where": true, "unbind": true, "chatlist": true,
}

// allCommands is the full recognized command set.
var allCommands = map[string]bool{
	"bind": true, "where": true, "unbind": true, "chatlist": true, "help": true,
	"cursor": true, "reset-cursor": true, "owner": true, "owner-only": true,
	"pi": true, "soul": true, "policy": true, "tooling": true, "model": true,
	"mode": true, "loglevel": true, "reload": true, "start": true, "stop": true,
	"status": true, "snapshot": true, "esc": true, "clear": true,
}

// Parsed is the result of ParseCommand.
type Parsed struct {
	Command string
	Args    []string
}

// IsCommand reports whether text begins with "/" and names a recognized command.
func IsCommand(text string) bool {
	p, ok := tryParse(text)
	return ok && allCommands[p.Command]
}

// IsRouteCommand reports whether text is one of the routing-subset commands.
func IsRouteCommand(text string) bool {
	p, ok := tryParse(text)
	return ok && routeCommands[p.Command]
}

// ParseCommand splits "/cmd arg1 arg2" into {command, args}.
func ParseCommand(text string) Parsed {
	p, _ := tryParse(text)
	return p
}

func tryParse(text string) (Parsed, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return Parsed{}, false
	}
	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return Parsed{}, false
	}
	return Parsed{Command: fields[0], Args: fields[1:]}, true
}

// Result is the fixed shape every command handler returns.
type Result struct {
	Success  bool
	Message  string
	Response string
}

// ModelAlias maps a /model provider argument to the workspace config triple,
// for the routing lane.
func ModelAlias(providerArg string) (runtimeKind, agentProvider, tmuxClient string, ok bool) {
	switch providerArg {
	case "codex":
		return "tmux", "none", "codex", true
	case "claude-code":
		return "tmux", "none", "claude-code", true
	case "lmstudio":
		return "agent", "lmstudio", "none", true
	case "openai":
		return "agent", "openai", "none", true
	default:
		return "", "", "", false
	}
}
