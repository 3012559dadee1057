// Package wsconfig implements the workspace-scoped typed config with legacy
// aliasing: a flat JSON map at <workspace>/.msgcode/config.json.
package wsconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/nextlevelbuilder/msgcode/internal/atomicfile"
)

// Recognized keys.
const (
	KeyRuntimeKind    = "runtime.kind"
	KeyAgentProvider  = "agent.provider"
	KeyTmuxClient     = "tmux.client"
	KeyRunnerDefault  = "runner.default" // legacy
	KeyPolicyMode     = "policy.mode"
	KeyToolingMode    = "tooling.mode"
	KeyToolingAllow   = "tooling.allow"
	KeyToolingConfirm = "tooling.require_confirm"
	KeyPIEnabled      = "pi.enabled"
	KeyModelExecutor  = "model.executor"
	KeyModelResponder = "model.responder"
	KeyModelBaseURL   = "model.base_url" // overrides the agent.provider default endpoint
)

// Default values (explicit open-question resolution): the
// stable default tooling mode is "explicit" with a minimal allow-list.
var defaultConfig = map[string]interface{}{
	KeyRuntimeKind:   "agent",
	KeyAgentProvider: "none",
	KeyTmuxClient:    "none",
	KeyPolicyMode:    "local-only",
	KeyToolingMode:   "explicit",
	KeyToolingAllow:  []interface{}{"tts", "asr", "vision"},
	KeyPIEnabled:     false,
}

// legacyRunnerMap maps runner.default values to {runtime.kind, agent.provider, tmux.client}.
var legacyRunnerMap = map[string][3]string{
	"codex":       {"tmux", "none", "codex"},
	"claude-code": {"tmux", "none", "claude-code"},
	"lmstudio":    {"agent", "lmstudio", "none"},
	"llama":       {"agent", "lmstudio", "none"},
	"claude":      {"agent", "lmstudio", "none"},
	"openai":      {"agent", "openai", "none"},
}

// Config is a workspace's merged, alias-resolved configuration.
type Config struct {
	mu   sync.RWMutex
	path string
	data map[string]interface{}
}

// Path returns the config.json location for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".msgcode", "config.json")
}

// Load reads config.json, merges over the defaults, and applies legacy
// aliasing (read-time only — aliasing never touches the file on disk).
func Load(workspace string) (*Config, error) {
	c := &Config{path: Path(workspace), data: map[string]interface{}{}}
	for k, v := range defaultConfig {
		c.data[k] = v
	}

	var onDisk map[string]interface{}
	err := atomicfile.ReadJSON(c.path, &onDisk)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for k, v := range onDisk {
		c.data[k] = v
	}

	c.applyLegacyAlias(onDisk)
	return c, nil
}

// applyLegacyAlias maps runner.default to the modern triple, only for keys
// the file did not already set explicitly.
func (c *Config) applyLegacyAlias(onDisk map[string]interface{}) {
	legacy, ok := c.data[KeyRunnerDefault].(string)
	if !ok || legacy == "" {
		return
	}
	triple, ok := legacyRunnerMap[legacy]
	if !ok {
		return
	}
	if _, set := onDisk[KeyRuntimeKind]; !set {
		c.data[KeyRuntimeKind] = triple[0]
	}
	if _, set := onDisk[KeyAgentProvider]; !set {
		c.data[KeyAgentProvider] = triple[1]
	}
	if _, set := onDisk[KeyTmuxClient]; !set {
		c.data[KeyTmuxClient] = triple[2]
	}
}

func (c *Config) save() error {
	return atomicfile.WriteJSON(c.path, c.data)
}

// GetString returns a string-valued key.
func (c *Config) GetString(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.data[key].(string); ok {
		return v
	}
	return ""
}

// GetBool returns a bool-valued key.
func (c *Config) GetBool(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.data[key].(bool); ok {
		return v
	}
	return false
}

// GetStringSlice returns a []string-valued key.
func (c *Config) GetStringSlice(key string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.data[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// RuntimeKind, AgentProvider, TmuxClient read the modern triple.
func (c *Config) RuntimeKind() string   { return c.GetString(KeyRuntimeKind) }
func (c *Config) AgentProvider() string { return c.GetString(KeyAgentProvider) }
func (c *Config) TmuxClient() string    { return c.GetString(KeyTmuxClient) }

// SetRuntimeKind writes only the modern key; legacy runner.default is never
// re-emitted by writers.
func (c *Config) SetRuntimeKind(v string) error { return c.setString(KeyRuntimeKind, v) }
func (c *Config) SetAgentProvider(v string) error { return c.setString(KeyAgentProvider, v) }
func (c *Config) SetTmuxClient(v string) error    { return c.setString(KeyTmuxClient, v) }

func (c *Config) setString(key, v string) error {
	c.mu.Lock()
	c.data[key] = v
	err := c.save()
	c.mu.Unlock()
	return err
}

// SetPolicyMode writes policy.mode ("local-only" or "egress-allowed").
func (c *Config) SetPolicyMode(v string) error { return c.setString(KeyPolicyMode, v) }

// SetToolingMode writes tooling.mode ("explicit" or "autonomous").
func (c *Config) SetToolingMode(v string) error { return c.setString(KeyToolingMode, v) }

// SetPIEnabled writes pi.enabled.
func (c *Config) SetPIEnabled(v bool) error {
	c.mu.Lock()
	c.data[KeyPIEnabled] = v
	err := c.save()
	c.mu.Unlock()
	return err
}

// AppendToolingAllow adds tool to tooling.allow if not already present.
func (c *Config) AppendToolingAllow(tool string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing := c.getStringSliceLocked(KeyToolingAllow)
	for _, t := range existing {
		if t == tool {
			return nil
		}
	}
	existing = append(existing, tool)
	raw := make([]interface{}, len(existing))
	for i, t := range existing {
		raw[i] = t
	}
	c.data[KeyToolingAllow] = raw
	return c.save()
}

func (c *Config) getStringSliceLocked(key string) []string {
	raw, ok := c.data[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// SetRawBool writes an arbitrary boolean key not named by the recognized
// key constants above (e.g. router-local knobs like "owner.only").
func (c *Config) SetRawBool(key string, v bool) error {
	c.mu.Lock()
	c.data[key] = v
	err := c.save()
	c.mu.Unlock()
	return err
}

// SetModelResponder/SetModelExecutor write the per-agent model overrides.
func (c *Config) SetModelExecutor(v string) error  { return c.setString(KeyModelExecutor, v) }
func (c *Config) SetModelResponder(v string) error { return c.setString(KeyModelResponder, v) }

// SetDefaultRunner writes the modern triple corresponding to a legacy runner
// name (e.g. "codex", "lmstudio").
func (c *Config) SetDefaultRunner(name string) error {
	triple, ok := legacyRunnerMap[name]
	if !ok {
		triple = [3]string{"agent", name, "none"}
	}
	c.mu.Lock()
	c.data[KeyRuntimeKind] = triple[0]
	c.data[KeyAgentProvider] = triple[1]
	c.data[KeyTmuxClient] = triple[2]
	err := c.save()
	c.mu.Unlock()
	return err
}

// GetDefaultRunner returns the legacy string that would have produced the
// current triple, preserving the original legacy value when it still maps
// consistently; returns "" when the triple doesn't correspond to any legacy
// name.
func (c *Config) GetDefaultRunner() string {
	c.mu.RLock()
	kind, provider, client := c.data[KeyRuntimeKind], c.data[KeyAgentProvider], c.data[KeyTmuxClient]
	originalLegacy, _ := c.data[KeyRunnerDefault].(string)
	c.mu.RUnlock()

	if originalLegacy != "" {
		if triple, ok := legacyRunnerMap[originalLegacy]; ok &&
			triple[0] == kind && triple[1] == provider && triple[2] == client {
			return originalLegacy
		}
	}
	for name, triple := range legacyRunnerMap {
		if triple[0] == kind && triple[1] == provider && triple[2] == client {
			return name
		}
	}
	return ""
}

// ToolPolicy is derived from config and never mutated after derivation.
type ToolPolicy struct {
	Mode           string
	Allow          map[string]bool
	RequireConfirm map[string]bool
}

// DerivePolicy builds a ToolPolicy snapshot from the current config.
func (c *Config) DerivePolicy() ToolPolicy {
	allow := map[string]bool{}
	for _, t := range c.GetStringSlice(KeyToolingAllow) {
		allow[t] = true
	}
	confirm := map[string]bool{}
	for _, t := range c.GetStringSlice(KeyToolingConfirm) {
		confirm[t] = true
	}
	return ToolPolicy{
		Mode:           c.GetString(KeyToolingMode),
		Allow:          allow,
		RequireConfirm: confirm,
	}
}

// Validate enforces: runtime.kind=tmux requires policy.mode=egress-allowed.
func (c *Config) Validate() error {
	if c.RuntimeKind() == "tmux" && c.GetString(KeyPolicyMode) != "egress-allowed" {
		return &ValidationError{Message: "runtime.kind=tmux requires policy.mode=egress-allowed"}
	}
	return nil
}

// ValidationError reports a workspace config invariant violation.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

// MarshalSnapshot returns the effective config (post-alias) as JSON, mainly
// for diagnostics / the `msgcode system info` command.
func (c *Config) MarshalSnapshot() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.MarshalIndent(c.data, "", "  ")
}
