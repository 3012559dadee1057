// Package probe implements the seven-probe health check: each probe is a
// narrow yes/no dependency check, run in a fixed order, returning structured
// results instead of printing, so both `msgcode probe` and the daemon
// startup path can share them.
package probe

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"time"

)

// routesOnDisk mirrors routestore's private on-disk shape closely enough to
// validate structure without importing its internals.
type routesOnDisk struct {
	Version int                    `json:"version"`
	Routes  map[string]interface{} `json:"routes"`
}

// Result is one probe's outcome.
type Result struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details,omitempty"`
	FixHint string `json:"fixHint,omitempty"`
}

// Report is the full probe run: the ordered results plus the aggregate.
type Report struct {
	Probes []Result `json:"probes"`
	AllOK  bool     `json:"allOk"`
}

// Config names the paths and binaries the probes check.
type Config struct {
	// TransportCLIPath is the external transport helper binary invoked for
	// the first two probes; resolved via exec.LookPath if not absolute.
	TransportCLIPath string
	RoutesPath       string
	WorkspaceRoot    string
}

const defaultTransportCLI = "msgcode-transport"

// Run executes the seven probes in spec order and aggregates allOk.
func Run(ctx context.Context, cfg Config) Report {
	transportCLI := cfg.TransportCLIPath
	if transportCLI == "" {
		transportCLI = defaultTransportCLI
	}

	probes := []Result{
		probeTransportCLIVersion(ctx, transportCLI),
		probeTransportRPCHelp(ctx, transportCLI),
		probeRoutesFileReadable(cfg.RoutesPath),
		probeRoutesFileJSONValid(cfg.RoutesPath),
		probeWorkspaceRootWritable(cfg.WorkspaceRoot),
		probeBinaryPresent("tmux", "tmux present", "install tmux (e.g. apt install tmux / brew install tmux)"),
		probeBinaryPresent("claude", "claude CLI present", "install the claude CLI and ensure it is on PATH"),
	}

	allOK := true
	for _, p := range probes {
		if !p.OK {
			allOK = false
		}
	}
	return Report{Probes: probes, AllOK: allOK}
}

func runVersionCheck(ctx context.Context, name, bin string, args []string, fixHint string) Result {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Result{Name: name, OK: false, Details: "binary not found: " + bin, FixHint: fixHint}
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(cctx, path, args...).CombinedOutput()
	if err != nil {
		return Result{Name: name, OK: false, Details: "command failed: " + err.Error(), FixHint: fixHint}
	}
	return Result{Name: name, OK: true, Details: firstLine(string(out))}
}

func probeTransportCLIVersion(ctx context.Context, bin string) Result {
	return runVersionCheck(ctx, "transport CLI version", bin, []string{"--version"},
		"ensure the transport CLI binary is installed and on PATH")
}

func probeTransportRPCHelp(ctx context.Context, bin string) Result {
	return runVersionCheck(ctx, "transport RPC help", bin, []string{"rpc", "--help"},
		"ensure the transport CLI supports the rpc subcommand")
}

func probeRoutesFileReadable(path string) Result {
	const name = "routes file readable"
	if path == "" {
		return Result{Name: name, OK: false, Details: "no routes file path configured", FixHint: "set ROUTES_FILE_PATH or MSGCODE_CONFIG_DIR"}
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			// A never-initialized routes file is not itself a failure; the
			// store creates it lazily on first write.
			return Result{Name: name, OK: true, Details: "routes file does not exist yet: " + path}
		}
		return Result{Name: name, OK: false, Details: err.Error(), FixHint: "check permissions on " + path}
	}
	if _, err := os.ReadFile(path); err != nil {
		return Result{Name: name, OK: false, Details: err.Error(), FixHint: "check permissions on " + path}
	}
	return Result{Name: name, OK: true, Details: path}
}

func probeRoutesFileJSONValid(path string) Result {
	const name = "routes file JSON valid"
	if path == "" {
		return Result{Name: name, OK: false, Details: "no routes file path configured", FixHint: "set ROUTES_FILE_PATH or MSGCODE_CONFIG_DIR"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, OK: true, Details: "routes file does not exist yet"}
		}
		return Result{Name: name, OK: false, Details: err.Error()}
	}
	var routes routesOnDisk
	if err := json.Unmarshal(data, &routes); err != nil {
		return Result{Name: name, OK: false, Details: "invalid JSON: " + err.Error(), FixHint: "repair or remove " + path + " (CORRUPT_STATE)"}
	}
	return Result{Name: name, OK: true, Details: path}
}

func probeWorkspaceRootWritable(root string) Result {
	const name = "WORKSPACE_ROOT writable"
	if root == "" {
		return Result{Name: name, OK: false, Details: "WORKSPACE_ROOT is not set", FixHint: "export WORKSPACE_ROOT=<path>"}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Result{Name: name, OK: false, Details: err.Error(), FixHint: "create " + root + " and ensure it is writable"}
	}
	probeFile := filepath.Join(root, ".msgcode-probe-tmp")
	if err := os.WriteFile(probeFile, []byte("ok"), 0o644); err != nil {
		return Result{Name: name, OK: false, Details: err.Error(), FixHint: "ensure " + root + " is writable by this process"}
	}
	_ = os.Remove(probeFile)
	return Result{Name: name, OK: true, Details: root}
}

func probeBinaryPresent(bin, name, fixHint string) Result {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Result{Name: name, OK: false, Details: bin + " not found on PATH", FixHint: fixHint}
	}
	return Result{Name: name, OK: true, Details: path}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
