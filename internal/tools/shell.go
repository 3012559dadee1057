package tools

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/nextlevelbuilder/msgcode/internal/toolbus"
)

const defaultBashTimeout = 30 * time.Second

// Bash implements the bash tool: {command, cwd?} -> {stdout, stderr, exitCode}.
// An empty/whitespace command fails with TOOL_EXEC_FAILED.
func Bash(workspace string) toolbus.Executor {
	return func(args map[string]interface{}) (interface{}, error) {
		command, _ := args["command"].(string)
		if strings.TrimSpace(command) == "" {
			return nil, toolbus.NewExecError("TOOL_EXEC_FAILED", "command is required")
		}

		timeout := defaultBashTimeout
		if secs, ok := args["timeoutSeconds"].(float64); ok && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}

		cwd := workspace
		if rel, ok := args["cwd"].(string); ok && rel != "" {
			if resolved, err := resolvePath(workspace, rel); err == nil {
				cwd = resolved
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = cwd
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, toolbus.NewExecError("TOOL_TIMEOUT", "command timed out")
		}

		exitCode := 0
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			} else {
				return nil, toolbus.NewExecError("TOOL_EXEC_FAILED", err.Error())
			}
		}

		return map[string]interface{}{
			"stdout":   stdout.String(),
			"stderr":   stderr.String(),
			"exitCode": exitCode,
		}, nil
	}
}
