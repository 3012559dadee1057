package daemon

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/nextlevelbuilder/msgcode/internal/sessionctl"
)

const tmuxCommandTimeout = 10 * time.Second

// CLITmuxController drives a real tmux binary, satisfying
// sessionctl.TmuxController. One instance is shared across workspaces; the
// session name already disambiguates chats (command.sessionName).
type CLITmuxController struct {
	workDir string
}

// NewCLITmuxController builds a controller whose sessions start in workDir.
func NewCLITmuxController(workDir string) *CLITmuxController {
	return &CLITmuxController{workDir: workDir}
}

var _ sessionctl.TmuxController = (*CLITmuxController)(nil)

func (c *CLITmuxController) run(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tmuxCommandTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "tmux", args...)
	cmd.Dir = c.workDir
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tmux %v: %w: %s", args, err, errBuf.String())
	}
	return out.String(), nil
}

// CreateSession starts a detached tmux session, a no-op if one already exists.
func (c *CLITmuxController) CreateSession(name string) error {
	if _, err := c.run("has-session", "-t", name); err == nil {
		return nil
	}
	_, err := c.run("new-session", "-d", "-s", name)
	return err
}

// KillSession terminates the named session; killing an absent session is
// not an error.
func (c *CLITmuxController) KillSession(name string) error {
	if _, err := c.run("has-session", "-t", name); err != nil {
		return nil
	}
	_, err := c.run("kill-session", "-t", name)
	return err
}

// Status reports whether the session is alive.
func (c *CLITmuxController) Status(name string) (string, error) {
	if _, err := c.run("has-session", "-t", name); err != nil {
		return "stopped", nil
	}
	return "running", nil
}

// CapturePane returns the current visible pane contents.
func (c *CLITmuxController) CapturePane(name string) (string, error) {
	return c.run("capture-pane", "-p", "-t", name)
}

// SendEscape sends an Escape key press to the session's active pane.
func (c *CLITmuxController) SendEscape(name string) error {
	_, err := c.run("send-keys", "-t", name, "Escape")
	return err
}
