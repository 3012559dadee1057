// Package sessionctl implements the session orchestrator: mapping control
// verbs to behaviors based on the resolved runner (direct-agent vs tmux),
// and clearing per-chat session artifacts.
package sessionctl

import (
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/msgcode/internal/summary"
	"github.com/nextlevelbuilder/msgcode/internal/thread"
	"github.com/nextlevelbuilder/msgcode/internal/window"
	"github.com/nextlevelbuilder/msgcode/internal/wsconfig"
)

// Runner identifies the resolved execution path for a workspace.
type Runner string

const (
	RunnerDirect Runner = "direct"
	RunnerTmux   Runner = "tmux"
)

// Resolution is the result of ResolveRunner.
type Resolution struct {
	Runner        Runner
	RunnerConfig  string
	BlockedReason string
}

// ResolveRunner derives the active runner from workspace config, blocking
// tmux when policy.mode is local-only (egress required for tmux clients).
func ResolveRunner(cfg *wsconfig.Config) Resolution {
	if cfg.RuntimeKind() != "tmux" {
		return Resolution{Runner: RunnerDirect, RunnerConfig: cfg.AgentProvider()}
	}
	res := Resolution{Runner: RunnerTmux, RunnerConfig: cfg.TmuxClient()}
	if cfg.GetString(wsconfig.KeyPolicyMode) == "local-only" {
		res.BlockedReason = "tmux 运行需要 egress-allowed 策略"
	}
	return res
}

// TmuxController is the minimal tmux session control surface the
// orchestrator drives for tmux-backed workspaces.
type TmuxController interface {
	CreateSession(name string) error
	KillSession(name string) error
	Status(name string) (string, error)
	CapturePane(name string) (string, error)
	SendEscape(name string) error
}

// Outcome is the user-facing result of a control verb.
type Outcome struct {
	OK      bool
	Message string
}

// Start implements /start.
func Start(res Resolution, tmux TmuxController, sessionName string) Outcome {
	if res.Runner == RunnerDirect {
		return Outcome{OK: true, Message: "no session needed"}
	}
	if err := tmux.CreateSession(sessionName); err != nil {
		return Outcome{OK: false, Message: err.Error()}
	}
	return Outcome{OK: true, Message: "tmux session created"}
}

// Stop implements /stop.
func Stop(res Resolution, tmux TmuxController, sessionName string) Outcome {
	if res.Runner == RunnerDirect {
		return Outcome{OK: true, Message: "no session needed"}
	}
	if err := tmux.KillSession(sessionName); err != nil {
		return Outcome{OK: false, Message: err.Error()}
	}
	return Outcome{OK: true, Message: "tmux session killed"}
}

// Status implements /status.
func Status(res Resolution, tmux TmuxController, sessionName string) Outcome {
	if res.Runner == RunnerDirect {
		return Outcome{OK: true, Message: "direct (no tmux)"}
	}
	status, err := tmux.Status(sessionName)
	if err != nil {
		return Outcome{OK: false, Message: err.Error()}
	}
	return Outcome{OK: true, Message: status}
}

// Snapshot implements /snapshot.
func Snapshot(res Resolution, tmux TmuxController, sessionName string) Outcome {
	if res.Runner == RunnerDirect {
		return Outcome{OK: false, Message: "unsupported for direct agent runner"}
	}
	pane, err := tmux.CapturePane(sessionName)
	if err != nil {
		return Outcome{OK: false, Message: err.Error()}
	}
	return Outcome{OK: true, Message: pane}
}

// Esc implements /esc.
func Esc(res Resolution, tmux TmuxController, sessionName string) Outcome {
	if res.Runner == RunnerDirect {
		return Outcome{OK: false, Message: "unsupported for direct agent runner"}
	}
	if err := tmux.SendEscape(sessionName); err != nil {
		return Outcome{OK: false, Message: err.Error()}
	}
	return Outcome{OK: true, Message: "escape sent"}
}

// Clear implements /clear: clears window+summary always; additionally
// restarts the tmux client when runner==tmux.
func Clear(res Resolution, tmux TmuxController, sessionName string, projectDir, chatID string, threads *thread.Store) Outcome {
	if err := ClearSessionArtifacts(projectDir, chatID, threads); err != nil {
		return Outcome{OK: false, Message: err.Error()}
	}
	if res.Runner == RunnerTmux && tmux != nil {
		_ = tmux.KillSession(sessionName)
		_ = tmux.CreateSession(sessionName)
	}
	return Outcome{OK: true, Message: "已清理会话文件"}
}

// ClearSessionArtifacts clears window+summary and resets the thread cache.
// An internal failure is logged and returned wrapped as "清理失败: ...".
func ClearSessionArtifacts(projectDir, chatID string, threads *thread.Store) error {
	if projectDir == "" {
		return fmt.Errorf("未绑定 workspace: chat %s", chatID)
	}
	if err := clearSessionFiles(projectDir, chatID); err != nil {
		slog.Error("sessionctl.clear_failed", "chat_id", chatID, "error", err)
		return fmt.Errorf("清理失败: %w", err)
	}
	if threads != nil {
		threads.ResetThread(chatID)
	}
	return nil
}

// clearSessionFiles is the pure, non-logging core that ClearSessionArtifacts
// wraps.
func clearSessionFiles(projectDir, chatID string) error {
	if err := window.Clear(projectDir, chatID); err != nil {
		return err
	}
	return summary.Clear(projectDir, chatID)
}
