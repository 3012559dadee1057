package command

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/msgcode/internal/routestore"
	"github.com/nextlevelbuilder/msgcode/internal/sessionctl"
	"github.com/nextlevelbuilder/msgcode/internal/settings"
	"github.com/nextlevelbuilder/msgcode/internal/soul"
	"github.com/nextlevelbuilder/msgcode/internal/statestore"
	"github.com/nextlevelbuilder/msgcode/internal/thread"
	"github.com/nextlevelbuilder/msgcode/internal/wsconfig"
)

// Router dispatches parsed commands against the route store and
// workspace root.
type Router struct {
	Routes        *routestore.Store
	State         *statestore.Store
	Settings      *settings.Store
	Threads       *thread.Store
	WorkspaceRoot string
	ConfigDir     string

	// TmuxOf returns the tmux controller for the active chat's workspace;
	// the daemon sets this per-dispatch since it's chat-scoped. TmuxOf may
	// be nil for a direct-agent workspace, in which case session-control
	// verbs report "unsupported" rather than panicking.
	TmuxOf func(chatGUID string) sessionctl.TmuxController
}

// helpText is the curated minimum command list kept in sync with docs by
// an external check.
const helpText = `bind/unbind/where/chatlist — 工作区路由
start/stop/status/snapshot/esc/clear — 会话控制
policy/tooling/model/mode/loglevel — 配置
pi/soul/owner/owner-only/cursor/reset-cursor/reload — 管理`

// Handle dispatches a parsed command against the active chat.
func (r *Router) Handle(chatGUID string, p Parsed) Result {
	switch p.Command {
	case "bind":
		return r.handleBind(chatGUID, p.Args)
	case "where":
		return r.handleWhere(chatGUID)
	case "unbind":
		return r.handleUnbind(chatGUID)
	case "chatlist":
		return r.handleChatlist()
	case "help":
		return Result{Success: true, Message: helpText}
	case "cursor":
		return r.handleCursor(chatGUID)
	case "reset-cursor":
		return r.handleResetCursor(chatGUID)
	case "owner":
		return r.handleOwner(p.Args)
	case "owner-only":
		return r.handleOwnerOnly(chatGUID, p.Args)
	case "pi":
		return r.handlePI(chatGUID, p.Args)
	case "soul":
		return r.handleSoul(chatGUID, p.Args)
	case "policy":
		return r.handlePolicy(chatGUID, p.Args)
	case "tooling":
		return r.handleTooling(chatGUID, p.Args)
	case "model":
		return r.handleModel(chatGUID, p.Args)
	case "mode":
		return r.handleMode(chatGUID, p.Args)
	case "loglevel":
		return r.handleLogLevel(p.Args)
	case "reload":
		return r.handleReload(chatGUID)
	case "start":
		return r.handleSession(chatGUID, sessionctl.Start)
	case "stop":
		return r.handleSession(chatGUID, sessionctl.Stop)
	case "status":
		return r.handleSession(chatGUID, sessionctl.Status)
	case "snapshot":
		return r.handleSession(chatGUID, sessionctl.Snapshot)
	case "esc":
		return r.handleSession(chatGUID, sessionctl.Esc)
	case "clear":
		return r.handleClear(chatGUID)
	default:
		return Result{Success: false, Message: "未知命令: " + p.Command}
	}
}

func (r *Router) handleBind(chatGUID string, args []string) Result {
	if len(args) == 0 {
		return Result{Success: false, Message: "用法: /bind <relative/path>"}
	}
	rel := args[0]
	if filepath.IsAbs(rel) || strings.Contains(rel, "..") {
		return Result{Success: false, Message: "路径不安全: " + rel}
	}

	entry, err := r.Routes.CreateRoute(chatGUID, r.WorkspaceRoot, rel, rel, "agent")
	if err != nil {
		return Result{Success: false, Message: "绑定失败: " + err.Error()}
	}
	return Result{
		Success:  true,
		Message:  fmt.Sprintf("绑定成功: %s", rel),
		Response: entry.WorkspacePath,
	}
}

func (r *Router) handleWhere(chatGUID string) Result {
	entry, ok := r.Routes.GetByChatID(chatGUID)
	if !ok {
		return Result{Success: true, Message: "未绑定"}
	}
	return Result{Success: true, Message: "当前绑定: " + entry.WorkspacePath, Response: entry.WorkspacePath}
}

func (r *Router) handleUnbind(chatGUID string) Result {
	if _, ok := r.Routes.GetByChatID(chatGUID); !ok {
		return Result{Success: true, Message: "未绑定"}
	}
	r.Routes.DeleteRoute(chatGUID)
	return Result{Success: true, Message: "已解绑"}
}

func (r *Router) handleChatlist() Result {
	routes := r.Routes.GetActiveRoutes()
	if len(routes) == 0 {
		return Result{Success: true, Message: "没有活动绑定"}
	}
	var sb strings.Builder
	for _, route := range routes {
		fmt.Fprintf(&sb, "%s -> %s\n", route.ChatID, route.WorkspacePath)
	}
	return Result{Success: true, Message: strings.TrimRight(sb.String(), "\n")}
}

func (r *Router) handleCursor(chatGUID string) Result {
	cursor, ok := r.State.GetChatState(chatGUID)
	if !ok {
		return Result{Success: true, Message: "无游标"}
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("lastSeenRowid=%d lastMessageId=%s count=%d", cursor.LastSeenRowid, cursor.LastMessageID, cursor.MessageCount),
	}
}

func (r *Router) handleResetCursor(chatGUID string) Result {
	r.State.ResetChatState(chatGUID)
	if err := r.State.Save(); err != nil {
		return Result{Success: false, Message: "重置失败: " + err.Error()}
	}
	return Result{Success: true, Message: "游标已重置"}
}

func (r *Router) handleOwner(args []string) Result {
	if len(args) == 0 {
		owners := r.Settings.Owners()
		if len(owners) == 0 {
			return Result{Success: true, Message: "无 owner 限制"}
		}
		return Result{Success: true, Message: "owners: " + strings.Join(owners, ", ")}
	}
	switch args[0] {
	case "add":
		if len(args) < 2 {
			return Result{Success: false, Message: "用法: /owner add <id>"}
		}
		if err := r.Settings.AddOwner(args[1]); err != nil {
			return Result{Success: false, Message: "添加失败: " + err.Error()}
		}
		return Result{Success: true, Message: "已添加 owner: " + args[1]}
	case "remove":
		if len(args) < 2 {
			return Result{Success: false, Message: "用法: /owner remove <id>"}
		}
		if err := r.Settings.RemoveOwner(args[1]); err != nil {
			return Result{Success: false, Message: "移除失败: " + err.Error()}
		}
		return Result{Success: true, Message: "已移除 owner: " + args[1]}
	default:
		return Result{Success: false, Message: "用法: /owner [add|remove] <id>"}
	}
}

// handleOwnerOnly reads or sets the owner.only flag on the bound workspace
// config. The flag is only stored: message ingestion does not read it, so
// it does not filter non-owner senders.
func (r *Router) handleOwnerOnly(chatGUID string, args []string) Result {
	cfg, result, ok := r.boundConfig(chatGUID)
	if !ok {
		return result
	}
	if len(args) == 0 {
		return Result{Success: true, Message: "owner-only: " + strconv.FormatBool(cfg.GetBool("owner.only"))}
	}
	on, ok := parseOnOff(args[0])
	if !ok {
		return Result{Success: false, Message: "用法: /owner-only on|off"}
	}
	if err := cfg.SetRawBool("owner.only", on); err != nil {
		return Result{Success: false, Message: "设置失败: " + err.Error()}
	}
	return Result{Success: true, Message: "owner-only: " + strconv.FormatBool(on)}
}

func (r *Router) handlePI(chatGUID string, args []string) Result {
	cfg, result, ok := r.boundConfig(chatGUID)
	if !ok {
		return result
	}
	if len(args) == 0 {
		return Result{Success: true, Message: "pi.enabled: " + strconv.FormatBool(cfg.GetBool(wsconfig.KeyPIEnabled))}
	}
	on, ok := parseOnOff(args[0])
	if !ok {
		return Result{Success: false, Message: "用法: /pi on|off"}
	}
	if err := cfg.SetPIEnabled(on); err != nil {
		return Result{Success: false, Message: "设置失败: " + err.Error()}
	}
	return Result{Success: true, Message: "pi.enabled: " + strconv.FormatBool(on)}
}

func (r *Router) handleSoul(chatGUID string, args []string) Result {
	entry, ok := r.Routes.GetByChatID(chatGUID)
	if !ok {
		return Result{Success: false, Message: "未绑定 workspace"}
	}
	if len(args) == 0 {
		resolved := soul.Resolve(entry.WorkspacePath, r.ConfigDir)
		return Result{Success: true, Message: fmt.Sprintf("source=%s chars=%d", resolved.Source, resolved.Chars)}
	}
	text := strings.Join(args, " ")
	path := filepath.Join(entry.WorkspacePath, "SOUL.md")
	if err := writeTextFile(path, text); err != nil {
		return Result{Success: false, Message: "写入失败: " + err.Error()}
	}
	return Result{Success: true, Message: "SOUL.md 已更新", Response: path}
}

func (r *Router) handlePolicy(chatGUID string, args []string) Result {
	cfg, result, ok := r.boundConfig(chatGUID)
	if !ok {
		return result
	}
	if len(args) == 0 {
		return Result{Success: true, Message: "policy.mode: " + cfg.GetString(wsconfig.KeyPolicyMode)}
	}
	var mode string
	switch args[0] {
	case "on":
		mode = "egress-allowed"
	case "off":
		mode = "local-only"
	default:
		return Result{Success: false, Message: "用法: /policy on|off"}
	}
	if err := cfg.SetPolicyMode(mode); err != nil {
		return Result{Success: false, Message: "设置失败: " + err.Error()}
	}
	return Result{Success: true, Message: "policy.mode: " + mode}
}

func (r *Router) handleTooling(chatGUID string, args []string) Result {
	cfg, result, ok := r.boundConfig(chatGUID)
	if !ok {
		return result
	}
	if len(args) == 0 {
		return Result{Success: true, Message: "tooling.mode: " + cfg.GetString(wsconfig.KeyToolingMode) + " allow: " + strings.Join(cfg.GetStringSlice(wsconfig.KeyToolingAllow), ",")}
	}
	switch args[0] {
	case "allow":
		if len(args) < 2 {
			return Result{Success: false, Message: "用法: /tooling allow <tool>"}
		}
		if err := cfg.AppendToolingAllow(args[1]); err != nil {
			return Result{Success: false, Message: "设置失败: " + err.Error()}
		}
		return Result{Success: true, Message: "已允许工具: " + args[1]}
	case "explicit", "autonomous":
		if err := cfg.SetToolingMode(args[0]); err != nil {
			return Result{Success: false, Message: "设置失败: " + err.Error()}
		}
		return Result{Success: true, Message: "tooling.mode: " + args[0]}
	default:
		return Result{Success: false, Message: "用法: /tooling allow <tool> | /tooling explicit|autonomous"}
	}
}

func (r *Router) handleModel(chatGUID string, args []string) Result {
	cfg, result, ok := r.boundConfig(chatGUID)
	if !ok {
		return result
	}
	if len(args) == 0 {
		return Result{Success: false, Message: "用法: /model <codex|claude-code|lmstudio|openai>"}
	}
	runtimeKind, agentProvider, tmuxClient, ok := ModelAlias(args[0])
	if !ok {
		return Result{Success: false, Message: "未知 provider: " + args[0]}
	}
	if err := cfg.SetRuntimeKind(runtimeKind); err != nil {
		return Result{Success: false, Message: "设置失败: " + err.Error()}
	}
	if err := cfg.SetAgentProvider(agentProvider); err != nil {
		return Result{Success: false, Message: "设置失败: " + err.Error()}
	}
	if err := cfg.SetTmuxClient(tmuxClient); err != nil {
		return Result{Success: false, Message: "设置失败: " + err.Error()}
	}
	return Result{Success: true, Message: "model: " + args[0]}
}

// handleMode sets a per-workspace model ID: "executor <value>" writes
// model.executor (the model that runs tool loops) and "responder <value>"
// writes model.responder (used for a lighter-weight direct reply path).
func (r *Router) handleMode(chatGUID string, args []string) Result {
	cfg, result, ok := r.boundConfig(chatGUID)
	if !ok {
		return result
	}
	if len(args) < 2 {
		return Result{Success: false, Message: "用法: /mode executor|responder <value>"}
	}
	switch args[0] {
	case "executor":
		if err := cfg.SetModelExecutor(args[1]); err != nil {
			return Result{Success: false, Message: "设置失败: " + err.Error()}
		}
	case "responder":
		if err := cfg.SetModelResponder(args[1]); err != nil {
			return Result{Success: false, Message: "设置失败: " + err.Error()}
		}
	default:
		return Result{Success: false, Message: "用法: /mode executor|responder <value>"}
	}
	return Result{Success: true, Message: "mode." + args[0] + ": " + args[1]}
}

func (r *Router) handleLogLevel(args []string) Result {
	if len(args) == 0 {
		level, source := r.Settings.LogLevelWithSource()
		return Result{Success: true, Message: fmt.Sprintf("loglevel: %s (source=%s)", level, source)}
	}
	if _, source := r.Settings.LogLevelWithSource(); source == "env" {
		return Result{Success: false, Message: "LOG_LEVEL 环境变量已覆盖持久化设置"}
	}
	if err := r.Settings.SetLogLevel(args[0]); err != nil {
		return Result{Success: false, Message: "设置失败: " + err.Error()}
	}
	return Result{Success: true, Message: "loglevel: " + args[0]}
}

// handleReload is a no-op acknowledgement here: the actual fsnotify watcher
// (daemon) picks up SOUL.md/config.json changes on its own; /reload exists
// so an operator can force a synchronous re-read acknowledgement over chat.
func (r *Router) handleReload(chatGUID string) Result {
	if _, ok := r.Routes.GetByChatID(chatGUID); !ok {
		return Result{Success: false, Message: "未绑定 workspace"}
	}
	return Result{Success: true, Message: "已触发重新加载"}
}

func (r *Router) handleSession(chatGUID string, fn func(sessionctl.Resolution, sessionctl.TmuxController, string) sessionctl.Outcome) Result {
	cfg, result, ok := r.boundConfig(chatGUID)
	if !ok {
		return result
	}
	res := sessionctl.ResolveRunner(cfg)
	var tmux sessionctl.TmuxController
	if r.TmuxOf != nil {
		tmux = r.TmuxOf(chatGUID)
	}
	outcome := fn(res, tmux, sessionName(chatGUID))
	return Result{Success: outcome.OK, Message: outcome.Message}
}

func (r *Router) handleClear(chatGUID string) Result {
	entry, ok := r.Routes.GetByChatID(chatGUID)
	if !ok {
		return Result{Success: false, Message: "未绑定 workspace"}
	}
	cfg, err := wsconfig.Load(entry.WorkspacePath)
	if err != nil {
		return Result{Success: false, Message: "加载配置失败: " + err.Error()}
	}
	res := sessionctl.ResolveRunner(cfg)
	var tmux sessionctl.TmuxController
	if r.TmuxOf != nil {
		tmux = r.TmuxOf(chatGUID)
	}
	outcome := sessionctl.Clear(res, tmux, sessionName(chatGUID), entry.WorkspacePath, chatGUID, r.Threads)
	return Result{Success: outcome.OK, Message: outcome.Message}
}

// boundConfig loads the workspace config for the chat's active binding, or
// returns a failure Result when no binding exists.
func (r *Router) boundConfig(chatGUID string) (*wsconfig.Config, Result, bool) {
	entry, ok := r.Routes.GetByChatID(chatGUID)
	if !ok {
		return nil, Result{Success: false, Message: "未绑定 workspace"}, false
	}
	cfg, err := wsconfig.Load(entry.WorkspacePath)
	if err != nil {
		return nil, Result{Success: false, Message: "加载配置失败: " + err.Error()}, false
	}
	return cfg, Result{}, true
}

func sessionName(chatGUID string) string {
	return "msgcode-" + strings.ReplaceAll(chatGUID, "/", "_")
}

func parseOnOff(s string) (bool, bool) {
	switch s {
	case "on":
		return true, true
	case "off":
		return false, true
	default:
		return false, false
	}
}

func writeTextFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
