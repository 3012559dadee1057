// Package ingest implements the inbound message pipeline: drop own
// messages, rate-limit, whitelist, route lookup, cursor advance,
// command-vs-chat dispatch, and reply/persistence fan-out. Per-chat
// processing is serialized; different chats run concurrently.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/msgcode/internal/attach"
	"github.com/nextlevelbuilder/msgcode/internal/command"
	"github.com/nextlevelbuilder/msgcode/internal/routestore"
	"github.com/nextlevelbuilder/msgcode/internal/statestore"
)

// InboundMessage is one message observed from the transport watcher.
type InboundMessage struct {
	ChatGUID    string
	Sender      string
	Text        string
	RowID       int64
	MessageID   string
	IsFromMe    bool
	Attachments []string // local filesystem paths, already downloaded by the transport
}

// ChatDispatcher runs free-form chat (the tool loop) for a bound chat.
type ChatDispatcher func(ctx context.Context, route *routestore.RouteEntry, text string) (reply string, err error)

// Replier delivers text to a chat.
type Replier interface {
	Send(chatGUID, text string) error
}

// Pipeline wires together the per-chat serialization, rate limiting,
// whitelist, routing, cursor advance, and dispatch.
type Pipeline struct {
	Routes   *routestore.Store
	State    *statestore.Store
	Router   *command.Router
	Dispatch ChatDispatcher
	Reply    Replier
	Whitelist map[string]bool // nil/empty = disabled

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	warnedChats map[string]bool
	chatLocks   map[string]*sync.Mutex
}

// New builds a Pipeline ready to process messages.
func New(routes *routestore.Store, state *statestore.Store, router *command.Router, dispatch ChatDispatcher, reply Replier) *Pipeline {
	return &Pipeline{
		Routes: routes, State: state, Router: router, Dispatch: dispatch, Reply: reply,
		limiters:    map[string]*rate.Limiter{},
		warnedChats: map[string]bool{},
		chatLocks:   map[string]*sync.Mutex{},
	}
}

func (p *Pipeline) chatLock(chatGUID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.chatLocks[chatGUID]
	if !ok {
		l = &sync.Mutex{}
		p.chatLocks[chatGUID] = l
	}
	return l
}

func (p *Pipeline) limiterFor(chatGUID string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[chatGUID]
	if !ok {
		l = rate.NewLimiter(3, 3) // 3/s token bucket, burst 3
		p.limiters[chatGUID] = l
	}
	return l
}

// Process handles one inbound message end-to-end. Per-chat messages must be
// fed to Process in arrival order by the caller; Process serializes work for
// a given chat via an internal per-chat lock so concurrent callers for the
// same chat block, while different chats proceed in parallel.
func (p *Pipeline) Process(ctx context.Context, msg InboundMessage) {
	lock := p.chatLock(msg.ChatGUID)
	lock.Lock()
	defer lock.Unlock()

	if msg.IsFromMe {
		return
	}

	if !p.limiterFor(msg.ChatGUID).Allow() {
		p.warnOnce(msg.ChatGUID+":ratelimit", func() {
			_ = p.Reply.Send(msg.ChatGUID, "消息过于频繁，请稍后再试")
		})
		return
	}

	if len(p.Whitelist) > 0 && !p.Whitelist[msg.Sender] {
		p.warnOnce(msg.ChatGUID+":whitelist", func() {
			slog.Warn("ingest.unknown_group", "chat_guid", msg.ChatGUID, "sender", msg.Sender)
		})
		return
	}

	route, ok := p.Routes.GetByChatID(msg.ChatGUID)
	if !ok {
		p.warnOnce(msg.ChatGUID+":noroute", func() {
			slog.Warn("ingest.no_route", "chat_guid", msg.ChatGUID)
		})
		return
	}

	p.State.UpdateLastSeen(msg.ChatGUID, msg.RowID, msg.MessageID)

	text := msg.Text + extractAttachmentText(msg.Attachments)

	var reply string
	if command.IsCommand(msg.Text) {
		res := p.Router.Handle(msg.ChatGUID, command.ParseCommand(msg.Text))
		reply = res.Message
	} else {
		out, err := p.Dispatch(ctx, route, text)
		if err != nil {
			slog.Error("ingest.dispatch_failed", "chat_guid", msg.ChatGUID, "error", err)
			return
		}
		reply = out
	}

	if reply != "" {
		if err := p.Reply.Send(msg.ChatGUID, reply); err != nil {
			slog.Error("ingest.reply_failed", "chat_guid", msg.ChatGUID, "error", err)
		}
	}
}

// extractAttachmentText best-effort extracts PDF attachment text and
// appends it to the message body before it reaches dispatch/the session
// window, so the model sees document content inline. Non-PDF attachments
// and extraction failures are silently skipped: infrastructure failures
// around the reply path are logged and swallowed, not surfaced.
func extractAttachmentText(paths []string) string {
	var sb strings.Builder
	for _, p := range paths {
		if !attach.IsPDF(p) {
			continue
		}
		text, err := attach.ExtractPDFText(p)
		if err != nil || text == "" {
			slog.Warn("ingest.attachment_extract_failed", "path", p, "error", err)
			continue
		}
		sb.WriteString("\n\n[Attachment: ")
		sb.WriteString(p)
		sb.WriteString("]\n")
		sb.WriteString(text)
	}
	return sb.String()
}

func (p *Pipeline) warnOnce(key string, fn func()) {
	p.mu.Lock()
	already := p.warnedChats[key]
	p.warnedChats[key] = true
	p.mu.Unlock()
	if !already {
		fn()
	}
}
