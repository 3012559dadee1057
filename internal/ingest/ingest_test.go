package ingest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/msgcode/internal/command"
	"github.com/nextlevelbuilder/msgcode/internal/routestore"
	"github.com/nextlevelbuilder/msgcode/internal/statestore"
)

type fakeReplier struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeReplier) Send(chatGUID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func setup(t *testing.T) (*Pipeline, *fakeReplier) {
	t.Helper()
	wsRoot := t.TempDir()
	routes := routestore.New(filepath.Join(t.TempDir(), "routes.json"))
	if err := routes.Load(); err != nil {
		t.Fatal(err)
	}
	if _, err := routes.CreateRoute("any;+;c1", wsRoot, "team", "team", "agent"); err != nil {
		t.Fatal(err)
	}
	state := statestore.New(filepath.Join(t.TempDir(), "state.json"))
	if err := state.Load(); err != nil {
		t.Fatal(err)
	}
	router := &command.Router{Routes: routes, WorkspaceRoot: wsRoot}
	reply := &fakeReplier{}
	dispatch := func(ctx context.Context, route *routestore.RouteEntry, text string) (string, error) {
		return "echo: " + text, nil
	}
	return New(routes, state, router, dispatch, reply), reply
}

func TestProcessDropsOwnMessages(t *testing.T) {
	p, reply := setup(t)
	p.Process(context.Background(), InboundMessage{ChatGUID: "any;+;c1", IsFromMe: true, Text: "hi"})
	if len(reply.sent) != 0 {
		t.Fatalf("expected no reply for own message, got %+v", reply.sent)
	}
}

func TestProcessSkipsUnroutedChat(t *testing.T) {
	p, reply := setup(t)
	p.Process(context.Background(), InboundMessage{ChatGUID: "any;+;unknown", Text: "hi"})
	if len(reply.sent) != 0 {
		t.Fatalf("expected no reply for unrouted chat, got %+v", reply.sent)
	}
}

func TestProcessDispatchesFreeformChat(t *testing.T) {
	p, reply := setup(t)
	p.Process(context.Background(), InboundMessage{ChatGUID: "any;+;c1", Sender: "s1", Text: "hello", RowID: 1, MessageID: "m1"})
	if len(reply.sent) != 1 || reply.sent[0] != "echo: hello" {
		t.Fatalf("unexpected reply: %+v", reply.sent)
	}
}

func TestProcessDispatchesCommands(t *testing.T) {
	p, reply := setup(t)
	p.Process(context.Background(), InboundMessage{ChatGUID: "any;+;c1", Sender: "s1", Text: "/where", RowID: 1, MessageID: "m1"})
	if len(reply.sent) != 1 {
		t.Fatalf("expected one reply, got %+v", reply.sent)
	}
}

func TestProcessEnforcesWhitelist(t *testing.T) {
	p, reply := setup(t)
	p.Whitelist = map[string]bool{"allowed": true}
	p.Process(context.Background(), InboundMessage{ChatGUID: "any;+;c1", Sender: "stranger", Text: "hi", RowID: 1, MessageID: "m1"})
	if len(reply.sent) != 0 {
		t.Fatalf("expected no reply for non-whitelisted sender, got %+v", reply.sent)
	}
}
