package toolloop

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/msgcode/internal/steer"
	"github.com/nextlevelbuilder/msgcode/internal/toolbus"
)

func TestRunToolLoopTerminatesOnPlainContent(t *testing.T) {
	bus := toolbus.New()
	queues := steer.New()
	call := func(ctx context.Context, body string) (string, int, error) {
		return `{"choices":[{"message":{"content":"hello there"},"finish_reason":"stop"}]}`, 200, nil
	}
	res := RunToolLoop(context.Background(), Options{
		Model: "gpt", ChatID: "c1", CurrentUser: "hi",
	}, call, bus, queues)
	if res.Content != "hello there" || res.ErrorCode != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunToolLoopExecutesToolThenTerminates(t *testing.T) {
	bus := toolbus.New()
	bus.Register("bash", func(args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"stdout": "ok"}, nil
	})
	queues := steer.New()

	calls := 0
	call := func(ctx context.Context, body string) (string, int, error) {
		calls++
		if calls == 1 {
			return `{"choices":[{"message":{"content":"","tool_calls":[{"id":"1","function":{"name":"bash","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`, 200, nil
		}
		return `{"choices":[{"message":{"content":"done"},"finish_reason":"stop"}]}`, 200, nil
	}

	res := RunToolLoop(context.Background(), Options{
		Model: "gpt", ChatID: "c1", CurrentUser: "run it",
		ToolPolicy: toolbus.Policy{Mode: "autonomous", Allow: map[string]bool{"bash": true}},
	}, call, bus, queues)
	if res.Content != "done" {
		t.Fatalf("expected final content 'done', got %+v", res)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 model calls, got %d", calls)
	}
}

func TestRunToolLoopDeniedToolStillProducesFinalAnswer(t *testing.T) {
	bus := toolbus.New()
	bus.Register("bash", func(args map[string]interface{}) (interface{}, error) {
		return nil, nil
	})
	queues := steer.New()

	calls := 0
	call := func(ctx context.Context, body string) (string, int, error) {
		calls++
		if calls == 1 {
			return `{"choices":[{"message":{"content":"","tool_calls":[{"id":"1","function":{"name":"bash","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`, 200, nil
		}
		return `{"choices":[{"message":{"content":"fallback"},"finish_reason":"stop"}]}`, 200, nil
	}

	res := RunToolLoop(context.Background(), Options{
		Model: "gpt", ChatID: "c1", CurrentUser: "run it",
		ToolPolicy: toolbus.Policy{Mode: "explicit", Allow: map[string]bool{}},
	}, call, bus, queues)
	if res.Content != "fallback" {
		t.Fatalf("expected model to see denied tool result and respond, got %+v", res)
	}
}

func TestRunToolLoopForcesTerminationAtMaxRounds(t *testing.T) {
	bus := toolbus.New()
	bus.Register("bash", func(args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"ok": true}, nil
	})
	queues := steer.New()

	call := func(ctx context.Context, body string) (string, int, error) {
		return `{"choices":[{"message":{"content":"","tool_calls":[{"id":"1","function":{"name":"bash","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`, 200, nil
	}

	res := RunToolLoop(context.Background(), Options{
		Model: "gpt", ChatID: "c1", CurrentUser: "loop forever", MaxToolRounds: 2,
		ToolPolicy: toolbus.Policy{Mode: "autonomous", Allow: map[string]bool{"bash": true}},
	}, call, bus, queues)
	if res.RoundsUsed != 2 {
		t.Fatalf("expected forced termination at round 2, got %+v", res)
	}
}
