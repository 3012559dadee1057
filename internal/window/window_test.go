package window

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendLoadRoundTrip(t *testing.T) {
	ws := t.TempDir()
	if err := Append(ws, "c1", Message{Role: "user", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := Append(ws, "c1", Message{Role: "assistant", Content: "hello"}); err != nil {
		t.Fatal(err)
	}
	msgs, err := Load(ws, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "hi" || msgs[1].Content != "hello" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestLoadDropsMalformedLines(t *testing.T) {
	ws := t.TempDir()
	path := Path(ws, "c1")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "{\"role\":\"user\",\"content\":\"ok\"}\nnot json\n{\"role\":\"assistant\",\"content\":\"ok2\"}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	msgs, err := Load(ws, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected malformed line dropped, got %d messages", len(msgs))
	}
}

func TestClearTruncates(t *testing.T) {
	ws := t.TempDir()
	Append(ws, "c1", Message{Role: "user", Content: "hi"})
	if err := Clear(ws, "c1"); err != nil {
		t.Fatal(err)
	}
	msgs, err := Load(ws, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty after clear, got %d", len(msgs))
	}
}

func TestPruneReturnsLastK(t *testing.T) {
	h := []Message{{Content: "1"}, {Content: "2"}, {Content: "3"}, {Content: "4"}}
	got := Prune(h, 2)
	if len(got) != 2 || got[0].Content != "3" || got[1].Content != "4" {
		t.Fatalf("unexpected prune result: %+v", got)
	}
	if got := Prune(h, 10); len(got) != len(h) {
		t.Fatalf("prune with max > len should return all, got %d", len(got))
	}
}

func TestBuildContextOrdering(t *testing.T) {
	h := []Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}}
	ctx := BuildContext(ContextOptions{System: "sys", History: h, CurrentUser: "now", MaxMessages: 4})
	if len(ctx) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(ctx), ctx)
	}
	if ctx[0].Role != "system" || ctx[len(ctx)-1].Content != "now" {
		t.Fatalf("unexpected ordering: %+v", ctx)
	}
}

func TestBuildContextWithSummaryInsertsBetween(t *testing.T) {
	ctx := BuildContextWithSummary(ContextOptions{System: "sys", CurrentUser: "now", MaxMessages: 4}, "did stuff")
	if len(ctx) != 3 {
		t.Fatalf("expected system+summary+user, got %d: %+v", len(ctx), ctx)
	}
	if ctx[1].Content == "" || ctx[1].Role != "system" {
		t.Fatalf("expected summary system message second, got %+v", ctx[1])
	}
}
