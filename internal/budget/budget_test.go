package budget

import (
	"testing"

	"github.com/nextlevelbuilder/msgcode/internal/window"
)

func TestComputeInputBudget(t *testing.T) {
	if got := ComputeInputBudget(DefaultCapabilities); got != 3072 {
		t.Fatalf("expected 3072, got %d", got)
	}
	if got := ComputeInputBudget(CapabilitiesFor("local-llm")); got != 14336 {
		t.Fatalf("expected 14336, got %d", got)
	}
}

func TestAllocateSectionsSumsWithinBudget(t *testing.T) {
	a := AllocateSections(1000, DefaultRatios)
	sum := a.System + a.Summary + a.Recent + a.Current
	if sum > 1000 {
		t.Fatalf("allocation exceeds budget: %+v sum=%d", a, sum)
	}
	if a.System != 100 || a.Summary != 200 || a.Recent != 500 || a.Current != 200 {
		t.Fatalf("unexpected allocation: %+v", a)
	}
}

func TestTrimByBudgetPreservesOrderAndLastUser(t *testing.T) {
	msgs := []window.Message{
		{Role: "user", Content: "old question"},
		{Role: "assistant", Content: "old answer"},
		{Role: "tool", Content: "tool output"},
		{Role: "assistant", Content: "latest answer"},
		{Role: "user", Content: "latest question"},
	}
	out := TrimByBudget(msgs, 30, 2)
	if len(out) == 0 {
		t.Fatal("expected at least one message retained")
	}
	last := out[len(out)-1]
	if last.Role != "user" || last.Content != "latest question" {
		t.Fatalf("expected last user message retained last, got %+v", last)
	}
}

func TestTrimMessagesByBudgetFallsBackOnFailure(t *testing.T) {
	msgs := []window.Message{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
	}
	out := TrimMessagesByBudget(msgs, -1, 0, 2)
	if len(out) != 2 {
		t.Fatalf("expected fallback to prune(2), got %d", len(out))
	}
}

func TestGetBudgetSummaryWithinBudget(t *testing.T) {
	msgs := []window.Message{{Role: "user", Content: "short"}}
	alloc := Allocation{Recent: 1000}
	s := GetBudgetSummary(msgs, alloc, 2)
	if !s.WithinBudget {
		t.Fatalf("expected within budget, got %+v", s)
	}
}
