package summary

import (
	"reflect"
	"testing"

	"github.com/nextlevelbuilder/msgcode/internal/window"
)

func TestFormatParseRoundTrip(t *testing.T) {
	s := Summary{
		Goal:        []string{"ship the feature"},
		Constraints: []string{"must not break existing tests"},
		Decisions:   []string{"I decide to use option B"},
		OpenItems:   []string{"what about edge cases?"},
		ToolFacts:   []string{"rows: 12"},
	}
	md := FormatMarkdown(s)
	got := ParseMarkdown(md)
	if !reflect.DeepEqual(got, s) {
		t.Fatalf("round trip mismatch.\nwant: %+v\ngot:  %+v\nmd:\n%s", s, got, md)
	}
}

func TestParseMarkdownTolerantOfMissingSections(t *testing.T) {
	md := "# Chat Summary\n\n## Goal\n- a goal\n"
	got := ParseMarkdown(md)
	if len(got.Goal) != 1 || got.Goal[0] != "a goal" {
		t.Fatalf("unexpected goal parse: %+v", got)
	}
	if got.Constraints != nil {
		t.Fatalf("expected nil constraints, got %+v", got.Constraints)
	}
}

func TestExtractConstraintsDecisionsOpenItems(t *testing.T) {
	dropped := []window.Message{
		{Role: "user", Content: "you must not delete the database"},
		{Role: "assistant", Content: "I decide to change to plan B"},
		{Role: "user", Content: "what time zone should we use?"},
	}
	s := Extract(dropped, dropped)
	if len(s.Constraints) != 1 {
		t.Fatalf("expected 1 constraint, got %+v", s.Constraints)
	}
	if len(s.Decisions) != 1 {
		t.Fatalf("expected 1 decision, got %+v", s.Decisions)
	}
	if len(s.OpenItems) != 1 {
		t.Fatalf("expected 1 open item, got %+v", s.OpenItems)
	}
}

func TestExtractToolFacts(t *testing.T) {
	dropped := []window.Message{
		{Role: "tool", Content: `{"success":true,"data":{"rows":12}}`},
		{Role: "tool", Content: `{"success":false,"data":{"rows":99}}`},
	}
	s := Extract(dropped, dropped)
	if len(s.ToolFacts) != 1 {
		t.Fatalf("expected exactly one fact from the successful call, got %+v", s.ToolFacts)
	}
}

func TestShouldGenerate(t *testing.T) {
	if ShouldGenerate(25, 25, 20, false) {
		t.Fatal("no trim occurred, should not trigger")
	}
	if !ShouldGenerate(25, 10, 20, false) {
		t.Fatal("trim occurred above threshold, should trigger")
	}
	if ShouldGenerate(10, 5, 20, false) {
		t.Fatal("below threshold, should not trigger")
	}
	if !ShouldGenerate(10, 10, 20, true) {
		t.Fatal("forceRegenerate should always trigger")
	}
}
