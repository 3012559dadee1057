package toolbus

import "testing"

func TestCanExecuteToolExplicitModeDeniesLLM(t *testing.T) {
	policy := Policy{Mode: "explicit", Allow: map[string]bool{"tts": true}}
	allowed, code, msg := CanExecuteTool(policy, "tts", SourceLLMToolCall)
	if allowed || code != "TOOL_NOT_ALLOWED" || msg == "" {
		t.Fatalf("expected denial in explicit mode, got allowed=%v code=%s msg=%s", allowed, code, msg)
	}
}

func TestCanExecuteToolMediaPipelineRestrictedToAsrVision(t *testing.T) {
	policy := Policy{Mode: "autonomous", Allow: map[string]bool{"bash": true, "asr": true}}
	if allowed, _, _ := CanExecuteTool(policy, "bash", SourceMediaPipeline); allowed {
		t.Fatal("expected media-pipeline to be denied for bash")
	}
	if allowed, _, _ := CanExecuteTool(policy, "asr", SourceMediaPipeline); !allowed {
		t.Fatal("expected media-pipeline to allow asr")
	}
}

func TestCanExecuteToolDeniesUnlistedTool(t *testing.T) {
	policy := Policy{Mode: "autonomous", Allow: map[string]bool{"bash": true}}
	if allowed, code, _ := CanExecuteTool(policy, "browser", SourceUser); allowed || code != "TOOL_NOT_ALLOWED" {
		t.Fatalf("expected denial for unlisted tool, got allowed=%v code=%s", allowed, code)
	}
}

func TestExecuteToolDispatchesAndRecords(t *testing.T) {
	b := New()
	b.Register("bash", func(args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"stdout": "ok"}, nil
	})
	policy := Policy{Mode: "autonomous", Allow: map[string]bool{"bash": true}}
	res := b.ExecuteTool(policy, "bash", map[string]interface{}{"command": "ls"}, SourceUser)
	if !res.OK || res.Tool != "bash" {
		t.Fatalf("unexpected result: %+v", res)
	}
	stats := b.GetToolStats(60_000)
	if stats.TotalCalls != 1 || stats.SuccessCount != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestExecuteToolUnknownToolDenied(t *testing.T) {
	b := New()
	policy := Policy{Mode: "autonomous", Allow: map[string]bool{"ghost": true}}
	res := b.ExecuteTool(policy, "ghost", nil, SourceUser)
	if res.OK || res.Error.Code != "TOOL_NOT_ALLOWED" {
		t.Fatalf("expected unknown-tool denial, got %+v", res)
	}
}

func TestExecuteToolRecordsDeniedCalls(t *testing.T) {
	b := New()
	policy := Policy{Mode: "explicit", Allow: map[string]bool{}}
	b.ExecuteTool(policy, "bash", nil, SourceLLMToolCall)
	stats := b.GetToolStats(60_000)
	if stats.TotalCalls != 1 || stats.FailureCount != 1 {
		t.Fatalf("expected denied call recorded, got %+v", stats)
	}
	if len(stats.TopErrorCodes) != 1 || stats.TopErrorCodes[0].Code != "TOOL_NOT_ALLOWED" {
		t.Fatalf("expected top error code TOOL_NOT_ALLOWED, got %+v", stats.TopErrorCodes)
	}
}

func TestRingBufferCapsAt200(t *testing.T) {
	b := New()
	b.Register("bash", func(args map[string]interface{}) (interface{}, error) { return nil, nil })
	policy := Policy{Mode: "autonomous", Allow: map[string]bool{"bash": true}}
	for i := 0; i < 250; i++ {
		b.ExecuteTool(policy, "bash", nil, SourceUser)
	}
	stats := b.GetToolStats(60 * 60 * 1000)
	if stats.TotalCalls != 200 {
		t.Fatalf("expected ring buffer cap 200, got %d", stats.TotalCalls)
	}
}

func TestExecErrorCarriesExplicitCode(t *testing.T) {
	b := New()
	b.Register("bash", func(args map[string]interface{}) (interface{}, error) {
		return nil, NewExecError("TOOL_TIMEOUT", "command timed out")
	})
	policy := Policy{Mode: "autonomous", Allow: map[string]bool{"bash": true}}
	res := b.ExecuteTool(policy, "bash", nil, SourceUser)
	if res.OK || res.Error.Code != "TOOL_TIMEOUT" {
		t.Fatalf("expected TOOL_TIMEOUT, got %+v", res)
	}
}
