package provider

import (
	"encoding/json"
	"testing"

	"github.com/nextlevelbuilder/msgcode/internal/window"
)

func TestBuildChatCompletionRequestOmitsToolsWhenEmpty(t *testing.T) {
	body, err := BuildChatCompletionRequest(RequestOptions{
		Model:    "gpt",
		Messages: []window.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatal(err)
	}
	if _, ok := parsed["tools"]; ok {
		t.Fatal("expected tools omitted when empty")
	}
	if _, ok := parsed["tool_choice"]; ok {
		t.Fatal("expected tool_choice omitted when tools empty and unset")
	}
}

func TestBuildChatCompletionRequestAutoToolChoice(t *testing.T) {
	body, err := BuildChatCompletionRequest(RequestOptions{
		Model:    "gpt",
		Messages: []window.Message{{Role: "user", Content: "hi"}},
		Tools:    []ToolDefinition{{Type: "function", Function: ToolFunctionDef{Name: "bash"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]interface{}
	_ = json.Unmarshal([]byte(body), &parsed)
	if parsed["tool_choice"] != "auto" {
		t.Fatalf("expected auto tool_choice, got %v", parsed["tool_choice"])
	}
}

func TestBuildChatCompletionRequestKeepsZeroTemperature(t *testing.T) {
	zero := 0.0
	body, _ := BuildChatCompletionRequest(RequestOptions{
		Model: "gpt", Messages: nil, Temperature: &zero,
	})
	var parsed map[string]interface{}
	_ = json.Unmarshal([]byte(body), &parsed)
	if v, ok := parsed["temperature"]; !ok || v != 0.0 {
		t.Fatalf("expected temperature 0 kept, got %v ok=%v", v, ok)
	}
}

func TestParseChatCompletionResponseInvalidJSON(t *testing.T) {
	got := ParseChatCompletionResponse("not json")
	if got.Error != "Invalid JSON response" {
		t.Fatalf("expected invalid JSON error, got %+v", got)
	}
}

func TestParseChatCompletionResponseTopLevelError(t *testing.T) {
	got := ParseChatCompletionResponse(`{"error":{"message":"rate limited"}}`)
	if got.Error != "rate limited" {
		t.Fatalf("expected surfaced error, got %+v", got)
	}
}

func TestParseChatCompletionResponseMissingChoices(t *testing.T) {
	got := ParseChatCompletionResponse(`{"choices":[]}`)
	if got.Error != "Invalid response format" {
		t.Fatalf("expected invalid response format, got %+v", got)
	}
}

func TestParseChatCompletionResponseToolCalls(t *testing.T) {
	raw := `{"choices":[{"message":{"content":"","tool_calls":[{"id":"1","function":{"name":"bash","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`
	got := ParseChatCompletionResponse(raw)
	if len(got.ToolCalls) != 1 || got.ToolCalls[0].Name != "bash" {
		t.Fatalf("unexpected tool calls: %+v", got)
	}
}

func TestNormalizeToolCallsDropsInvalidEntries(t *testing.T) {
	list := []interface{}{
		map[string]interface{}{"id": "1", "name": "bash", "arguments": "{}"},
		map[string]interface{}{"id": 5, "name": "bash"},
		map[string]interface{}{"id": "2"},
		"not a map",
	}
	out := NormalizeToolCalls(list)
	if len(out) != 1 || out[0].ID != "1" {
		t.Fatalf("expected only the valid entry, got %+v", out)
	}
}
