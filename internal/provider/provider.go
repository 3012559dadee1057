// Package provider implements the OpenAI-compatible wire adapter: building
// chat-completion request bodies and parsing/normalizing responses, with a
// plain string-in/string-out contract for callers.
package provider

import (
	"encoding/json"

	"github.com/nextlevelbuilder/msgcode/internal/window"
)

// ToolDefinition mirrors the function-tool schema sent on the wire.
type ToolDefinition struct {
	Type     string          `json:"type"`
	Function ToolFunctionDef `json:"function"`
}

// ToolFunctionDef is the {name,description,parameters} function schema.
type ToolFunctionDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// RequestOptions is the input to BuildChatCompletionRequest.
type RequestOptions struct {
	Model       string
	Messages    []window.Message
	Tools       []ToolDefinition
	ToolChoice  string // if empty and Tools non-empty, defaults to "auto"
	Temperature *float64
	MaxTokens   *int
}

// BuildChatCompletionRequest serializes options to the OpenAI-compatible
// chat-completion request JSON body.
func BuildChatCompletionRequest(opts RequestOptions) (string, error) {
	body := map[string]interface{}{
		"model":    opts.Model,
		"messages": toWireMessages(opts.Messages),
	}

	if len(opts.Tools) > 0 {
		body["tools"] = opts.Tools
		if opts.ToolChoice != "" {
			body["tool_choice"] = opts.ToolChoice
		} else {
			body["tool_choice"] = "auto"
		}
	} else if opts.ToolChoice != "" {
		body["tool_choice"] = opts.ToolChoice
	}

	if opts.Temperature != nil {
		body["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		body["max_tokens"] = *opts.MaxTokens
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func toWireMessages(messages []window.Message) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		msg := map[string]interface{}{"role": m.Role}
		if m.Content != "" || len(m.ToolCalls) == 0 {
			msg["content"] = m.Content
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]interface{}, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				calls[i] = map[string]interface{}{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]interface{}{
						"name":      tc.Name,
						"arguments": tc.Arguments,
					},
				}
			}
			msg["tool_calls"] = calls
		}
		if m.ToolCallID != "" {
			msg["tool_call_id"] = m.ToolCallID
		}
		if m.Name != "" {
			msg["name"] = m.Name
		}
		out = append(out, msg)
	}
	return out
}

// NormalizedToolCall is the uniform tool-call shape after parsing.
type NormalizedToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParsedResponse is the result of ParseChatCompletionResponse.
type ParsedResponse struct {
	Content      string
	ToolCalls    []NormalizedToolCall
	FinishReason string
	Error        string
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ParseChatCompletionResponse parses a raw chat-completion response body.
func ParseChatCompletionResponse(raw string) ParsedResponse {
	var resp wireResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return ParsedResponse{Error: "Invalid JSON response"}
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return ParsedResponse{Error: resp.Error.Message}
	}
	if len(resp.Choices) == 0 {
		return ParsedResponse{Error: "Invalid response format"}
	}

	choice := resp.Choices[0]
	raw2 := make([]interface{}, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		raw2 = append(raw2, map[string]interface{}{
			"id":   tc.ID,
			"name": tc.Function.Name,
			"arguments": tc.Function.Arguments,
		})
	}

	return ParsedResponse{
		Content:      choice.Message.Content,
		ToolCalls:    NormalizeToolCalls(raw2),
		FinishReason: choice.FinishReason,
	}
}

// NormalizeToolCalls converts a list of loosely-typed tool-call maps into
// NormalizedToolCall, silently dropping entries with a missing or
// non-string id or name.
func NormalizeToolCalls(list []interface{}) []NormalizedToolCall {
	var out []NormalizedToolCall
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, idOK := m["id"].(string)
		name, nameOK := m["name"].(string)
		if !idOK || !nameOK || id == "" || name == "" {
			continue
		}
		args, _ := m["arguments"].(string)
		out = append(out, NormalizedToolCall{ID: id, Name: name, Arguments: args})
	}
	return out
}
