// Package toolloop implements the tool loop state machine: the
// model<->tool round driver, SOUL injection, 404/crash retry rules, and the
// routed dual-model variant (RunRoutedChat).
package toolloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/msgcode/internal/budget"
	"github.com/nextlevelbuilder/msgcode/internal/classify"
	"github.com/nextlevelbuilder/msgcode/internal/provider"
	"github.com/nextlevelbuilder/msgcode/internal/steer"
	"github.com/nextlevelbuilder/msgcode/internal/toolbus"
	"github.com/nextlevelbuilder/msgcode/internal/tracing"
	"github.com/nextlevelbuilder/msgcode/internal/window"
)

const (
	defaultMaxWindowMessages = 20
	defaultMaxToolsPerRound  = 3
	defaultMaxToolRounds     = 6
)

// CallModel performs the actual HTTP round trip; returns the raw response
// body, the HTTP status code, and a transport error (nil on success).
type CallModel func(ctx context.Context, requestBody string) (responseBody string, httpStatus int, err error)

// Options configures one RunToolLoop invocation.
type Options struct {
	Model             string
	ChatID            string
	WorkspacePath     string
	Tools             []provider.ToolDefinition
	ToolPolicy        toolbus.Policy
	SoulInjection     string // already formatted; "" means no SOUL injected
	Summary           string
	History           []window.Message
	CurrentUser       string
	MaxTokens         int
	Temperature       float64
	MaxWindowMessages int
	MaxToolsPerRound  int
	MaxToolRounds     int
}

// Result is the outcome of a full tool-loop turn.
type Result struct {
	Content      string
	RoundsUsed   int
	ErrorCode    string
	FinalMessages []window.Message
}

const crashedMarker = "model process crashed"

// RunToolLoop drives model<->tool rounds to completion.
func RunToolLoop(ctx context.Context, opts Options, call CallModel, bus *toolbus.Bus, queues *steer.Queues) Result {
	if opts.MaxWindowMessages <= 0 {
		opts.MaxWindowMessages = defaultMaxWindowMessages
	}
	if opts.MaxToolsPerRound <= 0 {
		opts.MaxToolsPerRound = defaultMaxToolsPerRound
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = defaultMaxToolRounds
	}

	history := opts.History
	currentUser := opts.CurrentUser
	round := 0

	for {
		result, done := runOneRound(ctx, &round, &history, &currentUser, opts, call, bus, queues)
		if done {
			return result
		}
	}
}

// runOneRound executes exactly one model<->tool round under its own span,
// so each round is independently visible in a trace even though the outer
// loop shares one context. Returns done=true once the turn has a final
// Result to hand back to the caller.
func runOneRound(ctx context.Context, round *int, history *[]window.Message, currentUser *string, opts Options, call CallModel, bus *toolbus.Bus, queues *steer.Queues) (result Result, done bool) {
	roundCtx, roundSpan := tracing.Tracer().Start(ctx, "toolloop.round",
		trace.WithAttributes(
			attribute.String("chat_id", opts.ChatID),
			attribute.Int("round", *round),
		))
	defer roundSpan.End()

	messages := assembleContext(opts, *history, *currentUser)

	parsed, status, retryErr := callWithRetries(roundCtx, call, opts, messages)
	if retryErr != "" {
		roundSpan.SetStatus(codes.Error, retryErr)
		return Result{ErrorCode: retryErr, Content: userFacingErrorMessage(retryErr), FinalMessages: messages}, true
	}
	_ = status

	if parsed.Error != "" {
		roundSpan.SetStatus(codes.Error, parsed.Error)
		return Result{ErrorCode: "MODEL_ERROR", Content: parsed.Error, FinalMessages: messages}, true
	}

	if len(parsed.ToolCalls) == 0 {
		messages = append(messages, window.Message{Role: "assistant", Content: parsed.Content})
		return Result{Content: parsed.Content, RoundsUsed: *round, FinalMessages: messages}, true
	}

	// Append the assistant tool_calls message.
	assistantMsg := window.Message{Role: "assistant", ToolCalls: toWindowToolCalls(parsed.ToolCalls)}
	messages = append(messages, assistantMsg)
	*history = append(*history, assistantMsg)

	lastToolResult := ""
	for k, tc := range parsed.ToolCalls {
		if k >= opts.MaxToolsPerRound {
			break
		}
		if drained := queues.DrainSteer(opts.ChatID); len(drained) > 0 {
			break
		}
		var args map[string]interface{}
		_ = json.Unmarshal([]byte(tc.Arguments), &args)

		_, toolSpan := tracing.Tracer().Start(roundCtx, "toolloop.tool_call",
			trace.WithAttributes(attribute.String("tool", tc.Name)))
		res := bus.ExecuteTool(opts.ToolPolicy, tc.Name, args, toolbus.SourceLLMToolCall)
		var content string
		if res.OK {
			data, _ := json.Marshal(res.Data)
			content = string(data)
		} else {
			content = fmt.Sprintf("工具执行失败\n工具: %s\n错误码: %s\n错误: %s",
				tc.Name, res.Error.Code, res.Error.Message)
			lastToolResult = content
			toolSpan.SetStatus(codes.Error, res.Error.Message)
		}
		toolSpan.End()
		toolMsg := window.Message{Role: "tool", Content: content, ToolCallID: tc.ID, Name: tc.Name}
		messages = append(messages, toolMsg)
		*history = append(*history, toolMsg)
	}

	*round++
	if *round >= opts.MaxToolRounds {
		if lastToolResult != "" {
			return Result{Content: lastToolResult, RoundsUsed: *round, FinalMessages: messages}, true
		}
		return Result{Content: bestEffortText(messages), RoundsUsed: *round, FinalMessages: messages}, true
	}

	if fu, ok := queues.ConsumeOneFollowUp(opts.ChatID); ok {
		*currentUser = fu.Text
		return Result{}, false
	}

	*currentUser = ""
	return Result{}, false
}

func assembleContext(opts Options, history []window.Message, currentUser string) []window.Message {
	caps := budget.CapabilitiesFor(opts.Model)
	inputBudget := budget.ComputeInputBudget(caps)
	alloc := budget.AllocateSections(inputBudget, budget.DefaultRatios)

	trimmedHistory := budget.TrimMessagesByBudget(history, alloc.Recent, caps.CharsPerToken, opts.MaxWindowMessages-1)

	return window.BuildContextWithSummary(window.ContextOptions{
		System:      opts.SoulInjection,
		History:     trimmedHistory,
		CurrentUser: currentUser,
		MaxMessages: opts.MaxWindowMessages,
	}, opts.Summary)
}

// callWithRetries implements the 404-minimal-context retry and the
// crashed-model maxTokens-reduction retry, each exactly one shot.
func callWithRetries(ctx context.Context, call CallModel, opts Options, messages []window.Message) (provider.ParsedResponse, int, string) {
	parsed, status, ok := doCall(ctx, call, opts, messages, opts.MaxTokens)
	if !ok {
		return provider.ParsedResponse{}, status, "MODEL_ERROR"
	}

	if status == 404 {
		minimal := minimalMessages(messages)
		parsed2, status2, ok2 := doCall(ctx, call, opts, minimal, opts.MaxTokens)
		if !ok2 {
			return provider.ParsedResponse{}, status2, "MODEL_404"
		}
		if status2 == 404 {
			return provider.ParsedResponse{}, status2, "MODEL_404"
		}
		return parsed2, status2, ""
	}

	if isCrashedResponse(parsed) {
		reduced := opts.MaxTokens * 2 / 5
		parsed2, status2, ok2 := doCall(ctx, call, opts, messages, reduced)
		if !ok2 || isCrashedResponse(parsed2) {
			return provider.ParsedResponse{}, status2, "MODEL_CRASHED"
		}
		return parsed2, status2, ""
	}

	return parsed, status, ""
}

func doCall(ctx context.Context, call CallModel, opts Options, messages []window.Message, maxTokens int) (provider.ParsedResponse, int, bool) {
	temp := opts.Temperature
	reqOpts := provider.RequestOptions{
		Model:       opts.Model,
		Messages:    messages,
		Tools:       opts.Tools,
		Temperature: &temp,
	}
	if maxTokens > 0 {
		reqOpts.MaxTokens = &maxTokens
	}
	body, err := provider.BuildChatCompletionRequest(reqOpts)
	if err != nil {
		return provider.ParsedResponse{}, 0, false
	}
	raw, status, callErr := call(ctx, body)
	if callErr != nil {
		return provider.ParsedResponse{}, status, false
	}
	return provider.ParseChatCompletionResponse(raw), status, true
}

func minimalMessages(messages []window.Message) []window.Message {
	var out []window.Message
	for _, m := range messages {
		if m.Role == "system" {
			out = append(out, m)
			break
		}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			out = append(out, messages[i])
			break
		}
	}
	return out
}

// userFacingErrorMessage maps a terminal error code to the short
// human-readable reply sent to the user on final tool-loop failure.
func userFacingErrorMessage(code string) string {
	switch code {
	case "MODEL_404":
		return "MLX 服务不可达…请检查本地模型服务是否已启动 (MODEL_404)"
	case "MODEL_CRASHED":
		return "模型进程已崩溃，请稍后重试 (MODEL_CRASHED)"
	default:
		return "模型请求失败，请稍后重试 (MODEL_ERROR)"
	}
}

func isCrashedResponse(p provider.ParsedResponse) bool {
	return strings.Contains(p.Content, crashedMarker) || strings.Contains(p.Error, crashedMarker)
}

func toWindowToolCalls(calls []provider.NormalizedToolCall) []window.ToolCall {
	out := make([]window.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = window.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}

func bestEffortText(messages []window.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}

// RoutedOptions configures RunRoutedChat (the dual-model variant).
type RoutedOptions struct {
	Options
	ResponderModel string
	ExecutorModel  string
	ToolsAvailable bool
}

// RunRoutedChat classifies the message and dispatches to the
// appropriate lane.
func RunRoutedChat(ctx context.Context, ro RoutedOptions, call CallModel, bus *toolbus.Bus, queues *steer.Queues) Result {
	classification := classify.ClassifyRoute(ro.CurrentUser, ro.ToolsAvailable)

	switch classification.Route {
	case classify.RouteNoTool:
		opts := ro.Options
		opts.Model = ro.ResponderModel
		opts.Tools = nil
		opts.Temperature = 0.2
		return RunToolLoop(ctx, opts, call, bus, queues)

	case classify.RouteTool:
		opts := ro.Options
		opts.Model = ro.ExecutorModel
		opts.Temperature = 0
		return RunToolLoop(ctx, opts, call, bus, queues)

	default: // complex-tool: plan -> execute -> summarize
		planOpts := ro.Options
		planOpts.Model = ro.ExecutorModel
		planOpts.Tools = nil
		planOpts.Temperature = 0
		planOpts.CurrentUser = ro.CurrentUser + "\n请先分析这个任务并制定执行计划"
		plan := RunToolLoop(ctx, planOpts, call, bus, queues)
		if plan.ErrorCode != "" {
			return plan
		}

		execOpts := ro.Options
		execOpts.Model = ro.ExecutorModel
		execOpts.Temperature = 0
		execOpts.CurrentUser = ro.CurrentUser
		execOpts.Summary = plan.Content
		exec := RunToolLoop(ctx, execOpts, call, bus, queues)
		if exec.ErrorCode != "" {
			return exec
		}

		sumOpts := ro.Options
		sumOpts.Model = ro.ExecutorModel
		sumOpts.Tools = nil
		sumOpts.Temperature = 0
		sumOpts.History = exec.FinalMessages
		sumOpts.CurrentUser = "总结执行结果"
		return RunToolLoop(ctx, sumOpts, call, bus, queues)
	}
}
