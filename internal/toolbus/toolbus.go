// Package toolbus implements the single policy-gated tool execution entry
// point: the canExecuteTool gate, executeTool dispatch, and the capped
// ring-buffer telemetry of every call (allowed or denied).
package toolbus

import (
	"sync"
	"time"
)

// Source identifies who is invoking a tool.
type Source string

const (
	SourceLLMToolCall   Source = "llm-tool-call"
	SourceMediaPipeline Source = "media-pipeline"
	SourceUser          Source = "user"
	SourceSystem        Source = "system"
)

// Policy is the minimal view toolbus needs from a workspace's derived
// wsconfig.ToolPolicy (kept decoupled to avoid an import cycle).
type Policy struct {
	Mode  string
	Allow map[string]bool
}

// ToolError is the {code,message} shape returned on denial/failure.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the fixed {ok,data?,tool,error?} shape returned by ExecuteTool.
type Result struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Tool  string      `json:"tool"`
	Error *ToolError  `json:"error,omitempty"`
}

// Executor runs one named tool with the given arguments.
type Executor func(args map[string]interface{}) (interface{}, error)

// MetricsRecorder mirrors every recorded tool event into an external metrics
// sink. Optional: a nil recorder is a no-op, so the ring buffer
// (GetToolStats) stays the source of truth regardless of whether a
// Prometheus exporter is wired in.
type MetricsRecorder interface {
	ObserveToolCall(tool, source string, success bool, durationMs int64)
}

// Bus holds the tool registry, policy accessor, and telemetry ring buffer.
type Bus struct {
	mu        sync.RWMutex
	executors map[string]Executor
	events    *ring
	metrics   MetricsRecorder
}

// KnownTools enumerates the tool names the bus can dispatch.
var KnownTools = []string{
	"read_file", "write_file", "edit_file", "bash",
	"tts", "asr", "vision", "mem", "browser", "desktop",
}

func New() *Bus {
	return &Bus{executors: map[string]Executor{}, events: newRing(200)}
}

// SetMetricsRecorder wires an external metrics sink; pass nil to disable.
func (b *Bus) SetMetricsRecorder(m MetricsRecorder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = m
}

// Register installs the implementation for a known tool name.
func (b *Bus) Register(name string, fn Executor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.executors[name] = fn
}

// CanExecuteTool implements the policy gate: four ordered rules, first
// matching denial wins.
func CanExecuteTool(policy Policy, tool string, source Source) (allowed bool, code, message string) {
	if source == SourceLLMToolCall && policy.Mode == "explicit" {
		return false, "TOOL_NOT_ALLOWED", "llm tool-call disabled in explicit mode"
	}
	if source == SourceMediaPipeline && tool != "asr" && tool != "vision" {
		return false, "TOOL_NOT_ALLOWED", "not allowed from media-pipeline"
	}
	if !policy.Allow[tool] {
		return false, "TOOL_NOT_ALLOWED", "tool not allowed: " + tool
	}
	return true, "", ""
}

// ExecuteTool gates, dispatches, times, and records a tool call.
func (b *Bus) ExecuteTool(policy Policy, tool string, args map[string]interface{}, source Source) Result {
	start := time.Now()

	allowed, code, message := CanExecuteTool(policy, tool, source)
	if !allowed {
		res := Result{OK: false, Tool: tool, Error: &ToolError{Code: code, Message: message}}
		b.record(tool, string(source), false, time.Since(start), code)
		return res
	}

	b.mu.RLock()
	fn, known := b.executors[tool]
	b.mu.RUnlock()
	if !known {
		res := Result{OK: false, Tool: tool, Error: &ToolError{Code: "TOOL_NOT_ALLOWED", Message: "unknown tool: " + tool}}
		b.record(tool, string(source), false, time.Since(start), "TOOL_NOT_ALLOWED")
		return res
	}

	data, err := fn(args)
	dur := time.Since(start)
	if err != nil {
		errCode, message := classifyExecError(err)
		b.record(tool, string(source), false, dur, errCode)
		return Result{OK: false, Tool: tool, Error: &ToolError{Code: errCode, Message: message}}
	}

	b.record(tool, string(source), true, dur, "")
	return Result{OK: true, Tool: tool, Data: data}
}

// execError lets tool implementations report a specific taxonomy code;
// plain errors default to TOOL_EXEC_FAILED.
type execError struct {
	Code    string
	Message string
}

func (e *execError) Error() string { return e.Message }

// NewExecError builds an error carrying an explicit taxonomy code (e.g.
// TOOL_TIMEOUT, TOOL_INVALID_ARGS).
func NewExecError(code, message string) error {
	return &execError{Code: code, Message: message}
}

func classifyExecError(err error) (code, message string) {
	if ee, ok := err.(*execError); ok {
		return ee.Code, ee.Message
	}
	return "TOOL_EXEC_FAILED", err.Error()
}

// ToolEvent is one recorded call, allowed or denied.
type ToolEvent struct {
	Tool      string
	Source    string
	Success   bool
	DurationMs int64
	ErrorCode string
	Timestamp time.Time
}

// ring is a fixed-capacity circular buffer guarded by mu; ExecuteTool writes,
// getToolStats reads a snapshot copy.
type ring struct {
	mu     sync.Mutex
	buf    []ToolEvent
	cap    int
	next   int
	filled bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]ToolEvent, capacity), cap: capacity}
}

func (r *ring) push(e ToolEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % r.cap
	if r.next == 0 {
		r.filled = true
	}
}

func (r *ring) snapshot() []ToolEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.filled {
		out := make([]ToolEvent, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]ToolEvent, r.cap)
	copy(out, r.buf[r.next:])
	copy(out[r.cap-r.next:], r.buf[:r.next])
	return out
}

func (b *Bus) record(tool, source string, success bool, dur time.Duration, errorCode string) {
	b.events.push(ToolEvent{
		Tool: tool, Source: source, Success: success,
		DurationMs: dur.Milliseconds(), ErrorCode: errorCode, Timestamp: time.Now(),
	})
	b.mu.RLock()
	m := b.metrics
	b.mu.RUnlock()
	if m != nil {
		m.ObserveToolCall(tool, source, success, dur.Milliseconds())
	}
}

// Stats is the aggregation returned by GetToolStats.
type Stats struct {
	TotalCalls     int            `json:"totalCalls"`
	SuccessCount   int            `json:"successCount"`
	FailureCount   int            `json:"failureCount"`
	SuccessRate    float64        `json:"successRate"`
	AvgDurationMs  float64        `json:"avgDurationMs"`
	ByTool         map[string]int `json:"byTool"`
	BySource       map[string]int `json:"bySource"`
	TopErrorCodes  []ErrorCount   `json:"topErrorCodes"`
}

// ErrorCount pairs an error code with its occurrence count.
type ErrorCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// GetToolStats aggregates ring-buffer events within the trailing windowMs.
func (b *Bus) GetToolStats(windowMs int64) Stats {
	events := b.events.snapshot()
	cutoff := time.Now().Add(-time.Duration(windowMs) * time.Millisecond)

	s := Stats{ByTool: map[string]int{}, BySource: map[string]int{}}
	errCounts := map[string]int{}
	var totalDur int64

	for _, e := range events {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		s.TotalCalls++
		if e.Success {
			s.SuccessCount++
		} else {
			s.FailureCount++
			if e.ErrorCode != "" {
				errCounts[e.ErrorCode]++
			}
		}
		s.ByTool[e.Tool]++
		s.BySource[e.Source]++
		totalDur += e.DurationMs
	}

	if s.TotalCalls > 0 {
		s.SuccessRate = float64(s.SuccessCount) / float64(s.TotalCalls)
		s.AvgDurationMs = float64(totalDur) / float64(s.TotalCalls)
	}
	for code, count := range errCounts {
		s.TopErrorCodes = append(s.TopErrorCodes, ErrorCount{Code: code, Count: count})
	}
	sortErrorCountsDesc(s.TopErrorCodes)
	return s
}

func sortErrorCountsDesc(ec []ErrorCount) {
	for i := 1; i < len(ec); i++ {
		for j := i; j > 0 && ec[j-1].Count < ec[j].Count; j-- {
			ec[j-1], ec[j] = ec[j], ec[j-1]
		}
	}
}
