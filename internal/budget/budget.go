// Package budget implements the context budgeter: per-provider capability
// defaults, section allocation, token estimation, and priority-tiered
// trimming to fit a model's context window.
package budget

import (
	"math"

	"github.com/nextlevelbuilder/msgcode/internal/window"
)

// Capabilities describes one provider target's context window shape.
type Capabilities struct {
	ContextWindowTokens int
	ReservedOutputTokens int
	CharsPerToken        int
}

// DefaultCapabilities is used for any provider not in KnownCapabilities.
var DefaultCapabilities = Capabilities{ContextWindowTokens: 4096, ReservedOutputTokens: 1024, CharsPerToken: 2}

// KnownCapabilities holds per-provider overrides.
var KnownCapabilities = map[string]Capabilities{
	"local-llm": {ContextWindowTokens: 16384, ReservedOutputTokens: 2048, CharsPerToken: 2},
}

// CapabilitiesFor returns the known capabilities for a provider, or the default.
func CapabilitiesFor(provider string) Capabilities {
	if c, ok := KnownCapabilities[provider]; ok {
		return c
	}
	return DefaultCapabilities
}

// ComputeInputBudget returns the token budget available for input context.
func ComputeInputBudget(caps Capabilities) int {
	return caps.ContextWindowTokens - caps.ReservedOutputTokens
}

// SectionRatios is the default proportional split of the input budget.
type SectionRatios struct {
	System  float64
	Summary float64
	Recent  float64
	Current float64
}

// DefaultRatios is the default section allocation split.
var DefaultRatios = SectionRatios{System: 0.10, Summary: 0.20, Recent: 0.50, Current: 0.20}

// Allocation is the integer token quota per section.
type Allocation struct {
	System  int
	Summary int
	Recent  int
	Current int
}

// AllocateSections floors each ratio's share of inputBudget; sum <= inputBudget.
func AllocateSections(inputBudget int, ratios SectionRatios) Allocation {
	return Allocation{
		System:  int(math.Floor(float64(inputBudget) * ratios.System)),
		Summary: int(math.Floor(float64(inputBudget) * ratios.Summary)),
		Recent:  int(math.Floor(float64(inputBudget) * ratios.Recent)),
		Current: int(math.Floor(float64(inputBudget) * ratios.Current)),
	}
}

// EstimateMessageTokens estimates a single message's token cost.
func EstimateMessageTokens(m window.Message, charsPerToken int) int {
	if charsPerToken <= 0 {
		charsPerToken = 2
	}
	length := len(m.Role) + len(m.Content)
	for _, tc := range m.ToolCalls {
		length += len(tc.Arguments)
	}
	return int(math.Ceil(float64(length)/float64(charsPerToken))) + 4
}

// EstimateTotalTokens sums EstimateMessageTokens over messages.
func EstimateTotalTokens(messages []window.Message, charsPerToken int) int {
	total := 0
	for _, m := range messages {
		total += EstimateMessageTokens(m, charsPerToken)
	}
	return total
}

// priorityRank implements the P1..P5 retention ranking: lower rank means
// higher retention priority. isLatestUser and isLatestAssistant mark the
// latest user and the latest assistant message among the input slice.
func priorityRank(m window.Message, isLatestUser, isLatestAssistant bool) int {
	switch {
	case m.Role == "user" && isLatestUser:
		return 1
	case m.Role == "tool":
		return 2
	case m.Role == "assistant" && isLatestAssistant:
		return 3
	case m.Role == "user":
		return 4
	case m.Role == "assistant":
		return 5
	default:
		return 5
	}
}

// TrimByBudget drops messages from lowest priority upward until the kept set
// fits budget tokens, preserving original relative order.
func TrimByBudget(messages []window.Message, budget int, charsPerToken int) []window.Message {
	if len(messages) == 0 {
		return messages
	}

	lastUserIdx, lastAssistantIdx := -1, -1
	for i, m := range messages {
		if m.Role == "user" {
			lastUserIdx = i
		}
		if m.Role == "assistant" {
			lastAssistantIdx = i
		}
	}

	type scored struct {
		idx  int
		rank int
	}
	ranked := make([]scored, len(messages))
	for i, m := range messages {
		ranked[i] = scored{idx: i, rank: priorityRank(m, i == lastUserIdx, i == lastAssistantIdx)}
	}

	kept := map[int]bool{}
	for i := range messages {
		kept[i] = true
	}

	total := EstimateTotalTokens(messages, charsPerToken)
	// Drop in descending rank order (lowest priority first): P5, P4, P3, P2, P1.
	for rank := 5; rank >= 1 && total > budget; rank-- {
		for _, s := range ranked {
			if total <= budget {
				break
			}
			if s.rank != rank || !kept[s.idx] {
				continue
			}
			kept[s.idx] = false
			total -= EstimateMessageTokens(messages[s.idx], charsPerToken)
		}
	}

	out := make([]window.Message, 0, len(messages))
	for i, m := range messages {
		if kept[i] {
			out = append(out, m)
		}
	}
	return out
}

// TrimMessagesByBudget tries token-based trim, falling back to
// window.Prune(messages, fallbackCount) on any failure (a negative budget or
// a panic during trimming).
func TrimMessagesByBudget(messages []window.Message, budget, charsPerToken, fallbackCount int) []window.Message {
	defer func() {
		_ = recover()
	}()
	return trimOrFallback(messages, budget, charsPerToken, fallbackCount)
}

func trimOrFallback(messages []window.Message, budget, charsPerToken, fallbackCount int) (out []window.Message) {
	defer func() {
		if r := recover(); r != nil {
			out = window.Prune(messages, fallbackCount)
		}
	}()
	if budget < 0 {
		return window.Prune(messages, fallbackCount)
	}
	return TrimByBudget(messages, budget, charsPerToken)
}

// Summary is the budget report shape returned by GetBudgetSummary.
type Summary struct {
	Estimated struct {
		Total     int            `json:"total"`
		BySection map[string]int `json:"bySection"`
	} `json:"estimated"`
	Allocation  Allocation `json:"allocation"`
	WithinBudget bool      `json:"withinBudget"`
}

// GetBudgetSummary reports the estimated token usage against an allocation.
func GetBudgetSummary(messages []window.Message, allocation Allocation, charsPerToken int) Summary {
	var s Summary
	s.Allocation = allocation
	s.Estimated.BySection = map[string]int{"recent": EstimateTotalTokens(messages, charsPerToken)}
	s.Estimated.Total = s.Estimated.BySection["recent"]
	s.WithinBudget = s.Estimated.Total <= allocation.Recent
	return s
}
