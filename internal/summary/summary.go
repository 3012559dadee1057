// Package summary implements the rolling extract/summary store: extraction
// rules over trimmed window history, Markdown serialization with fixed
// section headers, and the trigger rule for regeneration.
package summary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/msgcode/internal/window"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Summary is the compressed representation of trimmed-away history.
type Summary struct {
	Goal        []string `json:"goal"`
	Constraints []string `json:"constraints"`
	Decisions   []string `json:"decisions"`
	OpenItems   []string `json:"openItems"`
	ToolFacts   []string `json:"toolFacts"`
}

var (
	constraintRe = regexp.MustCompile(`(?i)\b(must|do not|don't|only)\b`)
	decisionRe   = regexp.MustCompile(`(?i)\b(i decide|i'll change to|change to|i choose|choose)\b`)
)

// Extract derives a Summary from the dropped messages, using the full
// history for context (the earliest user message supplies the goal).
func Extract(dropped, fullHistory []window.Message) Summary {
	var s Summary

	for _, m := range fullHistory {
		if m.Role == "user" && strings.TrimSpace(m.Content) != "" {
			line := firstLine(m.Content)
			s.Goal = append(s.Goal, truncateRunes(line, 200))
			break
		}
	}

	for _, m := range dropped {
		switch m.Role {
		case "user":
			if constraintRe.MatchString(m.Content) {
				s.Constraints = append(s.Constraints, strings.TrimSpace(m.Content))
			}
			if isQuestion(m.Content) {
				s.OpenItems = append(s.OpenItems, strings.TrimSpace(m.Content))
			}
		case "assistant":
			if decisionRe.MatchString(m.Content) {
				s.Decisions = append(s.Decisions, strings.TrimSpace(m.Content))
			}
		case "tool":
			if fact, ok := extractToolFact(m.Content); ok {
				s.ToolFacts = append(s.ToolFacts, fact...)
			}
		}
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func isQuestion(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasSuffix(t, "?") || strings.HasSuffix(t, "？")
}

// extractToolFact turns up to 4 top-level entries of data into "key: value"
// facts when content is JSON with success:true. Nested values are
// JSON-encoded, not flattened, and which 4 entries are taken from a larger
// data object is not defined.
func extractToolFact(content string) ([]string, bool) {
	var payload struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil || !payload.Success {
		return nil, false
	}
	var facts []string
	for k, v := range payload.Data {
		if len(facts) >= 4 {
			break
		}
		facts = append(facts, k+": "+toLeafString(v))
	}
	return facts, len(facts) > 0
}

func toLeafString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// FormatMarkdown emits "# Chat Summary" followed by fixed section headers
// with "- item" bullets.
func FormatMarkdown(s Summary) string {
	var b strings.Builder
	b.WriteString("# Chat Summary\n\n")
	writeSection(&b, "Goal", s.Goal)
	writeSection(&b, "Constraints", s.Constraints)
	writeSection(&b, "Decisions", s.Decisions)
	writeSection(&b, "Open Items", s.OpenItems)
	writeSection(&b, "Tool Facts", s.ToolFacts)
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string) {
	b.WriteString("## " + title + "\n")
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
	b.WriteString("\n")
}

// ParseMarkdown is the inverse of FormatMarkdown and is lenient about
// missing sections. Section parsing walks the goldmark AST rather than
// hand-scanning lines, so headers and list markers in arbitrary Markdown
// flavors parse the same way.
func ParseMarkdown(md string) Summary {
	var s Summary
	src := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var current *[]string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level != 2 {
				return ast.WalkContinue, nil
			}
			title := strings.TrimSpace(nodeText(node, src))
			current = sectionTarget(&s, title)
		case *ast.ListItem:
			if current == nil {
				return ast.WalkContinue, nil
			}
			item := strings.TrimSpace(nodeText(node, src))
			if item != "" {
				*current = append(*current, item)
			}
		}
		return ast.WalkContinue, nil
	})
	return s
}

// nodeText concatenates the raw text segments under n (goldmark's AST nodes
// don't expose a generic text accessor; inline *ast.Text leaves carry the
// source segments).
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func sectionTarget(s *Summary, title string) *[]string {
	switch title {
	case "Goal":
		return &s.Goal
	case "Constraints":
		return &s.Constraints
	case "Decisions":
		return &s.Decisions
	case "Open Items":
		return &s.OpenItems
	case "Tool Facts":
		return &s.ToolFacts
	default:
		return nil
	}
}

// ShouldGenerate returns true when a trim actually occurred and
// originalCount >= triggerThreshold (default 20), or forceRegenerate is set.
func ShouldGenerate(originalCount, keptCount int, triggerThreshold int, forceRegenerate bool) bool {
	if forceRegenerate {
		return true
	}
	if triggerThreshold <= 0 {
		triggerThreshold = 20
	}
	trimmed := keptCount < originalCount
	return trimmed && originalCount >= triggerThreshold
}

// Path returns the summary Markdown file path for a chat.
func Path(workspace, chatID string) string {
	return filepath.Join(workspace, ".msgcode", "summaries", chatID+".md")
}

// Save persists the formatted summary to disk.
func Save(workspace, chatID string, s Summary) error {
	path := Path(workspace, chatID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(FormatMarkdown(s)), 0o644)
}

// Load reads and parses the summary file; a missing file yields a zero Summary.
func Load(workspace, chatID string) (Summary, error) {
	data, err := os.ReadFile(Path(workspace, chatID))
	if os.IsNotExist(err) {
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, err
	}
	return ParseMarkdown(string(data)), nil
}

// Clear overwrites the summary file with an empty summary: the title and
// section headers with no items.
func Clear(workspace, chatID string) error {
	path := Path(workspace, chatID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(FormatMarkdown(Summary{})), 0o644)
}
