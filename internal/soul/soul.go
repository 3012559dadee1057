// Package soul resolves the persona text injected as a system prefix
// (SOUL), honoring precedence workspace SOUL file > active global SOUL >
// none.
package soul

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Source identifies where a resolved SOUL came from.
type Source string

const (
	SourceWorkspace Source = "workspace"
	SourceGlobal    Source = "global"
	SourceNone      Source = "none"
)

// Resolved is the outcome of Resolve.
type Resolved struct {
	Source  Source
	Content string
	Path    string
	Chars   int
}

// activeSoul mirrors <configDir>/souls/active.json.
type activeSoul struct {
	ID string `json:"id"`
}

// Resolve implements workspace > active global > none precedence.
func Resolve(workspacePath, configDir string) Resolved {
	wsPath := filepath.Join(workspacePath, "SOUL.md")
	if data, err := os.ReadFile(wsPath); err == nil {
		return Resolved{Source: SourceWorkspace, Content: string(data), Path: wsPath, Chars: len(data)}
	}

	var active activeSoul
	activePath := filepath.Join(configDir, "souls", "active.json")
	if data, err := os.ReadFile(activePath); err == nil {
		if json.Unmarshal(data, &active) == nil && active.ID != "" {
			soulPath := filepath.Join(configDir, "souls", "default", active.ID+".md")
			if content, err := os.ReadFile(soulPath); err == nil {
				return Resolved{Source: SourceGlobal, Content: string(content), Path: soulPath, Chars: len(content)}
			}
		}
	}

	return Resolved{Source: SourceNone}
}

// noReadInstruction follows the "[灵魂身份]...[/灵魂身份]" wrapper that
// FormatForInjection puts around SOUL content: an instruction discouraging
// tool-based reads of the SOUL file itself.
const noReadInstruction = "\n(do not attempt to read the soul file via any tool; its content is already provided above)"

// FormatForInjection returns the system-prompt fragment for a Resolved
// SOUL, or "" when Source == none.
func (r Resolved) FormatForInjection() string {
	if r.Source == SourceNone {
		return ""
	}
	return "[灵魂身份]" + r.Content + "[/灵魂身份]" + noReadInstruction
}
