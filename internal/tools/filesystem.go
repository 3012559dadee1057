// Package tools implements the concrete tool bodies registered onto the
// toolbus: read_file, write_file, edit_file, bash, and the richer media/
// automation tools (tts, asr, vision, mem, browser, desktop).
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/msgcode/internal/toolbus"
)

// resolvePath resolves a path relative to workspace and rejects any
// resolution that escapes the workspace boundary.
func resolvePath(workspace, path string) (string, error) {
	var resolved string
	if filepath.IsAbs(path) {
		resolved = filepath.Clean(path)
	} else {
		resolved = filepath.Clean(filepath.Join(workspace, path))
	}

	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		return "", err
	}
	if !isPathInside(resolved, absWorkspace) {
		return "", fmt.Errorf("access denied: path outside workspace")
	}
	return resolved, nil
}

func isPathInside(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

// ReadFile implements the read_file tool: {path} -> {content}.
func ReadFile(workspace string) toolbus.Executor {
	return func(args map[string]interface{}) (interface{}, error) {
		path, _ := args["path"].(string)
		if path == "" {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "path is required")
		}
		resolved, err := resolvePath(workspace, path)
		if err != nil {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", err.Error())
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return map[string]interface{}{"content": string(data), "path": path}, nil
	}
}

// WriteFile implements the write_file tool: {path, content} -> {bytesWritten}.
func WriteFile(workspace string) toolbus.Executor {
	return func(args map[string]interface{}) (interface{}, error) {
		path, _ := args["path"].(string)
		content, _ := args["content"].(string)
		if path == "" {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "path is required")
		}
		resolved, err := resolvePath(workspace, path)
		if err != nil {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", err.Error())
		}
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		return map[string]interface{}{"bytesWritten": len(content), "path": path}, nil
	}
}

// Edit is one {oldText,newText} replacement pair from an edit_file call.
type Edit struct {
	OldText string
	NewText string
}

// EditFile implements the edit_file tool: {path, edits:[{oldText,newText}]}.
// Each oldText must occur verbatim in the current file; the first occurrence
// is replaced. A missing oldText fails the whole call with TOOL_EXEC_FAILED.
func EditFile(workspace string) toolbus.Executor {
	return func(args map[string]interface{}) (interface{}, error) {
		path, _ := args["path"].(string)
		if path == "" {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "path is required")
		}
		edits, err := parseEdits(args["edits"])
		if err != nil {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", err.Error())
		}

		resolved, err := resolvePath(workspace, path)
		if err != nil {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", err.Error())
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		content := string(data)
		applied := 0
		for _, e := range edits {
			idx := strings.Index(content, e.OldText)
			if idx < 0 {
				return nil, toolbus.NewExecError("TOOL_EXEC_FAILED", "oldText not found")
			}
			content = content[:idx] + e.NewText + content[idx+len(e.OldText):]
			applied++
		}

		if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		return map[string]interface{}{"editsApplied": applied, "path": path}, nil
	}
}

func parseEdits(raw interface{}) ([]Edit, error) {
	list, ok := raw.([]interface{})
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("edits is required")
	}
	out := make([]Edit, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("each edit must be an object")
		}
		oldText, _ := m["oldText"].(string)
		newText, _ := m["newText"].(string)
		if oldText == "" {
			return nil, fmt.Errorf("oldText is required")
		}
		out = append(out, Edit{OldText: oldText, NewText: newText})
	}
	return out, nil
}
