package tools

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/msgcode/internal/atomicfile"
	"github.com/nextlevelbuilder/msgcode/internal/toolbus"
)

// desktopSessionEntry is one line of the desktop tool audit trail
// (<workspace>/.msgcode/desktop_sessions.ndjson).
type desktopSessionEntry struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Desktop implements the desktop tool: {action, target?} -> {id}. The
// desktop UI front-end is a separate process; this body only records the
// audit trail entry a front-end would later read.
func Desktop(workspace string) toolbus.Executor {
	auditPath := filepath.Join(workspace, ".msgcode", "desktop_sessions.ndjson")
	return func(args map[string]interface{}) (interface{}, error) {
		action, _ := args["action"].(string)
		if action == "" {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "action is required")
		}
		target, _ := args["target"].(string)

		entry := desktopSessionEntry{
			ID:        uuid.NewString(),
			Action:    action,
			Target:    target,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}
		line, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("marshal desktop session entry: %w", err)
		}
		if err := atomicfile.AppendLine(auditPath, line); err != nil {
			return nil, fmt.Errorf("append desktop session entry: %w", err)
		}
		return map[string]interface{}{"id": entry.ID}, nil
	}
}
