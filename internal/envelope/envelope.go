// Package envelope implements the fixed-shape CLI JSON output: every
// `msgcode ... --json` invocation emits one Envelope, with a stable
// `schemaVersion`.
package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the coarse pass/warning/error outcome a command reports.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// ExitCode maps a Status to the process exit code: 0 pass, 1
// error, 2 warning.
func (s Status) ExitCode() int {
	switch s {
	case StatusPass:
		return 0
	case StatusWarning:
		return 2
	default:
		return 1
	}
}

// Summary counts warnings/errors contributing to Status.
type Summary struct {
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// Envelope is the fixed {schemaVersion:2, ...} shape.
type Envelope struct {
	SchemaVersion int         `json:"schemaVersion"`
	Command       string      `json:"command"`
	RequestID     string      `json:"requestId"`
	Timestamp     string      `json:"timestamp"`
	DurationMs    int64       `json:"durationMs"`
	Status        Status      `json:"status"`
	ExitCode      int         `json:"exitCode"`
	Summary       Summary     `json:"summary"`
	Data          interface{} `json:"data,omitempty"`
	Warnings      []string    `json:"warnings,omitempty"`
	Errors        []string    `json:"errors,omitempty"`
}

const schemaVersion = 2

// Builder accumulates warnings/errors across a command run and produces the
// final Envelope, timing the command from New to Build.
type Builder struct {
	command   string
	start     time.Time
	warnings  []string
	errors    []string
	data      interface{}
	nowFn     func() time.Time
	requestID string
}

// New starts a Builder for the named CLI command.
func New(command string) *Builder {
	now := time.Now()
	return &Builder{command: command, start: now, nowFn: time.Now, requestID: uuid.NewString()}
}

// AddWarning records a non-fatal warning.
func (b *Builder) AddWarning(msg string) { b.warnings = append(b.warnings, msg) }

// AddError records a fatal error.
func (b *Builder) AddError(msg string) { b.errors = append(b.errors, msg) }

// SetData attaches the command-specific payload.
func (b *Builder) SetData(data interface{}) { b.data = data }

// Build finalizes the Envelope: Status is error if any error was recorded,
// else warning if any warning was recorded, else pass.
func (b *Builder) Build() Envelope {
	status := StatusPass
	if len(b.errors) > 0 {
		status = StatusError
	} else if len(b.warnings) > 0 {
		status = StatusWarning
	}
	end := b.nowFn()
	return Envelope{
		SchemaVersion: schemaVersion,
		Command:       b.command,
		RequestID:     b.requestID,
		Timestamp:     end.UTC().Format(time.RFC3339Nano),
		DurationMs:    end.Sub(b.start).Milliseconds(),
		Status:        status,
		ExitCode:      status.ExitCode(),
		Summary:       Summary{Warnings: len(b.warnings), Errors: len(b.errors)},
		Data:          b.data,
		Warnings:      b.warnings,
		Errors:        b.errors,
	}
}

// MarshalIndent is a convenience for CLI commands writing to stdout.
func (e Envelope) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}
