package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/msgcode/internal/envelope"
)

// commandContract documents one `/...` control command for the external
// docs-sync check that keeps "help" output in sync with docs (this is that
// check's data source).
type commandContract struct {
	Command     string   `json:"command"`
	Args        []string `json:"args,omitempty"`
	Description string   `json:"description"`
}

// commandContracts is the full recognized command set (internal/command's
// allCommands), documented for `msgcode help-docs --json`.
var commandContracts = []commandContract{
	{"bind", []string{"relPath"}, "bind the current chat to a workspace directory under WORKSPACE_ROOT"},
	{"unbind", nil, "remove the current chat's workspace binding"},
	{"where", nil, "report the current chat's bound workspace path"},
	{"chatlist", nil, "list active workspace bindings"},
	{"help", nil, "print the curated command summary"},
	{"cursor", nil, "report the current chat's ingestion cursor"},
	{"reset-cursor", nil, "reset the current chat's ingestion cursor to zero"},
	{"owner", []string{"[add|remove]", "id"}, "list the process owner allow-list, or add or remove an entry"},
	{"owner-only", []string{"on|off"}, "store the owner-only flag in the workspace config (ingestion does not filter senders by it)"},
	{"pi", []string{"on|off"}, "toggle the four primitive file/bash tools"},
	{"soul", []string{"[text]"}, "show the resolved SOUL source, or overwrite the workspace SOUL.md with text"},
	{"policy", []string{"on|off"}, "set the workspace network egress policy (on: egress-allowed, off: local-only)"},
	{"tooling", []string{"allow <tool>|explicit|autonomous"}, "add a tool to the allow-list or set the tool mode"},
	{"model", []string{"provider"}, "set the workspace runtime/provider triple"},
	{"mode", []string{"executor|responder", "value"}, "set the workspace executor or responder model"},
	{"loglevel", []string{"debug|info|warn|error"}, "set the process log level"},
	{"reload", nil, "acknowledge a reload request; the daemon's file watcher re-reads SOUL.md and config.json on its own"},
	{"start", nil, "start the workspace's session (tmux runtime only)"},
	{"stop", nil, "stop the workspace's session (tmux runtime only)"},
	{"status", nil, "report the workspace's session status"},
	{"snapshot", nil, "capture the workspace's tmux pane (tmux runtime only)"},
	{"esc", nil, "send an escape key to the workspace's tmux session"},
	{"clear", nil, "clear the session window, summary, and start a new thread"},
}

func helpDocsCmd() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "help-docs",
		Short: "Emit the recognized slash-command contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHelpDocs(asJSON)
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "emit a schemaVersion:2 Envelope instead of plain text")
	return c
}

func runHelpDocs(asJSON bool) error {
	b := envelope.New("help-docs")
	b.SetData(commandContracts)
	env := b.Build()

	if !asJSON {
		for _, c := range commandContracts {
			fmt.Printf("/%s %v\n    %s\n", c.Command, c.Args, c.Description)
		}
		return nil
	}

	out, err := env.MarshalIndent()
	if err != nil {
		return fmt.Errorf("help-docs: marshal envelope: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
