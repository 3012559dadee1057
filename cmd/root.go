// Package cmd implements the msgcode CLI surface: the long-lived daemon
// entrypoint plus the narrow one-shot commands (probe, file send, web
// search/fetch, system info, help-docs) that share the Envelope JSON
// convention.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/msgcode/cmd.Version=v1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "msgcode",
	Short: "msgcode — workspace-scoped conversational agent daemon",
	Long:  "msgcode: a long-lived workspace-scoped conversational agent daemon that routes chat-transport messages to per-workspace tool-loop sessions.",
}

func init() {
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(probeCmd())
	rootCmd.AddCommand(fileCmd())
	rootCmd.AddCommand(webCmd())
	rootCmd.AddCommand(systemCmd())
	rootCmd.AddCommand(helpDocsCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("msgcode %s\n", Version)
		},
	}
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
