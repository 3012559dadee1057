package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/msgcode/internal/envelope"
	"github.com/nextlevelbuilder/msgcode/internal/probe"
	"github.com/nextlevelbuilder/msgcode/internal/procenv"
)

func probeCmd() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "probe",
		Short: "Run the daemon's health probes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(asJSON)
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "emit a schemaVersion:2 Envelope instead of plain text")
	return c
}

func runProbe(asJSON bool) error {
	cfg, err := procenv.Load()
	if err != nil {
		return fmt.Errorf("probe: load environment: %w", err)
	}

	report := probe.Run(context.Background(), probe.Config{
		TransportCLIPath: cfg.TransportCLIPath,
		RoutesPath:       cfg.RoutesFilePath,
		WorkspaceRoot:    cfg.WorkspaceRoot,
	})

	if !asJSON {
		for _, p := range report.Probes {
			mark := "OK"
			if !p.OK {
				mark = "FAIL"
			}
			fmt.Printf("[%-4s] %-28s %s\n", mark, p.Name, p.Details)
			if !p.OK && p.FixHint != "" {
				fmt.Printf("         fix: %s\n", p.FixHint)
			}
		}
		if !report.AllOK {
			os.Exit(1)
		}
		return nil
	}

	b := envelope.New("probe")
	for _, p := range report.Probes {
		if !p.OK {
			b.AddError(fmt.Sprintf("%s: %s", p.Name, p.Details))
		}
	}
	b.SetData(report)
	env := b.Build()
	out, err := env.MarshalIndent()
	if err != nil {
		return fmt.Errorf("probe: marshal envelope: %w", err)
	}
	fmt.Println(string(out))
	if env.ExitCode != 0 {
		os.Exit(env.ExitCode)
	}
	return nil
}
