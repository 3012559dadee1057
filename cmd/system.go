package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/msgcode/internal/envelope"
	"github.com/nextlevelbuilder/msgcode/internal/procenv"
)

func systemCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "system",
		Short: "System introspection commands",
	}
	c.AddCommand(systemInfoCmd())
	return c
}

// systemInfo is the data payload for `msgcode system info`.
type systemInfo struct {
	Version       string `json:"version"`
	GoVersion     string `json:"goVersion"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	ConfigDir     string `json:"configDir"`
	WorkspaceRoot string `json:"workspaceRoot"`
	RoutesPath    string `json:"routesPath"`
	StatePath     string `json:"statePath"`
	LogLevel      string `json:"logLevel"`
	DevMode       bool   `json:"devMode"`
}

func systemInfoCmd() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "info",
		Short: "Print daemon version and resolved environment paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSystemInfo(asJSON)
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "emit a schemaVersion:2 Envelope instead of plain text")
	return c
}

func runSystemInfo(asJSON bool) error {
	b := envelope.New("system info")

	cfg, err := procenv.Load()
	if err != nil {
		b.AddError(err.Error())
	}

	info := systemInfo{
		Version:       Version,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		ConfigDir:     cfg.ConfigDir,
		WorkspaceRoot: cfg.WorkspaceRoot,
		RoutesPath:    cfg.RoutesFilePath,
		StatePath:     cfg.StateFilePath,
		LogLevel:      cfg.LogLevel,
		DevMode:       cfg.DevMode,
	}
	b.SetData(info)
	env := b.Build()

	if !asJSON {
		fmt.Printf("msgcode %s (%s %s/%s)\n", info.Version, info.GoVersion, info.OS, info.Arch)
		fmt.Printf("  configDir:     %s\n", info.ConfigDir)
		fmt.Printf("  workspaceRoot: %s\n", info.WorkspaceRoot)
		fmt.Printf("  routesPath:    %s\n", info.RoutesPath)
		fmt.Printf("  statePath:     %s\n", info.StatePath)
		if env.ExitCode != 0 {
			os.Exit(env.ExitCode)
		}
		return nil
	}

	out, err := env.MarshalIndent()
	if err != nil {
		return fmt.Errorf("system info: marshal envelope: %w", err)
	}
	fmt.Println(string(out))
	if env.ExitCode != 0 {
		os.Exit(env.ExitCode)
	}
	return nil
}
