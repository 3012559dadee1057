package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/msgcode/internal/daemon"
	"github.com/nextlevelbuilder/msgcode/internal/procenv"
)

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Start the long-lived ingestion/tool-loop worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}
}

func runDaemon() error {
	cfg, err := procenv.Load()
	if err != nil {
		return fmt.Errorf("daemon: load environment: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("daemon.signal_received", "signal", sig.String())
		cancel()
	}()

	d, err := daemon.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("daemon: startup: %w", err)
	}

	return d.Run(ctx)
}
