package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reqtrace/internal/report"
	"reqtrace/internal/trace"
	"reqtrace/internal/watch"
)

// watchCmd keeps the matrix current while sources change.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the workspace and re-trace on change",
	Long: `Performs an initial scan, then monitors the workspace for source
changes. Changed files are rescanned incrementally and the refreshed
coverage summary is printed after each settled batch. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res, _, kernel, err := runPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	matrix, err := kernel.Matrix()
	if err != nil {
		return err
	}
	if err := report.Write(cmd.OutOrStdout(), matrix, report.FormatTerminal, false); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching %s (%d files)...\n", workspace, len(res.Files))

	out := cmd.OutOrStdout()
	w, err := watch.NewWatcher(workspace, newScanner(cfg), kernel, func(m *trace.Matrix) {
		fmt.Fprintf(out, "coverage %.1f%%, %d orphan(s), %d untraced\n",
			m.Coverage*100, len(m.Orphans), len(m.Untraced))
	})
	if err != nil {
		return err
	}

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}
	return nil
}
