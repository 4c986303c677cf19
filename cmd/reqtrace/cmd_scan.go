package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reqtrace/internal/config"
	"reqtrace/internal/report"
	"reqtrace/internal/requirements"
	"reqtrace/internal/scan"
	"reqtrace/internal/store"
	"reqtrace/internal/trace"
)

var scanNoSave bool

// scanCmd walks the workspace and persists the scan.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the workspace for @req annotations",
	Long: `Walks the workspace, extracts requirement tags from every supported
source file, correlates them with the requirement definitions, and
stores the result in the trace database.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanNoSave, "no-save", false, "Skip persisting the scan to the trace database")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
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

	if !scanNoSave {
		st, err := store.NewStore(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveScan(res); err != nil {
			return err
		}
		if err := st.SaveMatrix(res.ID, matrix); err != nil {
			return err
		}
		logger.Info("scan persisted",
			zap.String("scan_id", res.ID),
			zap.String("db", st.Path()))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d files (%d tags, %d warnings)\n\n",
		len(res.Files), len(res.Tags), len(res.Warnings))
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s:%d: %s\n", w.File, w.Line, w.Message)
	}

	return report.Write(cmd.OutOrStdout(), matrix, report.FormatTerminal, false)
}

// runPipeline scans the workspace, loads requirement definitions, and
// builds the correlation kernel.
func runPipeline(ctx context.Context, cfg *config.Config) (*scan.Result, *requirements.Set, *trace.Kernel, error) {
	scanner := newScanner(cfg)
	res, err := scanner.ScanWorkspace(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("scan failed: %w", err)
	}

	set, err := loadRequirements(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	kernel := trace.NewKernel(trace.Config{
		FactLimit:    cfg.Kernel.FactLimit,
		QueryTimeout: cfg.GetQueryTimeout(),
	})
	if err := kernel.LoadScan(res, set); err != nil {
		return nil, nil, nil, fmt.Errorf("correlation failed: %w", err)
	}
	return res, set, kernel, nil
}

func newScanner(cfg *config.Config) *scan.Scanner {
	return scan.NewScanner(scan.Options{
		Root:         cfg.Scan.Root,
		Concurrency:  cfg.Scan.Concurrency,
		IncludeTests: cfg.Scan.IncludeTests,
		ExcludeDirs:  cfg.Scan.ExcludeDirs,
	}, nil)
}

// loadRequirements resolves configured definition paths against the
// workspace. Missing sources are skipped; a workspace with no definition
// documents yields an empty set.
func loadRequirements(cfg *config.Config) (*requirements.Set, error) {
	var existing []string
	for _, p := range cfg.Requirements.Paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(cfg.Scan.Root, p)
		}
		if _, err := os.Stat(p); err != nil {
			logger.Warn("requirements source missing", zap.String("path", p))
			continue
		}
		existing = append(existing, p)
	}
	if len(existing) == 0 {
		return requirements.NewSet(nil)
	}
	return requirements.Load(existing...)
}
