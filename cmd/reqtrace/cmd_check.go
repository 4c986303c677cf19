package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"reqtrace/internal/report"
)

var checkStrict bool

// checkCmd is the CI gate: it exits non-zero when traceability is broken.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify traceability and fail on gaps",
	Long: `Scans the workspace and fails when traceability is broken:

  - a tag references a requirement that is not defined (orphan)
  - a defined requirement has no tag anywhere (untraced)

With --strict the covered/defined ratio must also meet
check.min_coverage from the configuration.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Also enforce the minimum coverage threshold")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, _, kernel, err := runPipeline(ctx, cfg)
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

	var failures []string
	if cfg.Check.FailOnOrphans && len(matrix.Orphans) > 0 {
		failures = append(failures, fmt.Sprintf("%d orphan tag(s)", len(matrix.Orphans)))
	}
	if cfg.Check.FailOnUntraced && len(matrix.Untraced) > 0 {
		failures = append(failures, fmt.Sprintf("%d untraced requirement(s)", len(matrix.Untraced)))
	}
	if checkStrict && matrix.Coverage < cfg.Check.MinCoverage {
		failures = append(failures, fmt.Sprintf("coverage %.1f%% below required %.1f%%",
			matrix.Coverage*100, cfg.Check.MinCoverage*100))
	}

	if len(failures) > 0 {
		msg := failures[0]
		for _, f := range failures[1:] {
			msg += ", " + f
		}
		return fmt.Errorf("traceability check failed: %s", msg)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nTraceability check passed.")
	return nil
}
