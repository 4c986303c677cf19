package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reqtrace/internal/report"
	"reqtrace/internal/store"
	"reqtrace/internal/trace"
)

var (
	reportFormat string
	reportOutput string
	reportRender bool
	reportLatest bool
)

// reportCmd renders the traceability matrix.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the traceability matrix",
	Long: `Renders the traceability matrix as JSON, Markdown, or a terminal
summary. By default the workspace is rescanned; --latest reuses the
matrix stored by the last scan instead.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "terminal", "Output format: json, markdown, terminal")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write to file instead of stdout")
	reportCmd.Flags().BoolVar(&reportRender, "render", false, "Render markdown for the terminal")
	reportCmd.Flags().BoolVar(&reportLatest, "latest", false, "Use the last stored matrix instead of rescanning")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var matrix *trace.Matrix
	if reportLatest {
		st, err := store.NewStore(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()

		scanID, m, err := st.LatestMatrix()
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("no stored matrix; run 'reqtrace scan' first")
		}
		logger.Debug("using stored matrix", zap.String("scan_id", scanID))
		matrix = m
	} else {
		_, _, kernel, err := runPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		matrix, err = kernel.Matrix()
		if err != nil {
			return err
		}
	}

	var out io.Writer = cmd.OutOrStdout()
	if reportOutput != "" {
		f, err := os.Create(reportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return report.Write(out, matrix, report.Format(reportFormat), reportRender)
}
