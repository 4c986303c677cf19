package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reqtrace/internal/trace"
)

// queryCmd runs an ad-hoc query against the correlation kernel.
var queryCmd = &cobra.Command{
	Use:   "query [goal]",
	Short: "Query the correlation kernel",
	Long: `Evaluates a query against the derived traceability relations.
Variables start with an uppercase letter; constants filter.

Predicates:
  req_tag(File, Line, Symbol, Req)     tags found in sources
  requirement(Req, Status)             defined requirements
  file_topology(Path, Language, IsTest) scanned files
  covered(Req)                         defined and referenced
  orphan_tag(File, Line, Req)          tag with no definition
  untraced(Req)                        definition with no tag

Examples:
  reqtrace query "untraced(Req)"
  reqtrace query 'req_tag("sources/auth.py", Line, Symbol, Req)'`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	res, err := kernel.Query(ctx, args[0])
	if err != nil {
		return err
	}
	logger.Debug("query evaluated",
		zap.Int("bindings", len(res.Bindings)),
		zap.Duration("duration", res.Duration))

	if len(res.Bindings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no results")
		return nil
	}
	return printBindings(cmd, res)
}

func printBindings(cmd *cobra.Command, res *trace.QueryResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, binding := range res.Bindings {
		if err := enc.Encode(binding); err != nil {
			return err
		}
	}
	return nil
}
