package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reqtrace/internal/store"
)

var historyLimit int

// historyCmd lists past scans from the trace database.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past scans",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum scans to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.NewStore(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer st.Close()

	summaries, err := st.ListScans(historyLimit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no scans recorded")
		return nil
	}

	for _, s := range summaries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  files=%d tags=%d warnings=%d\n",
			s.FinishedAt.Format("2006-01-02 15:04:05"), s.ID, s.FileCount, s.TagCount, s.WarningCount)
	}
	return nil
}
