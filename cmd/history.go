package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/deal-briefing/internal/model"
	"github.com/sells-group/deal-briefing/internal/store"
)

var (
	historyStatus string
	historyLimit  int
	historyOffset int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded briefing runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(cmd.Context(), store.RunFilter{
			Status: model.RunStatus(historyStatus),
			Limit:  historyLimit,
			Offset: historyOffset,
		})
		if err != nil {
			return err
		}
		return formatRunsList(os.Stdout, runs)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one recorded run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func openHistory(cmd *cobra.Command) (store.Store, error) {
	if err := cfg.Validate("history"); err != nil {
		return nil, err
	}
	return store.Open(cmd.Context(), cfg.Store)
}

// formatRunsList writes runs as an aligned table, newest first as given.
func formatRunsList(w io.Writer, runs []model.BriefingRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No briefing runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tDEALS\tCREATED\tERROR") //nolint:errcheck
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", //nolint:errcheck
			r.ID, r.Status, r.DealsAnalyzed, r.CreatedAt.UTC().Format("2006-01-02 15:04"), truncate(r.Error, 60))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (complete, failed)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "max runs to list")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "runs to skip")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
