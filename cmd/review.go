package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/sells-group/careaudit-cli/internal/config"
	"github.com/sells-group/careaudit-cli/internal/escalation"
	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/store"
)

var (
	reviewState      string
	reviewAll        bool
	reviewLimit      int
	reviewResolvedBy string
	reviewNote       string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List and resolve manual review entries",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List manual review entries, unresolved by default",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := normalizeState(reviewState)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		e, err := setup(ctx, config.JobReview)
		if err != nil {
			return err
		}
		defer e.Close()

		entries, err := escalation.New(e.Store).List(ctx, store.ReviewFilter{
			Jurisdiction:    state,
			IncludeResolved: reviewAll,
			Limit:           reviewLimit,
		})
		if err != nil {
			return err
		}
		return printEntries(cmd.OutOrStdout(), entries)
	},
}

var reviewResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark a manual review entry as resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(ctx, config.JobReview)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := escalation.New(e.Store).Resolve(ctx, args[0], reviewResolvedBy, reviewNote); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "resolved %s\n", args[0])
		return nil
	},
}

func printEntries(out io.Writer, entries []model.ReviewEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "no review entries")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tFACILITY\tSTAGE\tATTEMPTS\tRESOLVED\tREASON")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
			e.ID, e.CreatedAt.Format(time.DateTime), e.FacilityName, e.Stage, e.Attempts, e.Resolved, truncate(e.Reason, 80))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return model.TruncateRunes(s, n-3) + "..."
}

func init() {
	addStateFlag(reviewListCmd, &reviewState)
	reviewListCmd.Flags().BoolVar(&reviewAll, "all", false, "include resolved entries")
	reviewListCmd.Flags().IntVar(&reviewLimit, "limit", 100, "max entries to list")
	reviewResolveCmd.Flags().StringVar(&reviewResolvedBy, "by", "", "name of the person resolving the entry (required)")
	reviewResolveCmd.Flags().StringVar(&reviewNote, "note", "", "resolution note")
	_ = reviewResolveCmd.MarkFlagRequired("by")
	reviewCmd.AddCommand(reviewListCmd, reviewResolveCmd)
	rootCmd.AddCommand(reviewCmd)
}
