package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/labor-atlas/internal/model"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the human-review queue",
	Long:  "Lists records whose title mapping fell below the confidence threshold and applies corrections, which resumes ingestion of the record.",
}

var reviewLimit int

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending review items",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := st.ListPendingReviews(ctx, reviewLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "Review queue is empty.")
			return nil
		}

		grace := time.Duration(cfg.Ingest.ReviewGraceDays) * 24 * time.Hour
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tREASON\tRAW TITLE\tQUEUED")
		for _, item := range items {
			queued := item.CreatedAt.Format("2006-01-02")
			if grace > 0 && time.Since(item.CreatedAt) > grace {
				queued += " (overdue)"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				item.ID, item.Reason, item.RawTitle, queued)
		}
		return w.Flush()
	},
}

var (
	reviewRoleID    int64
	reviewSeniority string
)

var reviewResolveCmd = &cobra.Command{
	Use:   "resolve <item-id>",
	Short: "Apply a correction and resume ingestion of the record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		itemID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "parse item id %q", args[0])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ingestor, err := buildIngestor(ctx, st)
		if err != nil {
			return err
		}

		job, err := ingestor.ResolveReview(ctx, itemID, model.ReviewResolution{
			RoleID:    reviewRoleID,
			Seniority: model.Seniority(reviewSeniority),
		})
		if err != nil {
			return err
		}
		if job == nil {
			fmt.Printf("Item %d resolved; record has no resolvable company, no observation built.\n", itemID)
			return nil
		}

		fmt.Printf("Item %d resolved; observed job %d created.\n", itemID, job.ID)
		return nil
	},
}

func init() {
	reviewListCmd.Flags().IntVar(&reviewLimit, "limit", 50, "maximum items to list")
	reviewResolveCmd.Flags().Int64Var(&reviewRoleID, "role-id", 0, "canonical role id to assign")
	reviewResolveCmd.Flags().StringVar(&reviewSeniority, "seniority", "", "seniority level to assign")
	reviewResolveCmd.MarkFlagRequired("role-id")   //nolint:errcheck
	reviewResolveCmd.MarkFlagRequired("seniority") //nolint:errcheck
	reviewCmd.AddCommand(reviewListCmd, reviewResolveCmd)
	rootCmd.AddCommand(reviewCmd)
}
