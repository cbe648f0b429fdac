package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/labor-atlas/internal/quality"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report pipeline coverage and honesty metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := quality.NewCollector(st).Collect(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Raw records\t%d\n", report.Counts.RawRecords)
		fmt.Fprintf(w, "Observed jobs\t%d\n", report.Counts.ObservedJobs)
		fmt.Fprintf(w, "Companies\t%d\n", report.Counts.Companies)
		fmt.Fprintf(w, "Archetypes\t%d (%d observed, %d inferred)\n",
			report.Counts.Archetypes, report.Counts.ObservedArchetypes, report.Counts.InferredArchetypes)
		fmt.Fprintf(w, "Coverage\t%.1f%%\n", report.Coverage*100)
		fmt.Fprintf(w, "Resolution rate\t%.1f%%\n", report.ResolutionRate*100)
		fmt.Fprintf(w, "Unresolved locations\t%d\n", report.Counts.UnresolvedLocation)
		fmt.Fprintf(w, "Pending reviews\t%d\n", report.Counts.PendingReviews)
		if err := w.Flush(); err != nil {
			return err
		}

		if len(report.Violations) > 0 {
			fmt.Printf("\n%d provenance violations:\n", len(report.Violations))
			for _, v := range report.Violations {
				fmt.Printf("  archetype %d: %s\n", v.ArchetypeID, v.Problem)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
