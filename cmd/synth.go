package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/synth"
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Synthesize observed archetypes from the observation base",
	Long:  "Aggregates observed jobs into observed archetype records with salary and headcount distributions and evidence links. Idempotent; re-running reconciles every archetype with the current observations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if cfg.Synth.StaleAfterDays > 0 {
			cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Synth.StaleAfterDays)
			marked, err := st.MarkStaleObservedJobs(ctx, cutoff)
			if err != nil {
				return err
			}
			if marked > 0 {
				zap.L().Info("synth: observations aged out",
					zap.Int64("marked_stale", marked),
					zap.Time("cutoff", cutoff),
				)
			}
		}

		written, err := synth.NewSynthesizer(st).SynthesizeAll(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Synthesized %d observed archetypes.\n", written)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(synthCmd)
}
