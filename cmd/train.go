package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/labor-atlas/internal/config"
	"github.com/sells-group/labor-atlas/internal/infer"
	"github.com/sells-group/labor-atlas/internal/store"
)

var trainCmd = &cobra.Command{
	Use:   "train <salary|headcount|existence>",
	Short: "Train one inference model on a snapshot of observed data",
	Long:  "Fits the named model on a point-in-time snapshot and records the run with its metrics. Only one active run per model; training can overlap ingestion because the snapshot is frozen at start.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := newInferencer(st).Train(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Run %s complete.\n", run.ID)
		for name, value := range run.Metrics {
			fmt.Printf("  %s: %.4f\n", name, value)
		}
		return nil
	},
}

func newInferencer(st store.Store) *infer.Inferencer {
	return infer.NewInferencer(st, inferConfig(cfg.Infer))
}

func inferConfig(c config.InferConfig) infer.Config {
	return infer.Config{
		Salary: infer.SalaryParams{
			Trees:        c.Salary.Trees,
			MaxDepth:     c.Salary.MaxDepth,
			MinLeaf:      c.Salary.MinLeaf,
			LearningRate: c.Salary.LearningRate,
		},
		Existence: infer.ExistenceParams{
			Trees:          c.Existence.Trees,
			MaxDepth:       c.Existence.MaxDepth,
			MinLeaf:        c.Existence.MinLeaf,
			LearningRate:   c.Existence.LearningRate,
			NegativeRatio:  c.Existence.NegativeRatio,
			StratifyBySize: c.Existence.StratifyByCompanySize,
			Seed:           c.Existence.Seed,
		},
		ExistenceThreshold:   c.Existence.Threshold,
		TemplateMinCompanies: c.Headcount.TemplateMinCompanies,
	}
}

func init() {
	rootCmd.AddCommand(trainCmd)
}
