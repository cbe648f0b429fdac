package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Generate inferred archetypes for unobserved roles",
	Long:  "Trains all three models on one snapshot and writes inferred archetypes for company/role/seniority combinations the sources never showed, each tagged with its existence probability and model-run evidence.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		written, err := newInferencer(st).GenerateInferred(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %d inferred archetypes.\n", written)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inferCmd)
}
