package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/labor-atlas/internal/resolve"
	"github.com/sells-group/labor-atlas/internal/synth"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <survivor-id> <duplicate-id>",
	Short: "Merge a duplicate company into a survivor",
	Long:  "Re-points the duplicate's aliases and observed jobs at the survivor, drops the duplicate's archetypes, records an audit entry, and re-synthesizes the affected archetype keys under the survivor.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		survivorID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "parse survivor id %q", args[0])
		}
		duplicateID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "parse duplicate id %q", args[1])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		keys, err := resolve.MergeCompanies(ctx, st, survivorID, duplicateID)
		if err != nil {
			return err
		}

		syn := synth.NewSynthesizer(st)
		resynthed := 0
		for _, key := range keys {
			a, err := syn.Synthesize(ctx, key)
			if err != nil {
				return err
			}
			if a != nil {
				resynthed++
			}
		}

		fmt.Printf("Merged company %d into %d; re-synthesized %d archetypes.\n", duplicateID, survivorID, resynthed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
