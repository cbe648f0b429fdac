package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/source"
	"github.com/sells-group/labor-atlas/internal/title"
)

var migrateSkipSeed bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema and seed reference data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if migrateSkipSeed {
			fmt.Println("Schema up to date.")
			return nil
		}

		for _, s := range source.SeedSources() {
			src := s
			if err := st.UpsertSource(ctx, &src); err != nil {
				return eris.Wrapf(err, "seed source %s", s.Name)
			}
		}

		roleID := make(map[string]int64)
		for _, r := range title.DefaultRoles() {
			role := r
			if err := st.UpsertRole(ctx, &role); err != nil {
				return eris.Wrapf(err, "seed role %s", r.Name)
			}
			roleID[role.Name] = role.ID
		}

		rules := title.DefaultRules()
		if cfg.Title.RulesPath != "" {
			rules, err = title.LoadRules(cfg.Title.RulesPath)
			if err != nil {
				return err
			}
		}
		for i := range rules {
			// Default rules reference roles by taxonomy position; remap
			// onto the ids the store assigned.
			if name, ok := title.RoleNameByDefaultID(rules[i].RoleID); ok {
				rules[i].RoleID = roleID[name]
			}
			if err := st.UpsertTitleRule(ctx, &rules[i]); err != nil {
				return eris.Wrapf(err, "seed title rule %s", rules[i].Pattern)
			}
		}

		zap.L().Info("migrate: schema and seed data applied",
			zap.Int("roles", len(roleID)),
			zap.Int("title_rules", len(rules)),
		)
		fmt.Println("Schema migrated and reference data seeded.")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSkipSeed, "skip-seed", false, "apply schema only, skip reference data")
	rootCmd.AddCommand(migrateCmd)
}
