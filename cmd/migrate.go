package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/store"
)

var migrateSeed string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the lineage tables and optionally seed them from a fixture",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, "migrate")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("migration complete", zap.String("driver", cfg.Store.Driver))

		if migrateSeed == "" {
			return nil
		}
		f, err := store.ReadFixture(migrateSeed)
		if err != nil {
			return err
		}
		if err := f.Seed(ctx, st); err != nil {
			return err
		}
		zap.L().Info("seeded store",
			zap.String("fixture", migrateSeed),
			zap.Int("process_steps", len(f.ProcessSteps)),
			zap.Int("power_units", len(f.PowerUnits)),
			zap.Int("hydrogen_units", len(f.HydrogenUnits)),
		)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSeed, "seed", "", "YAML fixture whose units and steps are inserted after migrating")
	rootCmd.AddCommand(migrateCmd)
}
