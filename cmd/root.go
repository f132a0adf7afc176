package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/config"
)

var (
	cfg         *config.Config
	fixturePath string
)

var rootCmd = &cobra.Command{
	Use:   "h2-custody",
	Short: "Hydrogen chain-of-custody lineage service",
	Long:  "Traces hydrogen batches back to the power and water they were made from, aggregates bottle composition, allocates storage inventory to bottlings and checks RED compliance.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c
		if fixturePath != "" {
			cfg.Store.Driver = "memory"
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&fixturePath, "fixture", "", "YAML fixture to load into an in-memory store instead of the configured database")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
