package cli

import (
	"github.com/spf13/cobra"

	"github.com/headline-goat/abpower/internal/config"
)

var (
	dbPath   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "abpower",
	Short: "abpower - A/B test statistics and power simulation",
	Long: `abpower decides two-arm checkout experiments and estimates their power.

It tests conversion differences for significance, checks guardrail metrics,
and runs Monte-Carlo simulations over a users-per-day by uplift grid to
show how large an experiment needs to be.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvironment,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./warehouse.db", "warehouse database path (env ABP_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error (env ABP_LOG_LEVEL)")
}

// loadEnvironment reads .env and applies environment overrides to global
// flags the user did not set explicitly.
func loadEnvironment(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotenv(".env"); err != nil {
		return err
	}
	if !cmd.Flags().Changed("db") {
		dbPath = config.Env("ABP_DB_PATH", dbPath)
	}
	if !cmd.Flags().Changed("log-level") {
		logLevel = config.Env("ABP_LOG_LEVEL", logLevel)
	}
	return nil
}
