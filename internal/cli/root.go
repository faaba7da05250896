package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "splitlab",
	Short: "Splitlab - A/B testing engine for marketplace campaigns",
	Long: `Splitlab is the experimentation engine behind campaign optimization:
it splits traffic across variants, ingests impression/click/conversion
events, and determines a statistically significant winner.

Single Go binary, embedded SQLite, no external dependencies.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("SPLITLAB_DB_PATH", "./splitlab.db"), "database path")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
