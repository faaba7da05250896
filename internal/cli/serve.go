package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/splitlab/splitlab/internal/config"
	"github.com/splitlab/splitlab/internal/engine"
	"github.com/splitlab/splitlab/internal/server"
)

var (
	configPath string
	addr       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the splitlab HTTP server.

The server provides:
  - The test lifecycle API (create/start/pause/complete)
  - An event beacon and traffic allocation endpoint
  - Health check and Prometheus metrics endpoints

Example:
  splitlab serve --addr :8080
  splitlab serve --config splitlab.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("SPLITLAB_CONFIG"), "path to YAML config file")
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Flags beat config file and environment.
	if addr != "" {
		cfg.Addr = addr
	}
	if cmd.Flags().Changed("db") || cfg.Database.Path == "" {
		cfg.Database.Path = dbPath
	}

	log := cfg.Logger(os.Stderr)

	s, err := cfg.OpenStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	eng := engine.New(s, log)
	srv := server.New(eng, cfg.Addr, log)
	return srv.Start()
}
