package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/santiago/listing-enricher/internal/config"
	"github.com/santiago/listing-enricher/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the REST API with the extraction and enrichment pipelines, connected to Postgres, the MercadoLibre API and Gemini.",
	RunE:  runServe,
}

var (
	servePort    int
	serveWorkers int
)

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (overrides PORT env var)")
	serveCmd.Flags().IntVarP(&serveWorkers, "workers", "w", 0, "Background job workers (overrides WORKERS env var)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveWorkers != 0 {
		cfg.Workers = serveWorkers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}
