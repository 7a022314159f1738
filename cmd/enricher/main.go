// Package main provides the entry point for the Listing Enricher HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "enricher",
	Short: "MercadoLibre Listing Enricher HTTP API Server",
	Long:  "Listing Enricher extracts MercadoLibre item descriptions and rewrites them with the Gemini API as concise, factual Spanish product copy, served via REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
