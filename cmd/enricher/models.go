package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/santiago/listing-enricher/internal/config"
	"github.com/santiago/listing-enricher/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available Gemini models",
	Long:  "Queries the Gemini API and prints the models that can be passed to the enrichment endpoint.",
	RunE:  runModels,
}

var modelsAPIKey string

func init() {
	modelsCmd.Flags().StringVar(&modelsAPIKey, "api-key", "", "Gemini API key (overrides GEMINI_API_KEY env var)")

	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	apiKey := modelsAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("API key is required (set GEMINI_API_KEY environment variable or use --api-key flag)")
	}

	ctx := context.Background()
	client, err := llm.NewGeminiClient(ctx, apiKey, config.DefaultGeminiModel)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	for _, model := range models {
		fmt.Fprintln(cmd.OutOrStdout(), model)
	}
	return nil
}
