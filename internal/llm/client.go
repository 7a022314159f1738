// Package llm provides the text-generation client used by the enrichment
// pipeline, backed by Google Gemini.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Client is an abstraction over LLM providers.
type Client interface {
	// Generate produces a text completion for the given prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// ListModels returns the provider's available model identifiers.
	ListModels(ctx context.Context) ([]string, error)
	// Close releases any resources held by the client.
	Close() error
}

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini client bound to a specific model.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  StripModelPrefix(model),
	}, nil
}

// Generate produces a text completion for the given prompt. Provider
// throttling surfaces as *RateLimitError; everything else as *GenerateError.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.ResponseMIMEType = "text/plain"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", wrapGenerateError(err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", &GenerateError{Message: "empty response", Cause: err}
	}
	return strings.TrimSpace(text), nil
}

// ListModels returns the available Gemini model identifiers. Names come back
// in the provider's canonical "models/<id>" form.
func (c *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	var names []string

	it := c.client.ListModels(ctx)
	for {
		info, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}
		names = append(names, info.Name)
	}
	return names, nil
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from a Gemini API response.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, " "), nil
}
