// Package enrichment orchestrates batch enrichment jobs: fetch marketplace
// descriptions, rewrite them with the LLM, and persist the enriched batch.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/santiago/listing-enricher/internal/db"
	"github.com/santiago/listing-enricher/internal/jobs"
	"github.com/santiago/listing-enricher/internal/llm"
	"github.com/santiago/listing-enricher/internal/marketplace"
)

// Source fetches item descriptions and attributes from the marketplace.
type Source interface {
	FetchDescription(ctx context.Context, itemID string) (string, error)
	FetchItemAttributes(ctx context.Context, itemID string) ([]marketplace.Attribute, error)
}

// ResultStore persists successfully enriched batches.
type ResultStore interface {
	InsertEnrichedProducts(ctx context.Context, products []db.EnrichedProduct) error
}

// Request is the payload for an enrichment job.
type Request struct {
	ItemIDs  []string `json:"item_ids" validate:"required,min=1,dive,required"`
	Tone     string   `json:"tone"`
	MaxWords int      `json:"max_words" validate:"omitempty,gte=20,lte=120"`
	Model    string   `json:"model" validate:"required"`
}

// Defaults applied when the caller leaves optional fields empty.
const (
	DefaultTone     = "helpful"
	DefaultMaxWords = 60
)

// EnrichedItem is one successfully enriched listing in a job result.
type EnrichedItem struct {
	ItemID              string    `json:"item_id"`
	OriginalDescription string    `json:"original_description"`
	EnrichedDescription string    `json:"enriched_description"`
	CreatedAt           time.Time `json:"created_at"`
}

// ItemError records a per-item fetch failure.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ErrorMessage is a job-level failure message.
type ErrorMessage struct {
	Message string `json:"message"`
}

// FetchFailures is the result payload when no items could be enriched.
type FetchFailures struct {
	Errors []ItemError `json:"errors"`
}

// FailureMessages is the result payload for job-level failures such as
// provider rate limiting.
type FailureMessages struct {
	Errors []ErrorMessage `json:"errors"`
}

// ModelValidationError is returned when the requested model is not in the
// provider's available set.
type ModelValidationError struct {
	Model     string
	Available []string
}

func (e *ModelValidationError) Error() string {
	return fmt.Sprintf("Model '%s' not available", e.Model)
}

// ModelValidationResult carries the attempted model and the full available
// set into the failed job's result payload.
type ModelValidationResult struct {
	Message         string   `json:"message"`
	AvailableModels []string `json:"available_models"`
}

// Service runs enrichment jobs and reports their lifecycle through the job
// registry.
type Service struct {
	registry *jobs.Registry
	source   Source
	llm      llm.Client
	store    ResultStore
}

// NewService creates an enrichment service.
func NewService(registry *jobs.Registry, source Source, client llm.Client, store ResultStore) *Service {
	return &Service{registry: registry, source: source, llm: client, store: store}
}

// ListModels returns the provider's available model identifiers.
func (s *Service) ListModels(ctx context.Context) ([]string, error) {
	return s.llm.ListModels(ctx)
}

// ValidateModel checks the requested model against the provider's model
// listing, accepting either the bare id or the "models/" prefixed form.
func (s *Service) ValidateModel(ctx context.Context, model string) error {
	available, err := s.llm.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	if !llm.ModelAvailable(model, available) {
		log.Printf("Model '%s' not available", model)
		return &ModelValidationError{Model: model, Available: available}
	}
	return nil
}

// Enrich runs the full fetch -> generate -> persist pipeline for the batch.
// The job always reaches a terminal state: model validation failures, rate
// limiting, total fetch failure and unexpected faults all resolve to failed.
func (s *Service) Enrich(ctx context.Context, job jobs.Job, req Request) {
	if req.Tone == "" {
		req.Tone = DefaultTone
	}
	if req.MaxWords == 0 {
		req.MaxWords = DefaultMaxWords
	}

	// Pre-flight: a bad model must not leave the job stuck in pending.
	if err := s.ValidateModel(ctx, req.Model); err != nil {
		finished := time.Now().UTC()
		upd := jobs.Update{
			Status:     jobs.StatusFailed,
			Detail:     err.Error(),
			FinishedAt: &finished,
		}
		var validationErr *ModelValidationError
		if errors.As(err, &validationErr) {
			upd.Result = ModelValidationResult{
				Message:         validationErr.Error(),
				AvailableModels: validationErr.Available,
			}
		}
		s.registry.UpdateStatus(job.ID, upd)
		return
	}

	started := time.Now().UTC()
	total := len(req.ItemIDs)

	s.registry.UpdateStatus(job.ID, jobs.Update{
		Status:     jobs.StatusRunning,
		Detail:     "Processing",
		StartedAt:  &started,
		TotalTasks: &total,
	})

	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			s.fail(job.ID, start, fmt.Sprintf("panic: %v", rec), nil)
		}
	}()

	// Phase A: fetch descriptions; failed items are skipped in phase B.
	items, itemErrors := s.fetchItems(ctx, req.ItemIDs)

	// Phase B: generate enriched descriptions.
	enriched := make([]EnrichedItem, 0, len(items))
	for _, item := range items {
		text, err := s.llm.Generate(ctx, buildPrompt(item, req.Tone, req.MaxWords))
		if err != nil {
			var rateErr *llm.RateLimitError
			if errors.As(err, &rateErr) {
				// Abort immediately; nothing from this run is persisted.
				s.fail(job.ID, start,
					fmt.Sprintf("Gemini quota exceeded. Retry after %s", retryHint(rateErr)),
					FailureMessages{Errors: []ErrorMessage{{Message: rateErr.Message}}})
				return
			}
			s.fail(job.ID, start, err.Error(), nil)
			return
		}

		log.Printf("Enriched item %s", item.ID)
		enriched = append(enriched, EnrichedItem{
			ItemID:              item.ID,
			OriginalDescription: item.Description,
			EnrichedDescription: text,
			CreatedAt:           time.Now().UTC(),
		})
	}

	if len(enriched) == 0 {
		s.fail(job.ID, start, "No items enriched", FetchFailures{Errors: itemErrors})
		return
	}

	if err := s.persist(ctx, enriched); err != nil {
		s.fail(job.ID, start, err.Error(), nil)
		return
	}

	duration := time.Since(start).Seconds()
	finished := time.Now().UTC()

	s.registry.UpdateStatus(job.ID, jobs.Update{
		Status:          jobs.StatusCompleted,
		Result:          enriched,
		FinishedAt:      &finished,
		DurationSeconds: &duration,
	})
}

// item is a fetched listing ready for prompt building.
type item struct {
	ID          string
	Description string
	Attributes  []marketplace.Attribute
}

// fetchItems fetches descriptions for the batch in input order. Source
// failures are collected and the item skipped; attributes are best-effort.
func (s *Service) fetchItems(ctx context.Context, itemIDs []string) ([]item, []ItemError) {
	items := make([]item, 0, len(itemIDs))
	itemErrors := make([]ItemError, 0)

	for _, itemID := range itemIDs {
		description, err := s.source.FetchDescription(ctx, itemID)
		if err != nil {
			itemErrors = append(itemErrors, ItemError{ID: itemID, Error: err.Error()})
			log.Printf("No description found for item %s: %v", itemID, err)
			continue
		}
		log.Printf("Fetched description for item %s", itemID)

		attrs, err := s.source.FetchItemAttributes(ctx, itemID)
		if err != nil {
			log.Printf("Attributes unavailable for item %s: %v", itemID, err)
		}

		items = append(items, item{ID: itemID, Description: description, Attributes: attrs})
	}
	return items, itemErrors
}

func (s *Service) persist(ctx context.Context, enriched []EnrichedItem) error {
	products := make([]db.EnrichedProduct, 0, len(enriched))
	for _, e := range enriched {
		products = append(products, db.EnrichedProduct{
			ItemID:              e.ItemID,
			OriginalDescription: e.OriginalDescription,
			EnrichedDescription: e.EnrichedDescription,
			CreatedAt:           e.CreatedAt,
		})
	}
	if err := s.store.InsertEnrichedProducts(ctx, products); err != nil {
		return err
	}
	log.Printf("Persisted %d enriched items to database", len(products))
	return nil
}

func (s *Service) fail(jobID string, start time.Time, detail string, result any) {
	duration := time.Since(start).Seconds()
	finished := time.Now().UTC()

	s.registry.UpdateStatus(jobID, jobs.Update{
		Status:          jobs.StatusFailed,
		Detail:          detail,
		Result:          result,
		FinishedAt:      &finished,
		DurationSeconds: &duration,
	})
}

func retryHint(err *llm.RateLimitError) string {
	if err.RetryAfter == nil {
		return "unknown"
	}
	return err.RetryAfter.String()
}
