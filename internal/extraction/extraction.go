// Package extraction orchestrates batch extraction jobs for marketplace
// item descriptions.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/santiago/listing-enricher/internal/jobs"
	"github.com/santiago/listing-enricher/internal/marketplace"
)

// DescriptionFetcher fetches a single item's description from the source
// marketplace.
type DescriptionFetcher interface {
	FetchDescription(ctx context.Context, itemID string) (string, error)
}

// Request is the batch of item ids to extract. Duplicates are processed
// independently.
type Request struct {
	ItemIDs []string `json:"item_ids" validate:"required,min=1,dive,required"`
}

// Result is the per-item outcome. Exactly one of Description or Error is
// meaningful; a failed fetch never aborts the batch.
type Result struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Service runs extraction jobs and reports their lifecycle through the job
// registry.
type Service struct {
	registry *jobs.Registry
	source   DescriptionFetcher
}

// NewService creates an extraction service.
func NewService(registry *jobs.Registry, source DescriptionFetcher) *Service {
	return &Service{registry: registry, source: source}
}

// Extract processes the batch sequentially, in input order. Per-item fetch
// failures are recorded inline and the job completes; only an unexpected
// fault fails the job. The job is always driven to a terminal state.
func (s *Service) Extract(ctx context.Context, job jobs.Job, req Request) {
	started := time.Now().UTC()
	total := len(req.ItemIDs)

	s.registry.UpdateStatus(job.ID, jobs.Update{
		Status:     jobs.StatusRunning,
		Detail:     "Processing descriptions",
		StartedAt:  &started,
		TotalTasks: &total,
	})

	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			s.fail(job.ID, start, fmt.Errorf("panic: %v", rec))
		}
	}()

	results := make([]Result, 0, total)
	for _, itemID := range req.ItemIDs {
		description, err := s.source.FetchDescription(ctx, itemID)
		if err != nil {
			var extractErr *marketplace.ExtractError
			if errors.As(err, &extractErr) {
				results = append(results, Result{ID: itemID, Error: err.Error()})
				continue
			}
			s.fail(job.ID, start, err)
			return
		}
		results = append(results, Result{ID: itemID, Description: description})
	}

	errorCount := 0
	for _, r := range results {
		if r.Error != "" {
			errorCount++
		}
	}
	successCount := len(results) - errorCount

	duration := time.Since(start).Seconds()
	finished := time.Now().UTC()

	s.registry.UpdateStatus(job.ID, jobs.Update{
		Status: jobs.StatusCompleted,
		Detail: fmt.Sprintf("Completed successfully. processed=%d success=%d errors=%d",
			len(results), successCount, errorCount),
		Result:          results,
		FinishedAt:      &finished,
		DurationSeconds: &duration,
	})
}

func (s *Service) fail(jobID string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	finished := time.Now().UTC()

	s.registry.UpdateStatus(jobID, jobs.Update{
		Status:          jobs.StatusFailed,
		Detail:          err.Error(),
		FinishedAt:      &finished,
		DurationSeconds: &duration,
	})
}
