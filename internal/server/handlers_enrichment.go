package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/santiago/listing-enricher/internal/db"
	"github.com/santiago/listing-enricher/internal/enrichment"
)

// EnrichedProductListResponse is a paginated list of enriched products.
type EnrichedProductListResponse struct {
	Count int                  `json:"count"`
	Items []db.EnrichedProduct `json:"items"`
}

// handleRunEnrichment enqueues an enrichment job. The model is validated
// before the job is created so an obviously bad request fails fast.
func (s *Server) handleRunEnrichment(w http.ResponseWriter, r *http.Request) {
	var req enrichment.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	if err := s.enricher.ValidateModel(r.Context(), req.Model); err != nil {
		var validationErr *enrichment.ModelValidationError
		if errors.As(err, &validationErr) {
			log.Printf("Validation error enqueuing enrichment job: %v", err)
			s.jsonResponse(w, http.StatusBadRequest, map[string]any{
				"message":          validationErr.Error(),
				"available_models": validationErr.Available,
			})
			return
		}
		log.Printf("Unexpected error enqueuing enrichment job: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	job, created := s.registry.Create(r.Header.Get(idempotencyKeyHeader))
	if !created {
		s.jsonResponse(w, http.StatusOK, JobEnqueueResponse{
			JobID:   job.ID,
			Status:  job.Status,
			Message: "Request already enqueued.",
		})
		return
	}

	s.pool.Submit(func() {
		s.enricher.Enrich(context.Background(), job, req)
	})

	s.jsonResponse(w, http.StatusAccepted, JobEnqueueResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Request enqueued successfully",
	})
}

// handleListModels lists the available LLM models.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.enricher.ListModels(r.Context())
	if err != nil {
		log.Printf("Failed to list LLM models: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to list LLM models: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string][]string{"models": models})
}

// handleListEnrichmentJobs lists jobs with audit fields.
func (s *Server) handleListEnrichmentJobs(w http.ResponseWriter, _ *http.Request) {
	listed := s.registry.List()

	summaries := make([]JobSummaryResponse, 0, len(listed))
	for _, job := range listed {
		summaries = append(summaries, jobSummary(job))
	}
	s.jsonResponse(w, http.StatusOK, summaries)
}

// handleGetEnrichmentJob retrieves a single job by id.
func (s *Server) handleGetEnrichmentJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		s.errorResponse(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, ok := s.registry.Get(jobID)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, jobDetail(job))
}

// handleSearchEnrichedProducts searches persisted enriched products with
// filters and pagination.
func (s *Server) handleSearchEnrichedProducts(w http.ResponseWriter, r *http.Request) {
	filters, err := parseProductFilters(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := s.products.SearchEnrichedProducts(r.Context(), filters)
	if err != nil {
		log.Printf("Failed to fetch enriched products: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch enriched products")
		return
	}
	if items == nil {
		items = []db.EnrichedProduct{}
	}

	s.jsonResponse(w, http.StatusOK, EnrichedProductListResponse{Count: total, Items: items})
}

// handleGetEnrichedProduct retrieves the latest enriched product for an item.
func (s *Server) handleGetEnrichedProduct(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("item_id")
	if itemID == "" {
		s.errorResponse(w, http.StatusBadRequest, "Item ID is required")
		return
	}

	item, err := s.products.GetEnrichedProduct(r.Context(), itemID)
	if err != nil {
		log.Printf("Failed to fetch enriched product %s: %v", itemID, err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch enriched product")
		return
	}
	if item == nil {
		s.errorResponse(w, http.StatusNotFound, "Enriched product "+itemID+" not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, item)
}

// parseProductFilters reads search parameters from the query string.
func parseProductFilters(r *http.Request) (db.EnrichedProductFilters, error) {
	filters := db.EnrichedProductFilters{
		Query: r.URL.Query().Get("q"),
		Limit: 50,
	}

	if raw := r.URL.Query().Get("created_from"); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return filters, errors.New("invalid created_from: " + err.Error())
		}
		filters.CreatedFrom = &t
	}
	if raw := r.URL.Query().Get("created_to"); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return filters, errors.New("invalid created_to: " + err.Error())
		}
		filters.CreatedTo = &t
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			return filters, errors.New("limit must be an integer between 1 and 200")
		}
		filters.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filters, errors.New("offset must be a non-negative integer")
		}
		filters.Offset = n
	}

	return filters, nil
}

// parseTimestamp accepts RFC 3339 timestamps or bare dates.
func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
