package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/santiago/listing-enricher/internal/extraction"
)

// handleExtractItems enqueues an extraction job for item descriptions.
func (s *Server) handleExtractItems(w http.ResponseWriter, r *http.Request) {
	var req extraction.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
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
		s.extractor.Extract(context.Background(), job, req)
	})

	s.jsonResponse(w, http.StatusAccepted, JobEnqueueResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Request enqueued successfully.",
	})
}

// handleListExtractJobs lists jobs with audit fields.
func (s *Server) handleListExtractJobs(w http.ResponseWriter, _ *http.Request) {
	listed := s.registry.List()

	summaries := make([]JobSummaryResponse, 0, len(listed))
	for _, job := range listed {
		summaries = append(summaries, jobSummary(job))
	}
	s.jsonResponse(w, http.StatusOK, summaries)
}

// handleGetExtractJob retrieves a single job with full details.
func (s *Server) handleGetExtractJob(w http.ResponseWriter, r *http.Request) {
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
