// Package jobs provides an in-memory registry for background jobs with
// optional idempotency keys, plus a bounded worker pool for running them.
package jobs

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a background job.
// Transitions only move forward: pending -> running -> completed/failed.
type Status string

// Allowed job states.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job represents a tracked unit of background work. Jobs are stored by value
// and replaced wholesale on update, so readers never observe a torn record.
type Job struct {
	ID              string     `json:"id"`
	Status          Status     `json:"status"`
	Detail          string     `json:"detail"`
	Result          any        `json:"result,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	TotalTasks      *int       `json:"total_tasks,omitempty"`
}

// Update describes a status change for a job. Status, Detail and Result are
// always written; the remaining fields are applied only when non-nil, so a
// pipeline can fill the audit trail incrementally across calls.
type Update struct {
	Status          Status
	Detail          string
	Result          any
	StartedAt       *time.Time
	FinishedAt      *time.Time
	DurationSeconds *float64
	TotalTasks      *int
}

// Registry owns all job records and the idempotency-key mapping. All access
// goes through its methods; the backing maps are never exposed.
type Registry struct {
	mu    sync.Mutex
	jobs  map[string]Job
	keys  map[string]string
	order []string
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]Job),
		keys: make(map[string]string),
	}
}

// Create returns a job for the given idempotency key. If the key is already
// mapped, the existing job is returned with created=false and nothing is
// mutated. An empty key always creates a fresh job.
func (r *Registry) Create(key string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key != "" {
		if id, ok := r.keys[key]; ok {
			if job, ok := r.jobs[id]; ok {
				return job, false
			}
		}
	}

	job := Job{
		ID:     uuid.New().String(),
		Status: StatusPending,
	}
	r.jobs[job.ID] = job
	r.order = append(r.order, job.ID)

	if key != "" {
		r.keys[key] = job.ID
	}

	return job, true
}

// UpdateStatus replaces the stored record for jobID. Unknown ids are a
// log-only no-op; no phantom job is ever created.
func (r *Registry) UpdateStatus(jobID string, upd Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		log.Printf("Job %s not found in registry", jobID)
		return
	}

	job.Status = upd.Status
	job.Detail = upd.Detail
	job.Result = upd.Result

	if upd.StartedAt != nil {
		job.StartedAt = upd.StartedAt
	}
	if upd.FinishedAt != nil {
		job.FinishedAt = upd.FinishedAt
	}
	if upd.DurationSeconds != nil {
		job.DurationSeconds = upd.DurationSeconds
	}
	if upd.TotalTasks != nil {
		job.TotalTasks = upd.TotalTasks
	}

	r.jobs[jobID] = job

	switch upd.Status {
	case StatusRunning:
		log.Printf("Job %s running", jobID)
	case StatusCompleted:
		var secs float64
		if upd.DurationSeconds != nil {
			secs = *upd.DurationSeconds
		}
		log.Printf("Job %s completed in %.3fs. detail=%s", jobID, secs, upd.Detail)
	case StatusFailed:
		log.Printf("Job %s failed. detail=%s", jobID, upd.Detail)
	default:
		log.Printf("Job %s status=%s detail=%s", jobID, upd.Status, upd.Detail)
	}
}

// Get retrieves a job by id.
func (r *Registry) Get(jobID string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	return job, ok
}

// List returns a snapshot of all jobs in creation order.
func (r *Registry) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Job, 0, len(r.order))
	for _, id := range r.order {
		if job, ok := r.jobs[id]; ok {
			out = append(out, job)
		}
	}
	return out
}
