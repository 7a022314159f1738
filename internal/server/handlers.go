package server

import (
	"time"

	"github.com/santiago/listing-enricher/internal/jobs"
)

// JobEnqueueResponse is returned after a job submission.
type JobEnqueueResponse struct {
	JobID   string      `json:"job_id"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
}

// JobSummaryResponse is the audit view of a job, without its result payload.
type JobSummaryResponse struct {
	ID              string      `json:"id"`
	Status          jobs.Status `json:"status"`
	Detail          string      `json:"detail"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty"`
	DurationSeconds *float64    `json:"duration_seconds,omitempty"`
	TotalTasks      *int        `json:"total_tasks,omitempty"`
}

// JobDetailResponse is the full job view including the result payload.
type JobDetailResponse struct {
	ID              string      `json:"id"`
	Status          jobs.Status `json:"status"`
	Detail          string      `json:"detail"`
	Result          any         `json:"result,omitempty"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty"`
	DurationSeconds *float64    `json:"duration_seconds,omitempty"`
	TotalTasks      *int        `json:"total_tasks,omitempty"`
}

func jobSummary(job jobs.Job) JobSummaryResponse {
	return JobSummaryResponse{
		ID:              job.ID,
		Status:          job.Status,
		Detail:          job.Detail,
		StartedAt:       job.StartedAt,
		FinishedAt:      job.FinishedAt,
		DurationSeconds: job.DurationSeconds,
		TotalTasks:      job.TotalTasks,
	}
}

func jobDetail(job jobs.Job) JobDetailResponse {
	return JobDetailResponse{
		ID:              job.ID,
		Status:          job.Status,
		Detail:          job.Detail,
		Result:          job.Result,
		StartedAt:       job.StartedAt,
		FinishedAt:      job.FinishedAt,
		DurationSeconds: job.DurationSeconds,
		TotalTasks:      job.TotalTasks,
	}
}
