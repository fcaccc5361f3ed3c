// Package models defines the domain types shared across the NewsAgent
// services: queue envelopes, job status records, sources, discovered
// articles, and the workflow state threaded through the pipeline.
package models

import "time"

// Job status values recorded in the per-job status hash.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCrashed    = "crashed"
	JobStatusRequeued   = "re-queued"
)

// JobEnvelope is the unit of work placed on the queue.
type JobEnvelope struct {
	JobID      string    `json:"job_id"`
	SourceURL  string    `json:"source_url"`
	MaxRetries int       `json:"max_retries"`
	EnqueuedAt time.Time `json:"timestamp"`
}

// JobStatus is the side-channel record keyed by job id. It expires 24 h
// after creation.
type JobStatus struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	SourceURL string `json:"source_url"`
	CreatedAt string `json:"created_at"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}
