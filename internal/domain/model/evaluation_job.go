package model

import "time"

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusDead       = "dead" // Exhausted retries, moved to dead-letter list
)

// EvaluationJob tracks the queue bookkeeping for one submission evaluation.
// Jobs are delivered at least once: transient failures requeue the job until
// the attempt limit is reached, after which it lands on the dead-letter list.
type EvaluationJob struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	Status       string    `json:"status"`
	Attempts     int       `json:"attempts"`
	LastError    *string   `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
