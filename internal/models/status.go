// -----------------------------------------------------------------------
// Job Status - runtime status records for audiobook pipeline jobs
// -----------------------------------------------------------------------

package models

import "time"

// JobStatus is the lifecycle state of a pipeline job.
type JobStatus string

const (
	// JobStatusProcessing indicates the pipeline is actively running stages
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates all stages finished and output was reconciled
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a stage failed or reconciliation was impossible
	JobStatusFailed JobStatus = "failed"
	// JobStatusUnknown is the placeholder returned for job IDs the store has
	// never seen. It is never written, only synthesized on read.
	JobStatusUnknown JobStatus = "unknown"
)

// IsTerminal reports whether the status is a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// StatusRecord is a point-in-time snapshot of a job's progress.
// Records are immutable once published; updates replace the whole record.
type StatusRecord struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnknownStatus builds the placeholder record for an untracked job ID.
func UnknownStatus(jobID string) StatusRecord {
	return StatusRecord{
		JobID:     jobID,
		Status:    JobStatusUnknown,
		Message:   "No job found with this ID",
		UpdatedAt: time.Now(),
	}
}
