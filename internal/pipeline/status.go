// -----------------------------------------------------------------------
// Job Status Store - process-wide in-memory job status map
// -----------------------------------------------------------------------

package pipeline

import (
	"sync"
	"time"

	"github.com/audiforge/audiforge/internal/models"
)

// StatusStore is the single source of truth for what is happening to a
// job right now. Entries live for the life of the process; there is no
// eviction. Job state does not survive a restart.
type StatusStore struct {
	mu      sync.RWMutex
	records map[string]models.StatusRecord
}

// NewStatusStore creates a new StatusStore
func NewStatusStore() *StatusStore {
	return &StatusStore{
		records: make(map[string]models.StatusRecord),
	}
}

// Set overwrites the stored record for the job. Fields are never
// merged; every transition replaces the whole record.
func (s *StatusStore) Set(jobID string, status models.JobStatus, message, errDetail string) models.StatusRecord {
	record := models.StatusRecord{
		JobID:     jobID,
		Status:    status,
		Message:   message,
		Error:     errDetail,
		UpdatedAt: time.Now(),
	}

	s.mu.Lock()
	s.records[jobID] = record
	s.mu.Unlock()

	return record
}

// Get returns the stored record and whether one exists.
func (s *StatusStore) Get(jobID string) (models.StatusRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[jobID]
	return record, ok
}

// GetOrUnknown returns the stored record, or the unknown placeholder
// for job IDs the store has never seen. Observers may attach before
// the first transition is recorded; that is not an error.
func (s *StatusStore) GetOrUnknown(jobID string) models.StatusRecord {
	if record, ok := s.Get(jobID); ok {
		return record
	}
	return models.UnknownStatus(jobID)
}

// Count returns the number of tracked jobs.
func (s *StatusStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
