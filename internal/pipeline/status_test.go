package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiforge/audiforge/internal/models"
)

func TestStatusStoreSetAndGet(t *testing.T) {
	store := NewStatusStore()

	record := store.Set("my_book", models.JobStatusProcessing, "Step 1 of 4: Analyzing text...", "")
	assert.Equal(t, "my_book", record.JobID)
	assert.False(t, record.UpdatedAt.IsZero())

	got, ok := store.Get("my_book")
	require.True(t, ok)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Equal(t, "Step 1 of 4: Analyzing text...", got.Message)

	// Set overwrites the whole record, never merges
	store.Set("my_book", models.JobStatusFailed, "Processing failed", "stage analyze timed out")
	got, ok = store.Get("my_book")
	require.True(t, ok)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "stage analyze timed out", got.Error)
}

func TestStatusStoreUnknownPlaceholder(t *testing.T) {
	store := NewStatusStore()

	_, ok := store.Get("never_seen")
	assert.False(t, ok)

	record := store.GetOrUnknown("never_seen")
	assert.Equal(t, models.JobStatusUnknown, record.Status)
	assert.Equal(t, "never_seen", record.JobID)
	assert.NotEmpty(t, record.Message)

	// The placeholder is synthesized on read, never written
	assert.Equal(t, 0, store.Count())
}

func TestStatusStoreConcurrentAccess(t *testing.T) {
	store := NewStatusStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Set("job", models.JobStatusProcessing, "working", "")
		}()
		go func() {
			defer wg.Done()
			store.GetOrUnknown("job")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.Count())
}
