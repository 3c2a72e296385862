package badger

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/audiforge/audiforge/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "badger-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func TestBookStorageRoundTrip(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewBookStorage(db, logger)
	ctx := context.Background()

	book := &models.Book{
		ID:        "the_tortoise_and_the_hare",
		Title:     "The Tortoise and the Hare",
		SourcePDF: "/uploads/fable.pdf",
		Status:    models.JobStatusProcessing,
	}
	require.NoError(t, storage.StoreBook(ctx, book))
	assert.False(t, book.CreatedAt.IsZero())

	got, err := storage.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.Title, got.Title)
	assert.Equal(t, models.JobStatusProcessing, got.Status)

	// Resubmitting the same title overwrites the prior record
	book.Status = models.JobStatusCompleted
	book.OutputDir = "/output/the_tortoise_and_the_hare"
	require.NoError(t, storage.StoreBook(ctx, book))

	got, err = storage.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, "/output/the_tortoise_and_the_hare", got.OutputDir)

	count, err := storage.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBookStorageMissingBook(t *testing.T) {
	db := newTestDB(t)
	storage := NewBookStorage(db, arbor.NewLogger())

	_, err := storage.GetBook(context.Background(), "nonexistent")
	assert.Error(t, err)

	// Deleting a missing book is not an error
	assert.NoError(t, storage.DeleteBook(context.Background(), "nonexistent"))
}

func TestSegmentAndTimingStorage(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	segStore := NewSegmentStorage(db, logger)
	timStore := NewTimingStorage(db, logger)
	ctx := context.Background()

	segments := []*models.Segment{
		{BookID: "fable", Index: 1, Speaker: "narrator", Text: "Slow and steady."},
		{BookID: "fable", Index: 0, Speaker: "narrator", Text: "Once upon a time."},
	}
	require.NoError(t, segStore.StoreSegments(ctx, segments))

	got, err := segStore.GetSegmentsByBook(ctx, "fable")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Sorted by segment index regardless of insertion order
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, "Once upon a time.", got[0].Text)
	assert.Equal(t, 1, got[1].Index)

	timings := []*models.Timing{
		{BookID: "fable", Index: 0, Speaker: "narrator", Text: "Once upon a time.", StartTime: 0, Duration: 2.5, EndTime: 2.5},
		{BookID: "fable", Index: 1, Speaker: "narrator", Text: "Slow and steady.", StartTime: 2.5, Duration: 1.5, EndTime: 4.0},
	}
	require.NoError(t, timStore.StoreTimings(ctx, timings))

	at, err := timStore.GetTimingAt(ctx, "fable", 3.0)
	require.NoError(t, err)
	assert.Equal(t, 1, at.Index)

	// End bound is exclusive: 2.5 belongs to the second segment
	at, err = timStore.GetTimingAt(ctx, "fable", 2.5)
	require.NoError(t, err)
	assert.Equal(t, 1, at.Index)

	_, err = timStore.GetTimingAt(ctx, "fable", 10.0)
	assert.Error(t, err)

	require.NoError(t, segStore.DeleteSegmentsByBook(ctx, "fable"))
	count, err := segStore.CountSegmentsByBook(ctx, "fable")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
