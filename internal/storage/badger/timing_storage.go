package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/audiforge/audiforge/internal/interfaces"
	"github.com/audiforge/audiforge/internal/models"
)

// TimingStorage implements the TimingStorage interface for Badger
type TimingStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTimingStorage creates a new TimingStorage instance
func NewTimingStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TimingStorage {
	return &TimingStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TimingStorage) StoreTimings(ctx context.Context, timings []*models.Timing) error {
	for _, t := range timings {
		if t.ID == "" {
			t.ID = models.TimingID(t.BookID, t.Index)
		}
		if err := s.db.Store().Upsert(t.ID, t); err != nil {
			return fmt.Errorf("failed to save timing %s: %w", t.ID, err)
		}
	}
	return nil
}

func (s *TimingStorage) GetTimingsByBook(ctx context.Context, bookID string) ([]*models.Timing, error) {
	var timings []models.Timing
	if err := s.db.Store().Find(&timings, badgerhold.Where("BookID").Eq(bookID).Index("BookID")); err != nil {
		return nil, fmt.Errorf("failed to find timings: %w", err)
	}

	sort.Slice(timings, func(i, j int) bool { return timings[i].Index < timings[j].Index })

	result := make([]*models.Timing, len(timings))
	for i := range timings {
		result[i] = &timings[i]
	}
	return result, nil
}

// GetTimingAt returns the timing whose span covers the given playback position.
// Timings are sorted by index, so a linear scan finds the covering span.
func (s *TimingStorage) GetTimingAt(ctx context.Context, bookID string, position float64) (*models.Timing, error) {
	timings, err := s.GetTimingsByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	for _, t := range timings {
		if t.Contains(position) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no timing covers position %.3f for book %s", position, bookID)
}

func (s *TimingStorage) DeleteTimingsByBook(ctx context.Context, bookID string) error {
	if err := s.db.Store().DeleteMatching(&models.Timing{}, badgerhold.Where("BookID").Eq(bookID).Index("BookID")); err != nil {
		return fmt.Errorf("failed to delete timings: %w", err)
	}
	return nil
}
