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

// SegmentStorage implements the SegmentStorage interface for Badger
type SegmentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSegmentStorage creates a new SegmentStorage instance
func NewSegmentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SegmentStorage {
	return &SegmentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SegmentStorage) StoreSegments(ctx context.Context, segments []*models.Segment) error {
	for _, seg := range segments {
		if seg.ID == "" {
			seg.ID = models.SegmentID(seg.BookID, seg.Index)
		}
		if err := s.db.Store().Upsert(seg.ID, seg); err != nil {
			return fmt.Errorf("failed to save segment %s: %w", seg.ID, err)
		}
	}
	return nil
}

func (s *SegmentStorage) GetSegmentsByBook(ctx context.Context, bookID string) ([]*models.Segment, error) {
	var segments []models.Segment
	if err := s.db.Store().Find(&segments, badgerhold.Where("BookID").Eq(bookID).Index("BookID")); err != nil {
		return nil, fmt.Errorf("failed to find segments: %w", err)
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].Index < segments[j].Index })

	result := make([]*models.Segment, len(segments))
	for i := range segments {
		result[i] = &segments[i]
	}
	return result, nil
}

func (s *SegmentStorage) DeleteSegmentsByBook(ctx context.Context, bookID string) error {
	if err := s.db.Store().DeleteMatching(&models.Segment{}, badgerhold.Where("BookID").Eq(bookID).Index("BookID")); err != nil {
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	return nil
}

func (s *SegmentStorage) CountSegmentsByBook(ctx context.Context, bookID string) (int, error) {
	count, err := s.db.Store().Count(&models.Segment{}, badgerhold.Where("BookID").Eq(bookID).Index("BookID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}
	return int(count), nil
}
