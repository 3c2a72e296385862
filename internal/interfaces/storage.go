package interfaces

import (
	"context"

	"github.com/audiforge/audiforge/internal/models"
)

// BookStorage - interface for audiobook record persistence
type BookStorage interface {
	StoreBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, id string) (*models.Book, error)
	GetAllBooks(ctx context.Context) ([]*models.Book, error)
	DeleteBook(ctx context.Context, id string) error
	CountBooks(ctx context.Context) (int, error)
}

// SegmentStorage - interface for text segment persistence
type SegmentStorage interface {
	StoreSegments(ctx context.Context, segments []*models.Segment) error
	GetSegmentsByBook(ctx context.Context, bookID string) ([]*models.Segment, error)
	DeleteSegmentsByBook(ctx context.Context, bookID string) error
	CountSegmentsByBook(ctx context.Context, bookID string) (int, error)
}

// TimingStorage - interface for audio timing persistence
type TimingStorage interface {
	StoreTimings(ctx context.Context, timings []*models.Timing) error
	GetTimingsByBook(ctx context.Context, bookID string) ([]*models.Timing, error)
	GetTimingAt(ctx context.Context, bookID string, position float64) (*models.Timing, error)
	DeleteTimingsByBook(ctx context.Context, bookID string) error
}

// StorageManager - aggregate access to all storage interfaces
type StorageManager interface {
	Books() BookStorage
	Segments() SegmentStorage
	Timings() TimingStorage
	Close() error
}
