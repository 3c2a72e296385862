package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/audiforge/audiforge/internal/interfaces"
	"github.com/audiforge/audiforge/internal/models"
)

// BookStorage implements the BookStorage interface for Badger
type BookStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewBookStorage creates a new BookStorage instance
func NewBookStorage(db *BadgerDB, logger arbor.ILogger) interfaces.BookStorage {
	return &BookStorage{
		db:     db,
		logger: logger,
	}
}

func (s *BookStorage) StoreBook(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		return fmt.Errorf("book ID is required")
	}

	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now

	if err := s.db.Store().Upsert(book.ID, book); err != nil {
		return fmt.Errorf("failed to save book: %w", err)
	}
	return nil
}

func (s *BookStorage) GetBook(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	if err := s.db.Store().Get(id, &book); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("book not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return &book, nil
}

func (s *BookStorage) GetAllBooks(ctx context.Context) ([]*models.Book, error) {
	var books []models.Book
	if err := s.db.Store().Find(&books, nil); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	result := make([]*models.Book, len(books))
	for i := range books {
		result[i] = &books[i]
	}
	return result, nil
}

func (s *BookStorage) DeleteBook(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Book{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}

func (s *BookStorage) CountBooks(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Book{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return int(count), nil
}
