package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/audiforge/audiforge/internal/common"
	"github.com/audiforge/audiforge/internal/interfaces"
	"github.com/audiforge/audiforge/internal/models"
)

// stubStorage is an in-memory StorageManager for handler tests.
type stubStorage struct {
	mu       sync.Mutex
	books    map[string]*models.Book
	segments map[string][]*models.Segment
	timings  map[string][]*models.Timing
}

func newStubStorage() *stubStorage {
	return &stubStorage{
		books:    make(map[string]*models.Book),
		segments: make(map[string][]*models.Segment),
		timings:  make(map[string][]*models.Timing),
	}
}

func (s *stubStorage) Books() interfaces.BookStorage       { return s }
func (s *stubStorage) Segments() interfaces.SegmentStorage { return s }
func (s *stubStorage) Timings() interfaces.TimingStorage   { return s }
func (s *stubStorage) Close() error                        { return nil }

func (s *stubStorage) StoreBook(ctx context.Context, book *models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[book.ID] = book
	return nil
}

func (s *stubStorage) GetBook(ctx context.Context, id string) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if book, ok := s.books[id]; ok {
		return book, nil
	}
	return nil, fmt.Errorf("book not found: %s", id)
}

func (s *stubStorage) GetAllBooks(ctx context.Context) ([]*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var books []*models.Book
	for _, book := range s.books {
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

func (s *stubStorage) DeleteBook(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.books, id)
	return nil
}

func (s *stubStorage) CountBooks(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.books), nil
}

func (s *stubStorage) StoreSegments(ctx context.Context, segments []*models.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range segments {
		s.segments[seg.BookID] = append(s.segments[seg.BookID], seg)
	}
	return nil
}

func (s *stubStorage) GetSegmentsByBook(ctx context.Context, bookID string) ([]*models.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segments[bookID], nil
}

func (s *stubStorage) DeleteSegmentsByBook(ctx context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.segments, bookID)
	return nil
}

func (s *stubStorage) CountSegmentsByBook(ctx context.Context, bookID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments[bookID]), nil
}

func (s *stubStorage) StoreTimings(ctx context.Context, timings []*models.Timing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, timing := range timings {
		s.timings[timing.BookID] = append(s.timings[timing.BookID], timing)
	}
	return nil
}

func (s *stubStorage) GetTimingsByBook(ctx context.Context, bookID string) ([]*models.Timing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timings[bookID], nil
}

func (s *stubStorage) GetTimingAt(ctx context.Context, bookID string, position float64) (*models.Timing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, timing := range s.timings[bookID] {
		if timing.Contains(position) {
			return timing, nil
		}
	}
	return nil, fmt.Errorf("no timing at %.3f", position)
}

func (s *stubStorage) DeleteTimingsByBook(ctx context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timings, bookID)
	return nil
}

func newTestBookHandler(t *testing.T, storage interfaces.StorageManager) *BookHandler {
	t.Helper()

	config := common.NewDefaultConfig()
	config.Pipeline.UploadDir = t.TempDir()
	config.Pipeline.OutputRoot = t.TempDir()
	return NewBookHandler(storage, nil, config, arbor.NewLogger())
}

func multipartBody(t *testing.T, title string, pdf []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if title != "" {
		require.NoError(t, writer.WriteField("title", title))
	}
	if pdf != nil {
		part, err := writer.CreateFormFile("pdf", "book.pdf")
		require.NoError(t, err)
		_, err = part.Write(pdf)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadHandlerRequiresTitle(t *testing.T) {
	handler := newTestBookHandler(t, newStubStorage())

	body, contentType := multipartBody(t, "", []byte("%PDF-1.4"))
	req := httptest.NewRequest("POST", "/api/books", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.UploadHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandlerRequiresAlphanumericTitle(t *testing.T) {
	handler := newTestBookHandler(t, newStubStorage())

	// A title that slugs to nothing carries no usable identifier
	body, contentType := multipartBody(t, "!!!", []byte("%PDF-1.4"))
	req := httptest.NewRequest("POST", "/api/books", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.UploadHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandlerRequiresFile(t *testing.T) {
	handler := newTestBookHandler(t, newStubStorage())

	body, contentType := multipartBody(t, "My Book", nil)
	req := httptest.NewRequest("POST", "/api/books", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.UploadHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandlerRejectsInvalidPDF(t *testing.T) {
	handler := newTestBookHandler(t, newStubStorage())

	body, contentType := multipartBody(t, "My Book", []byte("this is not a pdf"))
	req := httptest.NewRequest("POST", "/api/books", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.UploadHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBooksHandler(t *testing.T) {
	storage := newStubStorage()
	require.NoError(t, storage.StoreBook(context.Background(), &models.Book{ID: "book_a", Title: "Book A", Status: models.JobStatusCompleted}))
	require.NoError(t, storage.StoreBook(context.Background(), &models.Book{ID: "book_b", Title: "Book B", Status: models.JobStatusProcessing}))
	handler := newTestBookHandler(t, storage)

	req := httptest.NewRequest("GET", "/api/books", nil)
	rec := httptest.NewRecorder()
	handler.ListBooksHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Books []models.Book `json:"books"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, "book_a", payload.Books[0].ID)
}

func TestGetBookHandlerNotFound(t *testing.T) {
	handler := newTestBookHandler(t, newStubStorage())

	req := httptest.NewRequest("GET", "/api/books/missing", nil)
	rec := httptest.NewRecorder()
	handler.GetBookHandler(rec, req, "missing")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSegmentsHandlerWindowing(t *testing.T) {
	storage := newStubStorage()
	var segments []*models.Segment
	for i := 0; i < 5; i++ {
		segments = append(segments, &models.Segment{
			ID:     models.SegmentID("my_book", i),
			BookID: "my_book",
			Index:  i,
			Text:   fmt.Sprintf("segment %d", i),
		})
	}
	require.NoError(t, storage.StoreSegments(context.Background(), segments))
	handler := newTestBookHandler(t, storage)

	req := httptest.NewRequest("GET", "/api/books/my_book/segments?start=1&limit=2", nil)
	rec := httptest.NewRecorder()
	handler.SegmentsHandler(rec, req, "my_book")

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Segments []models.Segment `json:"segments"`
		Count    int              `json:"count"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 5, payload.Total)
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, 1, payload.Segments[0].Index)
	assert.Equal(t, 2, payload.Segments[1].Index)
}

func TestTimingAtHandler(t *testing.T) {
	storage := newStubStorage()
	require.NoError(t, storage.StoreTimings(context.Background(), []*models.Timing{
		{ID: models.TimingID("my_book", 0), BookID: "my_book", Index: 0, StartTime: 0, Duration: 2, EndTime: 2},
		{ID: models.TimingID("my_book", 1), BookID: "my_book", Index: 1, StartTime: 2, Duration: 3, EndTime: 5},
	}))
	handler := newTestBookHandler(t, storage)

	req := httptest.NewRequest("GET", "/api/books/my_book/timings/at?t=3.5", nil)
	rec := httptest.NewRecorder()
	handler.TimingAtHandler(rec, req, "my_book")

	require.Equal(t, http.StatusOK, rec.Code)

	var timing models.Timing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &timing))
	assert.Equal(t, 1, timing.Index)
}

func TestTimingAtHandlerBadPosition(t *testing.T) {
	handler := newTestBookHandler(t, newStubStorage())

	req := httptest.NewRequest("GET", "/api/books/my_book/timings/at?t=abc", nil)
	rec := httptest.NewRecorder()
	handler.TimingAtHandler(rec, req, "my_book")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAudioHandlerMissingArtifact(t *testing.T) {
	handler := newTestBookHandler(t, newStubStorage())

	req := httptest.NewRequest("GET", "/api/books/my_book/audio", nil)
	rec := httptest.NewRecorder()
	handler.AudioHandler(rec, req, "my_book")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
