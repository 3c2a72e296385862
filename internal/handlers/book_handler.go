// -----------------------------------------------------------------------
// Book Handler - upload, query, and delete audiobook records
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/ternarybob/arbor"

	"github.com/audiforge/audiforge/internal/common"
	"github.com/audiforge/audiforge/internal/interfaces"
	"github.com/audiforge/audiforge/internal/models"
	"github.com/audiforge/audiforge/internal/pipeline"
)

// maxUploadBytes caps multipart memory; larger files spill to disk.
const maxUploadBytes = 64 << 20

type BookHandler struct {
	storage      interfaces.StorageManager
	orchestrator *pipeline.Orchestrator
	config       *common.Config
	logger       arbor.ILogger
}

func NewBookHandler(storage interfaces.StorageManager, orchestrator *pipeline.Orchestrator, config *common.Config, logger arbor.ILogger) *BookHandler {
	return &BookHandler{
		storage:      storage,
		orchestrator: orchestrator,
		config:       config,
		logger:       logger,
	}
}

// UploadHandler accepts a multipart PDF upload and starts the pipeline.
// Responds 202 with the derived book ID immediately; the caller follows
// progress via the status or stream endpoints.
func (h *BookHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	title := r.FormValue("title")
	bookID := common.BookID(title)
	if bookID == "" {
		WriteError(w, http.StatusBadRequest, "A title with at least one alphanumeric character is required")
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing 'pdf' file field")
		return
	}
	defer file.Close()

	uploadPath, err := h.saveUpload(file)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to save upload")
		WriteError(w, http.StatusInternalServerError, "Failed to save upload")
		return
	}

	pageCount, err := validatePDF(uploadPath)
	if err != nil {
		os.Remove(uploadPath)
		h.logger.Warn().Err(err).Str("filename", header.Filename).Msg("Rejected invalid PDF upload")
		WriteError(w, http.StatusBadRequest, "Uploaded file is not a valid PDF")
		return
	}

	book := &models.Book{
		ID:        bookID,
		Title:     title,
		SourcePDF: uploadPath,
		PageCount: pageCount,
		Status:    models.JobStatusProcessing,
	}
	if err := h.storage.Books().StoreBook(r.Context(), book); err != nil {
		h.logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to persist book record")
	}

	// The request context dies with this response; the pipeline runs on
	// its own lifetime.
	h.orchestrator.Submit(context.Background(), uploadPath, title)

	h.logger.Info().
		Str("book_id", bookID).
		Str("filename", header.Filename).
		Int("pages", pageCount).
		Msg("Accepted audiobook job")

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"book_id":    bookID,
		"status_url": fmt.Sprintf("/api/books/%s/status", bookID),
		"stream_url": fmt.Sprintf("/api/books/%s/stream", bookID),
	})
}

func (h *BookHandler) saveUpload(file io.Reader) (string, error) {
	dir := h.config.Pipeline.UploadDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(dir, uuid.New().String()+".pdf")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	return path, nil
}

// validatePDF parses the uploaded file and returns its page count.
func validatePDF(path string) (int, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, err
	}
	return pdfCtx.PageCount, nil
}

// ListBooksHandler returns all book records
func (h *BookHandler) ListBooksHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	books, err := h.storage.Books().GetAllBooks(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"books": books,
		"count": len(books),
	})
}

// GetBookHandler returns one book record by ID
func (h *BookHandler) GetBookHandler(w http.ResponseWriter, r *http.Request, bookID string) {
	book, err := h.storage.Books().GetBook(r.Context(), bookID)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Book not found: %s", bookID))
		return
	}

	WriteJSON(w, http.StatusOK, book)
}

// DeleteBookHandler removes the book record, its derived records, and
// the working directory.
func (h *BookHandler) DeleteBookHandler(w http.ResponseWriter, r *http.Request, bookID string) {
	ctx := r.Context()

	if err := h.storage.Segments().DeleteSegmentsByBook(ctx, bookID); err != nil {
		h.logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to delete segments")
	}
	if err := h.storage.Timings().DeleteTimingsByBook(ctx, bookID); err != nil {
		h.logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to delete timings")
	}
	if err := h.storage.Books().DeleteBook(ctx, bookID); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	workDir := filepath.Join(h.config.Pipeline.OutputRoot, bookID)
	if err := os.RemoveAll(workDir); err != nil {
		h.logger.Warn().Err(err).Str("dir", workDir).Msg("Failed to remove working directory")
	}

	h.logger.Info().Str("book_id", bookID).Msg("Deleted book")
	WriteSuccess(w, fmt.Sprintf("Deleted book %s", bookID))
}

// SegmentsHandler returns the book's text segments, optionally windowed
// by start/limit query parameters.
func (h *BookHandler) SegmentsHandler(w http.ResponseWriter, r *http.Request, bookID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	segments, err := h.storage.Segments().GetSegmentsByBook(r.Context(), bookID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	total := len(segments)
	start, limit := GetRangeParams(r)
	if start > total {
		start = total
	}
	segments = segments[start:]
	if limit > 0 && limit < len(segments) {
		segments = segments[:limit]
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"book_id":  bookID,
		"segments": segments,
		"count":    len(segments),
		"total":    total,
	})
}

// TimingsHandler returns the book's full timing index
func (h *BookHandler) TimingsHandler(w http.ResponseWriter, r *http.Request, bookID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	timings, err := h.storage.Timings().GetTimingsByBook(r.Context(), bookID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var totalDuration float64
	if book, err := h.storage.Books().GetBook(r.Context(), bookID); err == nil {
		totalDuration = book.TotalDuration
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"book_id":        bookID,
		"total_duration": totalDuration,
		"total_segments": len(timings),
		"segments":       timings,
	})
}

// TimingAtHandler returns the segment playing at a given position, e.g.
// GET /api/books/{id}/timings/at?t=12.5
func (h *BookHandler) TimingAtHandler(w http.ResponseWriter, r *http.Request, bookID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	position, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	if err != nil || position < 0 {
		WriteError(w, http.StatusBadRequest, "Query parameter 't' must be a non-negative number of seconds")
		return
	}

	timing, err := h.storage.Timings().GetTimingAt(r.Context(), bookID, position)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("No segment covers position %.3f", position))
		return
	}

	WriteJSON(w, http.StatusOK, timing)
}

// AudioHandler serves the continuous audio artifact with range support
func (h *BookHandler) AudioHandler(w http.ResponseWriter, r *http.Request, bookID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	path := filepath.Join(h.config.Pipeline.OutputRoot, bookID, pipeline.AudioArtifact)
	if _, err := os.Stat(path); err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("No audio available for book %s", bookID))
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}
