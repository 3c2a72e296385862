package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket hub: all jobs' transitions and stage output
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	mux.HandleFunc("/api/books", s.handleBooksRoute)  // GET (list), POST (upload)
	mux.HandleFunc("/api/books/", s.handleBookRoutes) // per-book subresources

	return mux
}

// handleBooksRoute handles the books collection
func (s *Server) handleBooksRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.BookHandler.ListBooksHandler(w, r)
	case "POST":
		s.app.BookHandler.UploadHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleBookRoutes dispatches /api/books/{id} and its subresources:
// status, stream, segments, timings, timings/at, audio
func (s *Server) handleBookRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/books/")
	if rest == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	bookID, sub, _ := strings.Cut(rest, "/")

	switch sub {
	case "":
		switch r.Method {
		case "GET":
			s.app.BookHandler.GetBookHandler(w, r, bookID)
		case "DELETE":
			s.app.BookHandler.DeleteBookHandler(w, r, bookID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "status":
		s.app.StatusHandler.GetStatusHandler(w, r, bookID)
	case "stream":
		s.app.StreamHandler.StreamHandler(w, r, bookID)
	case "segments":
		s.app.BookHandler.SegmentsHandler(w, r, bookID)
	case "timings":
		s.app.BookHandler.TimingsHandler(w, r, bookID)
	case "timings/at":
		s.app.BookHandler.TimingAtHandler(w, r, bookID)
	case "audio":
		s.app.BookHandler.AudioHandler(w, r, bookID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}
