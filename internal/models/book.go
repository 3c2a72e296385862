// -----------------------------------------------------------------------
// Book - persisted audiobook records and their derived artifacts
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// Book represents a single audiobook job and its canonical output location.
// The ID is the slug derived from the book title, so resubmitting the same
// title overwrites the prior record.
type Book struct {
	ID        string    `json:"id" badgerhold:"key"`
	Title     string    `json:"title"`
	SourcePDF string    `json:"source_pdf"`
	PageCount int       `json:"page_count,omitempty"`
	OutputDir string    `json:"output_dir,omitempty"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`

	// Aggregates populated after a successful run
	SegmentCount  int     `json:"segment_count,omitempty"`
	TotalDuration float64 `json:"total_duration,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Segment is one narrated span of text extracted from the source PDF.
// Segments are indexed within a book starting at 0.
type Segment struct {
	ID      string `json:"id" badgerhold:"key"`
	BookID  string `json:"book_id" badgerhold:"index"`
	Index   int    `json:"segment_index"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
	Emotion string `json:"emotion,omitempty"`
}

// Timing maps a segment to its span in the continuous audio file.
// Times are seconds from the start of the audio.
type Timing struct {
	ID        string  `json:"id" badgerhold:"key"`
	BookID    string  `json:"book_id" badgerhold:"index"`
	Index     int     `json:"segment_index"`
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
	EndTime   float64 `json:"end_time"`
}

// SegmentID builds the storage key for a segment of a book.
func SegmentID(bookID string, index int) string {
	return fmt.Sprintf("%s:%06d", bookID, index)
}

// TimingID builds the storage key for a timing entry of a book.
func TimingID(bookID string, index int) string {
	return fmt.Sprintf("%s:%06d", bookID, index)
}

// Contains reports whether the timing's span covers the given playback
// position in seconds. The end bound is exclusive so adjacent segments
// do not overlap.
func (t *Timing) Contains(position float64) bool {
	return position >= t.StartTime && position < t.EndTime
}
