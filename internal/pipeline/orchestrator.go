// -----------------------------------------------------------------------
// Pipeline Orchestrator - sequences the four audiobook stages for one
// job and fans out every state transition
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/audiforge/audiforge/internal/common"
	"github.com/audiforge/audiforge/internal/interfaces"
	"github.com/audiforge/audiforge/internal/models"
)

// Stage names as configured under [pipeline.stages].
const (
	StageAnalyze    = "analyze"
	StageSegments   = "segments"
	StageSynthesize = "synthesize"
	StageTimings    = "timings"
)

// Artifact file names produced by the external stages.
const (
	SegmentsArtifact = "segments.json"
	AudioArtifact    = "book_continuous.wav"
	TimingsArtifact  = "segment_timings.json"
)

// ProgressFunc receives raw stage output lines for live forwarding.
type ProgressFunc func(jobID, line string)

// Orchestrator drives one job through the four pipeline stages in
// order, publishing every transition to the status store and
// broadcaster. Stage n+1 never starts before stage n succeeds. The
// uploaded input artifact is deleted on the way out, success or
// failure.
type Orchestrator struct {
	config      *common.Config
	executor    Executor
	reconciler  *Reconciler
	status      *StatusStore
	broadcaster *Broadcaster
	storage     interfaces.StorageManager
	progress    ProgressFunc
	logger      arbor.ILogger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	config *common.Config,
	executor Executor,
	reconciler *Reconciler,
	status *StatusStore,
	broadcaster *Broadcaster,
	storage interfaces.StorageManager,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		config:      config,
		executor:    executor,
		reconciler:  reconciler,
		status:      status,
		broadcaster: broadcaster,
		storage:     storage,
		logger:      logger,
	}
}

// SetProgressFunc installs a sink for raw stage output lines.
func (o *Orchestrator) SetProgressFunc(fn ProgressFunc) {
	o.progress = fn
}

// Status returns the status store.
func (o *Orchestrator) Status() *StatusStore {
	return o.status
}

// Broadcaster returns the status broadcaster.
func (o *Orchestrator) Broadcaster() *Broadcaster {
	return o.broadcaster
}

// Submit derives the job ID, starts orchestration in the background,
// and returns immediately. The caller is responsible for not
// submitting a title whose derived ID is already in flight.
func (o *Orchestrator) Submit(ctx context.Context, inputPath, title string) string {
	jobID := common.BookID(title)

	common.SafeGo(o.logger, "pipeline-"+jobID, func() {
		// The error is already recorded as a Failed status; there is no
		// synchronous caller to return it to.
		_ = o.Process(ctx, inputPath, title)
	})

	return jobID
}

// Process runs the full pipeline synchronously. Every failure results
// in exactly one Failed publication; cleanup of the input artifact
// always happens.
func (o *Orchestrator) Process(ctx context.Context, inputPath, title string) error {
	jobID := common.BookID(title)

	o.logger.Info().
		Str("job_id", jobID).
		Str("title", title).
		Str("input", inputPath).
		Msg("Starting audiobook pipeline")

	defer o.cleanupInput(jobID, inputPath)

	// The upload boundary may have stored the record already; keep its
	// fields (page count, creation time) and only advance the status.
	book, getErr := o.storage.Books().GetBook(ctx, jobID)
	if getErr != nil {
		book = &models.Book{ID: jobID, Title: title}
	}
	book.SourcePDF = inputPath
	book.Status = models.JobStatusProcessing
	book.Error = ""
	o.recordBook(ctx, book)

	workDir, err := o.runStages(ctx, jobID, inputPath)
	if err != nil {
		o.fail(ctx, jobID, err)
		return err
	}

	book.OutputDir = workDir
	book.Status = models.JobStatusCompleted
	if err := o.importArtifacts(ctx, book, workDir); err != nil {
		// The pipeline itself succeeded; a failed index import only
		// degrades the query API, not the artifacts on disk.
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to import artifacts into storage")
	}
	o.recordBook(ctx, book)

	o.publish(jobID, models.JobStatusCompleted, "Complete!", "")
	o.logger.Info().Str("job_id", jobID).Str("output", workDir).Msg("Pipeline completed")
	return nil
}

// runStages executes the four stages in order and returns the canonical
// output directory.
func (o *Orchestrator) runStages(ctx context.Context, jobID, inputPath string) (string, error) {
	o.publish(jobID, models.JobStatusProcessing, "Step 1 of 4: Analyzing text...", "")
	if err := o.runStage(ctx, jobID, StageAnalyze, map[string]string{
		"{input}":       inputPath,
		"{output_root}": o.config.Pipeline.OutputRoot,
		"{book_id}":     jobID,
	}); err != nil {
		return "", err
	}

	workDir, err := o.reconciler.FindNewestArtifactDir()
	if err != nil {
		return "", err
	}

	vars := map[string]string{
		"{input}":       inputPath,
		"{output_root}": o.config.Pipeline.OutputRoot,
		"{book_id}":     jobID,
		"{workdir}":     workDir,
		"{segments}":    filepath.Join(workDir, SegmentsArtifact),
		"{timings}":     filepath.Join(workDir, TimingsArtifact),
	}

	o.publish(jobID, models.JobStatusProcessing, "Step 2 of 4: Storing segments...", "")
	if err := o.runStage(ctx, jobID, StageSegments, vars); err != nil {
		return "", err
	}

	o.publish(jobID, models.JobStatusProcessing, "Step 3 of 4: Generating audio...", "")
	if err := o.runStage(ctx, jobID, StageSynthesize, vars); err != nil {
		return "", err
	}

	o.publish(jobID, models.JobStatusProcessing, "Step 4 of 4: Creating timing data...", "")
	if err := o.runStage(ctx, jobID, StageTimings, vars); err != nil {
		return "", err
	}

	return o.reconciler.FinalizeJobDir(workDir, jobID)
}

func (o *Orchestrator) runStage(ctx context.Context, jobID, stage string, vars map[string]string) error {
	stageConfig, ok := o.config.Pipeline.Stages[stage]
	if !ok {
		return &StageLaunchError{Stage: stage, Err: fmt.Errorf("stage not configured")}
	}

	args := expandArgs(stageConfig.Args, vars)

	var sink OutputSink
	if o.progress != nil {
		sink = func(line string) { o.progress(jobID, line) }
	}

	return o.executor.Run(ctx, stage, stageConfig.Command, args, stageConfig.TimeoutDuration(), sink)
}

// publish records the transition in the status store and fans it out to
// subscribers. Store write happens first so point-in-time reads never
// lag behind pushed records.
func (o *Orchestrator) publish(jobID string, status models.JobStatus, message, errDetail string) {
	record := o.status.Set(jobID, status, message, errDetail)
	o.broadcaster.Publish(record)
}

func (o *Orchestrator) fail(ctx context.Context, jobID string, err error) {
	o.logger.Error().Err(err).Str("job_id", jobID).Msg("Pipeline failed")
	o.publish(jobID, models.JobStatusFailed, "Processing failed", err.Error())

	if book, getErr := o.storage.Books().GetBook(ctx, jobID); getErr == nil {
		book.Status = models.JobStatusFailed
		book.Error = err.Error()
		o.recordBook(ctx, book)
	}
}

func (o *Orchestrator) recordBook(ctx context.Context, book *models.Book) {
	if err := o.storage.Books().StoreBook(ctx, book); err != nil {
		o.logger.Warn().Err(err).Str("book_id", book.ID).Msg("Failed to persist book record")
	}
}

// cleanupInput deletes the uploaded source document. Deletion failure
// is logged only; it never overrides the job's terminal status.
func (o *Orchestrator) cleanupInput(jobID, inputPath string) {
	if inputPath == "" {
		return
	}
	if err := os.Remove(inputPath); err != nil && !os.IsNotExist(err) {
		o.logger.Warn().Err(err).Str("job_id", jobID).Str("input", inputPath).Msg("Failed to delete input artifact")
	}
}

// importArtifacts parses the segment and timing artifacts from the
// canonical output directory into the storage layer so they can be
// queried without touching the filesystem.
func (o *Orchestrator) importArtifacts(ctx context.Context, book *models.Book, workDir string) error {
	segments, err := readSegmentsArtifact(filepath.Join(workDir, SegmentsArtifact), book.ID)
	if err != nil {
		return err
	}
	if err := o.storage.Segments().DeleteSegmentsByBook(ctx, book.ID); err != nil {
		return err
	}
	if err := o.storage.Segments().StoreSegments(ctx, segments); err != nil {
		return err
	}

	timings, totalDuration, err := readTimingsArtifact(filepath.Join(workDir, TimingsArtifact), book.ID)
	if err != nil {
		return err
	}
	if err := o.storage.Timings().DeleteTimingsByBook(ctx, book.ID); err != nil {
		return err
	}
	if err := o.storage.Timings().StoreTimings(ctx, timings); err != nil {
		return err
	}

	book.SegmentCount = len(segments)
	book.TotalDuration = totalDuration
	return nil
}

// segmentArtifact mirrors one entry of segments.json as written by the
// analysis stage.
type segmentArtifact struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	Emotion string `json:"emotion"`
}

func readSegmentsArtifact(path, bookID string) ([]*models.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read segments artifact: %w", err)
	}

	var entries []segmentArtifact
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse segments artifact: %w", err)
	}

	segments := make([]*models.Segment, 0, len(entries))
	for i, entry := range entries {
		segments = append(segments, &models.Segment{
			ID:      models.SegmentID(bookID, i),
			BookID:  bookID,
			Index:   i,
			Speaker: entry.Speaker,
			Text:    entry.Text,
			VoiceID: entry.VoiceID,
			Emotion: entry.Emotion,
		})
	}
	return segments, nil
}

// timingsArtifact mirrors segment_timings.json as written by the
// synthesis stage.
type timingsArtifact struct {
	TotalDuration float64 `json:"total_duration"`
	TotalSegments int     `json:"total_segments"`
	Segments      []struct {
		SegmentIndex int     `json:"segment_index"`
		Speaker      string  `json:"speaker"`
		Text         string  `json:"text"`
		StartTime    float64 `json:"start_time"`
		Duration     float64 `json:"duration"`
		EndTime      float64 `json:"end_time"`
	} `json:"segments"`
}

func readTimingsArtifact(path, bookID string) ([]*models.Timing, float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read timings artifact: %w", err)
	}

	var artifact timingsArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, 0, fmt.Errorf("failed to parse timings artifact: %w", err)
	}

	timings := make([]*models.Timing, 0, len(artifact.Segments))
	for _, entry := range artifact.Segments {
		timings = append(timings, &models.Timing{
			ID:        models.TimingID(bookID, entry.SegmentIndex),
			BookID:    bookID,
			Index:     entry.SegmentIndex,
			Speaker:   entry.Speaker,
			Text:      entry.Text,
			StartTime: entry.StartTime,
			Duration:  entry.Duration,
			EndTime:   entry.EndTime,
		})
	}
	return timings, artifact.TotalDuration, nil
}

func expandArgs(args []string, vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for placeholder, value := range vars {
		pairs = append(pairs, placeholder, value)
	}
	replacer := strings.NewReplacer(pairs...)

	expanded := make([]string, len(args))
	for i, arg := range args {
		expanded[i] = replacer.Replace(arg)
	}
	return expanded
}
