// -----------------------------------------------------------------------
// Output Reconciler - locates stage output and normalizes its directory
// name to the canonical job ID
// -----------------------------------------------------------------------

package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
)

// Reconciler finds the artifact directory a stage produced under the
// output root and renames it to the job's canonical identifier. The
// analysis stage picks its own directory name, so the Reconciler
// selects by marker artifact and modification time instead.
type Reconciler struct {
	outputRoot string
	marker     string
	logger     arbor.ILogger
}

// NewReconciler creates a new Reconciler
func NewReconciler(outputRoot, marker string, logger arbor.ILogger) *Reconciler {
	return &Reconciler{
		outputRoot: outputRoot,
		marker:     marker,
		logger:     logger,
	}
}

// FindNewestArtifactDir scans the output root for subdirectories that
// contain the marker artifact and returns the most recently modified
// one. A stage that claimed success but produced nothing findable is a
// pipeline defect, surfaced as NoArtifactError and never retried.
func (r *Reconciler) FindNewestArtifactDir() (string, error) {
	entries, err := os.ReadDir(r.outputRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &NoArtifactError{OutputRoot: r.outputRoot, Marker: r.marker}
		}
		return "", fmt.Errorf("failed to scan output root %s: %w", r.outputRoot, err)
	}

	var newestPath string
	var newestTime time.Time
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.outputRoot, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, r.marker)); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newestPath == "" || info.ModTime().After(newestTime) {
			newestPath = dir
			newestTime = info.ModTime()
		}
	}

	if newestPath == "" {
		return "", &NoArtifactError{OutputRoot: r.outputRoot, Marker: r.marker}
	}

	r.logger.Debug().Str("dir", newestPath).Msg("Reconciled stage output directory")
	return newestPath, nil
}

// FinalizeJobDir renames the working directory to the canonical job ID
// under the output root. Any pre-existing directory at the canonical
// path is removed first so a job ID that previously failed after
// partial output can be re-run. A no-op when the directory already
// carries the canonical name.
func (r *Reconciler) FinalizeJobDir(workDir, jobID string) (string, error) {
	canonical := filepath.Join(r.outputRoot, jobID)
	if workDir == canonical {
		return canonical, nil
	}

	if err := os.RemoveAll(canonical); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", &RenameError{From: workDir, To: canonical, Err: err}
	}
	if err := os.Rename(workDir, canonical); err != nil {
		return "", &RenameError{From: workDir, To: canonical, Err: err}
	}

	r.logger.Debug().Str("from", workDir).Str("to", canonical).Msg("Renamed output directory to canonical job ID")
	return canonical, nil
}
