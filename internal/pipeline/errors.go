// -----------------------------------------------------------------------
// Pipeline errors - typed failures for stage execution and reconciliation
// -----------------------------------------------------------------------

package pipeline

import (
	"fmt"
	"time"
)

// StageLaunchError indicates the external stage process could not be
// started at all (missing interpreter, permission error). No output
// was produced.
type StageLaunchError struct {
	Stage string
	Err   error
}

func (e *StageLaunchError) Error() string {
	return fmt.Sprintf("stage %s could not be launched: %v", e.Stage, e.Err)
}

func (e *StageLaunchError) Unwrap() error { return e.Err }

// StageTimeoutError indicates the stage exceeded its configured limit
// and was forcibly terminated.
type StageTimeoutError struct {
	Stage   string
	Timeout time.Duration
}

func (e *StageTimeoutError) Error() string {
	return fmt.Sprintf("stage %s timed out after %s", e.Stage, e.Timeout)
}

// StageExitError indicates the stage ran and exited with a non-zero
// status. Output holds the tail of the combined stdout/stderr stream
// for diagnosis.
type StageExitError struct {
	Stage    string
	ExitCode int
	Output   string
}

func (e *StageExitError) Error() string {
	return fmt.Sprintf("stage %s exited with code %d: %s", e.Stage, e.ExitCode, e.Output)
}

// NoArtifactError indicates a stage claimed success but reconciliation
// could not locate the expected output under the output root.
type NoArtifactError struct {
	OutputRoot string
	Marker     string
}

func (e *NoArtifactError) Error() string {
	return fmt.Sprintf("no directory under %s contains the expected artifact %s", e.OutputRoot, e.Marker)
}

// RenameError indicates the final directory normalization to the
// canonical job ID failed. Artifacts may exist under the wrong path.
type RenameError struct {
	From string
	To   string
	Err  error
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("failed to rename output directory %s to %s: %v", e.From, e.To, e.Err)
}

func (e *RenameError) Unwrap() error { return e.Err }
