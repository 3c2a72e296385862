// -----------------------------------------------------------------------
// Stage Executor - runs one external stage process under a timeout
// -----------------------------------------------------------------------

package pipeline

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// outputTailLines bounds how much captured stage output is kept for
// error details. Stages can be chatty; only the tail matters for
// diagnosis.
const outputTailLines = 50

// OutputSink receives one line of combined stage output. Delivery is
// fire-and-forget; the executor never blocks on the sink.
type OutputSink func(line string)

// Executor runs a named external stage to completion.
type Executor interface {
	Run(ctx context.Context, stage string, command string, args []string, timeout time.Duration, sink OutputSink) error
}

// StageExecutor executes stages as external processes. It is stateless
// and safe for concurrent use across jobs.
type StageExecutor struct {
	logger arbor.ILogger
}

// NewStageExecutor creates a new StageExecutor
func NewStageExecutor(logger arbor.ILogger) *StageExecutor {
	return &StageExecutor{logger: logger}
}

// Run launches the stage process, streams its combined output to the
// sink, and enforces the timeout. It resolves to nil on a clean exit or
// to one of the typed stage errors.
func (e *StageExecutor) Run(ctx context.Context, stage string, command string, args []string, timeout time.Duration, sink OutputSink) error {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &StageLaunchError{Stage: stage, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &StageLaunchError{Stage: stage, Err: err}
	}

	e.logger.Debug().
		Str("stage", stage).
		Str("command", command).
		Str("timeout", timeout.String()).
		Msg("Launching stage process")

	if err := cmd.Start(); err != nil {
		return &StageLaunchError{Stage: stage, Err: err}
	}

	tail := &tailBuffer{limit: outputTailLines}

	var wg sync.WaitGroup
	wg.Add(2)
	go e.forwardLines(stdout, tail, sink, &wg)
	go e.forwardLines(stderr, tail, sink, &wg)
	wg.Wait()

	waitErr := cmd.Wait()
	if waitErr == nil {
		return nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		e.logger.Warn().Str("stage", stage).Str("timeout", timeout.String()).Msg("Stage timed out")
		return &StageTimeoutError{Stage: stage, Timeout: timeout}
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return &StageExitError{Stage: stage, ExitCode: exitErr.ExitCode(), Output: tail.String()}
	}
	return &StageLaunchError{Stage: stage, Err: waitErr}
}

func (e *StageExecutor) forwardLines(r io.Reader, tail *tailBuffer, sink OutputSink, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail.Append(line)
		if sink != nil {
			sink(line)
		}
	}
}

// tailBuffer keeps the last N lines of output. Both pipe readers write
// to it concurrently.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func (b *tailBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, line)
	if len(b.lines) > b.limit {
		b.lines = b.lines[len(b.lines)-b.limit:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}
