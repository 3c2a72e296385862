package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestStageExecutorSuccess(t *testing.T) {
	executor := NewStageExecutor(arbor.NewLogger())

	var mu sync.Mutex
	var lines []string
	sink := func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	}

	err := executor.Run(context.Background(), "analyze", "sh", []string{"-c", "echo one; echo two"}, 5*time.Second, sink)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, lines, "one")
	assert.Contains(t, lines, "two")
}

func TestStageExecutorNilSink(t *testing.T) {
	executor := NewStageExecutor(arbor.NewLogger())

	err := executor.Run(context.Background(), "analyze", "sh", []string{"-c", "echo ignored"}, 5*time.Second, nil)
	assert.NoError(t, err)
}

func TestStageExecutorExitFailure(t *testing.T) {
	executor := NewStageExecutor(arbor.NewLogger())

	err := executor.Run(context.Background(), "synthesize", "sh", []string{"-c", "echo boom >&2; exit 3"}, 5*time.Second, nil)
	require.Error(t, err)

	var exitErr *StageExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, "synthesize", exitErr.Stage)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Contains(t, exitErr.Output, "boom")
}

func TestStageExecutorTimeout(t *testing.T) {
	executor := NewStageExecutor(arbor.NewLogger())

	start := time.Now()
	err := executor.Run(context.Background(), "analyze", "sleep", []string{"10"}, 200*time.Millisecond, nil)
	elapsed := time.Since(start)
	require.Error(t, err)

	var timeoutErr *StageTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "analyze", timeoutErr.Stage)
	assert.Equal(t, 200*time.Millisecond, timeoutErr.Timeout)
	assert.Contains(t, err.Error(), "analyze")
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, elapsed, 5*time.Second)
}

func TestStageExecutorLaunchFailure(t *testing.T) {
	executor := NewStageExecutor(arbor.NewLogger())

	err := executor.Run(context.Background(), "timings", "/nonexistent/binary", nil, time.Second, nil)
	require.Error(t, err)

	var launchErr *StageLaunchError
	require.True(t, errors.As(err, &launchErr))
	assert.Equal(t, "timings", launchErr.Stage)
}

func TestTailBufferKeepsTail(t *testing.T) {
	buf := &tailBuffer{limit: 3}
	for _, line := range []string{"a", "b", "c", "d", "e"} {
		buf.Append(line)
	}
	assert.Equal(t, "c\nd\ne", buf.String())
}
