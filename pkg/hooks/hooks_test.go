package hooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp-run/warp-coder/pkg/config"
)

type recordingExec struct {
	workdir string
	command string
	err     error
	calls   int
}

func (e *recordingExec) Run(_ context.Context, workdir, command string) error {
	e.calls++
	e.workdir = workdir
	e.command = command
	return e.err
}

func TestRunConfiguredHook(t *testing.T) {
	exec := &recordingExec{}
	r := NewRunner(config.HooksConfig{OnBeforePush: "make lint"}, exec)
	require.NotNil(t, r)

	err := r.Run(context.Background(), OnBeforePush, "/work/issue-42")
	require.NoError(t, err)
	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, "/work/issue-42", exec.workdir)
	assert.Equal(t, "make lint", exec.command)
}

func TestUnconfiguredPointIsNoOp(t *testing.T) {
	exec := &recordingExec{}
	r := NewRunner(config.HooksConfig{OnBeforePush: "make lint"}, exec)

	require.NoError(t, r.Run(context.Background(), OnMerged, "/work"))
	assert.Zero(t, exec.calls)
}

func TestHookFailureWrapsPointName(t *testing.T) {
	exec := &recordingExec{err: errors.New("exit status 1")}
	r := NewRunner(config.HooksConfig{OnBeforeMerge: "make check"}, exec)

	err := r.Run(context.Background(), OnBeforeMerge, "/work")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "onBeforeMerge")
}

func TestHookTimeoutApplied(t *testing.T) {
	var deadline time.Time
	exec := timeoutProbe{deadline: &deadline}
	r := NewRunner(config.HooksConfig{OnMerged: "notify", Timeout: time.Second}, exec)

	require.NoError(t, r.Run(context.Background(), OnMerged, ""))
	assert.False(t, deadline.IsZero())
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 200*time.Millisecond)
}

type timeoutProbe struct {
	deadline *time.Time
}

func (p timeoutProbe) Run(ctx context.Context, _, _ string) error {
	if d, ok := ctx.Deadline(); ok {
		*p.deadline = d
	}
	return nil
}

func TestNilRunnerSkipsEverything(t *testing.T) {
	assert.Nil(t, NewRunner(config.HooksConfig{}, nil))
	var r *Runner
	assert.NoError(t, r.Run(context.Background(), OnMerged, "/work"))
}
