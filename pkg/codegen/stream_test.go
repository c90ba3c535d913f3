package codegen

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStreamDispatchesPerKind(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"assistant","text":"thinking"}`,
		``,
		`{"type":"tool_use","tool":"edit_file"}`,
		`{"type":"result","result":"done","session_id":"s-1","cost_usd":0.42,"num_turns":7}`,
	}, "\n")

	var kinds []string
	var result Event
	err := DecodeStream(strings.NewReader(input), func(ev Event) error {
		kinds = append(kinds, ev.Type)
		if ev.Type == EventResult {
			result = ev
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{EventAssistant, EventToolUse, EventResult}, kinds)
	assert.Equal(t, "done", result.Result)
	assert.Equal(t, "s-1", result.SessionID)
	assert.Equal(t, 0.42, result.CostUSD)
	assert.Equal(t, 7, result.NumTurns)
}

func TestDecodeStreamMalformedLine(t *testing.T) {
	err := DecodeStream(strings.NewReader("{not json}"), func(Event) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding stream event")
}

// fakeStarter produces a process whose stdout is a fixed script.
type fakeStarter struct {
	script  string
	waitErr error
	block   bool

	killed bool
}

func (f *fakeStarter) Start(ctx context.Context, _ Request) (*Process, error) {
	var stdout io.ReadCloser
	if f.block {
		r, _ := io.Pipe()
		stdout = r
	} else {
		stdout = io.NopCloser(strings.NewReader(f.script))
	}
	return &Process{
		Stdout: stdout,
		Wait:   func() error { return f.waitErr },
		Kill: func() error {
			f.killed = true
			if c, ok := stdout.(*io.PipeReader); ok {
				return c.CloseWithError(errors.New("killed"))
			}
			return nil
		},
	}, nil
}

func TestStreamRunnerReturnsResult(t *testing.T) {
	starter := &fakeStarter{
		script: `{"type":"assistant","text":"working"}` + "\n" +
			`{"type":"result","result":"all done","session_id":"sess","subtype":"","num_turns":3}` + "\n",
	}
	runner := NewStreamRunner(starter)

	res, err := runner.Run(context.Background(), Request{Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, "all done", res.Result)
	assert.Equal(t, "sess", res.SessionID)
	assert.False(t, res.MaxTurnsExhausted())
}

func TestStreamRunnerMaxTurnsSubtype(t *testing.T) {
	starter := &fakeStarter{
		script: `{"type":"result","result":"","session_id":"sess","subtype":"error_max_turns"}` + "\n",
	}
	res, err := NewStreamRunner(starter).Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, res.MaxTurnsExhausted())
}

func TestStreamRunnerNoResultEvent(t *testing.T) {
	starter := &fakeStarter{script: `{"type":"assistant","text":"hm"}` + "\n"}
	_, err := NewStreamRunner(starter).Run(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestStreamRunnerProcessFailureWithoutResult(t *testing.T) {
	starter := &fakeStarter{waitErr: errors.New("exit status 2")}
	_, err := NewStreamRunner(starter).Run(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 2")
}

func TestStreamRunnerTimeoutKillsProcess(t *testing.T) {
	starter := &fakeStarter{block: true}
	_, err := NewStreamRunner(starter).Run(context.Background(),
		Request{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, starter.killed)
}

func TestStubRunnerSequencesResults(t *testing.T) {
	stub := &StubRunner{Results: []*Result{
		{Result: "first", SessionID: "a"},
		{Result: "second", SessionID: "b"},
	}}

	res, err := stub.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "first", res.Result)

	res, err = stub.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", res.Result)

	// The last result repeats.
	res, err = stub.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", res.Result)
}
