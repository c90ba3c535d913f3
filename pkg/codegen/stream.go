package codegen

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Event kinds emitted on the tool's JSON-lines stream.
const (
	EventAssistant = "assistant"
	EventToolUse   = "tool_use"
	EventResult    = "result"
)

// Stream errors.
var (
	// ErrNoResult indicates the stream ended without a terminal result event.
	ErrNoResult = errors.New("stream ended without result event")

	// ErrTimeout indicates the invocation exceeded its wall-clock limit.
	ErrTimeout = errors.New("code generation timed out")
)

// maxLineBytes bounds a single stream line; tool output lines can carry
// whole file contents.
const maxLineBytes = 10 * 1024 * 1024

// Event is one decoded stream line.
type Event struct {
	Type      string  `json:"type"`
	Text      string  `json:"text,omitempty"`
	Tool      string  `json:"tool,omitempty"`
	Result    string  `json:"result,omitempty"`
	SessionID string  `json:"session_id,omitempty"`
	CostUSD   float64 `json:"cost_usd,omitempty"`
	Subtype   string  `json:"subtype,omitempty"`
	NumTurns  int     `json:"num_turns,omitempty"`
}

// DecodeStream reads JSON-lines events from r, invoking handle per event.
// Unknown event kinds are skipped; malformed lines abort with an error.
func DecodeStream(r io.Reader, handle func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("decoding stream event: %w", err)
		}
		if err := handle(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

// Process is a started code-generation process: its event stream plus
// lifecycle hooks. The concrete subprocess mechanics live behind
// ProcessStarter so the decoder and timeout handling stay testable.
type Process struct {
	Stdout io.ReadCloser
	Wait   func() error
	Kill   func() error
}

// ProcessStarter launches the code-generation tool for a request.
type ProcessStarter interface {
	Start(ctx context.Context, req Request) (*Process, error)
}

// StreamRunner is a Runner that launches the tool, decodes its event
// stream, and enforces the request timeout with cancellation propagated
// into process termination.
type StreamRunner struct {
	starter ProcessStarter
	logger  *slog.Logger
}

var _ Runner = (*StreamRunner)(nil)

// NewStreamRunner creates a stream-decoding runner over the given starter.
func NewStreamRunner(starter ProcessStarter) *StreamRunner {
	return &StreamRunner{
		starter: starter,
		logger:  slog.Default().With("component", "codegen"),
	}
}

// Run launches the tool and blocks until its result event, the timeout,
// or cancellation, whichever comes first.
func (r *StreamRunner) Run(ctx context.Context, req Request) (*Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	proc, err := r.starter.Start(runCtx, req)
	if err != nil {
		return nil, fmt.Errorf("starting code generation: %w", err)
	}

	// Terminate the process when the deadline or cancellation fires while
	// decoding is still blocked on stdout.
	killed := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			if killErr := proc.Kill(); killErr != nil {
				r.logger.Warn("Failed to kill code-generation process", "error", killErr)
			}
		case <-killed:
		}
	}()
	defer close(killed)

	var result *Result
	decodeErr := DecodeStream(proc.Stdout, func(ev Event) error {
		switch ev.Type {
		case EventAssistant:
			r.logger.Debug("Assistant event", "text_len", len(ev.Text))
		case EventToolUse:
			r.logger.Debug("Tool use", "tool", ev.Tool)
		case EventResult:
			result = &Result{
				Result:    ev.Result,
				SessionID: ev.SessionID,
				CostUSD:   ev.CostUSD,
				Subtype:   ev.Subtype,
				NumTurns:  ev.NumTurns,
			}
		}
		return nil
	})
	_ = proc.Stdout.Close()
	waitErr := proc.Wait()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %v", ErrTimeout, req.Timeout)
	}
	if runCtx.Err() != nil {
		return nil, runCtx.Err()
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	if result == nil {
		if waitErr != nil {
			return nil, fmt.Errorf("code generation failed: %w", waitErr)
		}
		return nil, ErrNoResult
	}
	return result, nil
}
