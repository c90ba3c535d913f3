// Package codegen wraps the external code-generation tool behind a narrow
// runner interface and decodes its JSON-lines event stream.
package codegen

import (
	"context"
	"time"
)

// Result subtypes reported by the code-generation tool.
const (
	// SubtypeMaxTurns signals graceful turn exhaustion; the session can be
	// resumed with a fresh turn budget.
	SubtypeMaxTurns = "error_max_turns"
)

// Default wall-clock timeouts per step kind.
const (
	DefaultImplementTimeout = 60 * time.Minute
	DefaultReflectTimeout   = 1 * time.Minute
)

// Request describes one code-generation invocation.
type Request struct {
	Prompt  string
	Workdir string
	// Resume carries a prior session id to continue that conversation.
	Resume   string
	MaxTurns int
	// Timeout is the hard wall-clock limit; expiry terminates the tool and
	// yields an error.
	Timeout time.Duration
}

// Result is the terminal record of one invocation.
type Result struct {
	Result    string
	SessionID string
	CostUSD   float64
	Subtype   string
	NumTurns  int
}

// MaxTurnsExhausted reports whether the tool stopped on turn exhaustion.
func (r *Result) MaxTurnsExhausted() bool {
	return r.Subtype == SubtypeMaxTurns
}

// Runner invokes the code-generation tool. Implementations must honour
// cancellation by terminating the underlying process.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}
