package codegen

import "context"

// StubRunner returns canned results without launching anything. Used when
// no code-generation tool is wired and by tests.
type StubRunner struct {
	// Results are returned in order; the last one repeats.
	Results []*Result
	// Err, when set, is returned instead of a result.
	Err error

	calls int
}

var _ Runner = (*StubRunner)(nil)

// Run returns the next canned result.
func (s *StubRunner) Run(ctx context.Context, _ Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Results) == 0 {
		return &Result{Result: "ok", SessionID: "stub-session"}, nil
	}
	idx := s.calls
	if idx >= len(s.Results) {
		idx = len(s.Results) - 1
	}
	s.calls++
	return s.Results[idx], nil
}
