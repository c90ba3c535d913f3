// Package warpmetrics is the client for the durable run-state service: an
// append-only log of runs, phase groups, outcomes, and acts. The runner
// records every state transition through it and reconstructs open
// trajectories from it after a restart.
package warpmetrics

import (
	"context"
	"errors"

	"github.com/warp-run/warp-coder/pkg/models"
)

// Client errors.
var (
	// ErrRunNotFound indicates the referenced run does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrContainerNotFound indicates the outcome container does not exist.
	ErrContainerNotFound = errors.New("outcome container not found")

	// ErrActNotFound indicates the referenced act does not exist.
	ErrActNotFound = errors.New("act not found")
)

// RunFilter scopes FindRuns queries.
type RunFilter struct {
	// IssueID restricts to runs whose options carry the issue id.
	IssueID string
	// PR restricts to runs whose options carry the pull request number.
	PR int
	// Since restricts to runs created at or after the timestamp (RFC 3339).
	Since string
}

// Client is the contract with the durable run-state service. Writes to one
// container are ordered: outcome N is durable before outcome N+1 is
// submitted. Appends are at-least-once; readers treat the latest outcome by
// timestamp then append order as authoritative.
type Client interface {
	// ReserveAct allocates an act id without publishing the act, so the id
	// can be embedded in artifacts (PR descriptions) before it is recorded.
	ReserveAct(ctx context.Context, name string) (string, error)

	// StartRun appends a new run. A non-empty refActID registers the run as
	// a follow-up of that act, linking trajectories.
	StartRun(ctx context.Context, refActID, label string, opts map[string]any) (string, error)

	// CreateGroup appends a phase group to a run.
	CreateGroup(ctx context.Context, runID, label string, opts map[string]any) (string, error)

	// RecordOutcome appends an outcome to a run or group container.
	RecordOutcome(ctx context.Context, container models.ContainerRef, name string, opts map[string]any) (string, error)

	// RecordAct appends an act under an outcome. A non-empty reservedID
	// publishes a previously reserved act instead of allocating a new id.
	RecordAct(ctx context.Context, outcomeID, reservedID, name string, opts map[string]any) (string, error)

	// FindOpenIssueRuns returns all non-terminal issue runs with groups,
	// outcomes, and acts fully expanded.
	FindOpenIssueRuns(ctx context.Context) ([]*models.Run, error)

	// FindRuns returns runs with the given label matching the filter, e.g.
	// counting revise runs for a PR since a timestamp.
	FindRuns(ctx context.Context, label string, filter RunFilter) ([]*models.Run, error)
}
