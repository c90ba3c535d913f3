// Package models defines the durable data model shared across the runner:
// runs, phase groups, outcomes, acts, and the board/code-host views the
// supervisor observes each poll cycle.
package models

import "time"

// RunLabelIssue is the label of top-level issue runs. Act-execution runs use
// the act name as their label (e.g. "implement", "revise").
const RunLabelIssue = "Issue"

// Option keys shared across run, outcome, and act option bags.
const (
	OptIssueID       = "issueId"
	OptRepo          = "repo"
	OptTitle         = "title"
	OptSchemaVersion = "schemaVersion"
	OptCost          = "cost"
	OptError         = "error"
	OptPRNumber      = "pr"
)

// Run is the durable record of one issue's journey, or of a single act
// execution (linked to its act via the reserve reference). Created once,
// then mutated only by appending outcomes and groups.
type Run struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Opts     map[string]any `json:"opts,omitempty"`
	Outcomes []*Outcome     `json:"outcomes,omitempty"`
	Groups   []*PhaseGroup  `json:"groups,omitempty"`
}

// PhaseGroup is a named sub-container within a run collecting the outcomes
// and acts of one lifecycle phase (Build, Review, Deploy, Release).
type PhaseGroup struct {
	ID       string         `json:"id"`
	RunID    string         `json:"runId"`
	Label    string         `json:"label"`
	Opts     map[string]any `json:"opts,omitempty"`
	Outcomes []*Outcome     `json:"outcomes,omitempty"`
}

// Outcome is an immutable, timestamped, named event appended to a run or
// phase group. The ordering within one container is append-only and total.
type Outcome struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Timestamp time.Time      `json:"timestamp"`
	Opts      map[string]any `json:"opts,omitempty"`
	Acts      []*Act         `json:"acts,omitempty"`
}

// Act is a request for a future unit of work, attached to an outcome.
// It is pending until an execution run is registered as its follow-up.
type Act struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Opts         map[string]any `json:"opts,omitempty"`
	FollowUpRuns []string       `json:"followUpRuns,omitempty"`
}

// Pending reports whether the act has not been executed yet.
func (a *Act) Pending() bool {
	return a != nil && len(a.FollowUpRuns) == 0
}

// ContainerKind distinguishes the two outcome containers.
type ContainerKind string

// Container kinds.
const (
	ContainerRun   ContainerKind = "run"
	ContainerGroup ContainerKind = "group"
)

// ContainerRef identifies an outcome container (a run or a phase group).
type ContainerRef struct {
	Kind ContainerKind
	ID   string
}

// RunContainer returns a reference to the run-level container.
func (r *Run) RunContainer() ContainerRef {
	return ContainerRef{Kind: ContainerRun, ID: r.ID}
}

// Container returns a reference to the group container.
func (g *PhaseGroup) Container() ContainerRef {
	return ContainerRef{Kind: ContainerGroup, ID: g.ID}
}

// LatestOutcome returns the last appended run-level outcome, or nil.
func (r *Run) LatestOutcome() *Outcome {
	if len(r.Outcomes) == 0 {
		return nil
	}
	return r.Outcomes[len(r.Outcomes)-1]
}

// LatestOutcome returns the last appended group outcome, or nil.
func (g *PhaseGroup) LatestOutcome() *Outcome {
	if len(g.Outcomes) == 0 {
		return nil
	}
	return g.Outcomes[len(g.Outcomes)-1]
}

// Group returns the phase group with the given label, or nil.
func (r *Run) Group(label string) *PhaseGroup {
	for _, g := range r.Groups {
		if g.Label == label {
			return g
		}
	}
	return nil
}

// IssueID returns the issue identifier stored in the run options.
func (r *Run) IssueID() string {
	s, _ := r.Opts[OptIssueID].(string)
	return s
}

// Title returns the issue title stored in the run options.
func (r *Run) Title() string {
	s, _ := r.Opts[OptTitle].(string)
	return s
}

// lastAct returns the last act of an outcome, or nil.
func lastAct(o *Outcome) *Act {
	if o == nil || len(o.Acts) == 0 {
		return nil
	}
	return o.Acts[len(o.Acts)-1]
}

// PendingAct locates the act the run should execute next.
//
// The run's latest outcome is examined first: if its last act has no
// follow-up runs, that act is pending with the run as its container. Failing
// that, groups are examined in reverse creation order and the first group
// whose latest outcome carries a pending last act wins. Returns (nil, zero)
// when no pending act exists.
func (r *Run) PendingAct() (*Act, ContainerRef) {
	if act := lastAct(r.LatestOutcome()); act.Pending() {
		return act, r.RunContainer()
	}
	for i := len(r.Groups) - 1; i >= 0; i-- {
		g := r.Groups[i]
		if act := lastAct(g.LatestOutcome()); act.Pending() {
			return act, g.Container()
		}
	}
	return nil, ContainerRef{}
}
