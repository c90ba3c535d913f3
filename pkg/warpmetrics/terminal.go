package warpmetrics

import "github.com/warp-run/warp-coder/pkg/models"

// Terminal outcome names. A run whose latest run-level outcome is in this
// set is closed to further execution.
const (
	OutcomeShipped              = "Shipped"
	OutcomeReleased             = "Released"
	OutcomeMaxRetries           = "MaxRetries"
	OutcomeImplementationFailed = "ImplementationFailed"
	OutcomeRevisionFailed       = "RevisionFailed"
	OutcomeMergeFailed          = "MergeFailed"
	OutcomeFailed               = "Failed"
	OutcomeAborted              = "Aborted"
)

// Externally-originated outcome names, permitted as orphans (no producer in
// the graph).
const (
	OutcomeStarted = "Started"
	OutcomeResumed = "Resumed"
)

var terminalOutcomes = map[string]struct{}{
	OutcomeShipped:              {},
	OutcomeReleased:             {},
	OutcomeMaxRetries:           {},
	OutcomeImplementationFailed: {},
	OutcomeRevisionFailed:       {},
	OutcomeMergeFailed:          {},
	OutcomeFailed:               {},
	OutcomeAborted:              {},
}

// IsTerminalOutcome reports whether the outcome name closes a run.
func IsTerminalOutcome(name string) bool {
	_, ok := terminalOutcomes[name]
	return ok
}

// IsOpen reports whether a run is open: its latest run-level outcome is not
// terminal. A run with no outcomes yet is open.
func IsOpen(run *models.Run) bool {
	latest := run.LatestOutcome()
	if latest == nil {
		return true
	}
	return !IsTerminalOutcome(latest.Name)
}
