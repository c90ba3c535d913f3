// Package lifecycle compiles the declarative lifecycle document into the
// validated phase/act graph the runner executes.
package lifecycle

// Column is a board column key. Every outcome name referenced anywhere in
// the graph maps to exactly one column.
type Column string

// Board column vocabulary.
const (
	ColumnTodo           Column = "todo"
	ColumnInProgress     Column = "inProgress"
	ColumnInReview       Column = "inReview"
	ColumnReadyForDeploy Column = "readyForDeploy"
	ColumnDeploy         Column = "deploy"
	ColumnDone           Column = "done"
	ColumnBlocked        Column = "blocked"
	ColumnWaiting        Column = "waiting"
	ColumnAborted        Column = "aborted"
)

// IsValid checks if the column key is part of the fixed vocabulary.
func (c Column) IsValid() bool {
	switch c {
	case ColumnTodo, ColumnInProgress, ColumnInReview, ColumnReadyForDeploy,
		ColumnDeploy, ColumnDone, ColumnBlocked, ColumnWaiting, ColumnAborted:
		return true
	default:
		return false
	}
}

// Columns lists the full column vocabulary in board order.
func Columns() []Column {
	return []Column{
		ColumnTodo, ColumnInProgress, ColumnInReview, ColumnReadyForDeploy,
		ColumnDeploy, ColumnDone, ColumnBlocked, ColumnWaiting, ColumnAborted,
	}
}
