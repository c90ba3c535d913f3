package models

import "time"

// BoardItem is the externally-observed view of an issue on the board.
// Ephemeral; refreshed once per poll cycle.
type BoardItem struct {
	ID     string
	Column string
	Title  string
	Body   string
}

// IssueComment is a single comment on an issue, newest-last.
type IssueComment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// PRState is the lifecycle state of a pull request on the code host.
type PRState string

// Pull request states.
const (
	PRStateOpen   PRState = "OPEN"
	PRStateMerged PRState = "MERGED"
	PRStateClosed PRState = "CLOSED"
)

// PullRequest is the narrow pull-request view the runner needs.
type PullRequest struct {
	Number int
	Repo   string
	Title  string
	Branch string
	State  PRState
	URL    string
}

// CreatePRRequest carries the fields for opening a pull request.
type CreatePRRequest struct {
	Repo   string
	Branch string
	Base   string
	Title  string
	Body   string
}

// ReviewVerdict is the decision attached to a pull-request review.
type ReviewVerdict string

// Review verdicts.
const (
	ReviewApproved         ReviewVerdict = "APPROVED"
	ReviewChangesRequested ReviewVerdict = "CHANGES_REQUESTED"
	ReviewCommented        ReviewVerdict = "COMMENTED"
)

// Review is a single pull-request review.
type Review struct {
	ID          string
	Author      string
	Verdict     ReviewVerdict
	Body        string
	SubmittedAt time.Time
}
