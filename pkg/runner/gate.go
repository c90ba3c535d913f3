package runner

import (
	"context"
	"strings"
	"time"

	"github.com/warp-run/warp-coder/pkg/lifecycle"
	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/notify"
)

// Standard act names with external triggers.
const (
	actAwaitDeploy = "await_deploy"
	actAwaitReply  = "await_reply"
	actReview      = "review"
)

// gateActs marks acts whose board column encodes user intent; the
// reconciler must not overwrite it.
var gateActs = map[string]bool{
	actAwaitDeploy: true,
	actAwaitReply:  true,
}

// DeployGate is satisfied when the user has moved the issue into the
// deploy column.
func DeployGate(_ context.Context, _ *Capabilities, h *RunHandle, _ *models.Act, snap *Snapshot) (bool, error) {
	col, ok := snap.Column(h.IssueID())
	if !ok {
		return false, nil
	}
	return col == lifecycle.ColumnDeploy || col == lifecycle.ColumnAborted, nil
}

// ReplyGate is satisfied when the issue has a user comment newer than the
// recorded question time. Agent-authored comments (marker-carrying) do not
// count.
func ReplyGate(ctx context.Context, caps *Capabilities, h *RunHandle, act *models.Act, snap *Snapshot) (bool, error) {
	if col, ok := snap.Column(h.IssueID()); ok && col == lifecycle.ColumnAborted {
		return true, nil
	}

	var opts models.ImplementOpts
	if err := models.DecodeOpts(act.Opts, &opts); err != nil {
		return false, err
	}
	askedAt, err := time.Parse(time.RFC3339, opts.AskedAt)
	if err != nil {
		// No usable question time: any comment counts.
		askedAt = time.Time{}
	}

	comments, err := caps.Issues.GetIssueComments(ctx, h.IssueID())
	if err != nil {
		return false, err
	}
	for _, c := range comments {
		if isAgentComment(c.Body) {
			continue
		}
		if c.CreatedAt.After(askedAt) {
			return true, nil
		}
	}
	return false, nil
}

// ReviewGate is satisfied when the pull request has a decisive review or
// has left the open state.
func ReviewGate(ctx context.Context, caps *Capabilities, h *RunHandle, act *models.Act, _ *Snapshot) (bool, error) {
	var opts models.ReviseOpts
	if err := models.DecodeOpts(act.Opts, &opts); err != nil {
		return false, err
	}
	if opts.PR == 0 {
		return true, nil
	}
	repo := caps.Config.PrimaryRepo()

	state, err := caps.PRs.GetPRState(ctx, repo, opts.PR)
	if err != nil {
		return false, err
	}
	if state != models.PRStateOpen {
		return true, nil
	}

	reviews, err := caps.PRs.GetReviews(ctx, repo, opts.PR)
	if err != nil {
		return false, err
	}
	for _, rev := range reviews {
		if rev.Verdict == models.ReviewApproved || rev.Verdict == models.ReviewChangesRequested {
			return true, nil
		}
	}
	return false, nil
}

func isAgentComment(body string) bool {
	return strings.Contains(body, notify.QuestionMarker) ||
		strings.Contains(body, notify.ErrorMarker) ||
		strings.Contains(body, notify.MaxRetriesMarker) ||
		strings.Contains(body, notify.ShippedMarker)
}
