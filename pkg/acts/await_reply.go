package acts

import (
	"context"
	"strings"
	"time"

	"github.com/warp-run/warp-coder/pkg/lifecycle"
	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/notify"
	"github.com/warp-run/warp-coder/pkg/runner"
)

// AwaitReply completes once the reply gate has observed a new user comment.
// The reply timestamp and session id are threaded back into the resumed
// implement act. An issue moved to the aborted column aborts the run.
func AwaitReply(ctx context.Context, h *runner.RunHandle, actx *runner.ActContext) *runner.Result {
	if h.Item != nil && h.Item.Column == string(lifecycle.ColumnAborted) {
		return &runner.Result{Type: runner.ResultAbort}
	}

	var opts models.ImplementOpts
	if err := models.DecodeOpts(actx.ActOpts, &opts); err != nil {
		return runner.ErrorResult(err)
	}
	askedAt, _ := time.Parse(time.RFC3339, opts.AskedAt)

	comments, err := actx.Caps.Issues.GetIssueComments(ctx, h.IssueID())
	if err != nil {
		return runner.ErrorResult(err)
	}
	var reply string
	for _, c := range comments {
		if strings.Contains(c.Body, "<!-- warp-coder:") {
			continue
		}
		if c.CreatedAt.After(askedAt) {
			reply = c.Body
		}
	}

	next, err := models.EncodeOpts(models.ImplementOpts{
		SessionID: opts.SessionID,
		AskedAt:   opts.AskedAt,
	})
	if err != nil {
		return runner.ErrorResult(err)
	}
	return &runner.Result{
		Type:        runner.ResultReplied,
		OutcomeOpts: map[string]any{"reply": notify.Truncate(reply, 500)},
		NextActOpts: next,
	}
}
