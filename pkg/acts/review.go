package acts

import (
	"context"
	"fmt"

	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/runner"
)

// Review classifies the pull request's review state once the review gate
// has observed a decisive review (or the PR left the open state).
func Review(ctx context.Context, h *runner.RunHandle, actx *runner.ActContext) *runner.Result {
	caps := actx.Caps

	var opts models.ReviseOpts
	if err := models.DecodeOpts(actx.ActOpts, &opts); err != nil {
		return runner.ErrorResult(err)
	}
	if opts.PR == 0 {
		return runner.ErrorResult(fmt.Errorf("review act carries no pull request number"))
	}
	repo := caps.Config.PrimaryRepo()

	state, err := caps.PRs.GetPRState(ctx, repo, opts.PR)
	if err != nil {
		return runner.ErrorResult(fmt.Errorf("fetching PR state: %w", err))
	}
	switch state {
	case models.PRStateMerged:
		// Merged out of band; treat as approval so merge can finish the
		// bookkeeping idempotently.
		return approvedResult(opts)
	case models.PRStateClosed:
		return runner.ErrorResult(fmt.Errorf("pull request #%d closed without merging", opts.PR))
	}

	reviews, err := caps.PRs.GetReviews(ctx, repo, opts.PR)
	if err != nil {
		return runner.ErrorResult(fmt.Errorf("fetching reviews: %w", err))
	}

	var decisive *models.Review
	for i := range reviews {
		switch reviews[i].Verdict {
		case models.ReviewApproved, models.ReviewChangesRequested:
			if decisive == nil || reviews[i].SubmittedAt.After(decisive.SubmittedAt) {
				decisive = &reviews[i]
			}
		}
	}
	if decisive == nil {
		// The gate raced a dismissal; loop back and keep waiting.
		return &runner.Result{Type: runner.ResultDismissed,
			NextActOpts: actx.ActOpts}
	}

	if decisive.Verdict == models.ReviewApproved {
		return approvedResult(opts)
	}

	next, err := models.EncodeOpts(models.ReviseOpts{
		PR:         opts.PR,
		SessionID:  opts.SessionID,
		RetryCount: opts.RetryCount,
	})
	if err != nil {
		return runner.ErrorResult(err)
	}
	return &runner.Result{
		Type: runner.ResultChangesRequested,
		OutcomeOpts: map[string]any{
			models.OptPRNumber: opts.PR,
			"reviewId":         decisive.ID,
		},
		NextActOpts: next,
	}
}

func approvedResult(opts models.ReviseOpts) *runner.Result {
	next, err := models.EncodeOpts(models.MergeOpts{PRs: []int{opts.PR}})
	if err != nil {
		return runner.ErrorResult(err)
	}
	return &runner.Result{
		Type:        runner.ResultApproved,
		OutcomeOpts: map[string]any{models.OptPRNumber: opts.PR},
		NextActOpts: next,
	}
}
