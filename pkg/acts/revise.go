package acts

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp-run/warp-coder/pkg/codegen"
	"github.com/warp-run/warp-coder/pkg/hooks"
	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/notify"
	"github.com/warp-run/warp-coder/pkg/runner"
	"github.com/warp-run/warp-coder/pkg/warpmetrics"
)

// groupReview is the phase group whose creation time bounds the revision
// count window.
const groupReview = "Review"

// Revise re-invokes the code-generation tool on review feedback. Prior
// revise executions for the same PR within the current review phase count
// against the maxRevisions ceiling.
func Revise(ctx context.Context, h *runner.RunHandle, actx *runner.ActContext) *runner.Result {
	caps := actx.Caps
	cfg := caps.Config
	issueID := h.IssueID()

	var opts models.ReviseOpts
	if err := models.DecodeOpts(actx.ActOpts, &opts); err != nil {
		return runner.ErrorResult(err)
	}
	repo := cfg.PrimaryRepo()

	prior, err := caps.Durable.FindRuns(ctx, actx.ActName, warpmetrics.RunFilter{
		PR:    opts.PR,
		Since: reviewWindowStart(h.Run),
	})
	if err != nil {
		return runner.ErrorResult(fmt.Errorf("counting prior revisions: %w", err))
	}
	if len(prior) >= cfg.MaxRevisions {
		return &runner.Result{
			Type: runner.ResultMaxRetries,
			OutcomeOpts: map[string]any{
				models.OptPRNumber: opts.PR,
				"limit":            cfg.MaxRevisions,
			},
		}
	}

	feedback, reviewID, err := latestFeedback(ctx, caps, repo, opts.PR)
	if err != nil {
		return runner.ErrorResult(err)
	}

	workdir, err := Workdir(issueID)
	if err != nil {
		return runner.ErrorResult(err)
	}
	genRes, err := caps.Codegen.Run(ctx, codegen.Request{
		Prompt:  revisePrompt(feedback),
		Workdir: workdir,
		Resume:  opts.SessionID,
		Timeout: codegen.DefaultImplementTimeout,
	})
	if err != nil {
		return runner.ErrorResult(fmt.Errorf("code generation: %w", err))
	}
	if genRes.MaxTurnsExhausted() {
		return runner.ErrorResult(fmt.Errorf("turn budget exhausted while revising"))
	}

	if err := caps.Hooks.Run(ctx, hooks.OnBeforePush, workdir); err != nil {
		return runner.ErrorResult(err)
	}

	// The handled review is dismissed so the review gate waits for a fresh
	// verdict instead of re-reading the one just addressed.
	if reviewID != "" {
		if err := caps.PRs.DismissReview(ctx, repo, opts.PR, reviewID); err != nil {
			actx.Logger.Warn("Failed to dismiss handled review", "review_id", reviewID, "error", err)
		}
	}

	reviewActID, err := caps.Durable.ReserveAct(ctx, actReview)
	if err != nil {
		return runner.ErrorResult(fmt.Errorf("reserving review act: %w", err))
	}
	if err := caps.PRs.UpdatePRBody(ctx, repo, opts.PR, prBody(reviewActID, genRes.Result)); err != nil {
		actx.Logger.Warn("Failed to update PR body", "error", err)
	}

	next, err := models.EncodeOpts(models.ReviseOpts{
		PR:        opts.PR,
		SessionID: genRes.SessionID,
	})
	if err != nil {
		return runner.ErrorResult(err)
	}
	return &runner.Result{
		Type: runner.ResultSuccess,
		OutcomeOpts: map[string]any{
			models.OptPRNumber: opts.PR,
			models.OptCost:     genRes.CostUSD,
		},
		NextActOpts: next,
		NextActID:   reviewActID,
	}
}

// reviewWindowStart returns the Review group's creation time, or empty when
// the phase has not been entered yet (count everything).
func reviewWindowStart(run *models.Run) string {
	g := run.Group(groupReview)
	if g == nil {
		return ""
	}
	since, _ := g.Opts["createdAt"].(string)
	return since
}

// latestFeedback collects the newest changes-requested review.
func latestFeedback(ctx context.Context, caps *runner.Capabilities, repo string, pr int) (string, string, error) {
	reviews, err := caps.PRs.GetReviews(ctx, repo, pr)
	if err != nil {
		return "", "", fmt.Errorf("fetching reviews: %w", err)
	}
	var latest *models.Review
	for i := range reviews {
		if reviews[i].Verdict != models.ReviewChangesRequested {
			continue
		}
		if latest == nil || reviews[i].SubmittedAt.After(latest.SubmittedAt) {
			latest = &reviews[i]
		}
	}
	if latest == nil {
		return "", "", fmt.Errorf("no changes-requested review found on PR #%d", pr)
	}
	return latest.Body, latest.ID, nil
}

func revisePrompt(feedback string) string {
	var sb strings.Builder
	sb.WriteString("A reviewer requested changes on your pull request:\n\n")
	sb.WriteString(notify.Truncate(feedback, 4000))
	sb.WriteString("\n\nAddress the feedback and update the branch.")
	return sb.String()
}
