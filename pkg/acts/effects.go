package acts

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/notify"
	"github.com/warp-run/warp-coder/pkg/runner"
)

// questionEffect posts the clarification question to the issue.
func questionEffect(ctx context.Context, h *runner.RunHandle, res *runner.Result, actx *runner.ActContext) error {
	question, _ := res.OutcomeOpts["question"].(string)
	actx.Caps.Notifier.Post(ctx, h.IssueID(), notify.BuildQuestion(question))
	return nil
}

// errorEffect posts the blocked-run comment for a failed step.
func errorEffect(step string) runner.Effect {
	return func(ctx context.Context, h *runner.RunHandle, res *runner.Result, actx *runner.ActContext) error {
		msg, _ := res.OutcomeOpts[models.OptError].(string)
		if msg == "" {
			msg = "unknown failure"
		}
		actx.Caps.Notifier.Post(ctx, h.IssueID(), notify.BuildError(step, errors.New(msg)))
		return nil
	}
}

// maxRetriesEffect posts the retry-ceiling comment.
func maxRetriesEffect(ctx context.Context, h *runner.RunHandle, res *runner.Result, actx *runner.ActContext) error {
	actx.Caps.Notifier.Post(ctx, h.IssueID(),
		notify.BuildMaxRetries("revise", actx.Caps.Config.MaxRevisions))
	return nil
}

// shippedEffect posts the completion comment when a run ships without a
// deploy phase.
func shippedEffect(ctx context.Context, h *runner.RunHandle, _ *runner.Result, actx *runner.ActContext) error {
	actx.Caps.Notifier.Post(ctx, h.IssueID(),
		notify.BuildShipped([]string{h.IssueID()}, ""))
	return nil
}

// releasedEffect posts the combined changelog to every batched issue.
func releasedEffect(ctx context.Context, h *runner.RunHandle, res *runner.Result, actx *runner.ActContext) error {
	changelog, _ := res.OutcomeOpts["changelog"].(string)
	issueIDs := []string{h.IssueID()}
	if actx.DeployBatch != nil {
		issueIDs = actx.DeployBatch.IssueIDs
	}
	msg := notify.BuildShipped(issueIDs, changelog)
	var errs []error
	for _, id := range issueIDs {
		actx.Caps.Notifier.Post(ctx, id, msg)
		if err := actx.Caps.Issues.AddLabels(ctx, id, []string{"released"}); err != nil {
			errs = append(errs, fmt.Errorf("labelling %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
