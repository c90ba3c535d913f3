package acts

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp-run/warp-coder/pkg/codegen"
	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/runner"
	"github.com/warp-run/warp-coder/pkg/warpmetrics"
)

// Release publishes the combined changelog for the deploy batch. It runs
// once, on the trigger run; the dispatcher fans the release outcomes out to
// every batched run.
func Release(ctx context.Context, h *runner.RunHandle, actx *runner.ActContext) *runner.Result {
	var opts models.DeployOpts
	if err := models.DecodeOpts(actx.ActOpts, &opts); err != nil {
		return runner.ErrorResult(err)
	}

	issueIDs := opts.BatchedIssues
	if len(issueIDs) == 0 {
		issueIDs = []string{h.IssueID()}
	}
	changelog := buildChangelog(ctx, actx, opts.Release, issueIDs)

	next, err := models.EncodeOpts(models.DeployOpts{
		Release:       opts.Release,
		BatchedIssues: issueIDs,
	})
	if err != nil {
		return runner.ErrorResult(err)
	}
	return &runner.Result{
		Type: runner.ResultSuccess,
		OutcomeOpts: map[string]any{
			"release":   opts.Release,
			"changelog": changelog,
		},
		NextActOpts: next,
	}
}

// buildChangelog lists every batched issue by title. Titles come from the
// batch runs when the dispatcher loaded them, with a durable lookup as
// fallback.
func buildChangelog(ctx context.Context, actx *runner.ActContext, release string, issueIDs []string) string {
	titles := make(map[string]string, len(issueIDs))
	if actx.DeployBatch != nil {
		for _, run := range actx.DeployBatch.Issues {
			titles[run.IssueID()] = run.Title()
		}
	}

	var sb strings.Builder
	if release != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", release))
	}
	for _, id := range issueIDs {
		title := titles[id]
		if title == "" {
			if runs, err := actx.Caps.Durable.FindRuns(ctx, models.RunLabelIssue,
				warpmetrics.RunFilter{IssueID: id}); err == nil && len(runs) > 0 {
				title = runs[len(runs)-1].Title()
			}
		}
		if title == "" {
			title = "(untitled)"
		}
		sb.WriteString(fmt.Sprintf("- %s (%s)\n", title, id))
	}
	return sb.String()
}

// Reflect folds the finished run into the agent-memory document through the
// serialised reflection queue. Reflection failures never block release
// completion; they are recorded on the outcome and logged.
func Reflect(ctx context.Context, h *runner.RunHandle, actx *runner.ActContext) *runner.Result {
	caps := actx.Caps
	if caps.Memory == nil {
		return &runner.Result{Type: runner.ResultDone}
	}

	summary := fmt.Sprintf("Completed issue %s: %s", h.IssueID(), h.Run.Title())
	err := caps.Memory.Submit(ctx, func(ctx context.Context, current string) (string, error) {
		genRes, err := caps.Codegen.Run(ctx, codegen.Request{
			Prompt:  reflectPrompt(current, summary),
			Timeout: codegen.DefaultReflectTimeout,
		})
		if err != nil {
			return "", err
		}
		return genRes.Result, nil
	})
	if err != nil {
		actx.Logger.Warn("Memory reflection failed", "error", err)
		return &runner.Result{
			Type:        runner.ResultDone,
			OutcomeOpts: map[string]any{models.OptError: err.Error()},
		}
	}
	return &runner.Result{Type: runner.ResultDone}
}

func reflectPrompt(current, summary string) string {
	return fmt.Sprintf(
		"You maintain a running notes document about this project.\n\nCurrent document:\n\n%s\n\nNew event: %s\n\nReturn the updated document, keeping it concise.",
		current, summary)
}
