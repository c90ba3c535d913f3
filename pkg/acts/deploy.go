package acts

import (
	"context"
	"fmt"
	"time"

	"github.com/warp-run/warp-coder/pkg/config"
	"github.com/warp-run/warp-coder/pkg/deploy"
	"github.com/warp-run/warp-coder/pkg/lifecycle"
	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/runner"
)

// Act names whose pending presence marks a run as awaiting deploy.
var awaitingDeployActs = map[string]bool{
	"await_deploy": true,
	"run_deploy":   true,
}

// AwaitDeploy completes once the deploy gate has observed the issue in the
// deploy column, forwarding the deploy options unchanged.
func AwaitDeploy(_ context.Context, h *runner.RunHandle, actx *runner.ActContext) *runner.Result {
	if h.Item != nil && h.Item.Column == string(lifecycle.ColumnAborted) {
		return &runner.Result{Type: runner.ResultAbort}
	}
	return &runner.Result{
		Type:        runner.ResultReady,
		NextActOpts: actx.ActOpts,
	}
}

// RunDeploy assembles the transitive deploy batch over every run awaiting
// deploy, merges their per-issue plans, and executes the levels. The
// dispatcher fans the resulting outcomes out across the whole batch.
func RunDeploy(ctx context.Context, h *runner.RunHandle, actx *runner.ActContext) *runner.Result {
	caps := actx.Caps
	cfg := caps.Config
	issueID := h.IssueID()

	var opts models.DeployOpts
	if err := models.DecodeOpts(actx.ActOpts, &opts); err != nil {
		return runner.ErrorResult(err)
	}

	trigger := deploy.Candidate{
		IssueID: issueID,
		Run:     h.Run,
		Repos:   candidateRepos(opts.Repos, h.Run, cfg),
	}
	awaiting, err := awaitingCandidates(ctx, caps, issueID)
	if err != nil {
		return runner.ErrorResult(err)
	}

	batch := deploy.BuildBatch(trigger, awaiting)

	byIssue := map[string][]string{trigger.IssueID: trigger.Repos}
	for _, cand := range awaiting {
		byIssue[cand.IssueID] = cand.Repos
	}
	var plans []deploy.IssuePlan
	for _, id := range batch.IssueIDs {
		plans = append(plans, deploy.IssuePlan{
			IssueID: id,
			Steps:   cfg.DeployPlanFor(byIssue[id]),
		})
	}

	merged, err := deploy.Merge(plans)
	if err != nil {
		return runner.ErrorResult(err)
	}

	execResult, err := deploy.NewExecutor(caps.Deploy).Execute(ctx, merged)
	if err != nil {
		return runner.ErrorResult(fmt.Errorf(
			"deploy failed (completed: %v): %w", execResult.Completed, err))
	}

	next, err := models.EncodeOpts(models.DeployOpts{
		PRs:           opts.PRs,
		Release:       releaseName(),
		BatchedIssues: batch.IssueIDs,
		Plan:          planSteps(merged),
	})
	if err != nil {
		return runner.ErrorResult(err)
	}
	return &runner.Result{
		Type: runner.ResultSuccess,
		OutcomeOpts: map[string]any{
			"deployedRepos": merged.Order,
			"batchedIssues": batch.IssueIDs,
		},
		NextActOpts: next,
		Batch:       batch,
	}
}

// awaitingCandidates lists every other open run whose pending act is a
// deploy-waiting act, annotated with its target repos.
func awaitingCandidates(ctx context.Context, caps *runner.Capabilities, triggerIssueID string) ([]deploy.Candidate, error) {
	open, err := caps.Durable.FindOpenIssueRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding awaiting runs: %w", err)
	}
	var out []deploy.Candidate
	for _, run := range open {
		if run.IssueID() == triggerIssueID {
			continue
		}
		act, _ := run.PendingAct()
		if act == nil || !awaitingDeployActs[act.Name] {
			continue
		}
		var actOpts models.DeployOpts
		if err := models.DecodeOpts(act.Opts, &actOpts); err != nil {
			continue
		}
		out = append(out, deploy.Candidate{
			IssueID: run.IssueID(),
			Run:     run,
			Repos:   candidateRepos(actOpts.Repos, run, caps.Config),
		})
	}
	return out, nil
}

func candidateRepos(repos []string, run *models.Run, cfg *config.Config) []string {
	if len(repos) > 0 {
		return repos
	}
	if r, _ := run.Opts[models.OptRepo].(string); r != "" {
		return []string{r}
	}
	return []string{cfg.PrimaryRepo()}
}

func planSteps(merged *deploy.MergedPlan) []models.DeployStep {
	var steps []models.DeployStep
	for _, name := range merged.Order {
		repo := merged.Repos[name]
		steps = append(steps, models.DeployStep{
			Repo:      repo.Name,
			Command:   repo.Command,
			DependsOn: repo.DependsOn,
		})
	}
	return steps
}

func releaseName() string {
	return "rel-" + time.Now().UTC().Format("20060102-150405")
}
