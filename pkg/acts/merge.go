package acts

import (
	"context"
	"fmt"

	"github.com/warp-run/warp-coder/pkg/hooks"
	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/runner"
)

// Merge merges the run's approved pull requests. With no deploy targets
// configured the run ships here; otherwise it advances to the deploy gate
// carrying the repos the merged PRs touched.
func Merge(ctx context.Context, h *runner.RunHandle, actx *runner.ActContext) *runner.Result {
	caps := actx.Caps
	cfg := caps.Config
	issueID := h.IssueID()

	var opts models.MergeOpts
	if err := models.DecodeOpts(actx.ActOpts, &opts); err != nil {
		return runner.ErrorResult(err)
	}
	if len(opts.PRs) == 0 {
		return runner.ErrorResult(fmt.Errorf("merge act carries no pull requests"))
	}
	repo := cfg.PrimaryRepo()

	workdir, err := Workdir(issueID)
	if err != nil {
		return runner.ErrorResult(err)
	}
	if err := caps.Hooks.Run(ctx, hooks.OnBeforeMerge, workdir); err != nil {
		return runner.ErrorResult(err)
	}

	for _, pr := range opts.PRs {
		state, err := caps.PRs.GetPRState(ctx, repo, pr)
		if err != nil {
			return runner.ErrorResult(fmt.Errorf("fetching PR #%d state: %w", pr, err))
		}
		if state == models.PRStateMerged {
			continue
		}
		if state == models.PRStateClosed {
			return runner.ErrorResult(fmt.Errorf("pull request #%d closed without merging", pr))
		}
		if err := caps.PRs.MergePR(ctx, repo, pr); err != nil {
			return runner.ErrorResult(fmt.Errorf("merging PR #%d: %w", pr, err))
		}
	}

	if err := caps.Hooks.Run(ctx, hooks.OnMerged, workdir); err != nil {
		actx.Logger.Warn("Post-merge hook failed", "error", err)
	}

	outcomeOpts := map[string]any{"prs": opts.PRs}
	if len(cfg.Deploy) == 0 {
		return &runner.Result{Type: runner.ResultShipped, OutcomeOpts: outcomeOpts}
	}

	next, err := models.EncodeOpts(models.DeployOpts{
		PRs:   opts.PRs,
		Repos: mergedRepos(ctx, caps, issueID, repo),
	})
	if err != nil {
		return runner.ErrorResult(err)
	}
	return &runner.Result{
		Type:        runner.ResultSuccess,
		OutcomeOpts: outcomeOpts,
		NextActOpts: next,
	}
}

// mergedRepos collects the repositories touched by the issue's linked PRs;
// the primary repo is the fallback when linkage is unavailable.
func mergedRepos(ctx context.Context, caps *runner.Capabilities, issueID, primary string) []string {
	linked, err := caps.PRs.FindLinkedPRs(ctx, issueID)
	if err != nil || len(linked) == 0 {
		return []string{primary}
	}
	seen := make(map[string]struct{})
	var repos []string
	for _, pr := range linked {
		r := pr.Repo
		if r == "" {
			r = primary
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		repos = append(repos, r)
	}
	return repos
}
