package acts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp-run/warp-coder/pkg/codegen"
	"github.com/warp-run/warp-coder/pkg/hooks"
	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/runner"
)

// questionPrefix is the convention by which the code-generation tool
// surfaces a blocking question instead of a change summary.
const questionPrefix = "QUESTION:"

// Implement drives one implementation attempt: invoke the code-generation
// tool in the issue workdir, then open (or refresh) the pull request with a
// reserved review-act id embedded in its body.
func Implement(ctx context.Context, h *runner.RunHandle, actx *runner.ActContext) *runner.Result {
	caps := actx.Caps
	cfg := caps.Config
	issueID := h.IssueID()

	var opts models.ImplementOpts
	if err := models.DecodeOpts(actx.ActOpts, &opts); err != nil {
		return runner.ErrorResult(err)
	}

	body, err := caps.Issues.GetIssueBody(ctx, issueID)
	if err != nil {
		return runner.ErrorResult(fmt.Errorf("fetching issue body: %w", err))
	}
	prompt, err := implementPrompt(ctx, caps, h, opts, body)
	if err != nil {
		return runner.ErrorResult(err)
	}

	workdir, err := Workdir(issueID)
	if err != nil {
		return runner.ErrorResult(err)
	}
	if opts.SessionID == "" {
		if err := caps.Hooks.Run(ctx, hooks.OnBranchCreate, workdir); err != nil {
			return runner.ErrorResult(err)
		}
	}

	genRes, err := caps.Codegen.Run(ctx, codegen.Request{
		Prompt:  prompt,
		Workdir: workdir,
		Resume:  opts.SessionID,
		Timeout: codegen.DefaultImplementTimeout,
	})
	if err != nil {
		return runner.ErrorResult(fmt.Errorf("code generation: %w", err))
	}

	if genRes.MaxTurnsExhausted() {
		retry := opts.RetryCount + 1
		if retry > cfg.MaxTurnsRetries {
			return runner.ErrorResult(fmt.Errorf(
				"turn budget exhausted after %d attempts", retry))
		}
		next, err := models.EncodeOpts(models.ImplementOpts{
			SessionID:  genRes.SessionID,
			RetryCount: retry,
		})
		if err != nil {
			return runner.ErrorResult(err)
		}
		return &runner.Result{
			Type:        runner.ResultMaxTurns,
			OutcomeOpts: map[string]any{models.OptCost: genRes.CostUSD},
			NextActOpts: next,
		}
	}

	if question, ok := parseQuestion(genRes.Result); ok {
		next, err := models.EncodeOpts(models.ImplementOpts{
			SessionID: genRes.SessionID,
			AskedAt:   time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return runner.ErrorResult(err)
		}
		return &runner.Result{
			Type: runner.ResultAskUser,
			OutcomeOpts: map[string]any{
				"question":     question,
				models.OptCost: genRes.CostUSD,
			},
			NextActOpts: next,
		}
	}

	if err := caps.Hooks.Run(ctx, hooks.OnBeforePush, workdir); err != nil {
		return runner.ErrorResult(err)
	}

	reviewActID, err := caps.Durable.ReserveAct(ctx, actReview)
	if err != nil {
		return runner.ErrorResult(fmt.Errorf("reserving review act: %w", err))
	}

	pr, err := caps.PRs.CreatePR(ctx, models.CreatePRRequest{
		Repo:   cfg.PrimaryRepo(),
		Branch: fmt.Sprintf("agent/issue-%s", issueID),
		Base:   "main",
		Title:  h.Run.Title(),
		Body:   prBody(reviewActID, genRes.Result),
	})
	if err != nil {
		return runner.ErrorResult(fmt.Errorf("creating pull request: %w", err))
	}
	if err := caps.Hooks.Run(ctx, hooks.OnPRCreated, workdir); err != nil {
		actx.Logger.Warn("Post-PR hook failed", "error", err)
	}
	if err := caps.Issues.AddLabels(ctx, issueID, []string{agentLabel}); err != nil {
		actx.Logger.Warn("Failed to label issue", "error", err)
	}

	next, err := models.EncodeOpts(models.ReviseOpts{
		PR:        pr.Number,
		SessionID: genRes.SessionID,
	})
	if err != nil {
		return runner.ErrorResult(err)
	}
	return &runner.Result{
		Type: runner.ResultSuccess,
		OutcomeOpts: map[string]any{
			models.OptPRNumber: pr.Number,
			models.OptCost:     genRes.CostUSD,
		},
		NextActOpts: next,
		NextActID:   reviewActID,
	}
}

// actReview is the act name whose id gets reserved for the PR body.
const actReview = "review"

func parseQuestion(result string) (string, bool) {
	trimmed := strings.TrimSpace(result)
	if !strings.HasPrefix(trimmed, questionPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, questionPrefix)), true
}

func prBody(reviewActID, summary string) string {
	return fmt.Sprintf("%s\n\n%s", actMarker(reviewActID), summary)
}

// implementPrompt builds the code-generation prompt; a resumed session
// after a clarification carries the user's reply instead of the full brief.
func implementPrompt(ctx context.Context, caps *runner.Capabilities, h *runner.RunHandle, opts models.ImplementOpts, issueBody string) (string, error) {
	if opts.AskedAt == "" {
		return fmt.Sprintf(
			"Implement the following issue.\n\nTitle: %s\n\n%s\n\nIf you are blocked on a decision only the reporter can make, respond with a single line starting with %q.",
			h.Run.Title(), issueBody, questionPrefix), nil
	}

	askedAt, _ := time.Parse(time.RFC3339, opts.AskedAt)
	comments, err := caps.Issues.GetIssueComments(ctx, h.IssueID())
	if err != nil {
		return "", fmt.Errorf("fetching issue comments: %w", err)
	}
	var reply string
	for _, c := range comments {
		if c.CreatedAt.After(askedAt) && !strings.Contains(c.Body, "<!-- warp-coder:") {
			reply = c.Body
		}
	}
	return fmt.Sprintf("The reporter answered your question:\n\n%s\n\nContinue the implementation.", reply), nil
}
