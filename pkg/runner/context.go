// Package runner is the supervisor core: discovery and reconciliation of
// open runs, the bounded scheduler, and the act-executor dispatcher that
// advances runs through the lifecycle graph.
package runner

import (
	"context"
	"log/slog"

	"github.com/warp-run/warp-coder/pkg/codegen"
	"github.com/warp-run/warp-coder/pkg/config"
	"github.com/warp-run/warp-coder/pkg/deploy"
	"github.com/warp-run/warp-coder/pkg/hooks"
	"github.com/warp-run/warp-coder/pkg/memory"
	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/notify"
	"github.com/warp-run/warp-coder/pkg/warpmetrics"
)

// Result types shared by the standard executors. The vocabulary per
// executor is fixed by the graph's result keys.
const (
	ResultSuccess          = "success"
	ResultError            = "error"
	ResultAskUser          = "ask_user"
	ResultMaxTurns         = "max_turns"
	ResultMaxRetries       = "max_retries"
	ResultReplied          = "replied"
	ResultAbort            = "abort"
	ResultApproved         = "approved"
	ResultChangesRequested = "changes_requested"
	ResultDismissed        = "dismissed"
	ResultShipped          = "shipped"
	ResultReady            = "ready"
	ResultDone             = "done"
)

// Board lists and moves issues on the external board.
type Board interface {
	ListColumn(ctx context.Context, name string) ([]models.BoardItem, error)
	MoveTo(ctx context.Context, itemID, name string) error
}

// IssueClient reads and annotates issues on the code host.
type IssueClient interface {
	GetIssueBody(ctx context.Context, issueID string) (string, error)
	GetIssueComments(ctx context.Context, issueID string) ([]models.IssueComment, error)
	CommentOnIssue(ctx context.Context, issueID, body string) error
	AddLabels(ctx context.Context, issueID string, labels []string) error
}

// PRClient manages pull requests on the code host.
type PRClient interface {
	FindLinkedPRs(ctx context.Context, issueID string) ([]models.PullRequest, error)
	CreatePR(ctx context.Context, req models.CreatePRRequest) (*models.PullRequest, error)
	MergePR(ctx context.Context, repo string, number int) error
	GetPRState(ctx context.Context, repo string, number int) (models.PRState, error)
	GetReviews(ctx context.Context, repo string, number int) ([]models.Review, error)
	SubmitReview(ctx context.Context, repo string, number int, verdict models.ReviewVerdict, body string) error
	DismissReview(ctx context.Context, repo string, number int, reviewID string) error
	UpdatePRBody(ctx context.Context, repo string, number int, body string) error
}

// Capabilities bundles the injected collaborators executors run against.
// The core never shells out or speaks HTTP itself.
type Capabilities struct {
	Board    Board
	Issues   IssueClient
	PRs      PRClient
	Codegen  codegen.Runner
	Notifier *notify.Service
	Durable  warpmetrics.Client
	Memory   *memory.Reflector
	Hooks    *hooks.Runner
	Deploy   deploy.CommandRunner
	Config   *config.Config
}

// RunHandle is one open run paired with its board view for the current
// poll cycle. Item may be nil when the issue is no longer on the board.
type RunHandle struct {
	Run  *models.Run
	Item *models.BoardItem
}

// IssueID returns the run's issue identifier.
func (h *RunHandle) IssueID() string {
	return h.Run.IssueID()
}

// ActContext carries everything an executor needs for one invocation.
type ActContext struct {
	ActID     string
	ActName   string
	ActOpts   map[string]any
	Container models.ContainerRef

	// DeployBatch is set for acts whose options name batched issues; it
	// holds the open runs of the batch.
	DeployBatch *models.DeployBatch

	Caps   *Capabilities
	Logger *slog.Logger
}

// Result is an executor's verdict. Executors never return errors across
// the dispatcher boundary; failures become Type "error" with the error
// text in OutcomeOpts.
type Result struct {
	Type string

	// OutcomeOpts are recorded on every outcome the result's edges emit.
	OutcomeOpts map[string]any

	// NextActOpts are threaded into the follow-up act, when the graph emits
	// one.
	NextActOpts map[string]any

	// NextActID publishes a previously reserved act id as the follow-up
	// act instead of allocating a fresh one.
	NextActID string

	// Batch is set by the deploy executor so outcomes fan out across every
	// batched run.
	Batch *models.DeployBatch
}

// ErrorResult converts an executor failure into the error result.
func ErrorResult(err error) *Result {
	return &Result{
		Type:        ResultError,
		OutcomeOpts: map[string]any{models.OptError: err.Error()},
	}
}

// ExecutorFunc runs one act end-to-end.
type ExecutorFunc func(ctx context.Context, h *RunHandle, actx *ActContext) *Result

// Effect runs after the result's outcomes are durably recorded. Effect
// errors are logged and swallowed; they never duplicate outcomes.
type Effect func(ctx context.Context, h *RunHandle, res *Result, actx *ActContext) error

// GateFunc reports whether an externally-triggered act may run this cycle.
// Acts without a gate are always ready.
type GateFunc func(ctx context.Context, caps *Capabilities, h *RunHandle, act *models.Act, snap *Snapshot) (bool, error)

// Registration binds an act name to its executor, optional gate, and
// per-result effects.
type Registration struct {
	Execute ExecutorFunc
	Gate    GateFunc
	Effects map[string]Effect
}
