package adapters

import (
	"context"
	"fmt"

	"github.com/warp-run/warp-coder/pkg/config"
	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/runner"
)

// Provider names.
const (
	ProviderNone = "none"
)

// NewBoard selects the board adapter for the configured provider.
func NewBoard(cfg *config.Config) (runner.Board, error) {
	switch cfg.Board.Provider {
	case ProviderNone, "":
		return &nopBoard{}, nil
	default:
		return nil, fmt.Errorf("unsupported board provider %q", cfg.Board.Provider)
	}
}

// NewIssueClient selects the issue client for the configured code host.
func NewIssueClient(cfg *config.Config) (runner.IssueClient, error) {
	switch cfg.Codehost.Provider {
	case ProviderNone, "":
		return &nopIssues{}, nil
	default:
		return nil, fmt.Errorf("unsupported codehost provider %q", cfg.Codehost.Provider)
	}
}

// NewPRClient selects the pull-request client for the configured code host.
func NewPRClient(cfg *config.Config) (runner.PRClient, error) {
	switch cfg.Codehost.Provider {
	case ProviderNone, "":
		return &nopPRs{}, nil
	default:
		return nil, fmt.Errorf("unsupported codehost provider %q", cfg.Codehost.Provider)
	}
}

// nopBoard is the inert board used with the "none" provider; the supervisor
// idles until a real provider is configured.
type nopBoard struct{}

func (b *nopBoard) ListColumn(context.Context, string) ([]models.BoardItem, error) {
	return nil, nil
}

func (b *nopBoard) MoveTo(context.Context, string, string) error { return nil }

type nopIssues struct{}

func (c *nopIssues) GetIssueBody(context.Context, string) (string, error) { return "", nil }

func (c *nopIssues) GetIssueComments(context.Context, string) ([]models.IssueComment, error) {
	return nil, nil
}

func (c *nopIssues) CommentOnIssue(context.Context, string, string) error { return nil }

func (c *nopIssues) AddLabels(context.Context, string, []string) error { return nil }

type nopPRs struct{}

func (c *nopPRs) FindLinkedPRs(context.Context, string) ([]models.PullRequest, error) {
	return nil, nil
}

func (c *nopPRs) CreatePR(context.Context, models.CreatePRRequest) (*models.PullRequest, error) {
	return nil, fmt.Errorf("no codehost provider configured")
}

func (c *nopPRs) MergePR(context.Context, string, int) error {
	return fmt.Errorf("no codehost provider configured")
}

func (c *nopPRs) GetPRState(context.Context, string, int) (models.PRState, error) {
	return "", fmt.Errorf("no codehost provider configured")
}

func (c *nopPRs) GetReviews(context.Context, string, int) ([]models.Review, error) {
	return nil, nil
}

func (c *nopPRs) SubmitReview(context.Context, string, int, models.ReviewVerdict, string) error {
	return fmt.Errorf("no codehost provider configured")
}

func (c *nopPRs) DismissReview(context.Context, string, int, string) error {
	return fmt.Errorf("no codehost provider configured")
}

func (c *nopPRs) UpdatePRBody(context.Context, string, int, string) error {
	return fmt.Errorf("no codehost provider configured")
}
