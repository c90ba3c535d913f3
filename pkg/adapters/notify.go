package adapters

import (
	"context"
	"fmt"

	"github.com/warp-run/warp-coder/pkg/notify"
	"github.com/warp-run/warp-coder/pkg/runner"
)

// issueSender delivers notifications as issue comments.
type issueSender struct {
	issues runner.IssueClient
}

// NewIssueSender wraps the issue client as the notifier's delivery channel.
func NewIssueSender(issues runner.IssueClient) notify.Sender {
	return &issueSender{issues: issues}
}

func (s *issueSender) Send(ctx context.Context, issueID string, msg notify.Message) error {
	body := msg.Body
	if msg.Title != "" {
		body = fmt.Sprintf("**%s**\n\n%s", msg.Title, msg.Body)
	}
	return s.issues.CommentOnIssue(ctx, issueID, body)
}
