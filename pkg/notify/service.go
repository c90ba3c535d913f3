package notify

import (
	"context"
	"log/slog"
)

// Sender delivers a formatted message to one destination, usually an issue
// comment on the board provider.
type Sender interface {
	Send(ctx context.Context, issueID string, msg Message) error
}

// Service posts notifications. A nil *Service is valid and drops every
// message, so callers never need to guard the notifier.
type Service struct {
	sender Sender
	logger *slog.Logger
}

// NewService creates a notification service over the given sender. Returns
// nil when sender is nil, which disables notifications.
func NewService(sender Sender) *Service {
	if sender == nil {
		return nil
	}
	return &Service{
		sender: sender,
		logger: slog.Default().With("component", "notify"),
	}
}

// Post delivers msg to the issue. Delivery failures are logged, never
// returned: a lost comment must not fail the run that produced it.
func (s *Service) Post(ctx context.Context, issueID string, msg Message) {
	if s == nil {
		return
	}
	if err := s.sender.Send(ctx, issueID, msg); err != nil {
		s.logger.Error("Failed to post notification",
			"issue_id", issueID, "title", msg.Title, "error", err)
		return
	}
	s.logger.Info("Posted notification", "issue_id", issueID, "title", msg.Title)
}
