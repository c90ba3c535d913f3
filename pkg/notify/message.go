// Package notify formats and delivers user-visible comments through the
// notifier capability.
package notify

import (
	"fmt"
	"strings"
)

// HTML markers embedded in comments so later polls (and users) can identify
// agent-authored messages.
const (
	QuestionMarker   = "<!-- warp-coder:question -->"
	ErrorMarker      = "<!-- warp-coder:error -->"
	MaxRetriesMarker = "<!-- warp-coder:max-retries -->"
	ShippedMarker    = "<!-- warp-coder:shipped -->"
)

// maxErrorBody bounds the error text included in a comment.
const maxErrorBody = 1500

// Message is one notifier delivery.
type Message struct {
	Body  string
	RunID string
	Title string
}

// BuildQuestion formats a clarification question for the user.
func BuildQuestion(question string) Message {
	return Message{
		Title: "Clarification needed",
		Body: fmt.Sprintf("%s\n\nI need input before continuing:\n\n> %s\n\nReply on this issue and I will pick it up on the next poll.",
			QuestionMarker, question),
	}
}

// BuildError formats a terminal error with a truncated error body so the
// user can intervene.
func BuildError(step string, err error) Message {
	body := Truncate(err.Error(), maxErrorBody)
	return Message{
		Title: "Step failed",
		Body: fmt.Sprintf("%s\nThe `%s` step failed and this issue is blocked:\n\n```\n%s\n```\n\nMove the issue back to Todo to retry.",
			ErrorMarker, step, body),
	}
}

// BuildMaxRetries formats the retry-ceiling notification.
func BuildMaxRetries(step string, limit int) Message {
	return Message{
		Title: "Retry limit reached",
		Body: fmt.Sprintf("%s\nThe `%s` step hit its retry limit (%d) and this issue is blocked.",
			MaxRetriesMarker, step, limit),
	}
}

// BuildShipped formats the completion notification with the combined
// changelog for the deploy batch.
func BuildShipped(issueIDs []string, changelog string) Message {
	var sb strings.Builder
	sb.WriteString(ShippedMarker)
	sb.WriteString("\nReleased")
	if len(issueIDs) > 1 {
		sb.WriteString(fmt.Sprintf(" together with %s", strings.Join(issueIDs[1:], ", ")))
	}
	sb.WriteString(".\n")
	if changelog != "" {
		sb.WriteString("\n")
		sb.WriteString(changelog)
		sb.WriteString("\n")
	}
	return Message{Title: "Released", Body: sb.String()}
}

// Truncate shortens s to at most n bytes, appending an ellipsis marker when
// anything was cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n… (truncated)"
}
