package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuestionCarriesMarkerAndText(t *testing.T) {
	msg := BuildQuestion("Which database?")
	assert.Contains(t, msg.Body, QuestionMarker)
	assert.Contains(t, msg.Body, "Which database?")
}

func TestBuildErrorTruncatesBody(t *testing.T) {
	long := strings.Repeat("x", 5000)
	msg := BuildError("implement", errors.New(long))
	assert.Contains(t, msg.Body, ErrorMarker)
	assert.Contains(t, msg.Body, "implement")
	assert.Contains(t, msg.Body, "truncated")
	assert.Less(t, len(msg.Body), 2000)
}

func TestBuildMaxRetries(t *testing.T) {
	msg := BuildMaxRetries("revise", 3)
	assert.Contains(t, msg.Body, MaxRetriesMarker)
	assert.Contains(t, msg.Body, "revise")
	assert.Contains(t, msg.Body, "3")
}

func TestBuildShipped(t *testing.T) {
	solo := BuildShipped([]string{"42"}, "")
	assert.Contains(t, solo.Body, ShippedMarker)
	assert.NotContains(t, solo.Body, "together with")

	batched := BuildShipped([]string{"1", "2", "3"}, "## rel-1\n\n- Fix login (1)\n")
	assert.Contains(t, batched.Body, "together with 2, 3")
	assert.Contains(t, batched.Body, "Fix login")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	got := Truncate("abcdefghij", 4)
	assert.True(t, strings.HasPrefix(got, "abcd"))
	assert.Contains(t, got, "truncated")
}

type captureSender struct {
	issueID string
	msg     Message
	err     error
}

func (s *captureSender) Send(_ context.Context, issueID string, msg Message) error {
	s.issueID = issueID
	s.msg = msg
	return s.err
}

func TestServicePost(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender)
	require.NotNil(t, svc)

	svc.Post(context.Background(), "42", BuildQuestion("q"))
	assert.Equal(t, "42", sender.issueID)
	assert.Contains(t, sender.msg.Body, QuestionMarker)
}

func TestServiceSwallowsDeliveryErrors(t *testing.T) {
	sender := &captureSender{err: errors.New("api down")}
	svc := NewService(sender)

	// Must not panic or propagate.
	svc.Post(context.Background(), "42", BuildError("merge", errors.New("boom")))
}

func TestNilServiceDropsMessages(t *testing.T) {
	assert.Nil(t, NewService(nil))
	var svc *Service
	svc.Post(context.Background(), "42", BuildQuestion("q"))
}
