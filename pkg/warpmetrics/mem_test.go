package warpmetrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp-run/warp-coder/pkg/models"
)

func TestStartRunAndFindOpen(t *testing.T) {
	ctx := context.Background()
	c := NewMemClient()

	runID, err := c.StartRun(ctx, "", models.RunLabelIssue, map[string]any{
		models.OptIssueID: "42",
		models.OptTitle:   "Fix login",
	})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	open, err := c.FindOpenIssueRuns(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "42", open[0].IssueID())
	assert.Equal(t, "Fix login", open[0].Title())
}

func TestTerminalOutcomeClosesRun(t *testing.T) {
	ctx := context.Background()
	c := NewMemClient()

	runID, err := c.StartRun(ctx, "", models.RunLabelIssue, map[string]any{models.OptIssueID: "1"})
	require.NoError(t, err)
	container := models.ContainerRef{Kind: models.ContainerRun, ID: runID}

	_, err = c.RecordOutcome(ctx, container, "PR_CREATED", nil)
	require.NoError(t, err)
	open, err := c.FindOpenIssueRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	_, err = c.RecordOutcome(ctx, container, OutcomeShipped, nil)
	require.NoError(t, err)
	open, err = c.FindOpenIssueRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestGroupOutcomesIndependentOfRunOutcomes(t *testing.T) {
	ctx := context.Background()
	c := NewMemClient()

	runID, err := c.StartRun(ctx, "", models.RunLabelIssue, map[string]any{models.OptIssueID: "1"})
	require.NoError(t, err)
	groupID, err := c.CreateGroup(ctx, runID, "Build", nil)
	require.NoError(t, err)

	_, err = c.RecordOutcome(ctx, models.ContainerRef{Kind: models.ContainerGroup, ID: groupID}, "BUILDING", nil)
	require.NoError(t, err)

	open, err := c.FindOpenIssueRuns(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	run := open[0]
	assert.Empty(t, run.Outcomes)
	require.Len(t, run.Groups, 1)
	require.Len(t, run.Groups[0].Outcomes, 1)
	assert.Equal(t, "BUILDING", run.Groups[0].Outcomes[0].Name)
}

func TestReservedActPublishedUnderReservedID(t *testing.T) {
	ctx := context.Background()
	c := NewMemClient()

	runID, err := c.StartRun(ctx, "", models.RunLabelIssue, map[string]any{models.OptIssueID: "1"})
	require.NoError(t, err)
	outcomeID, err := c.RecordOutcome(ctx,
		models.ContainerRef{Kind: models.ContainerRun, ID: runID}, "PR_CREATED", nil)
	require.NoError(t, err)

	reserved, err := c.ReserveAct(ctx, "review")
	require.NoError(t, err)

	actID, err := c.RecordAct(ctx, outcomeID, reserved, "review", nil)
	require.NoError(t, err)
	assert.Equal(t, reserved, actID)

	open, err := c.FindOpenIssueRuns(ctx)
	require.NoError(t, err)
	act, container := open[0].PendingAct()
	require.NotNil(t, act)
	assert.Equal(t, reserved, act.ID)
	assert.Equal(t, models.ContainerRun, container.Kind)
}

func TestFollowUpRunMarksActExecuted(t *testing.T) {
	ctx := context.Background()
	c := NewMemClient()

	runID, err := c.StartRun(ctx, "", models.RunLabelIssue, map[string]any{models.OptIssueID: "1"})
	require.NoError(t, err)
	outcomeID, err := c.RecordOutcome(ctx,
		models.ContainerRef{Kind: models.ContainerRun, ID: runID}, "Started", nil)
	require.NoError(t, err)
	actID, err := c.RecordAct(ctx, outcomeID, "", "implement", nil)
	require.NoError(t, err)

	open, err := c.FindOpenIssueRuns(ctx)
	require.NoError(t, err)
	act, _ := open[0].PendingAct()
	require.NotNil(t, act)

	_, err = c.StartRun(ctx, actID, "implement", map[string]any{models.OptIssueID: "1"})
	require.NoError(t, err)

	open, err = c.FindOpenIssueRuns(ctx)
	require.NoError(t, err)
	act, _ = open[0].PendingAct()
	assert.Nil(t, act)
}

func TestStartRunUnknownRefAct(t *testing.T) {
	c := NewMemClient()
	_, err := c.StartRun(context.Background(), "missing", "implement", nil)
	assert.ErrorIs(t, err, ErrActNotFound)
}

func TestFindRunsFilters(t *testing.T) {
	ctx := context.Background()
	c := NewMemClient()

	cutoff := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)

	_, err := c.StartRun(ctx, "", "revise", map[string]any{
		models.OptIssueID:  "1",
		models.OptPRNumber: 7,
	})
	require.NoError(t, err)
	// JSON round-tripped opts carry the PR as float64.
	_, err = c.StartRun(ctx, "", "revise", map[string]any{
		models.OptIssueID:  "1",
		models.OptPRNumber: float64(7),
	})
	require.NoError(t, err)
	_, err = c.StartRun(ctx, "", "revise", map[string]any{
		models.OptIssueID:  "2",
		models.OptPRNumber: 9,
	})
	require.NoError(t, err)

	runs, err := c.FindRuns(ctx, "revise", RunFilter{PR: 7})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = c.FindRuns(ctx, "revise", RunFilter{PR: 7, Since: cutoff})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	runs, err = c.FindRuns(ctx, "revise", RunFilter{PR: 7, Since: future})
	require.NoError(t, err)
	assert.Empty(t, runs)

	runs, err = c.FindRuns(ctx, "revise", RunFilter{IssueID: "2"})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	runs, err = c.FindRuns(ctx, "implement", RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestReadsReturnDeepCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemClient()

	runID, err := c.StartRun(ctx, "", models.RunLabelIssue, map[string]any{models.OptIssueID: "1"})
	require.NoError(t, err)
	_, err = c.RecordOutcome(ctx,
		models.ContainerRef{Kind: models.ContainerRun, ID: runID}, "Started", nil)
	require.NoError(t, err)

	open, err := c.FindOpenIssueRuns(ctx)
	require.NoError(t, err)
	open[0].Outcomes[0].Name = "mutated"
	open[0].Opts[models.OptIssueID] = "mutated"

	fresh, err := c.FindOpenIssueRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Started", fresh[0].Outcomes[0].Name)
	assert.Equal(t, "1", fresh[0].IssueID())
}

func TestIsTerminalOutcome(t *testing.T) {
	for _, name := range []string{
		OutcomeShipped, OutcomeReleased, OutcomeMaxRetries,
		OutcomeImplementationFailed, OutcomeRevisionFailed,
		OutcomeMergeFailed, OutcomeFailed, OutcomeAborted,
	} {
		assert.True(t, IsTerminalOutcome(name), name)
	}
	assert.False(t, IsTerminalOutcome("PR_CREATED"))
	assert.False(t, IsTerminalOutcome(OutcomeStarted))
}
