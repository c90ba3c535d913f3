package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp-run/warp-coder/pkg/config"
	"github.com/warp-run/warp-coder/pkg/lifecycle"
	"github.com/warp-run/warp-coder/pkg/models"
	"github.com/warp-run/warp-coder/pkg/warpmetrics"
)

// schedulerDoc is a single-act lifecycle for scheduler tests: the executor
// either ships or fails, with no phases in between.
const schedulerDoc = `
states:
  Started: inProgress
  Resumed: inProgress
  Shipped: done
  Failed: blocked

work:
  label: Work
  executor: work
  results:
    success:
      outcome: Shipped
    error:
      outcome: Failed
`

type memBoard struct {
	mu    sync.Mutex
	items map[string]*models.BoardItem
}

func newMemBoard() *memBoard {
	return &memBoard{items: make(map[string]*models.BoardItem)}
}

func (b *memBoard) add(id, column, title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[id] = &models.BoardItem{ID: id, Column: column, Title: title}
}

func (b *memBoard) column(id string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if it, ok := b.items[id]; ok {
		return it.Column
	}
	return ""
}

func (b *memBoard) ListColumn(_ context.Context, name string) ([]models.BoardItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.BoardItem
	for _, it := range b.items {
		if it.Column == name {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (b *memBoard) MoveTo(_ context.Context, itemID, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if it, ok := b.items[itemID]; ok {
		it.Column = name
	}
	return nil
}

// schedFixture wires a supervisor over the single-act graph with a
// controllable executor: every invocation reports on started, then blocks
// until release is closed.
type schedFixture struct {
	mem     *warpmetrics.MemClient
	board   *memBoard
	sup     *Supervisor
	calls   atomic.Int32
	started chan string
	release chan struct{}
}

func newSchedFixture(t *testing.T, concurrency int, gate GateFunc) *schedFixture {
	t.Helper()

	graph, err := lifecycle.Compile([]byte(schedulerDoc), "work")
	require.NoError(t, err)

	f := &schedFixture{
		mem:     warpmetrics.NewMemClient(),
		board:   newMemBoard(),
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
	caps := &Capabilities{
		Board:   f.board,
		Durable: f.mem,
		Config: &config.Config{
			Repos:        []string{"org/api"},
			Concurrency:  concurrency,
			PollInterval: time.Hour,
		},
	}
	registry := map[string]Registration{
		"work": {
			Execute: func(_ context.Context, h *RunHandle, _ *ActContext) *Result {
				f.calls.Add(1)
				f.started <- h.IssueID()
				select {
				case <-f.release:
				case <-time.After(5 * time.Second):
				}
				return &Result{Type: ResultSuccess}
			},
			Gate: gate,
		},
	}
	dispatcher, err := NewDispatcher(caps, graph, registry)
	require.NoError(t, err)

	f.sup = NewSupervisor(caps.Config, NewReconciler(caps, graph), dispatcher)
	return f
}

// seedWork appends an open issue run with a pending work act.
func seedWork(t *testing.T, mem *warpmetrics.MemClient, issueID string) {
	t.Helper()
	ctx := context.Background()

	runID, err := mem.StartRun(ctx, "", models.RunLabelIssue, map[string]any{
		models.OptIssueID: issueID,
		models.OptTitle:   "Issue " + issueID,
	})
	require.NoError(t, err)

	run := models.Run{ID: runID}
	outcomeID, err := mem.RecordOutcome(ctx, run.RunContainer(), "Started", nil)
	require.NoError(t, err)
	_, err = mem.RecordAct(ctx, outcomeID, "", "work", nil)
	require.NoError(t, err)
}

func TestPerIssueMutualExclusion(t *testing.T) {
	f := newSchedFixture(t, 4, nil)
	seedWork(t, f.mem, "1")
	ctx := context.Background()

	f.sup.tick(ctx)
	assert.Equal(t, "1", <-f.started)
	assert.Equal(t, 1, f.sup.InFlight())

	// The act is still pending while its worker runs; a second cycle must
	// not start another worker for the same issue.
	f.sup.tick(ctx)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, 1, f.sup.InFlight())

	close(f.release)
	f.sup.wg.Wait()
	assert.Equal(t, 0, f.sup.InFlight())

	// The run shipped; nothing is actionable anymore.
	f.sup.tick(ctx)
	f.sup.wg.Wait()
	assert.Equal(t, int32(1), f.calls.Load())

	open, err := f.mem.FindOpenIssueRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	f := newSchedFixture(t, 1, nil)
	seedWork(t, f.mem, "1")
	seedWork(t, f.mem, "2")
	ctx := context.Background()

	f.sup.tick(ctx)
	first := <-f.started
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, 1, f.sup.InFlight())

	status := f.sup.Status()
	require.Len(t, status, 1)
	assert.Equal(t, first, status[0].IssueID)
	assert.Equal(t, "work", status[0].Step)

	close(f.release)
	f.sup.wg.Wait()

	// The second issue runs on the next cycle.
	f.sup.tick(ctx)
	second := <-f.started
	assert.NotEqual(t, first, second)
	f.sup.wg.Wait()
	assert.Equal(t, int32(2), f.calls.Load())

	open, err := f.mem.FindOpenIssueRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestGateHoldsDispatch(t *testing.T) {
	closedGate := func(context.Context, *Capabilities, *RunHandle, *models.Act, *Snapshot) (bool, error) {
		return false, nil
	}
	f := newSchedFixture(t, 2, closedGate)
	seedWork(t, f.mem, "1")

	f.sup.tick(context.Background())
	f.sup.wg.Wait()
	assert.Equal(t, int32(0), f.calls.Load())
	assert.Equal(t, 0, f.sup.InFlight())
}

func TestStopDrainsInFlightWorkers(t *testing.T) {
	f := newSchedFixture(t, 1, nil)
	seedWork(t, f.mem, "1")

	done := make(chan struct{})
	go func() {
		f.sup.Run(context.Background())
		close(done)
	}()
	<-f.started

	f.sup.Stop()
	select {
	case <-done:
		t.Fatal("Run returned with a worker still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(f.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after workers drained")
	}
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestTodoItemStartsRun(t *testing.T) {
	f := newSchedFixture(t, 1, nil)
	close(f.release) // executors complete immediately
	f.board.add("7", "todo", "Add thing")
	ctx := context.Background()

	f.sup.tick(ctx)
	f.sup.wg.Wait()
	assert.Equal(t, int32(1), f.calls.Load())

	runs, err := f.mem.FindRuns(ctx, models.RunLabelIssue, warpmetrics.RunFilter{IssueID: "7"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "Add thing", run.Title())

	var names []string
	for _, o := range run.Outcomes {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"Started", "Resumed", "Shipped"}, names)
	assert.Equal(t, "done", f.board.column("7"))

	// Shipped runs never restart.
	f.sup.tick(ctx)
	f.sup.wg.Wait()
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestDispatcherRejectsIncompleteRegistry(t *testing.T) {
	graph := lifecycle.DefaultGraph()
	caps := &Capabilities{Config: &config.Config{Repos: []string{"org/api"}}}

	_, err := NewDispatcher(caps, graph, map[string]Registration{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "implement")
	assert.Contains(t, err.Error(), "run_deploy")
}
