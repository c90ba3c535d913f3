package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/warp-run/warp-coder/pkg/config"
	"github.com/warp-run/warp-coder/pkg/lifecycle"
	"github.com/warp-run/warp-coder/pkg/models"
)

// Snapshot is the board view for one poll cycle: every configured column
// listed once, shared by all workers of the cycle.
type Snapshot struct {
	// ByColumn is keyed by column key, not provider name.
	ByColumn map[lifecycle.Column][]models.BoardItem
	// Items is keyed by issue id.
	Items map[string]*models.BoardItem
}

// Item returns the board item for an issue, or nil.
func (s *Snapshot) Item(issueID string) *models.BoardItem {
	return s.Items[issueID]
}

// Column returns the column key the issue currently sits in.
func (s *Snapshot) Column(issueID string) (lifecycle.Column, bool) {
	item := s.Items[issueID]
	if item == nil {
		return "", false
	}
	return lifecycle.Column(item.Column), true
}

// Actionable is one unit of dispatchable work: either a pending act on an
// open run, or a synthesised start record for a fresh todo item.
type Actionable struct {
	Handle    *RunHandle
	Act       *models.Act
	Container models.ContainerRef

	// Start marks a todo item with no open run; dispatching it creates the
	// run and its root act.
	Start bool
	Item  *models.BoardItem
}

// IssueID returns the issue the actionable belongs to.
func (a *Actionable) IssueID() string {
	if a.Start {
		return a.Item.ID
	}
	return a.Handle.IssueID()
}

// Reconciler combines board items, open durable runs, and pending acts
// into the cycle's work list. Durable state dictates lifecycle; the board
// is a projection of it, repaired when the two disagree.
type Reconciler struct {
	caps   *Capabilities
	graph  *lifecycle.Graph
	cfg    *config.Config
	logger *slog.Logger
}

// NewReconciler creates the per-cycle discovery component.
func NewReconciler(caps *Capabilities, graph *lifecycle.Graph) *Reconciler {
	return &Reconciler{
		caps:   caps,
		graph:  graph,
		cfg:    caps.Config,
		logger: slog.Default().With("component", "reconciler"),
	}
}

// Discover runs one discovery pass: snapshot the board, load open runs,
// locate pending acts, synthesise start records, and repair board drift.
func (r *Reconciler) Discover(ctx context.Context) ([]*Actionable, *Snapshot, error) {
	snap, err := r.snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshotting board: %w", err)
	}

	runs, err := r.caps.Durable.FindOpenIssueRuns(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("finding open runs: %w", err)
	}

	var work []*Actionable
	openIssues := make(map[string]struct{}, len(runs))

	for _, run := range runs {
		issueID := run.IssueID()
		openIssues[issueID] = struct{}{}
		handle := &RunHandle{Run: run, Item: snap.Item(issueID)}

		act, container := run.PendingAct()
		if act == nil {
			continue
		}
		r.repairBoard(ctx, handle, act)
		work = append(work, &Actionable{
			Handle:    handle,
			Act:       act,
			Container: container,
		})
	}

	// Fresh todo items with no open run start a new trajectory.
	for _, item := range snap.ByColumn[lifecycle.ColumnTodo] {
		if _, open := openIssues[item.ID]; open {
			continue
		}
		work = append(work, &Actionable{Start: true, Item: &item})
	}

	return work, snap, nil
}

// snapshot lists every configured column once and indexes items by issue
// id, with columns normalised back to column keys.
func (r *Reconciler) snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		ByColumn: make(map[lifecycle.Column][]models.BoardItem),
		Items:    make(map[string]*models.BoardItem),
	}
	for _, col := range lifecycle.Columns() {
		items, err := r.caps.Board.ListColumn(ctx, r.cfg.Board.ColumnName(col))
		if err != nil {
			return nil, fmt.Errorf("listing column %s: %w", col, err)
		}
		for i := range items {
			items[i].Column = string(col)
		}
		snap.ByColumn[col] = items
		for i := range items {
			snap.Items[items[i].ID] = &items[i]
		}
	}
	return snap, nil
}

// repairBoard moves the item to the column implied by the run's latest
// outcome when the two disagree. Gated acts are exempt: a user-initiated
// move (e.g. into the deploy column) is intent, not drift.
func (r *Reconciler) repairBoard(ctx context.Context, h *RunHandle, act *models.Act) {
	if h.Item == nil {
		return
	}
	if gateActs[act.Name] {
		return
	}
	latest := h.Run.LatestOutcome()
	if latest == nil {
		return
	}
	want, ok := r.graph.State(latest.Name)
	if !ok || string(want) == h.Item.Column {
		return
	}
	if err := r.caps.Board.MoveTo(ctx, h.Item.ID, r.cfg.Board.ColumnName(want)); err != nil {
		r.logger.Warn("Failed to repair board column",
			"issue_id", h.Item.ID, "want", want, "error", err)
		return
	}
	r.logger.Info("Repaired board column",
		"issue_id", h.Item.ID, "from", h.Item.Column, "to", want)
	h.Item.Column = string(want)
}
