package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/warp-run/warp-coder/pkg/lifecycle"
	"github.com/warp-run/warp-coder/pkg/models"
)

// SchemaVersion is stamped into every run's options.
const SchemaVersion = 1

// Dispatcher maps act names to registered executors and drives one act
// end-to-end: execute, record outcomes along the graph's edges, emit the
// follow-up act, then apply effects.
type Dispatcher struct {
	caps     *Capabilities
	graph    *lifecycle.Graph
	registry map[string]Registration
	logger   *slog.Logger
}

// NewDispatcher validates that every executor-bearing graph node has a
// registered executor and returns the dispatcher.
func NewDispatcher(caps *Capabilities, graph *lifecycle.Graph, registry map[string]Registration) (*Dispatcher, error) {
	var missing []string
	for _, name := range graph.ActNames() {
		if _, ok := registry[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("no executor registered for acts: %s", strings.Join(missing, ", "))
	}
	return &Dispatcher{
		caps:     caps,
		graph:    graph,
		registry: registry,
		logger:   slog.Default().With("component", "dispatcher"),
	}, nil
}

// Ready consults the act's gate, when it has one. Start records are always
// ready.
func (d *Dispatcher) Ready(ctx context.Context, a *Actionable, snap *Snapshot) (bool, error) {
	if a.Start {
		return true, nil
	}
	reg := d.registry[a.Act.Name]
	if reg.Gate == nil {
		return true, nil
	}
	return reg.Gate(ctx, d.caps, a.Handle, a.Act, snap)
}

// Dispatch advances one actionable: a start record creates the run and its
// root act and falls through to executing it; a pending act is executed
// directly.
func (d *Dispatcher) Dispatch(ctx context.Context, a *Actionable) error {
	if a.Start {
		started, err := d.startRun(ctx, a.Item)
		if err != nil {
			return err
		}
		a = started
	}
	return d.executeAct(ctx, a)
}

// startRun appends a fresh issue run, records the external "Started"
// outcome, enters the root act's phase, and records the root act there.
func (d *Dispatcher) startRun(ctx context.Context, item *models.BoardItem) (*Actionable, error) {
	cfg := d.caps.Config
	runOpts := map[string]any{
		models.OptIssueID:       item.ID,
		models.OptRepo:          cfg.PrimaryRepo(),
		models.OptTitle:         item.Title,
		models.OptSchemaVersion: SchemaVersion,
	}

	runID, err := d.caps.Durable.StartRun(ctx, "", models.RunLabelIssue, runOpts)
	if err != nil {
		return nil, fmt.Errorf("starting run for issue %s: %w", item.ID, err)
	}
	run := &models.Run{ID: runID, Label: models.RunLabelIssue, Opts: runOpts}
	handle := &RunHandle{Run: run, Item: item}

	runContainer := run.RunContainer()
	if _, err := d.caps.Durable.RecordOutcome(ctx, runContainer, "Started", nil); err != nil {
		return nil, fmt.Errorf("recording start outcome: %w", err)
	}

	// The root act lives in its phase group; entering the phase fires the
	// group's "created" edges and the first of those outcomes hosts the act.
	rootNode := d.graph.Node(d.graph.Root)
	container := runContainer
	outcomeID := ""
	if rootNode != nil && rootNode.Group != "" {
		groupContainer, createdID, err := d.enterPhase(ctx, handle, rootNode.Group, nil)
		if err != nil {
			return nil, err
		}
		container = groupContainer
		outcomeID = createdID
	}
	if outcomeID == "" {
		id, err := d.caps.Durable.RecordOutcome(ctx, container, "Resumed", nil)
		if err != nil {
			return nil, fmt.Errorf("recording root outcome: %w", err)
		}
		outcomeID = id
	}

	actID, err := d.caps.Durable.RecordAct(ctx, outcomeID, "", d.graph.Root, nil)
	if err != nil {
		return nil, fmt.Errorf("recording root act: %w", err)
	}

	d.logger.Info("Run started", "issue_id", item.ID, "run_id", runID, "act", d.graph.Root)
	return &Actionable{
		Handle:    handle,
		Act:       &models.Act{ID: actID, Name: d.graph.Root},
		Container: container,
	}, nil
}

// executeAct runs the registered executor and applies its result to the
// durable log per the graph's outcome edges.
func (d *Dispatcher) executeAct(ctx context.Context, a *Actionable) error {
	h := a.Handle
	issueID := h.IssueID()
	logger := d.logger.With("issue_id", issueID, "run_id", h.Run.ID, "act", a.Act.Name)

	node := d.graph.Node(a.Act.Name)
	if node == nil {
		return fmt.Errorf("act %q has no graph node", a.Act.Name)
	}
	reg := d.registry[a.Act.Name]

	actx := &ActContext{
		ActID:     a.Act.ID,
		ActName:   a.Act.Name,
		ActOpts:   a.Act.Opts,
		Container: a.Container,
		Caps:      d.caps,
		Logger:    logger,
	}
	if batch, err := d.loadBatch(ctx, h, a.Act.Opts); err != nil {
		logger.Warn("Failed to load deploy batch from act options", "error", err)
	} else {
		actx.DeployBatch = batch
	}

	logger.Info("Executing act")
	res := d.runExecutor(ctx, reg, h, actx, logger)

	edges, ok := node.Results[res.Type]
	if !ok {
		// Unknown result type: degrade to the error edges when the node has
		// them so the run does not wedge silently.
		logger.Error("Executor returned result type absent from graph", "type", res.Type)
		if edges, ok = node.Results[ResultError]; !ok {
			return fmt.Errorf("act %s: no edges for result type %q", a.Act.Name, res.Type)
		}
	}

	// The act is executed the moment its follow-up run exists; a crash
	// before this point leaves it pending for re-execution. The act's own
	// options ride along so scoped queries (revision counting by PR) match.
	followOpts := models.MergeOptBags(a.Act.Opts, map[string]any{models.OptIssueID: issueID})
	if _, err := d.caps.Durable.StartRun(ctx, a.Act.ID, a.Act.Name, followOpts); err != nil {
		return fmt.Errorf("registering follow-up run for act %s: %w", a.Act.ID, err)
	}

	nextOutcomeID := ""
	nextActName := ""
	var lastRunOutcome string
	for _, edge := range edges {
		container := h.Run.RunContainer()
		if edge.In != "" {
			var err error
			container, _, err = d.enterPhase(ctx, h, edge.In, nil)
			if err != nil {
				return err
			}
		} else {
			lastRunOutcome = edge.Name
		}
		outcomeID, err := d.caps.Durable.RecordOutcome(ctx, container, edge.Name, res.OutcomeOpts)
		if err != nil {
			return fmt.Errorf("recording outcome %s: %w", edge.Name, err)
		}
		if edge.Next != "" {
			nextOutcomeID = outcomeID
			nextActName = edge.Next
		}
	}

	if nextActName != "" {
		if _, err := d.caps.Durable.RecordAct(ctx, nextOutcomeID, res.NextActID, nextActName, res.NextActOpts); err != nil {
			return fmt.Errorf("recording follow-up act %s: %w", nextActName, err)
		}
		logger.Info("Act advanced", "result", res.Type, "next", nextActName)
	} else {
		logger.Info("Act finished", "result", res.Type)
	}

	batch := res.Batch
	if batch == nil {
		batch = actx.DeployBatch
	}
	if batch != nil {
		d.fanOut(ctx, h, batch, edges, res, logger)
	}

	d.moveBoard(ctx, h, lastRunOutcome, logger)
	d.applyEffect(ctx, reg, h, res, actx, logger)
	return nil
}

// runExecutor invokes the executor with panic recovery; a panicking
// executor yields an error result instead of killing the supervisor.
func (d *Dispatcher) runExecutor(ctx context.Context, reg Registration, h *RunHandle, actx *ActContext, logger *slog.Logger) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Executor panicked", "panic", r, "stack", string(debug.Stack()))
			res = ErrorResult(fmt.Errorf("executor panic: %v", r))
		}
	}()
	res = reg.Execute(ctx, h, actx)
	if res == nil {
		res = ErrorResult(fmt.Errorf("executor for %s returned no result", actx.ActName))
	}
	return res
}

// enterPhase resolves the named phase group, creating it and firing the
// group node's "created" edges on first entry. Returns the group container
// and the id of the first created-edge outcome (empty for an existing
// group).
func (d *Dispatcher) enterPhase(ctx context.Context, h *RunHandle, group string, opts map[string]any) (models.ContainerRef, string, error) {
	if g := h.Run.Group(group); g != nil {
		return g.Container(), "", nil
	}

	groupOpts := models.MergeOptBags(opts, map[string]any{
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	})
	groupID, err := d.caps.Durable.CreateGroup(ctx, h.Run.ID, group, groupOpts)
	if err != nil {
		return models.ContainerRef{}, "", fmt.Errorf("creating group %s: %w", group, err)
	}
	g := &models.PhaseGroup{ID: groupID, RunID: h.Run.ID, Label: group, Opts: groupOpts}
	h.Run.Groups = append(h.Run.Groups, g)
	container := g.Container()

	createdID := ""
	if node := d.graph.Node(group); node != nil {
		for _, edge := range node.Results[lifecycle.ResultCreated] {
			target := container
			if edge.In != "" && edge.In != group {
				var err error
				target, _, err = d.enterPhase(ctx, h, edge.In, nil)
				if err != nil {
					return models.ContainerRef{}, "", err
				}
			}
			id, err := d.caps.Durable.RecordOutcome(ctx, target, edge.Name, nil)
			if err != nil {
				return models.ContainerRef{}, "", fmt.Errorf("recording phase outcome %s: %w", edge.Name, err)
			}
			if createdID == "" {
				createdID = id
			}
		}
	}
	return container, createdID, nil
}

// fanOut replays the result's outcome edges (without follow-up acts) on
// every other batched run, so a deploy or release covers the whole batch.
func (d *Dispatcher) fanOut(ctx context.Context, trigger *RunHandle, batch *models.DeployBatch, edges []lifecycle.OutcomeEdge, res *Result, logger *slog.Logger) {
	for _, run := range batch.Issues {
		if run == nil || run.ID == trigger.Run.ID {
			continue
		}
		h := &RunHandle{Run: run}
		for _, edge := range edges {
			container := run.RunContainer()
			if edge.In != "" {
				var err error
				container, _, err = d.enterPhase(ctx, h, edge.In, nil)
				if err != nil {
					logger.Error("Fan-out group creation failed",
						"batched_issue", run.IssueID(), "group", edge.In, "error", err)
					continue
				}
			}
			if _, err := d.caps.Durable.RecordOutcome(ctx, container, edge.Name, res.OutcomeOpts); err != nil {
				logger.Error("Fan-out outcome failed",
					"batched_issue", run.IssueID(), "outcome", edge.Name, "error", err)
			}
		}
		d.moveBoard(ctx, &RunHandle{Run: run, Item: nil}, lastRunLevel(edges), logger)
	}
}

// loadBatch reconstructs the deploy batch named by the act's batchedIssues
// option, resolving each issue id to its open run.
func (d *Dispatcher) loadBatch(ctx context.Context, h *RunHandle, actOpts map[string]any) (*models.DeployBatch, error) {
	var opts models.DeployOpts
	if err := models.DecodeOpts(actOpts, &opts); err != nil {
		return nil, err
	}
	if len(opts.BatchedIssues) == 0 {
		return nil, nil
	}

	open, err := d.caps.Durable.FindOpenIssueRuns(ctx)
	if err != nil {
		return nil, err
	}
	byIssue := make(map[string]*models.Run, len(open))
	for _, run := range open {
		byIssue[run.IssueID()] = run
	}

	batch := &models.DeployBatch{
		TriggerIssueID: h.IssueID(),
		IssueIDs:       opts.BatchedIssues,
	}
	for _, id := range opts.BatchedIssues {
		if id == h.IssueID() {
			batch.Issues = append(batch.Issues, h.Run)
			continue
		}
		if run := byIssue[id]; run != nil {
			batch.Issues = append(batch.Issues, run)
		}
	}
	return batch, nil
}

// moveBoard eagerly projects the latest run-level outcome onto the board.
// The reconciler repairs any miss on the next cycle.
func (d *Dispatcher) moveBoard(ctx context.Context, h *RunHandle, outcome string, logger *slog.Logger) {
	if outcome == "" {
		return
	}
	want, ok := d.graph.State(outcome)
	if !ok {
		return
	}
	issueID := h.IssueID()
	if h.Item != nil && h.Item.Column == string(want) {
		return
	}
	if err := d.caps.Board.MoveTo(ctx, issueID, d.caps.Config.Board.ColumnName(want)); err != nil {
		logger.Warn("Failed to move board item", "to", want, "error", err)
		return
	}
	if h.Item != nil {
		h.Item.Column = string(want)
	}
}

// applyEffect runs the result-type effect handler; failures are logged and
// swallowed so they can never duplicate outcomes.
func (d *Dispatcher) applyEffect(ctx context.Context, reg Registration, h *RunHandle, res *Result, actx *ActContext, logger *slog.Logger) {
	effect, ok := reg.Effects[res.Type]
	if !ok {
		return
	}
	if err := effect(ctx, h, res, actx); err != nil {
		logger.Error("Effect handler failed", "result", res.Type, "error", err)
	}
}

// lastRunLevel returns the last run-level outcome name of the edge list.
func lastRunLevel(edges []lifecycle.OutcomeEdge) string {
	last := ""
	for _, edge := range edges {
		if edge.In == "" {
			last = edge.Name
		}
	}
	return last
}
