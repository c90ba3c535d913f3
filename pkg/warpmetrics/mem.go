package warpmetrics

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/warp-run/warp-coder/pkg/models"
)

// MemClient is the in-memory durable-state stub, selected when no
// warpmetrics API key is configured. Safe for concurrent use. Ids are ULIDs
// so append order and id order agree, which keeps log output readable.
type MemClient struct {
	mu      sync.Mutex
	entropy *rand.Rand

	runs     []*models.Run
	groups   map[string]*models.PhaseGroup // group id → group
	outcomes map[string]*models.Outcome    // outcome id → outcome
	acts     map[string]*models.Act        // act id → act (recorded only)
	reserved map[string]string             // reserved act id → name
	created  map[string]time.Time          // run id → creation time
}

var _ Client = (*MemClient)(nil)

// NewMemClient creates an empty in-memory durable-state client.
func NewMemClient() *MemClient {
	return &MemClient{
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
		groups:   make(map[string]*models.PhaseGroup),
		outcomes: make(map[string]*models.Outcome),
		acts:     make(map[string]*models.Act),
		reserved: make(map[string]string),
		created:  make(map[string]time.Time),
	}
}

// newID must be called with mu held.
func (c *MemClient) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy).String()
}

// ReserveAct allocates an id without publishing the act.
func (c *MemClient) ReserveAct(_ context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.newID()
	c.reserved[id] = name
	return id, nil
}

// StartRun appends a new run, optionally as a follow-up of refActID.
func (c *MemClient) StartRun(_ context.Context, refActID, label string, opts map[string]any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run := &models.Run{
		ID:    c.newID(),
		Label: label,
		Opts:  copyOpts(opts),
	}
	if refActID != "" {
		act, ok := c.acts[refActID]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrActNotFound, refActID)
		}
		act.FollowUpRuns = append(act.FollowUpRuns, run.ID)
	}
	c.runs = append(c.runs, run)
	c.created[run.ID] = time.Now()
	return run.ID, nil
}

// CreateGroup appends a phase group to a run.
func (c *MemClient) CreateGroup(_ context.Context, runID, label string, opts map[string]any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run := c.findRun(runID)
	if run == nil {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	group := &models.PhaseGroup{
		ID:    c.newID(),
		RunID: runID,
		Label: label,
		Opts:  copyOpts(opts),
	}
	run.Groups = append(run.Groups, group)
	c.groups[group.ID] = group
	return group.ID, nil
}

// RecordOutcome appends an outcome to a run or group.
func (c *MemClient) RecordOutcome(_ context.Context, container models.ContainerRef, name string, opts map[string]any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcome := &models.Outcome{
		ID:        c.newID(),
		Name:      name,
		Timestamp: time.Now(),
		Opts:      copyOpts(opts),
	}

	switch container.Kind {
	case models.ContainerRun:
		run := c.findRun(container.ID)
		if run == nil {
			return "", fmt.Errorf("%w: run %s", ErrContainerNotFound, container.ID)
		}
		run.Outcomes = append(run.Outcomes, outcome)
	case models.ContainerGroup:
		group, ok := c.groups[container.ID]
		if !ok {
			return "", fmt.Errorf("%w: group %s", ErrContainerNotFound, container.ID)
		}
		group.Outcomes = append(group.Outcomes, outcome)
	default:
		return "", fmt.Errorf("%w: kind %q", ErrContainerNotFound, container.Kind)
	}

	c.outcomes[outcome.ID] = outcome
	return outcome.ID, nil
}

// RecordAct appends an act under an outcome, honouring a prior reservation.
func (c *MemClient) RecordAct(_ context.Context, outcomeID, reservedID, name string, opts map[string]any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcome, ok := c.outcomes[outcomeID]
	if !ok {
		return "", fmt.Errorf("%w: outcome %s", ErrContainerNotFound, outcomeID)
	}

	id := reservedID
	if id != "" {
		delete(c.reserved, id)
	} else {
		id = c.newID()
	}
	act := &models.Act{
		ID:   id,
		Name: name,
		Opts: copyOpts(opts),
	}
	outcome.Acts = append(outcome.Acts, act)
	c.acts[act.ID] = act
	return act.ID, nil
}

// FindOpenIssueRuns returns deep copies of all non-terminal issue runs.
func (c *MemClient) FindOpenIssueRuns(_ context.Context) ([]*models.Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var open []*models.Run
	for _, run := range c.runs {
		if run.Label != models.RunLabelIssue {
			continue
		}
		if IsOpen(run) {
			open = append(open, copyRun(run))
		}
	}
	return open, nil
}

// FindRuns returns deep copies of runs matching label and filter.
func (c *MemClient) FindRuns(_ context.Context, label string, filter RunFilter) ([]*models.Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var since time.Time
	if filter.Since != "" {
		t, err := time.Parse(time.RFC3339, filter.Since)
		if err != nil {
			return nil, fmt.Errorf("parsing since filter: %w", err)
		}
		since = t
	}

	var matched []*models.Run
	for _, run := range c.runs {
		if run.Label != label {
			continue
		}
		if filter.IssueID != "" {
			if id, _ := run.Opts[models.OptIssueID].(string); id != filter.IssueID {
				continue
			}
		}
		if filter.PR != 0 && !optsPRMatches(run.Opts, filter.PR) {
			continue
		}
		if !since.IsZero() && c.created[run.ID].Before(since) {
			continue
		}
		matched = append(matched, copyRun(run))
	}
	return matched, nil
}

// optsPRMatches tolerates both int and float64 (JSON round-trip) PR values.
func optsPRMatches(opts map[string]any, pr int) bool {
	switch v := opts[models.OptPRNumber].(type) {
	case int:
		return v == pr
	case float64:
		return int(v) == pr
	default:
		return false
	}
}

func (c *MemClient) findRun(id string) *models.Run {
	for _, run := range c.runs {
		if run.ID == id {
			return run
		}
	}
	return nil
}

func copyOpts(opts map[string]any) map[string]any {
	if opts == nil {
		return nil
	}
	dup := make(map[string]any, len(opts))
	for k, v := range opts {
		dup[k] = v
	}
	return dup
}

func copyRun(run *models.Run) *models.Run {
	dup := &models.Run{
		ID:    run.ID,
		Label: run.Label,
		Opts:  copyOpts(run.Opts),
	}
	for _, o := range run.Outcomes {
		dup.Outcomes = append(dup.Outcomes, copyOutcome(o))
	}
	for _, g := range run.Groups {
		dup.Groups = append(dup.Groups, copyGroup(g))
	}
	return dup
}

func copyGroup(g *models.PhaseGroup) *models.PhaseGroup {
	dup := &models.PhaseGroup{
		ID:    g.ID,
		RunID: g.RunID,
		Label: g.Label,
		Opts:  copyOpts(g.Opts),
	}
	for _, o := range g.Outcomes {
		dup.Outcomes = append(dup.Outcomes, copyOutcome(o))
	}
	return dup
}

func copyOutcome(o *models.Outcome) *models.Outcome {
	dup := &models.Outcome{
		ID:        o.ID,
		Name:      o.Name,
		Timestamp: o.Timestamp,
		Opts:      copyOpts(o.Opts),
	}
	for _, a := range o.Acts {
		dup.Acts = append(dup.Acts, &models.Act{
			ID:           a.ID,
			Name:         a.Name,
			Opts:         copyOpts(a.Opts),
			FollowUpRuns: append([]string(nil), a.FollowUpRuns...),
		})
	}
	return dup
}
