package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp-run/warp-coder/pkg/config"
)

// StepStatus is one row of the supervisor's status table.
type StepStatus struct {
	IssueID string    `json:"issueId"`
	Step    string    `json:"step"`
	Since   time.Time `json:"since"`
}

// Supervisor owns the poll loop and the bounded worker pool. At most one
// worker runs per issue; a worker releases its slot only after the act's
// outcome is durably recorded.
type Supervisor struct {
	cfg        *config.Config
	reconciler *Reconciler
	dispatcher *Dispatcher
	logger     *slog.Logger

	sem chan struct{}

	mu       sync.Mutex
	inFlight map[string]struct{}
	status   map[string]StepStatus

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSupervisor creates the supervisor over discovery and dispatch.
func NewSupervisor(cfg *config.Config, reconciler *Reconciler, dispatcher *Dispatcher) *Supervisor {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Supervisor{
		cfg:        cfg,
		reconciler: reconciler,
		dispatcher: dispatcher,
		logger:     slog.Default().With("component", "supervisor"),
		sem:        make(chan struct{}, concurrency),
		inFlight:   make(map[string]struct{}),
		status:     make(map[string]StepStatus),
		stopCh:     make(chan struct{}),
	}
}

// Run polls until Stop is called or the context is cancelled. A failing
// poll cycle is logged and the loop continues. In-flight workers are
// drained before Run returns.
func (s *Supervisor) Run(ctx context.Context) {
	s.logger.Info("Supervisor started",
		"concurrency", cap(s.sem), "poll_interval", s.cfg.PollInterval)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopCh:
			s.logger.Info("Supervisor stopping, draining workers")
			s.wg.Wait()
			return
		case <-ctx.Done():
			s.logger.Info("Supervisor context cancelled, draining workers")
			s.wg.Wait()
			return
		}
	}
}

// Stop signals the poll loop to exit. Safe to call more than once; Run
// returns after in-flight workers drain.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Status returns a copy of the current status table.
func (s *Supervisor) Status() []StepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, st)
	}
	return out
}

// InFlight returns the number of running workers.
func (s *Supervisor) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// tick runs one poll cycle: discover, filter, dispatch.
func (s *Supervisor) tick(ctx context.Context) {
	select {
	case <-s.stopCh:
		return
	default:
	}

	cycleID := uuid.NewString()
	work, snap, err := s.reconciler.Discover(ctx)
	if err != nil {
		s.logger.Error("Poll cycle failed", "cycle_id", cycleID, "error", err)
		return
	}
	s.logger.Debug("Poll cycle", "cycle_id", cycleID, "actionable", len(work))

	for _, a := range work {
		issueID := a.IssueID()
		if !s.claim(issueID) {
			continue
		}

		ready, err := s.dispatcher.Ready(ctx, a, snap)
		if err != nil {
			s.logger.Warn("Gate check failed", "issue_id", issueID, "error", err)
			s.release(issueID)
			continue
		}
		if !ready {
			s.release(issueID)
			continue
		}

		select {
		case s.sem <- struct{}{}:
		case <-s.stopCh:
			s.release(issueID)
			return
		default:
			// Pool exhausted; remaining work waits for the next tick.
			s.release(issueID)
			return
		}

		s.setStatus(issueID, stepName(a))
		s.wg.Add(1)
		go func(a *Actionable, issueID string) {
			defer s.wg.Done()
			defer func() {
				<-s.sem
				s.release(issueID)
			}()
			if err := s.dispatcher.Dispatch(ctx, a); err != nil {
				s.logger.Error("Dispatch failed", "issue_id", issueID, "error", err)
			}
		}(a, issueID)
	}
}

func (s *Supervisor) claim(issueID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[issueID]; busy {
		return false
	}
	s.inFlight[issueID] = struct{}{}
	return true
}

func (s *Supervisor) release(issueID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, issueID)
	delete(s.status, issueID)
}

func (s *Supervisor) setStatus(issueID, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[issueID] = StepStatus{IssueID: issueID, Step: step, Since: time.Now()}
}

func stepName(a *Actionable) string {
	if a.Start {
		return "start"
	}
	return a.Act.Name
}
