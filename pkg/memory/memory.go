// Package memory serialises reflection writes to the shared agent-memory
// document through a single-consumer queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ErrStopped is returned for submissions after Stop.
var ErrStopped = errors.New("memory reflector stopped")

// Store persists the agent-memory document. Implementations need no
// locking; the reflector guarantees one writer.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, doc string) error
}

// ReflectFunc produces the updated memory document from the current one.
// It typically invokes the code-generation runner with a reflection prompt.
type ReflectFunc func(ctx context.Context, current string) (string, error)

type job struct {
	ctx     context.Context
	reflect ReflectFunc
	done    chan error
}

// Reflector owns the memory document: submissions are applied strictly in
// order by one consumer goroutine, so each reflection reads the state its
// predecessor wrote. A nil *Reflector drops submissions, which is the
// disabled mode.
type Reflector struct {
	store    Store
	maxLines int
	logger   *slog.Logger

	jobs     chan job
	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// NewReflector creates and starts a reflector over the given store. Returns
// nil when store is nil, which disables reflection.
func NewReflector(store Store, maxLines int) *Reflector {
	if store == nil {
		return nil
	}
	r := &Reflector{
		store:    store,
		maxLines: maxLines,
		logger:   slog.Default().With("component", "memory"),
		jobs:     make(chan job),
		stopped:  make(chan struct{}),
	}
	r.wg.Add(1)
	go r.consume()
	return r
}

// Submit queues a reflection and blocks until it has been applied (or the
// context is cancelled while still queued).
func (r *Reflector) Submit(ctx context.Context, reflect ReflectFunc) error {
	if r == nil {
		return nil
	}
	j := job{ctx: ctx, reflect: reflect, done: make(chan error, 1)}
	select {
	case r.jobs <- j:
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drains the queue and waits for the consumer to exit.
func (r *Reflector) Stop() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() {
		close(r.stopped)
	})
	r.wg.Wait()
}

func (r *Reflector) consume() {
	defer r.wg.Done()
	for {
		select {
		case j := <-r.jobs:
			j.done <- r.apply(j)
		case <-r.stopped:
			return
		}
	}
}

func (r *Reflector) apply(j job) error {
	current, err := r.store.Load(j.ctx)
	if err != nil {
		return fmt.Errorf("loading memory document: %w", err)
	}
	updated, err := j.reflect(j.ctx, current)
	if err != nil {
		return fmt.Errorf("reflecting: %w", err)
	}
	updated = capLines(updated, r.maxLines)
	if err := r.store.Save(j.ctx, updated); err != nil {
		return fmt.Errorf("saving memory document: %w", err)
	}
	r.logger.Info("Memory document updated", "lines", strings.Count(updated, "\n")+1)
	return nil
}

// capLines truncates doc to at most max lines, keeping the head. max <= 0
// means no cap.
func capLines(doc string, max int) string {
	if max <= 0 {
		return doc
	}
	lines := strings.Split(doc, "\n")
	if len(lines) <= max {
		return doc
	}
	return strings.Join(lines[:max], "\n")
}
