// Package hooks runs user-configured shell commands at named lifecycle
// points.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/warp-run/warp-coder/pkg/config"
)

// Point names a lifecycle hook.
type Point string

const (
	OnBranchCreate Point = "onBranchCreate"
	OnBeforePush   Point = "onBeforePush"
	OnPRCreated    Point = "onPRCreated"
	OnBeforeMerge  Point = "onBeforeMerge"
	OnMerged       Point = "onMerged"
)

// CommandRunner executes one hook command in a workdir. Implementations
// shell out; the hook runner only sequences and times calls.
type CommandRunner interface {
	Run(ctx context.Context, workdir, command string) error
}

// Runner resolves hook points to configured commands and executes them
// under the hook timeout. A nil *Runner skips every point.
type Runner struct {
	cfg     config.HooksConfig
	exec    CommandRunner
	logger  *slog.Logger
	timeout time.Duration
}

// NewRunner creates a hook runner. Returns nil when exec is nil, which
// disables hooks.
func NewRunner(cfg config.HooksConfig, exec CommandRunner) *Runner {
	if exec == nil {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultHookSeconds * time.Second
	}
	return &Runner{
		cfg:     cfg,
		exec:    exec,
		logger:  slog.Default().With("component", "hooks"),
		timeout: timeout,
	}
}

// Run executes the command configured for point in workdir. An unconfigured
// point is a no-op; a failing or timed-out command is an error the caller
// decides how to treat.
func (r *Runner) Run(ctx context.Context, point Point, workdir string) error {
	if r == nil {
		return nil
	}
	command := r.command(point)
	if command == "" {
		return nil
	}

	r.logger.Info("Running hook", "point", point, "workdir", workdir)
	hookCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.exec.Run(hookCtx, workdir, command); err != nil {
		return fmt.Errorf("hook %s: %w", point, err)
	}
	return nil
}

func (r *Runner) command(point Point) string {
	switch point {
	case OnBranchCreate:
		return r.cfg.OnBranchCreate
	case OnBeforePush:
		return r.cfg.OnBeforePush
	case OnPRCreated:
		return r.cfg.OnPRCreated
	case OnBeforeMerge:
		return r.cfg.OnBeforeMerge
	case OnMerged:
		return r.cfg.OnMerged
	default:
		return ""
	}
}
