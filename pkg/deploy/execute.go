package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// CommandRunner executes one repository's deploy command. Implementations
// shell out (or not); the planner only sequences calls.
type CommandRunner interface {
	Run(ctx context.Context, repo, command string) error
}

// Result reports which repositories completed before execution stopped.
type Result struct {
	Completed []string
	Failed    []string
}

// Executor runs a merged plan level by level: repos within one level deploy
// concurrently, levels run sequentially, and a failing level aborts all
// later levels.
type Executor struct {
	runner CommandRunner
	logger *slog.Logger
}

// NewExecutor creates a plan executor over the given command runner.
func NewExecutor(runner CommandRunner) *Executor {
	return &Executor{
		runner: runner,
		logger: slog.Default().With("component", "deploy"),
	}
}

// Execute deploys the merged plan. The returned Result is valid even when
// err is non-nil: Completed lists the repos that finished successfully.
func (e *Executor) Execute(ctx context.Context, plan *MergedPlan) (*Result, error) {
	result := &Result{}

	for levelIdx, level := range plan.Levels {
		g, gctx := errgroup.WithContext(ctx)
		completed := make([]bool, len(level))

		for i, name := range level {
			i := i
			repo := plan.Repos[name]
			g.Go(func() error {
				if repo.Command == "" {
					// No configured command: a logged no-op, not an error.
					e.logger.Info("No deploy command configured, skipping",
						"repo", repo.Name, "level", levelIdx)
					completed[i] = true
					return nil
				}
				e.logger.Info("Deploying", "repo", repo.Name, "level", levelIdx)
				if err := e.runner.Run(gctx, repo.Name, repo.Command); err != nil {
					return fmt.Errorf("deploying %s: %w", repo.Name, err)
				}
				completed[i] = true
				return nil
			})
		}

		err := g.Wait()
		for i, name := range level {
			if completed[i] {
				result.Completed = append(result.Completed, name)
			} else {
				result.Failed = append(result.Failed, name)
			}
		}
		if err != nil {
			e.logger.Error("Deploy level failed, aborting remaining levels",
				"level", levelIdx, "error", err)
			return result, err
		}
	}
	return result, nil
}
