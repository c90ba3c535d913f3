// Package adapters supplies the concrete capability implementations the
// binary wires at startup: shell command runners, the code-generation CLI
// starter, and the notifier sender. Board and code-host providers register
// here as they are implemented.
package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// ShellRunner executes commands through the shell in a working directory.
// It backs both the deploy executor and the lifecycle hooks.
type ShellRunner struct {
	logger *slog.Logger
}

// NewShellRunner creates a shell command runner.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{logger: slog.Default().With("component", "shell")}
}

// Run executes command with dir as the working directory. Cancellation
// kills the process.
func (r *ShellRunner) Run(ctx context.Context, dir, command string) error {
	r.logger.Info("Running command", "dir", dir, "command", command)
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command failed: %w: %s", err, string(out))
	}
	return nil
}

// DeployRunner adapts the shell runner to the deploy executor's contract:
// the repo name is informational, commands run from the process directory.
type DeployRunner struct {
	shell *ShellRunner
}

// NewDeployRunner creates the deploy command runner.
func NewDeployRunner() *DeployRunner {
	return &DeployRunner{shell: NewShellRunner()}
}

// Run executes one repository's deploy command.
func (r *DeployRunner) Run(ctx context.Context, repo, command string) error {
	r.shell.logger.Info("Deploy step", "repo", repo)
	return r.shell.Run(ctx, "", command)
}
