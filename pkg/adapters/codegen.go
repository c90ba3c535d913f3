package adapters

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/warp-run/warp-coder/pkg/codegen"
)

// CLIStarter launches the configured code-generation CLI. The tool is
// expected to read the prompt on stdin and emit JSON-lines events on
// stdout.
type CLIStarter struct {
	// Command is the tool invocation, split on whitespace; the first token
	// is the executable.
	Command string
}

var _ codegen.ProcessStarter = (*CLIStarter)(nil)

// Start launches the tool for one request.
func (s *CLIStarter) Start(ctx context.Context, req codegen.Request) (*codegen.Process, error) {
	parts := strings.Fields(s.Command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("no code-generation command configured")
	}

	args := parts[1:]
	if req.Resume != "" {
		args = append(args, "--resume", req.Resume)
	}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(req.MaxTurns))
	}

	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Dir = req.Workdir
	cmd.Stdin = strings.NewReader(req.Prompt)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", parts[0], err)
	}

	return &codegen.Process{
		Stdout: stdout,
		Wait:   cmd.Wait,
		Kill:   func() error { return cmd.Process.Kill() },
	}, nil
}
