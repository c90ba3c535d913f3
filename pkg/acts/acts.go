// Package acts provides the standard executor set for the built-in issue
// lifecycle. Executors run exclusively against the injected capability
// interfaces; no shell-outs or HTTP calls live here.
package acts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/warp-run/warp-coder/pkg/runner"
)

// actMarker embeds a reserved act id in a PR body so later acts can
// cross-reference the trajectory.
const actMarkerFormat = "<!-- warp-coder:act:%s -->"

// agentLabel tags issues the agent is working.
const agentLabel = "warp-coder"

// Registry returns the standard act registrations keyed by act name,
// matching the built-in lifecycle document.
func Registry() map[string]runner.Registration {
	return map[string]runner.Registration{
		"implement": {
			Execute: Implement,
			Effects: map[string]runner.Effect{
				runner.ResultAskUser: questionEffect,
				runner.ResultError:   errorEffect("implement"),
			},
		},
		"await_reply": {
			Execute: AwaitReply,
			Gate:    runner.ReplyGate,
		},
		"review": {
			Execute: Review,
			Gate:    runner.ReviewGate,
			Effects: map[string]runner.Effect{
				runner.ResultError: errorEffect("review"),
			},
		},
		"revise": {
			Execute: Revise,
			Effects: map[string]runner.Effect{
				runner.ResultMaxRetries: maxRetriesEffect,
				runner.ResultError:      errorEffect("revise"),
			},
		},
		"merge": {
			Execute: Merge,
			Effects: map[string]runner.Effect{
				runner.ResultShipped: shippedEffect,
				runner.ResultError:   errorEffect("merge"),
			},
		},
		"await_deploy": {
			Execute: AwaitDeploy,
			Gate:    runner.DeployGate,
		},
		"run_deploy": {
			Execute: RunDeploy,
			Effects: map[string]runner.Effect{
				runner.ResultError: errorEffect("deploy"),
			},
		},
		"release": {
			Execute: Release,
			Effects: map[string]runner.Effect{
				runner.ResultSuccess: releasedEffect,
				runner.ResultError:   errorEffect("release"),
			},
		},
		"reflect": {
			Execute: Reflect,
		},
	}
}

func actMarker(actID string) string {
	return fmt.Sprintf(actMarkerFormat, actID)
}

// Workdir returns (and creates) the issue's checkout directory under the
// scratch root. Per-issue mutual exclusion guarantees a single user.
func Workdir(issueID string) (string, error) {
	dir := filepath.Join(os.TempDir(), "warp-coder", "issue-"+issueID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating workdir: %w", err)
	}
	return dir, nil
}
