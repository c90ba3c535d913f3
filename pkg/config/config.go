// Package config loads, merges, and validates the warp-coder configuration.
package config

import (
	"time"

	"github.com/warp-run/warp-coder/pkg/lifecycle"
	"github.com/warp-run/warp-coder/pkg/models"
)

// BoardConfig selects and configures the board adapter.
type BoardConfig struct {
	Provider string
	Project  string
	// Columns maps the fixed column vocabulary to provider-specific column
	// names (e.g. inProgress → "In Progress").
	Columns map[lifecycle.Column]string
}

// ColumnName resolves a column key to the provider-specific name, falling
// back to the key itself.
func (b *BoardConfig) ColumnName(col lifecycle.Column) string {
	if name, ok := b.Columns[col]; ok && name != "" {
		return name
	}
	return string(col)
}

// CodehostConfig selects the pull-request/issue/notification backend.
type CodehostConfig struct {
	Provider string
}

// DeployTarget configures the deploy step for one repository.
type DeployTarget struct {
	Command   string
	DependsOn []string
}

// MemoryConfig toggles agent-memory reflection.
type MemoryConfig struct {
	Enabled  bool
	MaxLines int
}

// HooksConfig holds shell commands run at named lifecycle points.
type HooksConfig struct {
	OnBranchCreate string
	OnBeforePush   string
	OnPRCreated    string
	OnBeforeMerge  string
	OnMerged       string
	Timeout        time.Duration
}

// Config is the resolved, validated runner configuration.
type Config struct {
	// Repos is the ordered repository list; the first entry is primary.
	Repos []string

	Board    BoardConfig
	Codehost CodehostConfig

	// Concurrency is the scheduler worker pool size.
	Concurrency int

	// PollInterval is the time between poll ticks.
	PollInterval time.Duration

	// MaxRevisions is the revise-act retry ceiling.
	MaxRevisions int

	// MaxTurnsRetries is the implement-act max-turns retry ceiling.
	MaxTurnsRetries int

	// Deploy maps repository → deploy target.
	Deploy map[string]DeployTarget

	Memory MemoryConfig

	// WarpmetricsAPIKey enables the durable-state HTTP client; when absent
	// the in-memory stub is used.
	WarpmetricsAPIKey string

	// WarpmetricsBaseURL overrides the service endpoint (tests, staging).
	WarpmetricsBaseURL string

	Hooks HooksConfig

	// HTTPPort serves the status/health API when non-empty.
	HTTPPort string

	// GraphFile points at a user lifecycle document; empty uses the
	// built-in lifecycle.
	GraphFile string
}

// PrimaryRepo returns the first configured repository.
func (c *Config) PrimaryRepo() string {
	if len(c.Repos) == 0 {
		return ""
	}
	return c.Repos[0]
}

// DeployPlanFor builds the per-issue deploy plan over the given repos.
// Repos without a deploy target still appear: a step with no configured
// command deploys as a logged no-op.
func (c *Config) DeployPlanFor(repos []string) []models.DeployStep {
	var plan []models.DeployStep
	for _, repo := range repos {
		target := c.Deploy[repo]
		plan = append(plan, models.DeployStep{
			Repo:      repo,
			Command:   target.Command,
			DependsOn: target.DependsOn,
		})
	}
	return plan
}
