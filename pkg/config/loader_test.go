package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp-run/warp-coder/pkg/lifecycle"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))
	return dir
}

func TestInitializeAppliesDefaults(t *testing.T) {
	dir := writeConfig(t, `
repos:
  - org/api
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"org/api"}, cfg.Repos)
	assert.Equal(t, "org/api", cfg.PrimaryRepo())
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, time.Duration(DefaultPollSeconds)*time.Second, cfg.PollInterval)
	assert.Equal(t, DefaultMaxRevisions, cfg.MaxRevisions)
	assert.Equal(t, DefaultMaxTurnsRetries, cfg.MaxTurnsRetries)
	assert.Equal(t, time.Duration(DefaultHookSeconds)*time.Second, cfg.Hooks.Timeout)
	assert.False(t, cfg.Memory.Enabled)
}

func TestInitializeUserValuesOverrideDefaults(t *testing.T) {
	dir := writeConfig(t, `
repos:
  - org/api
  - org/frontend
concurrency: 4
pollInterval: 5
maxRevisions: 1
board:
  provider: none
  project: demo
  columns:
    inProgress: "In Progress"
deploy:
  org/api:
    command: make deploy
  org/frontend:
    command: make deploy-fe
    dependsOn: [org/api]
memory:
  enabled: true
  maxLines: 50
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 1, cfg.MaxRevisions)
	assert.Equal(t, "In Progress", cfg.Board.ColumnName(lifecycle.ColumnInProgress))
	assert.Equal(t, "todo", cfg.Board.ColumnName(lifecycle.ColumnTodo))
	assert.Equal(t, []string{"org/api"}, cfg.Deploy["org/frontend"].DependsOn)
	assert.True(t, cfg.Memory.Enabled)
	assert.Equal(t, 50, cfg.Memory.MaxLines)
}

func TestInitializeExpandsEnvTemplates(t *testing.T) {
	t.Setenv("TEST_WM_KEY", "wm-secret")
	dir := writeConfig(t, `
repos:
  - org/api
warpmetricsApiKey: "{{.TEST_WM_KEY}}"
deploy:
  org/api:
    command: "make deploy ENV=$DEPLOY_ENV"
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "wm-secret", cfg.WarpmetricsAPIKey)
	// Shell-style $VAR passes through untouched.
	assert.Equal(t, "make deploy ENV=$DEPLOY_ENV", cfg.Deploy["org/api"].Command)
}

func TestInitializeMissingFile(t *testing.T) {
	_, err := Initialize(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestInitializeValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no repos",
			yaml:    `concurrency: 1`,
			wantErr: "at least one repository",
		},
		{
			name: "duplicate repos",
			yaml: `
repos: [org/api, org/api]
`,
			wantErr: "duplicate repository",
		},
		{
			name: "unknown column key",
			yaml: `
repos: [org/api]
board:
  columns:
    shipping: "Shipping"
`,
			wantErr: "unknown column key",
		},
		{
			name: "deploy dependency without target",
			yaml: `
repos: [org/api]
deploy:
  org/api:
    command: make deploy
    dependsOn: [org/ghost]
`,
			wantErr: "has no deploy target",
		},
		{
			name: "self dependency",
			yaml: `
repos: [org/api]
deploy:
  org/api:
    command: make deploy
    dependsOn: [org/api]
`,
			wantErr: "cannot depend on itself",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeConfig(t, tc.yaml)
			_, err := Initialize(context.Background(), dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationFailed)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDeployPlanForIncludesUnconfiguredRepos(t *testing.T) {
	cfg := &Config{
		Deploy: map[string]DeployTarget{
			"org/api": {Command: "make deploy", DependsOn: []string{"org/db"}},
		},
	}
	plan := cfg.DeployPlanFor([]string{"org/api", "org/docs"})
	require.Len(t, plan, 2)
	assert.Equal(t, "make deploy", plan[0].Command)
	// Unconfigured repos deploy as logged no-ops.
	assert.Equal(t, "org/docs", plan[1].Repo)
	assert.Empty(t, plan[1].Command)
}
