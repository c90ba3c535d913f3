package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp-run/warp-coder/pkg/models"
)

func step(repo, command string, deps ...string) models.DeployStep {
	return models.DeployStep{Repo: repo, Command: command, DependsOn: deps}
}

func TestMergeUnionsReposAndEdges(t *testing.T) {
	plans := []IssuePlan{
		{IssueID: "1", Steps: []models.DeployStep{
			step("org/api", "make deploy-api"),
		}},
		{IssueID: "2", Steps: []models.DeployStep{
			step("org/api", "ignored second command"),
			step("org/frontend", "make deploy-fe", "org/api"),
		}},
	}

	merged, err := Merge(plans)
	require.NoError(t, err)

	require.Len(t, merged.Repos, 2)
	// Command comes from the first occurrence.
	assert.Equal(t, "make deploy-api", merged.Repos["org/api"].Command)
	assert.Equal(t, []string{"org/api"}, merged.Repos["org/frontend"].DependsOn)

	byRepo := merged.IssuesByRepo()
	assert.ElementsMatch(t, []string{"1", "2"}, byRepo["org/api"])
	assert.ElementsMatch(t, []string{"2"}, byRepo["org/frontend"])
}

func TestMergeDeduplicatesDependencyEdges(t *testing.T) {
	plans := []IssuePlan{
		{IssueID: "1", Steps: []models.DeployStep{
			step("a", "deploy a"),
			step("b", "deploy b", "a"),
		}},
		{IssueID: "2", Steps: []models.DeployStep{
			step("b", "deploy b", "a"),
		}},
	}

	merged, err := Merge(plans)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, merged.Repos["b"].DependsOn)
}

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	plans := []IssuePlan{
		{IssueID: "1", Steps: []models.DeployStep{
			step("db", "deploy db"),
			step("api", "deploy api", "db"),
			step("frontend", "deploy fe", "api"),
			step("worker", "deploy worker", "db"),
		}},
	}

	merged, err := Merge(plans)
	require.NoError(t, err)

	pos := make(map[string]int, len(merged.Order))
	for i, name := range merged.Order {
		pos[name] = i
	}
	for name, repo := range merged.Repos {
		for _, dep := range repo.DependsOn {
			assert.Less(t, pos[dep], pos[name], "%s must deploy before %s", dep, name)
		}
	}
}

func TestLevelAssignment(t *testing.T) {
	plans := []IssuePlan{
		{IssueID: "1", Steps: []models.DeployStep{
			step("db", "x"),
			step("cache", "x"),
			step("api", "x", "db", "cache"),
			step("frontend", "x", "api"),
		}},
	}

	merged, err := Merge(plans)
	require.NoError(t, err)

	require.Len(t, merged.Levels, 3)
	assert.ElementsMatch(t, []string{"db", "cache"}, merged.Levels[0])
	assert.Equal(t, []string{"api"}, merged.Levels[1])
	assert.Equal(t, []string{"frontend"}, merged.Levels[2])

	// level(v) > level(u) for every edge u → v.
	level := make(map[string]int)
	for l, names := range merged.Levels {
		for _, name := range names {
			level[name] = l
		}
	}
	for name, repo := range merged.Repos {
		for _, dep := range repo.DependsOn {
			assert.Greater(t, level[name], level[dep])
		}
	}
}

func TestCycleDetection(t *testing.T) {
	plans := []IssuePlan{
		{IssueID: "1", Steps: []models.DeployStep{
			step("a", "x", "b"),
			step("b", "x", "a"),
		}},
	}

	_, err := Merge(plans)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircularDependency)
	assert.Contains(t, err.Error(), "Circular dependency")
}

func TestDependencyOutsidePlanIgnored(t *testing.T) {
	plans := []IssuePlan{
		{IssueID: "1", Steps: []models.DeployStep{
			step("api", "x", "not-deployed-here"),
		}},
	}

	merged, err := Merge(plans)
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, merged.Order)
	assert.Equal(t, [][]string{{"api"}}, merged.Levels)
}
