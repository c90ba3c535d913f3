package deploy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/warp-run/warp-coder/pkg/models"
)

// ErrCircularDependency indicates the merged deploy DAG contains a cycle.
// The message is surfaced verbatim in the deploy error result.
var ErrCircularDependency = errors.New("Circular dependency in deploy plan")

// IssuePlan is one issue's contribution to the merged plan.
type IssuePlan struct {
	IssueID string
	Steps   []models.DeployStep
}

// Repo is one repository entry of the merged plan.
type Repo struct {
	Name      string
	Command   string
	DependsOn []string
	Issues    []string
}

// MergedPlan is the union of all batched issue plans: one DAG over
// repositories, topologically ordered and partitioned into parallel levels.
type MergedPlan struct {
	// Repos is keyed by repository name.
	Repos map[string]*Repo
	// Order is a topological order over repo names.
	Order []string
	// Levels partitions Order: repos at the same level deploy concurrently,
	// levels run sequentially.
	Levels [][]string
}

// Merge combines the batched issue plans into one validated, ordered plan.
// The command for each repo is taken from its first occurrence
// (configuration guarantees a single command per repo); dependency edges
// are the de-duplicated union. A cycle yields ErrCircularDependency.
func Merge(plans []IssuePlan) (*MergedPlan, error) {
	merged := &MergedPlan{Repos: make(map[string]*Repo)}

	for _, plan := range plans {
		for _, step := range plan.Steps {
			repo, ok := merged.Repos[step.Repo]
			if !ok {
				repo = &Repo{Name: step.Repo, Command: step.Command}
				merged.Repos[step.Repo] = repo
			}
			repo.DependsOn = unionStrings(repo.DependsOn, step.DependsOn)
			repo.Issues = unionStrings(repo.Issues, []string{plan.IssueID})
		}
	}

	order, err := topoSort(merged.Repos)
	if err != nil {
		return nil, err
	}
	merged.Order = order
	merged.Levels = assignLevels(merged.Repos, order)
	return merged, nil
}

// IssuesByRepo returns the issue ids that targeted each repository.
func (p *MergedPlan) IssuesByRepo() map[string][]string {
	byRepo := make(map[string][]string, len(p.Repos))
	for name, repo := range p.Repos {
		byRepo[name] = append([]string(nil), repo.Issues...)
	}
	return byRepo
}

// topoSort computes a Kahn-style topological order over the repo DAG.
// Dependencies on repos outside the plan are ignored (they are not being
// deployed in this batch).
func topoSort(repos map[string]*Repo) ([]string, error) {
	indegree := make(map[string]int, len(repos))
	dependents := make(map[string][]string, len(repos))

	names := make([]string, 0, len(repos))
	for name := range repos {
		names = append(names, name)
		indegree[name] = 0
	}
	sort.Strings(names)

	for _, name := range names {
		for _, dep := range repos[name].DependsOn {
			if _, ok := repos[dep]; !ok {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for _, name := range names {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(repos))
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, next := range dependents[name] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(repos) {
		var stuck []string
		for _, name := range names {
			if indegree[name] > 0 {
				stuck = append(stuck, name)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrCircularDependency, stuck)
	}
	return order, nil
}

// assignLevels computes each repo's level as max(dep levels)+1, walking the
// already-topologically-sorted order so dependency levels are final.
func assignLevels(repos map[string]*Repo, order []string) [][]string {
	level := make(map[string]int, len(repos))
	maxLevel := 0

	for _, name := range order {
		l := 0
		for _, dep := range repos[name].DependsOn {
			if depLevel, ok := level[dep]; ok && depLevel+1 > l {
				l = depLevel + 1
			}
		}
		level[name] = l
		if l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, name := range order {
		levels[level[name]] = append(levels[level[name]], name)
	}
	return levels
}

func unionStrings(have, add []string) []string {
	seen := make(map[string]struct{}, len(have))
	for _, s := range have {
		seen[s] = struct{}{}
	}
	for _, s := range add {
		if _, ok := seen[s]; !ok {
			have = append(have, s)
			seen[s] = struct{}{}
		}
	}
	return have
}
