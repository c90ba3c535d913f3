// Package deploy builds transitive deploy batches over concurrent runs,
// merges their per-issue plans into one DAG, orders it topologically, and
// executes it level by level.
package deploy

import (
	"sort"

	"github.com/warp-run/warp-coder/pkg/models"
)

// batchIterationCap bounds the closure loop. The batch grows by at least one
// run per pass, so the cap is only reachable with pathological input.
const batchIterationCap = 64

// Candidate is one run currently awaiting deploy, annotated with the
// repositories its plan targets.
type Candidate struct {
	IssueID string
	Run     *models.Run
	Repos   []string
}

// BuildBatch computes the transitive deploy batch seeded by the trigger:
// the connected component of the trigger in the "shares a repository"
// graph over all awaiting candidates. The result is independent of
// candidate order; issue ids are sorted with the trigger first.
func BuildBatch(trigger Candidate, awaiting []Candidate) *models.DeployBatch {
	selected := map[string]Candidate{trigger.IssueID: trigger}
	repos := make(map[string]struct{}, len(trigger.Repos))
	for _, r := range trigger.Repos {
		repos[r] = struct{}{}
	}

	for i := 0; i < batchIterationCap; i++ {
		added := false
		for _, cand := range awaiting {
			if _, ok := selected[cand.IssueID]; ok {
				continue
			}
			if !sharesRepo(repos, cand.Repos) {
				continue
			}
			selected[cand.IssueID] = cand
			for _, r := range cand.Repos {
				repos[r] = struct{}{}
			}
			added = true
		}
		if !added {
			break
		}
	}

	ids := make([]string, 0, len(selected))
	for id := range selected {
		if id != trigger.IssueID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	ids = append([]string{trigger.IssueID}, ids...)

	batch := &models.DeployBatch{
		TriggerIssueID: trigger.IssueID,
		IssueIDs:       ids,
	}
	for _, id := range ids {
		batch.Issues = append(batch.Issues, selected[id].Run)
	}
	return batch
}

func sharesRepo(have map[string]struct{}, repos []string) bool {
	for _, r := range repos {
		if _, ok := have[r]; ok {
			return true
		}
	}
	return false
}
