package models

// DeployStep is one repository entry in a per-issue deploy plan.
type DeployStep struct {
	Repo      string   `json:"repo"`
	Command   string   `json:"command,omitempty"`
	DependsOn []string `json:"dependsOn,omitempty"`
}

// DeployBatch is the transitive closure of awaiting-deploy runs that share
// target repositories with the trigger run. Deployed together.
type DeployBatch struct {
	TriggerIssueID string
	IssueIDs       []string
	Issues         []*Run
}

// Contains reports whether the batch includes the given issue.
func (b *DeployBatch) Contains(issueID string) bool {
	for _, id := range b.IssueIDs {
		if id == issueID {
			return true
		}
	}
	return false
}
