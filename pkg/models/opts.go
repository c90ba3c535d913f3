package models

import (
	"encoding/json"
	"fmt"
)

// Act option bags cross the dispatcher boundary as free-form maps (that is
// what the durable store records). Executors decode them into the typed
// shapes below at the boundary and never index raw keys.

// ImplementOpts are the options of implement and await_reply acts.
type ImplementOpts struct {
	SessionID  string `json:"sessionId,omitempty"`
	RetryCount int    `json:"retryCount,omitempty"`
	AskedAt    string `json:"askedAt,omitempty"`
}

// ReviseOpts are the options of review and revise acts.
type ReviseOpts struct {
	PR         int    `json:"pr,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	RetryCount int    `json:"retryCount,omitempty"`
}

// MergeOpts are the options of merge acts.
type MergeOpts struct {
	PRs []int `json:"prs,omitempty"`
}

// DeployOpts are the options of await_deploy and run_deploy acts.
type DeployOpts struct {
	PRs           []int        `json:"prs,omitempty"`
	Repos         []string     `json:"repos,omitempty"`
	Release       string       `json:"release,omitempty"`
	BatchedIssues []string     `json:"batchedIssues,omitempty"`
	Plan          []DeployStep `json:"plan,omitempty"`
}

// ReleaseOpts are the options of release acts.
type ReleaseOpts struct {
	Issues []string `json:"issues,omitempty"`
	PRs    []int    `json:"prs,omitempty"`
}

// DecodeOpts converts an option bag into a typed payload via a JSON
// round-trip. A nil bag decodes to the zero value.
func DecodeOpts(opts map[string]any, target any) error {
	if opts == nil {
		return nil
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encoding act options: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding act options: %w", err)
	}
	return nil
}

// EncodeOpts converts a typed payload back into an option bag.
func EncodeOpts(payload any) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding options payload: %w", err)
	}
	var opts map[string]any
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("decoding options payload: %w", err)
	}
	return opts, nil
}

// MergeOptBags overlays b on a without mutating either. Used when forwarding
// nextActOpts keys into a follow-up act.
func MergeOptBags(a, b map[string]any) map[string]any {
	if a == nil && b == nil {
		return nil
	}
	merged := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}
