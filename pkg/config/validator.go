package config

import "fmt"

// Validator validates resolved configuration with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast, first error wins).
func (v *Validator) ValidateAll() error {
	if err := v.validateRepos(); err != nil {
		return fmt.Errorf("repository validation failed: %w", err)
	}
	if err := v.validateBoard(); err != nil {
		return fmt.Errorf("board validation failed: %w", err)
	}
	if err := v.validateScheduler(); err != nil {
		return fmt.Errorf("scheduler validation failed: %w", err)
	}
	if err := v.validateDeploy(); err != nil {
		return fmt.Errorf("deploy validation failed: %w", err)
	}
	if err := v.validateMemory(); err != nil {
		return fmt.Errorf("memory validation failed: %w", err)
	}
	if err := v.validateHooks(); err != nil {
		return fmt.Errorf("hooks validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateRepos() error {
	if len(v.cfg.Repos) == 0 {
		return NewValidationError("repos", "", "", fmt.Errorf("at least one repository required"))
	}
	seen := make(map[string]struct{}, len(v.cfg.Repos))
	for _, repo := range v.cfg.Repos {
		if repo == "" {
			return NewValidationError("repos", "", "", fmt.Errorf("repository URL must not be empty"))
		}
		if _, dup := seen[repo]; dup {
			return NewValidationError("repos", repo, "", fmt.Errorf("duplicate repository"))
		}
		seen[repo] = struct{}{}
	}
	return nil
}

func (v *Validator) validateBoard() error {
	for key := range v.cfg.Board.Columns {
		if !key.IsValid() {
			return NewValidationError("board", v.cfg.Board.Provider, "columns", fmt.Errorf("unknown column key: %s", key))
		}
	}
	return nil
}

func (v *Validator) validateScheduler() error {
	if v.cfg.Concurrency < 1 {
		return NewValidationError("scheduler", "", "concurrency", fmt.Errorf("must be at least 1"))
	}
	if v.cfg.PollInterval <= 0 {
		return NewValidationError("scheduler", "", "pollInterval", fmt.Errorf("must be positive"))
	}
	if v.cfg.MaxRevisions < 0 {
		return NewValidationError("scheduler", "", "maxRevisions", fmt.Errorf("must not be negative"))
	}
	if v.cfg.MaxTurnsRetries < 0 {
		return NewValidationError("scheduler", "", "maxTurnsRetries", fmt.Errorf("must not be negative"))
	}
	return nil
}

func (v *Validator) validateDeploy() error {
	for repo, target := range v.cfg.Deploy {
		for _, dep := range target.DependsOn {
			if dep == repo {
				return NewValidationError("deploy", repo, "dependsOn", fmt.Errorf("repository cannot depend on itself"))
			}
			if _, ok := v.cfg.Deploy[dep]; !ok {
				return NewValidationError("deploy", repo, "dependsOn", fmt.Errorf("dependency '%s' has no deploy target", dep))
			}
		}
	}
	return nil
}

func (v *Validator) validateMemory() error {
	if v.cfg.Memory.Enabled && v.cfg.Memory.MaxLines < 1 {
		return NewValidationError("memory", "", "maxLines", fmt.Errorf("must be at least 1 when memory is enabled"))
	}
	return nil
}

func (v *Validator) validateHooks() error {
	if v.cfg.Hooks.Timeout < 0 {
		return NewValidationError("hooks", "", "timeout", fmt.Errorf("must not be negative"))
	}
	return nil
}
