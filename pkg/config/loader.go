package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/warp-run/warp-coder/pkg/lifecycle"
)

// ConfigFileName is the configuration file loaded from the config dir.
const ConfigFileName = "warp-coder.yaml"

// yamlConfig is the complete warp-coder.yaml file structure. Durations are
// plain seconds in the file.
type yamlConfig struct {
	Repos    []string         `yaml:"repos"`
	Board    *boardYAML       `yaml:"board"`
	Codehost *codehostYAML    `yaml:"codehost"`
	Deploy   map[string]*deployYAML `yaml:"deploy"`
	Memory   *memoryYAML      `yaml:"memory"`
	Hooks    *hooksYAML       `yaml:"hooks"`

	Concurrency     int    `yaml:"concurrency"`
	PollInterval    int    `yaml:"pollInterval"`
	MaxRevisions    int    `yaml:"maxRevisions"`
	MaxTurnsRetries int    `yaml:"maxTurnsRetries"`

	WarpmetricsAPIKey  string `yaml:"warpmetricsApiKey"`
	WarpmetricsBaseURL string `yaml:"warpmetricsBaseUrl"`

	HTTPPort  string `yaml:"httpPort"`
	GraphFile string `yaml:"graphFile"`
}

type boardYAML struct {
	Provider string            `yaml:"provider"`
	Project  string            `yaml:"project"`
	Columns  map[string]string `yaml:"columns"`
}

type codehostYAML struct {
	Provider string `yaml:"provider"`
}

type deployYAML struct {
	Command   string   `yaml:"command"`
	DependsOn []string `yaml:"dependsOn"`
}

type memoryYAML struct {
	Enabled  *bool `yaml:"enabled"`
	MaxLines int   `yaml:"maxLines"`
}

type hooksYAML struct {
	OnBranchCreate string `yaml:"onBranchCreate"`
	OnBeforePush   string `yaml:"onBeforePush"`
	OnPRCreated    string `yaml:"onPRCreated"`
	OnBeforeMerge  string `yaml:"onBeforeMerge"`
	OnMerged       string `yaml:"onMerged"`
	Timeout        int    `yaml:"timeout"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Load warp-coder.yaml from configDir
//  2. Expand {{.VAR}} environment references
//  3. Merge file values over built-in defaults
//  4. Resolve into the typed Config
//  5. Validate
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	raw, err := loadYAML(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	defaults := defaultYAML()
	if err := mergo.Merge(defaults, raw, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge configuration defaults: %w", err)
	}

	cfg := resolve(defaults)
	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized successfully",
		"repos", len(cfg.Repos),
		"board_provider", cfg.Board.Provider,
		"concurrency", cfg.Concurrency,
		"poll_interval", cfg.PollInterval,
		"durable_store", durableStoreKind(cfg))

	return cfg, nil
}

func durableStoreKind(cfg *Config) string {
	if cfg.WarpmetricsAPIKey != "" {
		return "warpmetrics"
	}
	return "in-memory"
}

func loadYAML(configDir string) (*yamlConfig, error) {
	path := filepath.Join(configDir, ConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var cfg yamlConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &cfg, nil
}

// resolve converts the merged YAML shape into the typed Config.
func resolve(y *yamlConfig) *Config {
	cfg := &Config{
		Repos:              y.Repos,
		Concurrency:        y.Concurrency,
		PollInterval:       time.Duration(y.PollInterval) * time.Second,
		MaxRevisions:       y.MaxRevisions,
		MaxTurnsRetries:    y.MaxTurnsRetries,
		WarpmetricsAPIKey:  y.WarpmetricsAPIKey,
		WarpmetricsBaseURL: y.WarpmetricsBaseURL,
		HTTPPort:           y.HTTPPort,
		GraphFile:          y.GraphFile,
		Deploy:             make(map[string]DeployTarget, len(y.Deploy)),
	}

	if y.Board != nil {
		cfg.Board = BoardConfig{
			Provider: y.Board.Provider,
			Project:  y.Board.Project,
			Columns:  make(map[lifecycle.Column]string, len(y.Board.Columns)),
		}
		for key, name := range y.Board.Columns {
			cfg.Board.Columns[lifecycle.Column(key)] = name
		}
	}
	if y.Codehost != nil {
		cfg.Codehost = CodehostConfig{Provider: y.Codehost.Provider}
	}
	for repo, target := range y.Deploy {
		if target == nil {
			target = &deployYAML{}
		}
		cfg.Deploy[repo] = DeployTarget{
			Command:   target.Command,
			DependsOn: target.DependsOn,
		}
	}
	if y.Memory != nil {
		cfg.Memory = MemoryConfig{MaxLines: y.Memory.MaxLines}
		if y.Memory.Enabled != nil {
			cfg.Memory.Enabled = *y.Memory.Enabled
		}
	}
	if y.Hooks != nil {
		cfg.Hooks = HooksConfig{
			OnBranchCreate: y.Hooks.OnBranchCreate,
			OnBeforePush:   y.Hooks.OnBeforePush,
			OnPRCreated:    y.Hooks.OnPRCreated,
			OnBeforeMerge:  y.Hooks.OnBeforeMerge,
			OnMerged:       y.Hooks.OnMerged,
			Timeout:        time.Duration(y.Hooks.Timeout) * time.Second,
		}
	}
	return cfg
}
