package config

// Built-in defaults matching the documented configuration table.
const (
	DefaultConcurrency     = 1
	DefaultPollSeconds     = 30
	DefaultMaxRevisions    = 3
	DefaultMaxTurnsRetries = 3
	DefaultHookSeconds     = 60
	DefaultMemoryMaxLines  = 200
)

// defaultYAML returns the built-in configuration in file shape; user values
// are merged over it.
func defaultYAML() *yamlConfig {
	enabled := false
	return &yamlConfig{
		Concurrency:     DefaultConcurrency,
		PollInterval:    DefaultPollSeconds,
		MaxRevisions:    DefaultMaxRevisions,
		MaxTurnsRetries: DefaultMaxTurnsRetries,
		Memory: &memoryYAML{
			Enabled:  &enabled,
			MaxLines: DefaultMemoryMaxLines,
		},
		Hooks: &hooksYAML{
			Timeout: DefaultHookSeconds,
		},
	}
}
