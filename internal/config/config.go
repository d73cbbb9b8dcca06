// Package config provides configuration loading for driftline via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete driftline configuration
type Config struct {
	Prompt     PromptConfig     `mapstructure:"prompt"`
	Conflict   ConflictConfig   `mapstructure:"conflict"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Git        GitConfig        `mapstructure:"git"`
	Completion CompletionConfig `mapstructure:"completion"`
	Watcher    WatcherConfig    `mapstructure:"watcher"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PromptConfig controls merge prompt construction and length optimization
type PromptConfig struct {
	// MaxContentChars caps each file body (branch point, worktree, main)
	// embedded in a prompt. Content at or under the cap is untouched.
	MaxContentChars int `mapstructure:"max_content_chars"`
	// MaxEvolutionEvents caps the rendered evolution history; excess events
	// in the middle of the list are collapsed into a single placeholder.
	MaxEvolutionEvents int `mapstructure:"max_evolution_events"`
}

// ConflictConfig controls conflict marker parsing
type ConflictConfig struct {
	// ContextLines is how many lines of surrounding context each parsed
	// conflict carries for conflict-only prompts.
	ContextLines int `mapstructure:"context_lines"`
}

// StorageConfig controls timeline persistence
type StorageConfig struct {
	// Dir is the directory where timeline JSON documents are written.
	// Empty means .driftline/timelines under the repository root.
	Dir string `mapstructure:"dir"`
}

// GitConfig controls the git collaborator
type GitConfig struct {
	// TargetBranch overrides target branch auto-detection (main, master).
	TargetBranch string `mapstructure:"target_branch"`
}

// CompletionConfig controls the external text-completion backend
type CompletionConfig struct {
	// Command is the CLI used for one-shot completions (default: "claude").
	Command string `mapstructure:"command"`
	// TimeoutSeconds bounds a single completion call (0 = no timeout).
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// WatcherConfig controls the worktree filesystem watcher
type WatcherConfig struct {
	// DebounceMs is the event debounce window in milliseconds.
	DebounceMs int `mapstructure:"debounce_ms"`
	// IgnorePaths are directory names excluded from watching.
	IgnorePaths []string `mapstructure:"ignore_paths"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Prompt: PromptConfig{
			MaxContentChars:    8000,
			MaxEvolutionEvents: 10,
		},
		Conflict: ConflictConfig{
			ContextLines: 3,
		},
		Storage: StorageConfig{
			Dir: "",
		},
		Git: GitConfig{
			TargetBranch: "",
		},
		Completion: CompletionConfig{
			Command:        "claude",
			TimeoutSeconds: 0,
		},
		Watcher: WatcherConfig{
			DebounceMs:  50,
			IgnorePaths: []string{".git", ".driftline", "node_modules", ".DS_Store"},
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("prompt.max_content_chars", defaults.Prompt.MaxContentChars)
	viper.SetDefault("prompt.max_evolution_events", defaults.Prompt.MaxEvolutionEvents)

	viper.SetDefault("conflict.context_lines", defaults.Conflict.ContextLines)

	viper.SetDefault("storage.dir", defaults.Storage.Dir)

	viper.SetDefault("git.target_branch", defaults.Git.TargetBranch)

	viper.SetDefault("completion.command", defaults.Completion.Command)
	viper.SetDefault("completion.timeout_seconds", defaults.Completion.TimeoutSeconds)

	viper.SetDefault("watcher.debounce_ms", defaults.Watcher.DebounceMs)
	viper.SetDefault("watcher.ignore_paths", defaults.Watcher.IgnorePaths)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// Validate checks the configuration for invalid values.
// Returns a list of validation error messages, empty if valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.Prompt.MaxContentChars < 0 {
		errs = append(errs, "prompt.max_content_chars must be >= 0")
	}
	if c.Prompt.MaxEvolutionEvents < 3 && c.Prompt.MaxEvolutionEvents != 0 {
		// The optimizer keeps a head, a placeholder, and a tail; below three
		// slots there is nothing left to render.
		errs = append(errs, "prompt.max_evolution_events must be 0 or >= 3")
	}
	if c.Conflict.ContextLines < 0 {
		errs = append(errs, "conflict.context_lines must be >= 0")
	}
	if c.Watcher.DebounceMs < 0 {
		errs = append(errs, "watcher.debounce_ms must be >= 0")
	}

	return errs
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "driftline")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".driftline"
	}
	return filepath.Join(home, ".config", "driftline")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
