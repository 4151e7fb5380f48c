// Package config provides hierarchical configuration management for orchestra using koanf.
// Configuration is loaded with priority: environment variables > project config
// (.orchestra/config.yml, or .orchestra/config.json) > user config
// (~/.config/orchestra/config.yml) > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "ORCHESTRA_"

// ConfigSource tracks where a configuration value came from
type ConfigSource string

const (
	SourceDefault ConfigSource = "default"
	SourceUser    ConfigSource = "user"
	SourceProject ConfigSource = "project"
	SourceEnv     ConfigSource = "env"
)

// Configuration represents the orchestra CLI configuration
type Configuration struct {
	// StateDir holds run state and command history.
	StateDir string `koanf:"state_dir" validate:"required"`
	// LockDir holds lock claims. Defaults to <state_dir>/locks.
	LockDir string `koanf:"lock_dir"`
	// MaxParallel bounds the steps of one level running at once.
	MaxParallel int `koanf:"max_parallel" validate:"min=1,max=256"`
	// StepTimeout limits every step unless its system options say otherwise.
	// 0 means no limit.
	StepTimeout time.Duration `koanf:"step_timeout" validate:"gte=0"`
	// Shell runs step code as `shell -c code`.
	Shell string `koanf:"shell" validate:"required"`
	// RunPriority is the lock priority of runs; lower is more urgent.
	RunPriority int `koanf:"run_priority" validate:"gte=0"`

	MaxHistoryEntries int    `koanf:"max_history_entries" validate:"gte=0"`
	LogLevel          string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat         string `koanf:"log_format" validate:"oneof=text json"`

	// Sources records, per key, the layer that set its final value.
	Sources map[string]ConfigSource `koanf:"-"`
}

// LoadOptions configures how configuration is loaded
type LoadOptions struct {
	// ProjectConfigPath overrides the project config path (default: .orchestra/config.yml)
	ProjectConfigPath string
	// UserConfigPath overrides the user config path.
	UserConfigPath string
}

// Load loads configuration from user, project, and environment sources.
// Priority: Environment variables > Project config > User config > Defaults
func Load(projectConfigPath string) (*Configuration, error) {
	return LoadWithOptions(LoadOptions{ProjectConfigPath: projectConfigPath})
}

// LoadWithOptions loads configuration with custom options
func LoadWithOptions(opts LoadOptions) (*Configuration, error) {
	k := koanf.New(".")
	sources := make(map[string]ConfigSource)

	loadDefaults(k, sources)

	if err := loadUserConfig(k, sources, opts.UserConfigPath); err != nil {
		return nil, err
	}

	if err := loadProjectConfig(k, sources, opts.ProjectConfigPath); err != nil {
		return nil, err
	}

	if err := loadEnvironmentConfig(k, sources); err != nil {
		return nil, err
	}

	cfg, err := finalizeConfig(k, sources)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources
	return cfg, nil
}

// loadDefaults applies default configuration values
func loadDefaults(k *koanf.Koanf, sources map[string]ConfigSource) {
	for key, value := range GetDefaults() {
		k.Set(key, value)
		sources[key] = SourceDefault
	}
}

// loadUserConfig loads the user-level YAML config if it exists.
func loadUserConfig(k *koanf.Koanf, sources map[string]ConfigSource, customPath string) error {
	path := customPath
	if path == "" {
		path, _ = UserConfigPath()
	}
	if !fileExists(path) {
		return nil
	}
	if err := checkYAMLFile(path); err != nil {
		return fmt.Errorf("validating YAML syntax for user config: %w", err)
	}
	if err := mergeLayer(k, sources, SourceUser, file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load user config %s: %w", path, err)
	}
	return nil
}

// loadProjectConfig loads the project-level config. YAML is preferred;
// the JSON file is read only when no YAML file exists.
func loadProjectConfig(k *koanf.Koanf, sources map[string]ConfigSource, customPath string) error {
	yamlPath := ProjectConfigPath()
	if customPath != "" {
		yamlPath = customPath
	}

	switch {
	case fileExists(yamlPath) && filepath.Ext(yamlPath) == ".json":
		if err := mergeLayer(k, sources, SourceProject, file.Provider(yamlPath), json.Parser()); err != nil {
			return fmt.Errorf("failed to load project config %s: %w", yamlPath, err)
		}
	case fileExists(yamlPath):
		if err := checkYAMLFile(yamlPath); err != nil {
			return fmt.Errorf("validating YAML syntax for project config: %w", err)
		}
		if err := mergeLayer(k, sources, SourceProject, file.Provider(yamlPath), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load project config %s: %w", yamlPath, err)
		}
	case customPath == "" && fileExists(ProjectJSONConfigPath()):
		jsonPath := ProjectJSONConfigPath()
		if err := mergeLayer(k, sources, SourceProject, file.Provider(jsonPath), json.Parser()); err != nil {
			return fmt.Errorf("failed to load project config %s: %w", jsonPath, err)
		}
	}
	return nil
}

// loadEnvironmentConfig loads environment variable overrides
func loadEnvironmentConfig(k *koanf.Koanf, sources map[string]ConfigSource) error {
	if err := mergeLayer(k, sources, SourceEnv, env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return fmt.Errorf("failed to load environment config: %w", err)
	}
	return nil
}

// mergeLayer loads one source into its own koanf instance, records the
// keys it sets, and merges it over k.
func mergeLayer(k *koanf.Koanf, sources map[string]ConfigSource, src ConfigSource, p koanf.Provider, pa koanf.Parser) error {
	layer := koanf.New(".")
	if err := layer.Load(p, pa); err != nil {
		return err
	}
	for _, key := range layer.Keys() {
		sources[key] = src
	}
	return k.Merge(layer)
}

// finalizeConfig unmarshals, validates, and applies final transformations
func finalizeConfig(k *koanf.Koanf, sources map[string]ConfigSource) (*Configuration, error) {
	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateValues(&cfg, sources); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.StateDir = expandHomePath(cfg.StateDir)
	cfg.LockDir = expandHomePath(cfg.LockDir)
	if cfg.LockDir == "" {
		cfg.LockDir = filepath.Join(cfg.StateDir, "locks")
	}

	return &cfg, nil
}

// Keys returns the configuration keys in sorted order.
func (c *Configuration) Keys() []string {
	keys := make([]string, 0, len(GetDefaults()))
	for key := range GetDefaults() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the effective value of a configuration key as text.
func (c *Configuration) Value(key string) string {
	switch key {
	case "state_dir":
		return c.StateDir
	case "lock_dir":
		return c.LockDir
	case "max_parallel":
		return fmt.Sprint(c.MaxParallel)
	case "step_timeout":
		return c.StepTimeout.String()
	case "shell":
		return c.Shell
	case "run_priority":
		return fmt.Sprint(c.RunPriority)
	case "max_history_entries":
		return fmt.Sprint(c.MaxHistoryEntries)
	case "log_level":
		return c.LogLevel
	case "log_format":
		return c.LogFormat
	default:
		return ""
	}
}

// fileExists returns true if the file exists and is readable
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// envTransform converts environment variable names to config keys
// Example: ORCHESTRA_MAX_PARALLEL -> max_parallel
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

// expandHomePath expands ~ to the user's home directory
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}
