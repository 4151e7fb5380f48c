package config

import "time"

// GetDefaultConfigTemplate returns a fully commented config template
// that helps users understand all available options
func GetDefaultConfigTemplate() string {
	return `# Orchestra Configuration
# Environment variables (ORCHESTRA_<KEY>) override this file.

# State
state_dir: ~/.orchestra/state         # Run state and command history
lock_dir: ""                          # Lock claims (empty = <state_dir>/locks)

# Execution
max_parallel: 4                       # Steps of one level running at once
step_timeout: 10m                     # Per-step limit (0 = no limit)
shell: /bin/sh                        # Step code runs as: <shell> -c <code>
run_priority: 10                      # Lock priority of runs (lower is more urgent)

# History
max_history_entries: 500              # Max command history entries to retain

# Logging
log_level: warn                       # debug | info | warn | error
log_format: text                      # text | json
`
}

// GetDefaults returns the default configuration values
func GetDefaults() map[string]interface{} {
	return map[string]interface{}{
		"state_dir":           "~/.orchestra/state",
		"lock_dir":            "",
		"max_parallel":        4,
		"step_timeout":        (10 * time.Minute).String(),
		"shell":               "/bin/sh",
		"run_priority":        10,
		"max_history_entries": 500,
		"log_level":           "warn",
		"log_format":          "text",
	}
}
