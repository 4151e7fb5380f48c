package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConfigValueType defines the expected type for a configuration value.
type ConfigValueType int

const (
	TypeInt ConfigValueType = iota
	TypeDuration
	TypeString
	TypeEnum
)

// String returns the string representation of ConfigValueType.
func (t ConfigValueType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeDuration:
		return "duration"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// ConfigKeySchema defines a known configuration key with its expected type and validation rules.
type ConfigKeySchema struct {
	Path          string          // Key name (e.g., "max_parallel")
	Type          ConfigValueType // Expected value type for validation
	AllowedValues []string        // Valid values for enum types (empty for non-enums)
	Description   string          // Human-readable description for help text
}

// KnownKeys is the registry of all known configuration keys with their schemas.
var KnownKeys = map[string]ConfigKeySchema{
	"state_dir": {
		Path:        "state_dir",
		Type:        TypeString,
		Description: "Directory for run state and command history",
	},
	"lock_dir": {
		Path:        "lock_dir",
		Type:        TypeString,
		Description: "Directory for lock claims (empty = <state_dir>/locks)",
	},
	"max_parallel": {
		Path:        "max_parallel",
		Type:        TypeInt,
		Description: "Steps of one level running at once",
	},
	"step_timeout": {
		Path:        "step_timeout",
		Type:        TypeDuration,
		Description: "Per-step time limit (0 = no limit)",
	},
	"shell": {
		Path:        "shell",
		Type:        TypeString,
		Description: "Shell that runs step code",
	},
	"run_priority": {
		Path:        "run_priority",
		Type:        TypeInt,
		Description: "Lock priority of runs (lower is more urgent)",
	},
	"max_history_entries": {
		Path:        "max_history_entries",
		Type:        TypeInt,
		Description: "Maximum number of command history entries to retain",
	},
	"log_level": {
		Path:          "log_level",
		Type:          TypeEnum,
		AllowedValues: []string{"debug", "info", "warn", "error"},
		Description:   "Minimum log level",
	},
	"log_format": {
		Path:          "log_format",
		Type:          TypeEnum,
		AllowedValues: []string{"text", "json"},
		Description:   "Log output format",
	},
}

// ErrUnknownKey is returned when trying to access an unknown configuration key.
type ErrUnknownKey struct {
	Key string
}

func (e ErrUnknownKey) Error() string {
	return "unknown configuration key: " + e.Key
}

// GetKeySchema returns the schema for a known configuration key.
// Returns ErrUnknownKey if the key is not in the registry.
func GetKeySchema(path string) (ConfigKeySchema, error) {
	schema, ok := KnownKeys[path]
	if !ok {
		return ConfigKeySchema{}, ErrUnknownKey{Key: path}
	}
	return schema, nil
}

// ParsedValue represents a configuration value after validation.
type ParsedValue struct {
	Raw    string      // Original string input from user
	Parsed interface{} // Value converted to correct type
	Type   ConfigValueType
}

// ValidateValue validates a value against the schema for a given key.
// Returns the parsed value or an error with details about what's wrong.
func ValidateValue(key, value string) (ParsedValue, error) {
	schema, err := GetKeySchema(key)
	if err != nil {
		return ParsedValue{}, err
	}
	switch schema.Type {
	case TypeInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return ParsedValue{}, fmt.Errorf("invalid integer: %q (expected a non-negative number)", value)
		}
		return ParsedValue{Raw: value, Parsed: n, Type: TypeInt}, nil
	case TypeDuration:
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return ParsedValue{}, fmt.Errorf("invalid duration: %q (examples: 30s, 10m, 1h30m)", value)
		}
		return ParsedValue{Raw: value, Parsed: d.String(), Type: TypeDuration}, nil
	case TypeEnum:
		for _, allowed := range schema.AllowedValues {
			if value == allowed {
				return ParsedValue{Raw: value, Parsed: value, Type: TypeEnum}, nil
			}
		}
		return ParsedValue{}, fmt.Errorf(
			"invalid value: %q (valid options: %s)",
			value,
			strings.Join(schema.AllowedValues, ", "),
		)
	default:
		return ParsedValue{Raw: value, Parsed: value, Type: TypeString}, nil
	}
}
