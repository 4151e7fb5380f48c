// Package history records the commands and runs executed by orchestra in a
// YAML file under the state directory.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the history file inside the state directory.
const FileName = "history.yaml"

// HistoryEntry is one executed command.
type HistoryEntry struct {
	Timestamp     time.Time `yaml:"timestamp"`
	Command       string    `yaml:"command"`
	Orchestration string    `yaml:"orchestration,omitempty"`
	RunID         string    `yaml:"run_id,omitempty"`
	ExitCode      int       `yaml:"exit_code"`
	Duration      string    `yaml:"duration"`
}

// HistoryFile is the on-disk layout of the history file.
type HistoryFile struct {
	Entries []HistoryEntry `yaml:"entries"`
}

// Path returns the history file path for stateDir.
func Path(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// LoadHistory reads the history file. A missing file yields an empty history.
func LoadHistory(stateDir string) (*HistoryFile, error) {
	data, err := os.ReadFile(Path(stateDir))
	if os.IsNotExist(err) {
		return &HistoryFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history file: %w", err)
	}

	var history HistoryFile
	if err := yaml.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parsing history file: %w", err)
	}
	return &history, nil
}

// SaveHistory writes the history file atomically.
func SaveHistory(stateDir string, history *HistoryFile) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := yaml.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	path := Path(stateDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing history file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming history file: %w", err)
	}
	return nil
}

// ClearHistory removes every entry.
func ClearHistory(stateDir string) error {
	return SaveHistory(stateDir, &HistoryFile{})
}

// Filter selects history entries. Zero fields match everything.
type Filter struct {
	Orchestration string
	Limit         int
}

// Apply returns the matching entries, most recent last. A positive Limit
// keeps only the newest entries.
func (f Filter) Apply(entries []HistoryEntry) []HistoryEntry {
	matched := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if f.Orchestration != "" && e.Orchestration != f.Orchestration {
			continue
		}
		matched = append(matched, e)
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[len(matched)-f.Limit:]
	}
	return matched
}
