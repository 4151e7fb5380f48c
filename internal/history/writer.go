package history

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Writer provides thread-safe history logging with automatic pruning.
type Writer struct {
	// StateDir is the directory containing the history file.
	StateDir string
	// MaxEntries is the maximum number of entries to retain.
	MaxEntries int

	mu     sync.Mutex
	logger *slog.Logger
}

// NewWriter creates a new history writer.
func NewWriter(stateDir string, maxEntries int) *Writer {
	return &Writer{
		StateDir:   stateDir,
		MaxEntries: maxEntries,
		logger:     slog.Default(),
	}
}

// WithLogger sets the logger that receives write failures.
func (w *Writer) WithLogger(logger *slog.Logger) *Writer {
	w.logger = logger
	return w
}

// LogEntry adds a new entry to the history file.
// It loads the existing history, appends the new entry, prunes if needed, and saves.
// Errors are non-fatal: they are logged as warnings and don't cause command failures.
func (w *Writer) LogEntry(entry HistoryEntry) {
	if err := w.logEntryInternal(entry); err != nil {
		w.logger.Warn("failed to log history", "state_dir", w.StateDir, "error", err)
	}
}

// logEntryInternal handles the actual logging logic.
func (w *Writer) logEntryInternal(entry HistoryEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	history, err := LoadHistory(w.StateDir)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	history.Entries = append(history.Entries, entry)

	// Prune oldest entries if over limit
	if w.MaxEntries > 0 && len(history.Entries) > w.MaxEntries {
		excess := len(history.Entries) - w.MaxEntries
		history.Entries = history.Entries[excess:]
	}

	if err := SaveHistory(w.StateDir, history); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}

	return nil
}

// LogCommand is a convenience method to log a command execution.
func (w *Writer) LogCommand(command, orchestration, runID string, exitCode int, duration time.Duration) {
	entry := HistoryEntry{
		Timestamp:     time.Now(),
		Command:       command,
		Orchestration: orchestration,
		RunID:         runID,
		ExitCode:      exitCode,
		Duration:      duration.Round(time.Millisecond).String(),
	}
	w.LogEntry(entry)
}
