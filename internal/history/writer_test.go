package history

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryWriter_LogEntry(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		setupStore  func(t *testing.T, stateDir string)
		maxEntries  int
		wantEntries int
	}{
		"log entry to empty history": {
			setupStore:  func(t *testing.T, stateDir string) {},
			maxEntries:  500,
			wantEntries: 1,
		},
		"log entry to existing history": {
			setupStore: func(t *testing.T, stateDir string) {
				history := &HistoryFile{
					Entries: []HistoryEntry{
						{Timestamp: time.Now(), Command: "existing", ExitCode: 0, Duration: "1m"},
					},
				}
				require.NoError(t, SaveHistory(stateDir, history))
			},
			maxEntries:  500,
			wantEntries: 2,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			stateDir := t.TempDir()
			tc.setupStore(t, stateDir)

			writer := NewWriter(stateDir, tc.maxEntries)
			entry := HistoryEntry{
				Timestamp: time.Now(),
				Command:       "run",
				Orchestration: "deploy",
				ExitCode:      0,
				Duration:      "30s",
			}
			writer.LogEntry(entry)

			// Verify entry was logged
			history, err := LoadHistory(stateDir)
			require.NoError(t, err)
			assert.Len(t, history.Entries, tc.wantEntries)
		})
	}
}

func TestHistoryWriter_Pruning(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		existingEntries int
		maxEntries      int
		wantEntries     int
		wantOldest      string // Command name of oldest remaining entry
	}{
		"no pruning needed": {
			existingEntries: 5,
			maxEntries:      10,
			wantEntries:     6, // 5 existing + 1 new
			wantOldest:      "cmd-0",
		},
		"prune oldest when max exceeded": {
			existingEntries: 10,
			maxEntries:      10,
			wantEntries:     10, // oldest removed, new added
			wantOldest:      "cmd-1",
		},
		"prune multiple when well over max": {
			existingEntries: 12,
			maxEntries:      10,
			wantEntries:     10,
			wantOldest:      "cmd-3",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			stateDir := t.TempDir()

			// Create existing entries
			entries := make([]HistoryEntry, tc.existingEntries)
			for i := 0; i < tc.existingEntries; i++ {
				entries[i] = HistoryEntry{
					Timestamp: time.Now().Add(time.Duration(i) * time.Minute),
					Command:   "cmd-" + string(rune('0'+i)),
					ExitCode:  0,
					Duration:  "1m",
				}
			}
			history := &HistoryFile{Entries: entries}
			require.NoError(t, SaveHistory(stateDir, history))

			// Log new entry
			writer := NewWriter(stateDir, tc.maxEntries)
			writer.LogEntry(HistoryEntry{
				Timestamp: time.Now().Add(time.Hour),
				Command:   "new-cmd",
				ExitCode:  0,
				Duration:  "30s",
			})

			// Verify
			loaded, err := LoadHistory(stateDir)
			require.NoError(t, err)
			assert.Len(t, loaded.Entries, tc.wantEntries)

			// Verify oldest entry
			if len(loaded.Entries) > 0 {
				assert.Equal(t, tc.wantOldest, loaded.Entries[0].Command)
			}

			// Verify newest entry is our new one
			assert.Equal(t, "new-cmd", loaded.Entries[len(loaded.Entries)-1].Command)
		})
	}
}

func TestHistoryWriter_LogCommand(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	writer := NewWriter(stateDir, 500)

	writer.LogCommand("run", "deploy", "run-1", 7, 2*time.Minute+30*time.Second)

	// Verify
	history, err := LoadHistory(stateDir)
	require.NoError(t, err)
	require.Len(t, history.Entries, 1)

	entry := history.Entries[0]
	assert.Equal(t, "run", entry.Command)
	assert.Equal(t, "deploy", entry.Orchestration)
	assert.Equal(t, "run-1", entry.RunID)
	assert.Equal(t, 7, entry.ExitCode)
	assert.Equal(t, "2m30s", entry.Duration)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestHistoryWriter_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	writer := NewWriter(stateDir, 100)

	// Run multiple goroutines writing concurrently
	var wg sync.WaitGroup
	numWriters := 10
	entriesPerWriter := 5

	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func(writerID int) {
			defer wg.Done()
			for j := 0; j < entriesPerWriter; j++ {
				writer.LogEntry(HistoryEntry{
					Timestamp: time.Now(),
					Command:       "run",
					Orchestration: "concurrent",
					ExitCode:      0,
					Duration:      "1s",
				})
			}
		}(i)
	}

	wg.Wait()

	history, err := LoadHistory(stateDir)
	require.NoError(t, err)
	assert.Len(t, history.Entries, numWriters*entriesPerWriter)
}

func TestHistoryWriter_NonFatalErrors(t *testing.T) {
	t.Parallel()

	// A regular file where the state directory should be
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	var logs bytes.Buffer
	writer := NewWriter(filepath.Join(blocker, "state"), 500).
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	// This should not panic, just log a warning
	writer.LogEntry(HistoryEntry{
		Timestamp: time.Now(),
		Command:   "test",
		ExitCode:  0,
		Duration:  "1s",
	})

	assert.Contains(t, logs.String(), "failed to log history")
}

func TestNewWriter(t *testing.T) {
	t.Parallel()

	writer := NewWriter("/test/path", 100)

	assert.Equal(t, "/test/path", writer.StateDir)
	assert.Equal(t, 100, writer.MaxEntries)
}

func TestHistoryWriter_ZeroMaxEntries(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()

	// Zero max entries means unlimited
	writer := NewWriter(stateDir, 0)

	// Log 5 entries
	for i := 0; i < 5; i++ {
		writer.LogEntry(HistoryEntry{
			Timestamp: time.Now(),
			Command:   "test",
			ExitCode:  0,
			Duration:  "1s",
		})
	}

	// All should be retained
	history, err := LoadHistory(stateDir)
	require.NoError(t, err)
	assert.Len(t, history.Entries, 5)
}

func TestLoadHistory_Missing(t *testing.T) {
	t.Parallel()

	history, err := LoadHistory(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, history.Entries)
}

func TestLoadHistory_Corrupt(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(stateDir), []byte("entries: [unclosed"), 0o644))

	_, err := LoadHistory(stateDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing history file")
}

func TestClearHistory(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	NewWriter(stateDir, 10).LogCommand("validate", "deploy", "", 0, time.Second)
	require.NoError(t, ClearHistory(stateDir))

	history, err := LoadHistory(stateDir)
	require.NoError(t, err)
	assert.Empty(t, history.Entries)
}

func TestFilter_Apply(t *testing.T) {
	t.Parallel()

	entries := []HistoryEntry{
		{Command: "run", Orchestration: "deploy"},
		{Command: "validate", Orchestration: "backup"},
		{Command: "run", Orchestration: "deploy", RunID: "2"},
		{Command: "run", Orchestration: "deploy", RunID: "3"},
	}

	tests := map[string]struct {
		filter   Filter
		wantRuns []string
	}{
		"everything":       {filter: Filter{}, wantRuns: []string{"", "", "2", "3"}},
		"by orchestration": {filter: Filter{Orchestration: "deploy"}, wantRuns: []string{"", "2", "3"}},
		"newest only":      {filter: Filter{Orchestration: "deploy", Limit: 2}, wantRuns: []string{"2", "3"}},
		"no match":         {filter: Filter{Orchestration: "nope"}, wantRuns: []string{}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := []string{}
			for _, e := range tt.filter.Apply(entries) {
				got = append(got, e.RunID)
			}
			assert.Equal(t, tt.wantRuns, got)
		})
	}
}
