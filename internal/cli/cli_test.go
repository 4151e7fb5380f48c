package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariel-frischer/orchestra/internal/config"
	clierrors "github.com/ariel-frischer/orchestra/internal/errors"
	"github.com/ariel-frischer/orchestra/internal/history"
)

const greetYAML = `actions:
  - id: say
    code: echo ${message}
orchestration:
  name: greet
  version: 1
  steps:
    - id: hello
      action_id: say
      parameters:
        message: hello
    - id: world
      code: echo ${who}
      parent_step_ids: [hello]
`

const failingYAML = `orchestration:
  name: broken
  version: 2
  steps:
    - id: migrate
      code: exit 3
    - id: after
      code: echo never
      parent_step_ids: [migrate]
    - id: restore
      code: echo restored
      undo: true
`

const invalidYAML = `orchestration:
  name: bad
  version: 1
  steps:
    - id: a
      code: echo a
      parent_step_ids: [ghost]
`

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// testEnv isolates configuration, state and definitions in a temp dir.
type testEnv struct {
	dir      string
	stateDir string
	load     config.LoadOptions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:      dir,
		stateDir: filepath.Join(dir, "state"),
		load: config.LoadOptions{
			ProjectConfigPath: filepath.Join(dir, "config.yml"),
			UserConfigPath:    filepath.Join(dir, "user.yml"),
		},
	}
	env.write(t, "config.yml", "state_dir: "+env.stateDir+"\nstep_timeout: 30s\n")
	return env
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *testEnv) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), &Options{load: e.load}, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content    string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		"valid": {
			content:    greetYAML,
			wantCode:   clierrors.ExitSuccess,
			wantStdout: "Valid - orchestration \"greet\" v1\n  2 step(s), 2 level(s), 1 action(s)\n  Run parameters: who\n",
		},
		"unknown parent": {
			content:    invalidYAML,
			wantCode:   clierrors.ExitValidation,
			wantStderr: "ghost",
		},
		"syntax error": {
			content:    "orchestration: [unclosed\n",
			wantCode:   clierrors.ExitValidation,
			wantStderr: "not a valid orchestration",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			path := env.write(t, "def.yaml", tt.content)

			code, stdout, stderr := env.run("validate", path)
			assert.Equal(t, tt.wantCode, code, stderr)
			if tt.wantStdout != "" {
				assert.Equal(t, tt.wantStdout, stdout)
			}
			assert.Contains(t, stderr, tt.wantStderr)
		})
	}
}

func TestArgumentErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	def := env.write(t, "def.yaml", greetYAML)

	tests := map[string][]string{
		"missing file":      {"validate", filepath.Join(env.dir, "nope.yaml")},
		"directory":         {"validate", env.dir},
		"no arguments":      {"validate"},
		"unknown flag":      {"validate", "--bogus", def},
		"unknown command":   {"frobnicate"},
		"malformed param":   {"run", def, "--param", "novalue"},
		"bad levels format": {"levels", def, "--format", "xml"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			code, _, stderr := env.run(args...)
			assert.Equal(t, clierrors.ExitArgument, code, stderr)
		})
	}
}

func TestErrorOutput_PlainOffTerminal(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	def := env.write(t, "def.yaml", greetYAML)

	code, _, stderr := env.run("run", def, "--param", "novalue")
	require.Equal(t, clierrors.ExitArgument, code)
	assert.Contains(t, stderr, "Error [Argument Error]: invalid parameter \"novalue\"")
	assert.Contains(t, stderr, "  - Parameters must be written as key=value")
	assert.NotContains(t, stderr, "\x1b[")
	assert.NotContains(t, stderr, "•")
}

func TestRun_Succeeds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	def := env.write(t, "def.yaml", greetYAML)

	code, stdout, stderr := env.run("run", def, "--param", "who=world")
	require.Equal(t, clierrors.ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "[forward L1] hello")
	assert.Contains(t, stdout, "[forward L2] world")
	assert.Contains(t, stdout, "2 succeeded, 0 failed, 0 skipped")

	hist, err := history.LoadHistory(env.stateDir)
	require.NoError(t, err)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, "run", hist.Entries[0].Command)
	assert.Equal(t, "greet", hist.Entries[0].Orchestration)
	assert.NotEmpty(t, hist.Entries[0].RunID)
	assert.Equal(t, 0, hist.Entries[0].ExitCode)

	claims, err := os.ReadDir(filepath.Join(env.stateDir, "locks"))
	if err == nil {
		assert.Empty(t, claims, "lock must be released after the run")
	}
}

func TestRun_MissingParameter(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	def := env.write(t, "def.yaml", greetYAML)

	code, _, stderr := env.run("run", def)
	assert.Equal(t, clierrors.ExitArgument, code)
	assert.Contains(t, stderr, "who")
}

func TestRun_VarsFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	def := env.write(t, "def.yaml", greetYAML)
	vars := env.write(t, "vars.yaml", "who: file\n")

	code, _, stderr := env.run("run", def, "--vars-file", vars)
	assert.Equal(t, clierrors.ExitSuccess, code, stderr)
}

func TestRun_FailureRollsBack(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	def := env.write(t, "def.yaml", failingYAML)

	code, stdout, stderr := env.run("run", def)
	assert.Equal(t, clierrors.ExitRunFailed, code)
	assert.Contains(t, stdout, "[FAIL] migrate rc=3")
	assert.Contains(t, stdout, "[rollback L1] restore")
	assert.Contains(t, stdout, "(rolled back)")
	assert.Contains(t, stdout, "[SKIP] after (forward)")
	assert.Contains(t, stderr, "failed at step(s): migrate")
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	def := env.write(t, "def.yaml", greetYAML)

	code, stdout, stderr := env.run("run", def, "--param", "who=you", "--dry-run")
	require.Equal(t, clierrors.ExitSuccess, code, stderr)
	assert.Equal(t, "Dry run of greet v1\n[L1]\n  hello: echo hello\n[L2]\n  world: echo you\n", stdout)
}

func TestLevels(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	def := env.write(t, "def.yaml", greetYAML)

	code, stdout, _ := env.run("levels", def)
	require.Equal(t, clierrors.ExitSuccess, code)
	assert.Equal(t, "Level 1: hello\nLevel 2: world\n", stdout)

	code, stdout, _ = env.run("levels", def, "--from", "world", "--format", "json")
	require.Equal(t, clierrors.ExitSuccess, code)
	var views []levelView
	require.NoError(t, json.Unmarshal([]byte(stdout), &views))
	assert.Equal(t, []levelView{{Level: 2, Steps: []string{"world"}}}, views)

	code, _, _ = env.run("levels", def, "--from", "ghost")
	assert.Equal(t, clierrors.ExitArgument, code)
}

func TestVisualize_Compact(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	def := env.write(t, "def.yaml", greetYAML)

	code, stdout, _ := env.run("visualize", "--compact", def)
	require.Equal(t, clierrors.ExitSuccess, code)
	assert.Equal(t, "L1: [hello] -> L2: [world]\n", stdout)
}

func TestExportAndCompare(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	def := env.write(t, "def.yaml", greetYAML)
	exported := filepath.Join(env.dir, "def.json")

	code, _, stderr := env.run("export", def, "--format", "json", "-o", exported)
	require.Equal(t, clierrors.ExitSuccess, code, stderr)

	code, stdout, stderr := env.run("compare", def, exported)
	assert.Equal(t, clierrors.ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Equivalent")

	other := env.write(t, "other.yaml", failingYAML)
	code, _, _ = env.run("compare", def, other)
	assert.Equal(t, clierrors.ExitValidation, code)
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	code, stdout, _ := env.run("config", "show")
	require.Equal(t, clierrors.ExitSuccess, code)
	assert.Regexp(t, `state_dir\s+\S+\s+\(project\)`, stdout)
	assert.Regexp(t, `max_parallel\s+4\s+\(default\)`, stdout)

	code, _, stderr := env.run("config", "set", "max_parallel", "9")
	require.Equal(t, clierrors.ExitSuccess, code, stderr)

	code, stdout, _ = env.run("config", "show")
	require.Equal(t, clierrors.ExitSuccess, code)
	assert.Regexp(t, `max_parallel\s+9\s+\(project\)`, stdout)

	code, _, _ = env.run("config", "set", "max_parallel", "many")
	assert.Equal(t, clierrors.ExitConfiguration, code)

	code, _, _ = env.run("config", "init")
	assert.Equal(t, clierrors.ExitConfiguration, code, "existing project config must not be overwritten")

	code, stdout, _ = env.run("config", "init", "--user")
	require.Equal(t, clierrors.ExitSuccess, code)
	assert.Contains(t, stdout, env.load.UserConfigPath)
}

func TestHistoryCommand(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	def := env.write(t, "def.yaml", greetYAML)

	code, stdout, _ := env.run("history")
	require.Equal(t, clierrors.ExitSuccess, code)
	assert.Equal(t, "No history available.\n", stdout)

	env.run("validate", def)
	env.run("levels", def)

	code, stdout, _ = env.run("history", "--orchestration", "greet", "-n", "1")
	require.Equal(t, clierrors.ExitSuccess, code)
	assert.Contains(t, stdout, "levels")
	assert.NotContains(t, stdout, "validate")

	code, stdout, _ = env.run("history", "--clear")
	require.Equal(t, clierrors.ExitSuccess, code)
	assert.Equal(t, "History cleared.\n", stdout)
}

func TestLocksCommand_Empty(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	code, stdout, _ := env.run("locks")
	require.Equal(t, clierrors.ExitSuccess, code)
	assert.Equal(t, "No lock claims.\n", stdout)
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	code, stdout, _ := env.run("version")
	require.Equal(t, clierrors.ExitSuccess, code)
	assert.Contains(t, stdout, "orchestra dev")
}

func TestLoadParams(t *testing.T) {
	t.Parallel()

	params, err := loadParams("", []string{"a=1", " b = two ", "c=x=y", "d="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": " two ", "c": "x=y", "d": ""}, params)

	_, err = loadParams("", []string{"=v"})
	assert.Equal(t, clierrors.ExitArgument, clierrors.ExitCode(err))
}
