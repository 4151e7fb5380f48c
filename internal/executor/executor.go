// Package executor runs step code in a shell and judges the outcome.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ariel-frischer/orchestra/internal/ctxlog"
	"github.com/ariel-frischer/orchestra/internal/orchestration"
	"github.com/drone/envsubst"
)

// System option keys understood by the executor.
const (
	// KwargTimeout overrides the step timeout, in seconds.
	KwargTimeout = "timeout"
	// KwargCwd sets the working directory.
	KwargCwd = "cwd"
	// KwargEnv adds environment variables (a mapping).
	KwargEnv = "env"
)

// CompletedProcess is the outcome of one step execution.
type CompletedProcess struct {
	Success   bool
	Stdout    string
	Stderr    string
	RC        int
	StartTime time.Time
	EndTime   time.Time
	// Fetched holds the named groups captured by the output fetcher.
	Fetched map[string]string
	// Reason explains a failure, "" on success.
	Reason string
}

// Duration returns how long the process ran.
func (cp *CompletedProcess) Duration() time.Duration {
	return cp.EndTime.Sub(cp.StartTime)
}

// MissingParameterError is returned when code references a parameter
// without a value.
type MissingParameterError struct {
	StepID string
	Names  []string
}

// Error implements the error interface.
func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("step %q: missing parameters: %s", e.StepID, strings.Join(e.Names, ", "))
}

// Executor runs step code with a shell.
type Executor struct {
	shell   string
	timeout time.Duration
}

// New creates an Executor running code with `shell -c`. A zero timeout
// means no limit.
func New(shell string, timeout time.Duration) *Executor {
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Executor{shell: shell, timeout: timeout}
}

// Render fills the ${name} placeholders of code from params. Bare $name
// references are shell variables and stay untouched.
// Every referenced parameter without a value or default is reported.
func Render(stepID, code string, params map[string]any) (string, error) {
	var missing []string
	out, err := envsubst.Eval(code, func(name string) string {
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return ""
		}
		return fmt.Sprint(v)
	})
	if err != nil {
		return "", fmt.Errorf("rendering step %q: %w", stepID, err)
	}

	// A placeholder with a default (${name:-x}) may legitimately be absent.
	required := make(map[string]bool)
	for _, name := range orchestration.Placeholders(code) {
		required[name] = true
	}
	var names []string
	seen := make(map[string]bool)
	for _, name := range missing {
		if required[name] && !seen[name] && !hasDefault(code, name) {
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		sort.Strings(names)
		return "", &MissingParameterError{StepID: stepID, Names: names}
	}
	return out, nil
}

func hasDefault(code, name string) bool {
	for _, op := range []string{":-", ":=", "-", "="} {
		if strings.Contains(code, "${"+name+op) {
			return true
		}
	}
	return false
}

// Execute runs the step with its effective parameters overlaid by vars.
// The returned process is never nil; err is set only when the step could
// not be started.
func (e *Executor) Execute(ctx context.Context, step *orchestration.Step, vars map[string]any) (*CompletedProcess, error) {
	logger := ctxlog.FromContext(ctx).With("step", step.ID())
	cp := &CompletedProcess{StartTime: time.Now(), RC: -1}

	params := step.Parameters()
	maps.Copy(params, vars)
	code, err := Render(step.ID(), step.Code(), params)
	if err != nil {
		cp.EndTime = time.Now()
		cp.Reason = err.Error()
		return cp, err
	}

	kwargs := step.SystemKwargs()
	timeout := e.timeout
	if secs, ok := number(kwargs[KwargTimeout]); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.shell, "-c", code)
	if dir, ok := kwargs[KwargCwd].(string); ok {
		cmd.Dir = dir
	}
	cmd.Env = os.Environ()
	if env, ok := kwargs[KwargEnv].(map[string]any); ok {
		for k, v := range env {
			cmd.Env = append(cmd.Env, k+"="+fmt.Sprint(v))
		}
	}
	// Children of a killed shell may hold the pipes open.
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("executing step", "shell", e.shell, "code", code)
	runErr := cmd.Run()
	cp.EndTime = time.Now()
	cp.Stdout = stdout.String()
	cp.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		cp.RC = 0
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		cp.Reason = fmt.Sprintf("timed out after %s", timeout)
		return cp, nil
	case errors.Is(ctx.Err(), context.Canceled):
		cp.Reason = "cancelled"
		return cp, nil
	case errors.As(runErr, &exitErr):
		cp.RC = exitErr.ExitCode()
	default:
		cp.Reason = runErr.Error()
		return cp, fmt.Errorf("starting step %q: %w", step.ID(), runErr)
	}

	cp.Success, cp.Reason = judge(step, cp)
	if cp.Success {
		cp.Success, cp.Reason = fetch(step, cp)
	}
	logger.Debug("step finished", "rc", cp.RC, "success", cp.Success, "duration", cp.Duration())
	return cp, nil
}

// judge checks the return code and the expected output.
func judge(step *orchestration.Step, cp *CompletedProcess) (bool, string) {
	want, ok := step.ExpectedRC()
	if !ok {
		want = 0
	}
	if cp.RC != want {
		return false, fmt.Sprintf("return code %d, expected %d", cp.RC, want)
	}
	if out := step.ExpectedStdout(); out != "" && !strings.Contains(cp.Stdout, out) {
		return false, fmt.Sprintf("stdout does not contain %q", out)
	}
	if out := step.ExpectedStderr(); out != "" && !strings.Contains(cp.Stderr, out) {
		return false, fmt.Sprintf("stderr does not contain %q", out)
	}
	return true, ""
}

// fetch applies the output fetcher to stdout. A fetcher that does not
// match fails the step only with error_on_fetch.
func fetch(step *orchestration.Step, cp *CompletedProcess) (bool, string) {
	pattern := step.RegexpFetch()
	if pattern == "" {
		return true, ""
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regexp_fetch: %v", err)
	}
	m := re.FindStringSubmatch(cp.Stdout)
	if m == nil {
		if step.ErrorOnFetch() {
			return false, fmt.Sprintf("regexp_fetch %q did not match stdout", pattern)
		}
		return true, ""
	}
	cp.Fetched = make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" {
			cp.Fetched[name] = m[i]
		}
	}
	return true, ""
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
