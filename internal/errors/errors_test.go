package errors

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariel-frischer/orchestra/internal/locker"
)

func TestCLIError_ExitCode(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":           {err: nil, want: ExitSuccess},
		"plain error":   {err: errors.New("boom"), want: ExitRuntime},
		"argument":      {err: NewArgumentError("bad"), want: ExitArgument},
		"configuration": {err: NewConfigError("bad"), want: ExitConfiguration},
		"validation":    {err: NewValidationError("bad"), want: ExitValidation},
		"lock":          {err: LockConflict(errors.New("held")), want: ExitLockConflict},
		"run failed":    {err: RunFailed("deploy", []string{"a"}, false), want: ExitRunFailed},
		"wrapped":       {err: fmt.Errorf("context: %w", NewArgumentError("bad")), want: ExitArgument},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	wrapped := WrapWithMessage(cause, Runtime, "saving history")

	assert.Equal(t, "saving history: disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, Wrap(nil, Runtime))
	assert.Nil(t, WrapWithMessage(nil, Runtime, "x"))
}

func TestLockConflict_NamesHolder(t *testing.T) {
	t.Parallel()

	conflict := &locker.ConflictError{
		Resources: []string{"orchestration/deploy"},
		Holder:    &locker.Claim{ID: "c-1", Applicant: "orchestra", PID: 4242},
	}
	err := LockConflict(fmt.Errorf("acquiring lock: %w", conflict))

	assert.Contains(t, err.Message, "locked by orchestra")
	assert.Contains(t, err.Message, "c-1")
	assert.Contains(t, err.Message, "4242")

	var got *locker.ConflictError
	require.True(t, errors.As(err, &got))
}

func TestInvalidDefinition_IndentsEachProblem(t *testing.T) {
	t.Parallel()

	err := InvalidDefinition("deploy.yaml", errors.Join(errors.New("first"), errors.New("second")))

	assert.Contains(t, err.Message, "deploy.yaml is not a valid orchestration")
	assert.Contains(t, err.Message, "\n  first\n  second")
	assert.Equal(t, ExitValidation, err.ExitCode())
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		style      Style
		wantBullet string
		wantColor  bool
	}{
		"plain ascii":     {style: Style{}, wantBullet: "  - Parameters"},
		"plain unicode":   {style: Style{Unicode: true}, wantBullet: "  • Parameters"},
		"colored unicode": {style: Style{Color: true, Unicode: true}, wantColor: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			out := Format(InvalidParameter("novalue"), tt.style)
			assert.Equal(t, tt.wantColor, strings.Contains(out, "\x1b["))
			assert.Contains(t, out, "invalid parameter \"novalue\"")
			assert.Contains(t, out, "orchestra run <definition.yaml> --param key=value")
			if tt.wantColor {
				return
			}
			assert.Contains(t, out, "Error [Argument Error]: invalid parameter \"novalue\"")
			assert.Contains(t, out, "Usage: orchestra run <definition.yaml> --param key=value")
			assert.Contains(t, out, "To fix this:\n"+tt.wantBullet+" must be written as key=value")
		})
	}

	assert.Empty(t, Format(nil, Style{}))
}

func TestReport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	code := Report(&buf, errors.New("unexpected"), Style{})

	assert.Equal(t, ExitRuntime, code)
	assert.Equal(t, "Error [Runtime Error]: unexpected\n", buf.String())

	buf.Reset()
	code = Report(&buf, fmt.Errorf("loading: %w", NewConfigError("bad key", "Fix it")), Style{})
	assert.Equal(t, ExitConfiguration, code)
	assert.Contains(t, buf.String(), "Error [Configuration Error]: bad key")
	assert.Contains(t, buf.String(), "  - Fix it")

	buf.Reset()
	assert.Equal(t, ExitSuccess, Report(&buf, nil, Style{}))
	assert.Empty(t, buf.String())
}
