package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ariel-frischer/orchestra/internal/locker"
)

// Common error messages for the orchestra CLI.
// These templates ensure consistent, actionable error messages.

// MissingDefinitionFile creates an error for a definition path that does not exist.
func MissingDefinitionFile(path string) *CLIError {
	return NewArgumentErrorWithUsage(
		fmt.Sprintf("definition file not found: %s", path),
		"orchestra <command> <definition.yaml>",
		"Check the path to the orchestration definition",
		"Definitions may be YAML (.yaml, .yml) or JSON (.json)",
	)
}

// InvalidParameter creates an error for a --param value that is not key=value.
func InvalidParameter(provided string) *CLIError {
	return NewArgumentErrorWithUsage(
		fmt.Sprintf("invalid parameter %q", provided),
		"orchestra run <definition.yaml> --param key=value",
		"Parameters must be written as key=value",
		"Repeat --param for each variable",
	)
}

// InvalidDefinition wraps the validation errors of a definition file.
func InvalidDefinition(path string, err error) *CLIError {
	return &CLIError{
		Category: Validation,
		Message:  fmt.Sprintf("%s is not a valid orchestration:\n%s", path, indent(err)),
		Remediation: []string{
			"Fix the reported fields and run 'orchestra validate " + path + "' again",
		},
		Err: err,
	}
}

// LockConflict creates an error for a run blocked by another holder.
func LockConflict(err error) *CLIError {
	message := err.Error()
	var conflict *locker.ConflictError
	if errors.As(err, &conflict) && conflict.Holder != nil {
		message = fmt.Sprintf("orchestration is locked by %s (claim %s, pid %d)",
			conflict.Holder.Applicant, conflict.Holder.ID, conflict.Holder.PID)
	}
	return &CLIError{
		Category: Lock,
		Message:  message,
		Remediation: []string{
			"Wait for the other run to finish",
			"Inspect current claims with 'orchestra locks'",
		},
		Err: err,
	}
}

// RunFailed creates an error for a run that finished with failed steps.
func RunFailed(orchestration string, failed []string, rolledBack bool) *CLIError {
	message := fmt.Sprintf("orchestration %s failed at step(s): %s", orchestration, strings.Join(failed, ", "))
	remediation := []string{"Inspect the step output above and re-run once fixed"}
	if rolledBack {
		remediation = append(remediation, "Undo steps were executed; the target state was rolled back")
	}
	return &CLIError{
		Category:    Execution,
		Message:     message,
		Remediation: remediation,
	}
}

// indent renders each line of err's message as an indented list item.
func indent(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
