// Package errors provides structured error handling for the orchestra CLI.
// It includes categorized errors with actionable remediation guidance and
// the process exit code of each category.
package errors

import (
	"errors"
	"fmt"
)

// Exit codes returned by the orchestra binary.
const (
	ExitSuccess       = 0
	ExitValidation    = 1
	ExitRuntime       = 2
	ExitArgument      = 3
	ExitConfiguration = 4
	ExitLockConflict  = 6
	ExitRunFailed     = 7
)

// ErrorCategory represents the type of error that occurred.
type ErrorCategory int

const (
	// Argument errors are caused by invalid or missing command arguments.
	Argument ErrorCategory = iota
	// Configuration errors are caused by invalid or missing configuration.
	Configuration
	// Validation errors are caused by an invalid orchestration definition.
	Validation
	// Lock errors occur when another run holds the orchestration's resources.
	Lock
	// Execution errors are reported when a run finished unsuccessfully.
	Execution
	// Runtime errors occur during command execution.
	Runtime
)

// String returns a human-readable name for the error category.
func (c ErrorCategory) String() string {
	switch c {
	case Argument:
		return "Argument Error"
	case Configuration:
		return "Configuration Error"
	case Validation:
		return "Validation Error"
	case Lock:
		return "Lock Conflict"
	case Execution:
		return "Execution Failed"
	case Runtime:
		return "Runtime Error"
	default:
		return "Error"
	}
}

// CLIError is a structured error with category and remediation guidance.
type CLIError struct {
	// Category is the type of error (Argument, Configuration, etc.)
	Category ErrorCategory
	// Message is a human-readable description of what went wrong.
	Message string
	// Remediation is a list of actionable steps to resolve the error.
	Remediation []string
	// Usage shows the correct command syntax (optional, for argument errors).
	Usage string
	// Err is the underlying cause, kept for errors.Is and errors.As.
	Err error
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error, if any.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for the error's category.
func (e *CLIError) ExitCode() int {
	switch e.Category {
	case Argument:
		return ExitArgument
	case Configuration:
		return ExitConfiguration
	case Validation:
		return ExitValidation
	case Lock:
		return ExitLockConflict
	case Execution:
		return ExitRunFailed
	default:
		return ExitRuntime
	}
}

// ExitCode returns the exit code for any error: 0 for nil, the category
// code for a CLIError anywhere in the chain, ExitRuntime otherwise.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if cliErr := AsCLIError(err); cliErr != nil {
		return cliErr.ExitCode()
	}
	return ExitRuntime
}

// NewArgumentError creates a new argument error with the given message and remediation steps.
func NewArgumentError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Argument,
		Message:     message,
		Remediation: remediation,
	}
}

// NewArgumentErrorWithUsage creates a new argument error that includes correct usage syntax.
func NewArgumentErrorWithUsage(message, usage string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Argument,
		Message:     message,
		Usage:       usage,
		Remediation: remediation,
	}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Configuration,
		Message:     message,
		Remediation: remediation,
	}
}

// NewValidationError creates a new definition validation error.
func NewValidationError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Validation,
		Message:     message,
		Remediation: remediation,
	}
}

// Wrap wraps an existing error with a CLIError, preserving the original message.
func Wrap(err error, category ErrorCategory, remediation ...string) *CLIError {
	if err == nil {
		return nil
	}
	return &CLIError{
		Category:    category,
		Message:     err.Error(),
		Remediation: remediation,
		Err:         err,
	}
}

// WrapWithMessage wraps an error with a custom message and category.
func WrapWithMessage(err error, category ErrorCategory, message string, remediation ...string) *CLIError {
	if err == nil {
		return nil
	}
	return &CLIError{
		Category:    category,
		Message:     fmt.Sprintf("%s: %v", message, err),
		Remediation: remediation,
		Err:         err,
	}
}

// IsCLIError checks if an error chain contains a CLIError.
func IsCLIError(err error) bool {
	return AsCLIError(err) != nil
}

// AsCLIError attempts to find a CLIError in the error chain.
// Returns nil if there is none.
func AsCLIError(err error) *CLIError {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	return nil
}
