// Package progress renders run progress in the terminal: a spinner while a
// level runs and one line per finished step.
package progress

// TerminalCapabilities describes what the output terminal can render.
type TerminalCapabilities struct {
	IsTTY           bool
	SupportsColor   bool
	SupportsUnicode bool
	Width           int
}

// ProgressSymbols are the markers used for step outcomes.
type ProgressSymbols struct {
	Checkmark  string
	Failure    string
	Skipped    string
	SpinnerSet int
}
