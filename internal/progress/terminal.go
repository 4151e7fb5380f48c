package progress

import (
	"io"
	"os"

	"golang.org/x/term"
)

// CapabilitiesFor detects the terminal features of w.
// Checks: isatty, NO_COLOR env, ORCHESTRA_ASCII env, terminal width.
// Writers that are not files get plain output. Used to select appropriate
// symbols (Unicode vs ASCII) and enable/disable spinner.
func CapabilitiesFor(w io.Writer) TerminalCapabilities {
	f, ok := w.(*os.File)
	if !ok {
		return TerminalCapabilities{}
	}
	return detect(f)
}

func detect(f *os.File) TerminalCapabilities {
	isTTY := term.IsTerminal(int(f.Fd()))

	// Check environment variables
	noColor := os.Getenv("NO_COLOR") != ""
	forceASCII := os.Getenv("ORCHESTRA_ASCII") == "1"

	// Get terminal width
	width := 0
	if isTTY {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = w
		}
	}

	return TerminalCapabilities{
		IsTTY:           isTTY,
		SupportsColor:   isTTY && !noColor,
		SupportsUnicode: isTTY && !forceASCII,
		Width:           width,
	}
}

// SelectSymbols returns the appropriate symbol set based on terminal capabilities.
// Unicode: ✓/✗/○ with braille spinner (set 14). ASCII: [OK]/[FAIL]/[SKIP] with |/-\ spinner (set 9).
// Graceful degradation ensures output is readable in any terminal.
func SelectSymbols(caps TerminalCapabilities) ProgressSymbols {
	if caps.SupportsUnicode {
		return ProgressSymbols{
			Checkmark:  "✓",
			Failure:    "✗",
			Skipped:    "○",
			SpinnerSet: 14, // Unicode dots: ⠋ ⠙ ⠹ ⠸ ⠼ ⠴ ⠦ ⠧ ⠇ ⠏
		}
	}

	return ProgressSymbols{
		Checkmark:  "[OK]",
		Failure:    "[FAIL]",
		Skipped:    "[SKIP]",
		SpinnerSet: 9, // ASCII: | / - \
	}
}
