package errors

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Style selects how errors are rendered. The zero Style is plain ASCII.
type Style struct {
	Color   bool
	Unicode bool
}

type palette struct {
	label, message, category, usage, usageText, fix, bullet func(a ...any) string
}

func newPalette(useColor bool) palette {
	if !useColor {
		return palette{
			label: fmt.Sprint, message: fmt.Sprint, category: fmt.Sprint,
			usage: fmt.Sprint, usageText: fmt.Sprint, fix: fmt.Sprint, bullet: fmt.Sprint,
		}
	}
	sprint := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		c.EnableColor()
		return c.SprintFunc()
	}
	return palette{
		label:     sprint(color.FgRed, color.Bold),
		message:   sprint(color.FgRed),
		category:  sprint(color.FgYellow),
		usage:     sprint(color.FgCyan, color.Bold),
		usageText: sprint(color.FgCyan),
		fix:       sprint(color.FgGreen, color.Bold),
		bullet:    sprint(color.FgGreen),
	}
}

// Format renders err with its usage line and remediation steps.
func Format(err *CLIError, style Style) string {
	if err == nil {
		return ""
	}
	p := newPalette(style.Color)
	bullet := "-"
	if style.Unicode {
		bullet = "•"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]: %s\n", p.label("Error"), p.category(err.Category.String()), p.message(err.Message))
	if err.Usage != "" {
		fmt.Fprintf(&sb, "\n%s%s\n", p.usage("Usage: "), p.usageText(err.Usage))
	}
	if len(err.Remediation) > 0 {
		fmt.Fprintf(&sb, "\n%s\n", p.fix("To fix this:"))
		for _, step := range err.Remediation {
			fmt.Fprintf(&sb, "  %s %s\n", p.bullet(bullet), step)
		}
	}
	return sb.String()
}

// Report prints err to w and returns the process exit code for it.
// Errors that are not CLIErrors are reported as runtime errors.
func Report(w io.Writer, err error, style Style) int {
	if err == nil {
		return ExitSuccess
	}
	cliErr := AsCLIError(err)
	if cliErr == nil {
		cliErr = Wrap(err, Runtime)
	}
	fmt.Fprint(w, Format(cliErr, style))
	return cliErr.ExitCode()
}
