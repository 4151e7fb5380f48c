package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/ariel-frischer/orchestra/internal/orchestration"
	"github.com/ariel-frischer/orchestra/internal/runner"
)

// Display prints run progress. It implements runner.Observer and is safe
// for the concurrent StepFinished calls of one level.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	caps    TerminalCapabilities
	symbols ProgressSymbols
	spinner *spinner.Spinner
	running int
	level   int
	phase   runner.Phase
}

var _ runner.Observer = (*Display)(nil)

// NewDisplay creates a display writing to out. The spinner is only used on
// a TTY.
func NewDisplay(out io.Writer, caps TerminalCapabilities) *Display {
	d := &Display{
		out:     out,
		caps:    caps,
		symbols: SelectSymbols(caps),
	}
	if caps.IsTTY {
		d.spinner = spinner.New(
			spinner.CharSets[d.symbols.SpinnerSet],
			100*time.Millisecond,
			spinner.WithWriter(out),
		)
	}
	return d
}

// LevelStarted prints the level header and starts the spinner.
func (d *Display) LevelStarted(phase runner.Phase, level int, steps []*orchestration.Step) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopSpinner()
	d.phase, d.level, d.running = phase, level, len(steps)

	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID()
	}
	header := fmt.Sprintf("[%s L%d] %s", phase, level, strings.Join(ids, ", "))
	if d.caps.SupportsColor {
		header = color.New(color.FgCyan, color.Bold).Sprint(header)
	}
	fmt.Fprintln(d.out, header)
	d.startSpinner()
}

// StepFinished prints the outcome line of one step.
func (d *Display) StepFinished(res runner.StepResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopSpinner()
	fmt.Fprintln(d.out, "  "+d.formatStep(res))
	if d.running > 0 {
		d.running--
	}
	if d.running > 0 {
		d.startSpinner()
	}
}

// Summary prints the final outcome of a run.
func (d *Display) Summary(res *runner.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopSpinner()

	counts := make(map[runner.Status]int)
	for _, s := range res.Steps {
		counts[s.Status]++
	}

	outcome := "succeeded"
	paint := color.New(color.FgGreen, color.Bold)
	if !res.Success {
		outcome = "failed"
		paint = color.New(color.FgRed, color.Bold)
	}
	line := fmt.Sprintf("Run %s %s in %s: %d succeeded, %d failed, %d skipped",
		res.RunID, outcome, res.EndTime.Sub(res.StartTime).Round(time.Millisecond),
		counts[runner.StatusSucceeded], counts[runner.StatusFailed], counts[runner.StatusSkipped])
	if res.RolledBack {
		line += " (rolled back)"
	}
	if d.caps.SupportsColor {
		line = paint.Sprint(line)
	}
	fmt.Fprintln(d.out, line)

	for _, s := range res.Steps {
		if s.Status == runner.StatusSkipped {
			fmt.Fprintf(d.out, "  %s %s (%s)\n", d.symbols.Skipped, s.StepID, s.Phase)
		}
	}
}

func (d *Display) formatStep(res runner.StepResult) string {
	symbol := d.symbols.Checkmark
	if res.Status == runner.StatusFailed {
		symbol = d.symbols.Failure
	}
	if d.caps.SupportsColor {
		if res.Status == runner.StatusFailed {
			symbol = color.RedString(symbol)
		} else {
			symbol = color.GreenString(symbol)
		}
	}

	label := res.StepID
	if res.Name != "" && res.Name != res.StepID {
		label = fmt.Sprintf("%s (%s)", res.StepID, res.Name)
	}

	var detail string
	switch {
	case res.Err != nil:
		detail = res.Err.Error()
	case res.Process != nil:
		detail = fmt.Sprintf("rc=%d %s", res.Process.RC, res.Process.Duration().Round(time.Millisecond))
		if res.Process.Reason != "" {
			detail += ": " + res.Process.Reason
		}
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", symbol, label, detail))
}

func (d *Display) startSpinner() {
	if d.spinner == nil {
		return
	}
	d.spinner.Suffix = fmt.Sprintf(" %s level %d: %d running", d.phase, d.level, d.running)
	d.spinner.Start()
}

func (d *Display) stopSpinner() {
	if d.spinner != nil {
		d.spinner.Stop()
	}
}
