// Package cli implements the orchestra command line: definition checks,
// visualization, runs, lock inspection, history and configuration.
package cli

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ariel-frischer/orchestra/internal/config"
	"github.com/ariel-frischer/orchestra/internal/ctxlog"
	clierrors "github.com/ariel-frischer/orchestra/internal/errors"
	"github.com/ariel-frischer/orchestra/internal/history"
	"github.com/ariel-frischer/orchestra/internal/progress"
)

// Command groups shown in the help output.
const (
	GroupDefinition    = "definition"
	GroupExecution     = "execution"
	GroupConfiguration = "configuration"
)

// annotationHistory marks commands whose executions are logged to history.
const annotationHistory = "history"

var logged = map[string]string{annotationHistory: "true"}

// Options holds the global flags and the state shared by every command of
// one invocation.
type Options struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool

	// load overrides the config file locations; zero means the defaults.
	load config.LoadOptions

	cfg    *config.Configuration
	logger *slog.Logger

	// orchestration and runID are recorded in the history entry.
	orchestration string
	runID         string
}

// New returns the orchestra root command.
func New() *cobra.Command {
	return newRoot(&Options{})
}

func newRoot(opts *Options) *cobra.Command {
	root := &cobra.Command{
		Use:   "orchestra",
		Short: "Validate, inspect and run orchestration dependency graphs",
		Long: `orchestra works with orchestrations: named, versioned sets of steps
wired into a directed acyclic graph. Each step runs the code of an action
template. Forward steps run level by level; when a run fails, undo steps
roll the target state back.

Definitions are YAML or JSON documents holding the action templates and
the orchestration that uses them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	root.AddGroup(
		&cobra.Group{ID: GroupDefinition, Title: "Definition Commands:"},
		&cobra.Group{ID: GroupExecution, Title: "Execution Commands:"},
		&cobra.Group{ID: GroupConfiguration, Title: "Configuration Commands:"},
	)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Project config file (default .orchestra/config.yml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text, json")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return clierrors.NewArgumentErrorWithUsage(err.Error(), cmd.UseLine())
	})

	root.AddCommand(
		newValidateCmd(opts),
		newVisualizeCmd(opts),
		newLevelsCmd(opts),
		newCompareCmd(opts),
		newExportCmd(opts),
		newRunCmd(opts),
		newWatchCmd(opts),
		newLocksCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &Options{}, args, stdout, stderr)
}

func execute(ctx context.Context, opts *Options, args []string, stdout, stderr io.Writer) int {
	root := newRoot(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	start := time.Now()
	cmd, err := root.ExecuteContextC(ctx)
	if err != nil && !clierrors.IsCLIError(err) && strings.HasPrefix(err.Error(), "unknown command") {
		err = clierrors.Wrap(err, clierrors.Argument, "Run 'orchestra --help' for the list of commands")
	}
	code := clierrors.Report(stderr, err, opts.errorStyle(stderr))
	opts.recordHistory(cmd, code, time.Since(start))
	return code
}

// errorStyle matches error output to what w can render.
func (o *Options) errorStyle(w io.Writer) clierrors.Style {
	caps := progress.CapabilitiesFor(w)
	return clierrors.Style{
		Color:   caps.SupportsColor && !o.noColor,
		Unicode: caps.SupportsUnicode,
	}
}

// setup loads the configuration and installs the logger.
func (o *Options) setup(cmd *cobra.Command) error {
	if o.noColor {
		color.NoColor = true
	}

	load := o.load
	if o.configPath != "" {
		load.ProjectConfigPath = o.configPath
	}
	cfg, err := config.LoadWithOptions(load)
	if err != nil {
		return clierrors.WrapWithMessage(err, clierrors.Configuration, "loading configuration",
			"Check .orchestra/config.yml and your user config file",
			"Check ORCHESTRA_* environment variables",
		)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}

	level, err := ctxlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return clierrors.Wrap(err, clierrors.Argument, "Use one of: debug, info, warn, error")
	}
	logger, err := ctxlog.New(cmd.ErrOrStderr(), level, cfg.LogFormat)
	if err != nil {
		return clierrors.Wrap(err, clierrors.Argument)
	}

	o.cfg, o.logger = cfg, logger
	cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	return nil
}

// recordHistory appends the execution of an annotated command to history.
func (o *Options) recordHistory(cmd *cobra.Command, code int, duration time.Duration) {
	if cmd == nil || o.cfg == nil || cmd.Annotations[annotationHistory] != "true" {
		return
	}
	history.NewWriter(o.cfg.StateDir, o.cfg.MaxHistoryEntries).
		WithLogger(o.logger).
		LogCommand(cmd.Name(), o.orchestration, o.runID, code, duration)
}

// exactArgs is cobra.ExactArgs reporting an argument error with usage.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return clierrors.NewArgumentErrorWithUsage(err.Error(), cmd.UseLine())
		}
		return nil
	}
}
