package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	clierrors "github.com/ariel-frischer/orchestra/internal/errors"
	"github.com/ariel-frischer/orchestra/internal/executor"
	"github.com/ariel-frischer/orchestra/internal/locker"
	"github.com/ariel-frischer/orchestra/internal/orchestration"
	"github.com/ariel-frischer/orchestra/internal/progress"
	"github.com/ariel-frischer/orchestra/internal/runner"
)

type runFlags struct {
	params      []string
	varsFile    string
	maxParallel int
	timeout     time.Duration
	priority    int
	dryRun      bool
}

func newRunCmd(opts *Options) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run an orchestration",
		Long: `Run an orchestration level by level.

Steps of one level run concurrently. A step starts only when all of its
parents succeeded. When a step fails and its stop_on_error policy is set,
no further forward levels start. If a failed step has undo_on_error set,
the undo steps run afterwards to roll the target state back.

Run parameters fill the ${name} placeholders of step code and override
step parameters. Values captured by a step's regexp_fetch become
parameters of the following levels.

The orchestration is locked for the duration of the run; a second run of
the same orchestration fails with a lock conflict.

Exit codes:
  0 - All steps succeeded
  1 - Invalid definition
  3 - Invalid arguments or missing run parameters
  6 - Orchestration locked by another run
  7 - Run finished with failed steps`,
		Example: `  # Run with parameters
  orchestra run deploy.yaml --param env=prod --param version=1.4.2

  # Parameters from a YAML file, two steps at a time
  orchestra run deploy.yaml --vars-file prod.yaml --max-parallel 2

  # Show the rendered commands without running them
  orchestra run deploy.yaml --param env=prod --dry-run`,
		GroupID:     GroupExecution,
		Args:        exactArgs(1),
		Annotations: logged,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrchestration(cmd, opts, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&flags.params, "param", "p", nil, "Run parameter as key=value (repeatable)")
	f.StringVar(&flags.varsFile, "vars-file", "", "YAML file with run parameters; --param values win")
	f.IntVar(&flags.maxParallel, "max-parallel", 0, "Steps of one level running at once (default from config)")
	f.DurationVar(&flags.timeout, "timeout", 0, "Per-step time limit (default from config)")
	f.IntVar(&flags.priority, "priority", -1, "Lock priority, lower is more urgent (default from config)")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Print the rendered step code per level without running it")
	return cmd
}

func runOrchestration(cmd *cobra.Command, opts *Options, path string, flags runFlags) error {
	params, err := loadParams(flags.varsFile, flags.params)
	if err != nil {
		return err
	}
	orch, _, err := opts.loadDefinition(path)
	if err != nil {
		return err
	}

	if flags.dryRun {
		printDryRun(cmd.OutOrStdout(), orch, params)
		return nil
	}

	cfg := opts.cfg
	maxParallel, timeout, priority := cfg.MaxParallel, cfg.StepTimeout, cfg.RunPriority
	if cmd.Flags().Changed("max-parallel") {
		if flags.maxParallel < 1 {
			return clierrors.NewArgumentError(fmt.Sprintf("--max-parallel must be at least 1, got %d", flags.maxParallel))
		}
		maxParallel = flags.maxParallel
	}
	if cmd.Flags().Changed("timeout") {
		timeout = flags.timeout
	}
	if cmd.Flags().Changed("priority") {
		priority = flags.priority
	}

	display := progress.NewDisplay(cmd.OutOrStdout(), progress.CapabilitiesFor(cmd.OutOrStdout()))
	r := runner.New(
		locker.New(cfg.LockDir),
		executor.New(cfg.Shell, timeout),
		runner.WithMaxParallel(maxParallel),
		runner.WithPriority(priority),
		runner.WithApplicant(applicantName()),
		runner.WithObserver(display),
	)

	res, err := r.Run(cmd.Context(), orch, params)
	if res != nil {
		opts.runID = res.RunID
		display.Summary(res)
	}
	if err != nil {
		return runError(err)
	}
	if !res.Success {
		failed := make([]string, 0, len(res.Failed()))
		for _, s := range res.Failed() {
			failed = append(failed, s.StepID)
		}
		return clierrors.RunFailed(orch.Name, failed, res.RolledBack)
	}
	return nil
}

// runError maps a runner error to its CLI category.
func runError(err error) error {
	var (
		missing  *runner.MissingParametersError
		conflict *locker.ConflictError
	)
	switch {
	case errors.As(err, &missing):
		return clierrors.NewArgumentErrorWithUsage(err.Error(),
			"orchestra run <file> --param key=value",
			"Pass a --param for each missing name",
			"Or list them in a --vars-file")
	case errors.As(err, &conflict):
		return clierrors.LockConflict(err)
	default:
		return clierrors.Wrap(err, clierrors.Runtime)
	}
}

// loadParams merges the vars file with the --param values.
func loadParams(varsFile string, pairs []string) (map[string]any, error) {
	params := make(map[string]any)
	if varsFile != "" {
		data, err := os.ReadFile(varsFile)
		if err != nil {
			return nil, clierrors.WrapWithMessage(err, clierrors.Argument, "reading vars file")
		}
		if err := yaml.Unmarshal(data, &params); err != nil {
			return nil, clierrors.WrapWithMessage(err, clierrors.Argument, "parsing vars file",
				"The vars file must be a YAML mapping of names to values")
		}
		if params == nil {
			params = make(map[string]any)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, clierrors.InvalidParameter(pair)
		}
		params[strings.TrimSpace(key)] = value
	}
	return params, nil
}

// printDryRun prints the forward plan with the step code rendered from
// the step parameters and params. Placeholders filled by fetched values
// are left as is.
func printDryRun(w io.Writer, orch *orchestration.Orchestration, params map[string]any) {
	fmt.Fprintf(w, "Dry run of %s v%d\n", orch.Name, orch.Version)
	for k := 1; k <= orch.Depth(); k++ {
		fmt.Fprintf(w, "[L%d]\n", k)
		for _, s := range orch.StepsAtLevel(k) {
			marker := ""
			if s.Undo() {
				marker = " (undo)"
			}
			vars := s.Parameters()
			if vars == nil {
				vars = make(map[string]any)
			}
			maps.Copy(vars, params)

			code, err := executor.Render(s.ID(), s.Code(), vars)
			if err != nil {
				code = s.Code()
				var missing *executor.MissingParameterError
				if errors.As(err, &missing) {
					marker += fmt.Sprintf(" (waits for: %s)", strings.Join(missing.Names, ", "))
				}
			}
			fmt.Fprintf(w, "  %s%s: %s\n", s.ID(), marker, code)
		}
	}
}

func applicantName() string {
	host, err := os.Hostname()
	if err != nil {
		return "orchestra"
	}
	return "orchestra@" + host
}
