package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ariel-frischer/orchestra/internal/ctxlog"
	"github.com/ariel-frischer/orchestra/internal/definition"
	clierrors "github.com/ariel-frischer/orchestra/internal/errors"
)

func newWatchCmd(opts *Options) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-validate a definition every time it changes",
		Long: `Validate a definition, then watch it and validate again after every
change. Editors that replace the file on save are supported.

Press Ctrl+C to exit.

Exit codes:
  0 - Clean exit via Ctrl+C
  3 - Invalid arguments`,
		Example: `  orchestra watch deploy.yaml

  # Wait longer for bursts of writes to settle
  orchestra watch deploy.yaml --debounce 500ms`,
		GroupID: GroupDefinition,
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if debounce < 10*time.Millisecond {
				return clierrors.NewArgumentError("debounce must be at least 10ms")
			}
			if err := validateFileArg(args[0]); err != nil {
				return err
			}
			return watchDefinition(cmd.Context(), cmd.OutOrStdout(), opts, args[0], debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", definition.DefaultDebounce, "Quiet period before re-validating")
	return cmd
}

func watchDefinition(ctx context.Context, w io.Writer, opts *Options, path string, debounce time.Duration) error {
	watcher, err := definition.NewWatcher(path, debounce)
	if err != nil {
		return clierrors.WrapWithMessage(err, clierrors.Runtime, "watching definition")
	}
	defer watcher.Close()

	check := func() {
		fmt.Fprintf(w, "[%s] ", time.Now().Format("15:04:05"))
		orch, result, err := opts.loadDefinition(path)
		if err != nil {
			color.New(color.FgRed, color.Bold).Fprint(w, "Invalid")
			fmt.Fprintf(w, " - %v\n", err)
			return
		}
		printValidMessage(w, orch, len(result.Document.Actions))
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprint(w, "Watching ")
	fmt.Fprintf(w, "%s (Ctrl+C to stop)\n", watcher.Path())
	check()

	err = watcher.Watch(ctx, check, func(err error) {
		ctxlog.FromContext(ctx).Warn("watch error", "path", path, "error", err)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
