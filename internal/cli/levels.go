package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	clierrors "github.com/ariel-frischer/orchestra/internal/errors"
	"github.com/ariel-frischer/orchestra/internal/orchestration"
)

// levelView is one level of the execution plan.
type levelView struct {
	Level int      `json:"level"`
	Steps []string `json:"steps"`
}

func newLevelsCmd(opts *Options) *cobra.Command {
	var (
		from   []string
		format string
	)

	cmd := &cobra.Command{
		Use:   "levels <file>",
		Short: "List the execution levels of an orchestration",
		Long: `List the steps of an orchestration grouped by execution level.

Level 1 holds the steps without parents; every other step sits one level
below its deepest parent. Steps of the same level run concurrently.

With --from, only the given steps and their descendants are listed.`,
		Example: `  # Show the execution plan
  orchestra levels deploy.yaml

  # Only what runs after "migrate", as JSON
  orchestra levels deploy.yaml --from migrate --format json`,
		GroupID:     GroupDefinition,
		Args:        exactArgs(1),
		Annotations: logged,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return clierrors.NewArgumentError(
					fmt.Sprintf("invalid format %q", format), "Use --format text or --format json")
			}
			orch, _, err := opts.loadDefinition(args[0])
			if err != nil {
				return err
			}
			views, err := planLevels(orch, from)
			if err != nil {
				return err
			}
			return printLevels(cmd.OutOrStdout(), views, format)
		},
	}
	cmd.Flags().StringSliceVar(&from, "from", nil, "Restrict to these steps and their descendants")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

// planLevels groups the steps by level, restricted to the subtree of from
// when it is not empty.
func planLevels(orch *orchestration.Orchestration, from []string) ([]levelView, error) {
	keep := func(*orchestration.Step) bool { return true }
	if len(from) > 0 {
		seeds := make([]*orchestration.Step, 0, len(from))
		for _, id := range from {
			s, ok := orch.Step(id)
			if !ok {
				return nil, clierrors.NewArgumentError(
					fmt.Sprintf("step %q not found in orchestration %s", id, orch.Name))
			}
			seeds = append(seeds, s)
		}
		sub := orch.Subtree(seeds...)
		keep = func(s *orchestration.Step) bool {
			_, ok := sub[s]
			return ok
		}
	}

	views := []levelView{}
	for k := 1; k <= orch.Depth(); k++ {
		view := levelView{Level: k}
		for _, s := range orch.StepsAtLevel(k) {
			if keep(s) {
				view.Steps = append(view.Steps, s.ID())
			}
		}
		if len(view.Steps) > 0 {
			views = append(views, view)
		}
	}
	return views, nil
}

func printLevels(w io.Writer, views []levelView, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}
	if len(views) == 0 {
		fmt.Fprintln(w, "No steps.")
		return nil
	}
	for _, v := range views {
		fmt.Fprintf(w, "Level %d: %s\n", v.Level, strings.Join(v.Steps, ", "))
	}
	return nil
}
