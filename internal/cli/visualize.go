package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ariel-frischer/orchestra/internal/orchestration"
)

func newVisualizeCmd(opts *Options) *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "visualize <file>",
		Short: "Generate ASCII visualization of an orchestration",
		Long: `Generate an ASCII visualization of an orchestration definition.

The visualization shows:
- Levels with their steps
- Dependency relationships between steps
- Summary statistics (level count, step count, undo steps)

The definition is validated before visualization. If validation fails,
errors are displayed instead of the diagram.

Exit codes:
  0 - Visualization successful
  1 - Invalid definition`,
		Example: `  # Visualize a definition
  orchestra visualize deploy.yaml

  # One-line summary of the levels
  orchestra visualize --compact deploy.yaml`,
		GroupID:     GroupDefinition,
		Args:        exactArgs(1),
		Annotations: logged,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, _, err := opts.loadDefinition(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderVisualization(orch, compact))
			return nil
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "Show a one-line summary instead of the diagram")
	return cmd
}

// renderVisualization generates the visualization output.
func renderVisualization(orch *orchestration.Orchestration, compact bool) string {
	out := orchestration.RenderASCII(orch)
	if compact {
		out = orchestration.RenderCompact(orch)
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}
