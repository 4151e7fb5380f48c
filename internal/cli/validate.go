package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ariel-frischer/orchestra/internal/orchestration"
)

func newValidateCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an orchestration definition",
		Long: `Validate an orchestration definition for structural correctness.

Checks for:
- Required fields and value ranges of actions and steps
- Unique action and step IDs
- References to unknown actions or parent steps
- Forward steps depending on undo steps
- Cycles in step dependencies
- Invalid output fetch patterns

Every problem is reported with its line and column.

Exit codes:
  0 - Valid definition
  1 - Invalid definition
  3 - Invalid arguments`,
		Example: `  # Validate a YAML definition
  orchestra validate deploy.yaml

  # JSON definitions work the same way
  orchestra validate deploy.json`,
		GroupID:     GroupDefinition,
		Args:        exactArgs(1),
		Annotations: logged,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, result, err := opts.loadDefinition(args[0])
			if err != nil {
				return err
			}
			printValidMessage(cmd.OutOrStdout(), orch, len(result.Document.Actions))
			return nil
		},
	}
}

func printValidMessage(w io.Writer, orch *orchestration.Orchestration, actions int) {
	color.New(color.FgGreen, color.Bold).Fprint(w, "Valid")
	fmt.Fprintf(w, " - orchestration %q v%d\n", orch.Name, orch.Version)
	fmt.Fprintf(w, "  %d step(s), %d level(s), %d action(s)\n", orch.Len(), orch.Depth(), actions)

	if params := userParameters(orch); len(params) > 0 {
		fmt.Fprintf(w, "  Run parameters: %s\n", strings.Join(params, ", "))
	}
}
