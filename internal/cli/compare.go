package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	clierrors "github.com/ariel-frischer/orchestra/internal/errors"
)

func newCompareCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <file-a> <file-b>",
		Short: "Check whether two orchestrations implement the same workflow",
		Long: `Check whether two orchestration definitions implement the same workflow.

Steps are compared by behavior (code, parameters, system options,
expected output and return code, undo flag), not by ID, name, target or
insertion order. Dependencies are compared between the matched steps.

Exit codes:
  0 - Equivalent
  1 - Different, or a definition is invalid`,
		Example: `  orchestra compare deploy-v1.yaml deploy-v2.yaml`,
		GroupID:     GroupDefinition,
		Args:        exactArgs(2),
		Annotations: logged,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := opts.loadDefinition(args[0])
			if err != nil {
				return err
			}
			b, _, err := opts.loadDefinition(args[1])
			if err != nil {
				return err
			}
			opts.orchestration = a.Name

			equal, err := a.EqImp(b)
			if err != nil {
				return clierrors.WrapWithMessage(err, clierrors.Runtime, "comparing orchestrations")
			}
			if !equal {
				return clierrors.NewValidationError(
					fmt.Sprintf("%s and %s implement different workflows", args[0], args[1]))
			}
			color.New(color.FgGreen, color.Bold).Fprint(cmd.OutOrStdout(), "Equivalent")
			fmt.Fprintf(cmd.OutOrStdout(), " - %s and %s implement the same workflow\n", args[0], args[1])
			return nil
		},
	}
}
