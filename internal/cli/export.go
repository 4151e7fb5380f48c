package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ariel-frischer/orchestra/internal/definition"
	clierrors "github.com/ariel-frischer/orchestra/internal/errors"
)

func newExportCmd(opts *Options) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Re-encode an orchestration definition as YAML or JSON",
		Long: `Validate a definition and write it back in normalized form.

Only the actions used by steps are kept, step overrides equal to the
action defaults are dropped and dependencies are listed per step.`,
		Example: `  # Convert YAML to JSON
  orchestra export deploy.yaml --format json -o deploy.json`,
		GroupID:     GroupDefinition,
		Args:        exactArgs(1),
		Annotations: logged,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := definition.Format(format)
			if f != definition.FormatYAML && f != definition.FormatJSON {
				return clierrors.NewArgumentError(
					fmt.Sprintf("invalid format %q", format), "Use --format yaml or --format json")
			}
			orch, _, err := opts.loadDefinition(args[0])
			if err != nil {
				return err
			}
			data, err := definition.FromOrchestration(orch).Marshal(f)
			if err != nil {
				return clierrors.Wrap(err, clierrors.Runtime)
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return clierrors.WrapWithMessage(err, clierrors.Runtime, "writing export")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}
