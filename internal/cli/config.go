package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ariel-frischer/orchestra/internal/config"
	clierrors "github.com/ariel-frischer/orchestra/internal/errors"
)

func newConfigCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Show and edit orchestra configuration",
		GroupID: GroupConfiguration,
	}
	cmd.AddCommand(
		newConfigShowCmd(opts),
		newConfigSetCmd(opts),
		newConfigInitCmd(opts),
	)
	return cmd
}

func newConfigShowCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration and where each value comes from",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			printConfig(cmd.OutOrStdout(), opts.cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Configuration) {
	for _, key := range cfg.Keys() {
		source := cfg.Sources[key]
		if source == "" {
			source = config.SourceDefault
		}
		fmt.Fprintf(w, "%-20s %-28s (%s)\n", key, cfg.Value(key), source)
	}
}

func newConfigSetCmd(opts *Options) *cobra.Command {
	var user bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value in the project or user config file",
		Example: `  orchestra config set max_parallel 8
  orchestra config set --user log_level debug`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.targetConfigPath(user)
			if err != nil {
				return err
			}
			parsed, err := config.SetValue(path, args[0], args[1])
			if err != nil {
				return clierrors.WrapWithMessage(err, clierrors.Configuration, "setting "+args[0],
					"Run 'orchestra config show' for the known keys")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v in %s\n", args[0], parsed.Parsed, path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")
	return cmd
}

func newConfigInitCmd(opts *Options) *cobra.Command {
	var (
		user  bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented config file with every option",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := opts.targetConfigPath(user)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return clierrors.NewConfigError(
					fmt.Sprintf("config file already exists: %s", path),
					"Use --force to overwrite it")
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return clierrors.WrapWithMessage(err, clierrors.Runtime, "creating config directory")
			}
			if err := os.WriteFile(path, []byte(config.GetDefaultConfigTemplate()), 0o644); err != nil {
				return clierrors.WrapWithMessage(err, clierrors.Runtime, "writing config")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// targetConfigPath returns the config file that set and init write.
func (o *Options) targetConfigPath(user bool) (string, error) {
	if user {
		if o.load.UserConfigPath != "" {
			return o.load.UserConfigPath, nil
		}
		path, err := config.UserConfigPath()
		if err != nil {
			return "", clierrors.WrapWithMessage(err, clierrors.Configuration, "locating user config")
		}
		return path, nil
	}
	if o.configPath != "" {
		return o.configPath, nil
	}
	if o.load.ProjectConfigPath != "" {
		return o.load.ProjectConfigPath, nil
	}
	return config.ProjectConfigPath(), nil
}
