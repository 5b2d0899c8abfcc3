package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"scheduled-backup/internal/config"
	"scheduled-backup/internal/display"
	"scheduled-backup/internal/logging"
)

var configOutput string

// createConfigCommand creates the config subcommand and its children
func createConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Generate, show and validate configuration",
		Long: `Configuration is read from a YAML file (--config, or scheduled-backup.yaml in the
current directory or $HOME/.config/scheduled-backup/) and from environment variables.

Examples:
  # Generate a config file
  scheduled-backup config init --output=scheduled-backup.yaml

  # Show the effective configuration with secrets masked
  scheduled-backup config show

  # Check the store settings and prepare storage
  scheduled-backup config validate`,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Print a sample configuration file",
		RunE:  runConfigInit,
	}
	initCmd.Flags().StringVarP(&configOutput, "output", "o", "", "write to this file instead of stdout")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE:  runConfigShow,
	}
	showCmd.Flags().String("format", formatYAML, "output format (yaml, json)")

	validateCmd := &cobra.Command{
		Use:     "validate",
		Short:   "Validate the configuration and prepare artifact storage",
		PreRunE: validateOutputFlags,
		RunE:    runConfigValidate,
	}
	addDisplayFlags(validateCmd, formatTable)

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "List the environment variables read besides SCHEDULED_BACKUP_*",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.EnvironmentVariables() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}

	configCmd.AddCommand(initCmd, showCmd, validateCmd, envCmd)
	return configCmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if configOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), config.Template())
		return nil
	}
	if _, err := os.Stat(configOutput); err == nil {
		return fmt.Errorf("%s already exists", configOutput)
	}
	if err := os.WriteFile(configOutput, []byte(config.Template()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", configOutput)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if cfg == nil {
		return err
	}
	opts := outputOptionsFrom(cmd)
	if opts.format != formatJSON && opts.format != formatYAML {
		return fmt.Errorf("unsupported output format: %s (must be yaml or json)", opts.format)
	}
	return opts.write(cmd.OutOrStdout(), cfg.Redacted(), nil)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// validation failures are reported by the initializer below
	cfg, err := loadConfig()
	if cfg == nil {
		return err
	}

	result := config.NewInitializer(cfg, logging.NewNopLogger()).Initialize(cmd.Context())
	err = outputOptionsFrom(cmd).write(cmd.OutOrStdout(), result, func(w io.Writer, cs *display.ColorSystem) {
		printInitialization(w, result, cs)
	})
	if err != nil {
		return err
	}
	if !result.Success {
		return errors.New("configuration is not valid")
	}
	return nil
}

func printInitialization(w io.Writer, result *config.InitializationResult, cs *display.ColorSystem) {
	theme := cs.Theme()

	t := display.NewTable(cs)
	t.SetHeaders("CHECK", "STATUS")
	t.SetColumnColor(1, func(status string) display.Color {
		if status == "ok" {
			return theme.Success
		}
		return theme.Error
	})
	t.AddRow("configuration", okOrFailed(result.ConfigValid))
	t.AddRow("store", okOrFailed(result.StoreConfigured))
	t.AddRow("storage", okOrFailed(result.StorageReady))
	t.RenderTo(w)

	for _, e := range result.Errors {
		fmt.Fprintln(w, cs.Colorize("error: "+e, theme.Error))
	}
	for _, warning := range result.Warnings {
		fmt.Fprintln(w, cs.Colorize("warning: "+warning, theme.Warning))
	}
	for _, fix := range result.RecommendedFixes {
		fmt.Fprintln(w, cs.Colorize("hint: "+fix, theme.Muted))
	}
}

func okOrFailed(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
