package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"scheduled-backup/internal/application"
	"scheduled-backup/internal/display"
)

var retentionDryRun bool

// createRetentionCommand creates the retention subcommand
func createRetentionCommand() *cobra.Command {
	retentionCmd := &cobra.Command{
		Use:   "retention",
		Short: "Trim completed backups to the retention cap",
		Long: `Retention keeps the newest completed backups up to engine.retention_cap and deletes
the rest from blob storage and the ledger. The same pass runs after every backup;
this command runs it on its own.

Examples:
  # Show what would be deleted
  scheduled-backup retention --dry-run --format=table`,
		PreRunE: validateOutputFlags,
		RunE:    runRetention,
	}

	retentionCmd.Flags().BoolVar(&retentionDryRun, "dry-run", false, "list the backups that would be deleted without deleting them")
	addDisplayFlags(retentionCmd, formatJSON)
	return retentionCmd
}

func runRetention(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	app := application.New(cfg, logger)
	defer app.Close()

	result, err := app.Retention(cmd.Context(), retentionDryRun)
	if err != nil {
		return err
	}

	return outputOptionsFrom(cmd).write(cmd.OutOrStdout(), result, func(w io.Writer, cs *display.ColorSystem) {
		display.Retention(w, result, cs)
	})
}
