package cmd

import (
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scheduled-backup/internal/application"
	"scheduled-backup/internal/backup"
	"scheduled-backup/internal/display"
)

var strict bool

// createRunCommand creates the run subcommand
func createRunCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run every due backup schedule once",
		Long: `Run performs a single invocation: every enabled schedule whose next run time has
passed is backed up, its ledger row is written, the schedule is advanced and the
completed backups are trimmed to the retention cap.

Per-schedule failures are part of the report and do not change the exit status.
Missing store settings or a failure to read the schedules exit with status 1.
With --strict a failed schedule also exits with status 1.

Examples:
  # Print the report as JSON
  scheduled-backup run

  # Colored table for humans
  scheduled-backup run --format=table`,
		PreRunE: validateOutputFlags,
		RunE:    runBackup,
	}

	addDisplayFlags(runCmd, formatJSON)
	runCmd.Flags().BoolVar(&strict, "strict", false, "exit with status 1 when any schedule failed")
	return runCmd
}

// runBackup executes one invocation and prints its report
func runBackup(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := app.Run(ctx)
	if err != nil {
		return err
	}

	err = outputOptionsFrom(cmd).write(cmd.OutOrStdout(), report, func(w io.Writer, cs *display.ColorSystem) {
		display.RunReport(w, report, cs)
	})
	if err != nil {
		return err
	}
	if strict && reportHasFailures(report) {
		return errors.New("one or more schedules failed")
	}
	return nil
}

// reportHasFailures reports whether any schedule in report failed
func reportHasFailures(report *backup.RunReport) bool {
	for _, outcome := range report.Results {
		if outcome.Status == backup.StatusFailed {
			return true
		}
	}
	return false
}
