package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scheduled-backup/internal/config"
	appErrors "scheduled-backup/internal/errors"
	"scheduled-backup/internal/logging"
)

var cfgFile string

// Logging flag variables
var (
	logLevel  string
	logFormat string
	logFile   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scheduled-backup",
	Short: "Back up the CRM store to blob storage on a per-owner schedule",
	Long: `Scheduled Backup reads the backup schedules that are due, exports the tables each
schedule covers into a JSON artifact, uploads it to blob storage, records it in the
backup ledger and computes the next run time. Old artifacts are trimmed to a fixed cap.

Examples:
  # Run every due schedule once and print the report
  scheduled-backup run --config=scheduled-backup.yaml

  # Serve the HTTP trigger and also fire it every hour
  scheduled-backup serve --addr=:8080 --cron="@hourly"

  # Generate a configuration file
  scheduled-backup config init > scheduled-backup.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", appErrors.FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./scheduled-backup.yaml, then $HOME/.config/scheduled-backup/)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (quiet, normal, verbose, debug)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig points viper at the config file and environment
func initConfig() {
	config.SetupViper(viper.GetViper(), cfgFile)
}

// loadConfig reads the config file and environment. When only validation fails
// the config is returned together with the error.
func loadConfig() (*config.Config, error) {
	used, err := config.ReadFile(viper.GetViper())
	if err != nil {
		return nil, configError("failed to read configuration", err)
	}

	cfg, err := config.Load(viper.GetViper())
	if cfg == nil {
		return nil, configError("failed to load configuration", err)
	}
	if used != "" && logging.ParseLevel(cfg.Log.Level) == logging.LogLevelDebug {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
	if err != nil {
		return cfg, configError("configuration validation failed", err)
	}
	return cfg, nil
}

func configError(msg string, err error) error {
	return appErrors.NewAppError(appErrors.ErrorTypeConfiguration, msg, err).
		WithUserMessage(fmt.Sprintf("%s: %v", msg, err))
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.NewLogger(cfg.LoggerConfig())
	if err != nil {
		return nil, configError("failed to initialize logger", err)
	}
	return logger, nil
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  "Print the version information for scheduled-backup",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scheduled-backup version %s\n", version)
			fmt.Fprintf(out, "Built: %s\n", buildTime)
			fmt.Fprintf(out, "Commit: %s\n", gitCommit)
			fmt.Fprintf(out, "Go version: %s\n", goVersion)
		},
	}
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createRunCommand())
	rootCmd.AddCommand(createServeCommand())
	rootCmd.AddCommand(createRetentionCommand())
	rootCmd.AddCommand(createConfigCommand())
}
