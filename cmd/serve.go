package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scheduled-backup/internal/application"
	"scheduled-backup/internal/server"
)

// createServeCommand creates the serve subcommand
func createServeCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP backup trigger",
		Long: `Serve listens for HTTP requests and runs one invocation per request on / or /run.
OPTIONS requests are answered as CORS preflights without running anything.

A missing store configuration does not stop the server; every run request then
fails with status 500 until the configuration is fixed.

Endpoints:
  /, /run    run every due schedule and return the report
  /healthz   liveness
  /readyz    configuration and storage readiness
  /metrics   Prometheus metrics

Examples:
  scheduled-backup serve --addr=:8080
  scheduled-backup serve --cron="*/30 * * * *"`,
		RunE: runServe,
	}

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("cron", "", "also run on this cron schedule (e.g. \"@hourly\" or \"0 * * * *\")")
	serveCmd.Flags().Duration("shutdown-timeout", 0, "grace period for in-flight requests on shutdown")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.cron", serveCmd.Flags().Lookup("cron"))
	viper.BindPFlag("server.shutdown_timeout", serveCmd.Flags().Lookup("shutdown-timeout"))

	return serveCmd
}

// runServe serves the trigger until SIGINT or SIGTERM
func runServe(cmd *cobra.Command, args []string) error {
	cfg, cfgErr := loadConfig()
	if cfg == nil {
		return cfgErr
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	if cfgErr != nil {
		logger.WithField("error", cfgErr.Error()).Warn("Configuration is incomplete; backup runs will fail until it is fixed")
	}

	app := application.New(cfg, logger)
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Cron != "" {
		trigger, err := server.NewCronTrigger(cfg.Server.Cron, cfg.Engine.Location(), app, logger)
		if err != nil {
			return configError("invalid server.cron", err)
		}
		trigger.Start(ctx)
		defer trigger.Stop()
	}

	logger.WithField("config", app.Describe()).Info("Starting scheduled backup service")
	return server.New(app, app, logger).ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}
