package application

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"scheduled-backup/internal/backup"
	"scheduled-backup/internal/config"
	"scheduled-backup/internal/database"
	appErrors "scheduled-backup/internal/errors"
	"scheduled-backup/internal/logging"
)

// Application wires the backup engine to the store and blob storage.
// Collaborators are built on the first invocation so a missing store
// configuration surfaces as a run failure rather than a start-up crash.
type Application struct {
	config  *config.Config
	logger  *logging.Logger
	service *database.Service
	clock   backup.Clock

	// runMu serializes whole invocations within the process
	runMu sync.Mutex

	initMu  sync.Mutex
	db      *sql.DB
	ownsDB  bool
	storage backup.StorageProvider
	engine  *engine
}

type engine struct {
	orchestrator *backup.Orchestrator
	retention    *backup.RetentionEnforcer
}

// Option customizes an Application
type Option func(*Application)

// WithDB uses an already opened store connection. The caller keeps ownership.
func WithDB(db *sql.DB) Option {
	return func(a *Application) { a.db = db }
}

// WithStorage uses the given blob store instead of building one from configuration
func WithStorage(storage backup.StorageProvider) Option {
	return func(a *Application) { a.storage = storage }
}

// WithClock replaces time.Now for the orchestrator
func WithClock(clock backup.Clock) Option {
	return func(a *Application) { a.clock = clock }
}

// New creates an application for cfg
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) *Application {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	timeout := cfg.Store.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	a := &Application{
		config:  cfg,
		logger:  logger,
		service: database.NewServiceWithOptions(timeout, 3, 2*time.Second, logger),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run performs one invocation: every due schedule is backed up, advanced and trimmed.
// Only configuration, connection and schedule-fetch failures are returned as errors.
func (a *Application) Run(ctx context.Context) (*backup.RunReport, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	eng, err := a.ready(ctx)
	if err != nil {
		return nil, err
	}

	done := a.logger.LogOperationStart(ctx, "scheduled_backup", nil)
	report, err := eng.orchestrator.Run(ctx)
	done(err)
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(map[string]interface{}{
		"processed": report.Processed,
		"failed":    countFailed(report),
	}).Info("Scheduled backup run finished")
	return report, nil
}

// Retention runs a stand-alone retention pass. With dryRun nothing is deleted.
func (a *Application) Retention(ctx context.Context, dryRun bool) (*backup.RetentionResult, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	eng, err := a.ready(ctx)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return eng.retention.Plan(ctx)
	}
	return eng.retention.Enforce(ctx)
}

// HealthCheck reports configuration and storage readiness
func (a *Application) HealthCheck() *config.HealthCheckResult {
	return config.NewInitializer(a.config, a.logger).HealthCheck()
}

// Close releases the store connection if the application opened it
func (a *Application) Close() error {
	a.initMu.Lock()
	defer a.initMu.Unlock()

	if !a.ownsDB || a.db == nil {
		return nil
	}
	err := a.service.Close(a.db)
	a.db = nil
	a.engine = nil
	return err
}

func (a *Application) ready(ctx context.Context) (*engine, error) {
	a.initMu.Lock()
	defer a.initMu.Unlock()

	if a.engine != nil {
		return a.engine, nil
	}

	catalog, err := a.config.Engine.Catalog()
	if err != nil {
		return nil, backup.NewConfigurationError("invalid table catalog", err)
	}
	compressor, err := backup.NewCompressor(a.config.Engine.Compression)
	if err != nil {
		return nil, err
	}

	if a.db == nil {
		db, err := a.service.Connect(ctx, a.config.Store)
		if err != nil {
			return nil, err
		}
		a.db, a.ownsDB = db, true
	}

	if a.storage == nil {
		storage, err := backup.NewStorageProvider(ctx, a.config.Storage)
		if err != nil {
			return nil, appErrors.NewAppError(appErrors.ErrorTypeConfiguration, "failed to initialize artifact storage", err)
		}
		a.storage = storage
	}

	schedules := database.NewScheduleRepository(a.db, a.logger)
	ledger := database.NewLedgerRepository(a.db, a.logger)
	retention := backup.NewRetentionEnforcer(ledger, a.storage, a.config.Engine.RetentionCap, a.logger)

	a.engine = &engine{
		orchestrator: backup.NewOrchestrator(backup.Components{
			Schedules: schedules,
			Catalog:   catalog,
			Extractor: backup.NewExtractor(database.NewTableReader(a.db), a.config.Engine, a.logger),
			Writer:    backup.NewArtifactWriter(a.storage, ledger, compressor, a.logger),
			Advancer:  backup.NewAdvancer(schedules, catalog, a.config.Engine.Location(), a.logger),
			Retention: retention,
			Clock:     a.clock,
			Logger:    a.logger,
		}),
		retention: retention,
	}

	fields := map[string]interface{}{
		"storage":       a.storage.Location(""),
		"tables":        len(catalog.Tables()),
		"compression":   string(compressor.Algorithm()),
		"retention_cap": retention.Cap(),
	}
	if a.logger.IsLevelEnabled(logging.LogLevelVerbose) {
		fields["modules"] = catalog.Modules()
	}
	a.logger.WithFields(fields).Debug("Backup engine ready")

	return a.engine, nil
}

func countFailed(report *backup.RunReport) int {
	failed := 0
	for _, outcome := range report.Results {
		if outcome.Status == backup.StatusFailed {
			failed++
		}
	}
	return failed
}

// Describe returns a one-line summary of where backups go, for start-up logs
func (a *Application) Describe() string {
	return fmt.Sprintf("store=%s storage=%s retention_cap=%d",
		a.config.Store.Host(), a.config.Storage.Provider, a.config.Engine.RetentionCap)
}
