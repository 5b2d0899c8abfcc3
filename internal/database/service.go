package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"

	"scheduled-backup/internal/errors"
	"scheduled-backup/internal/logging"
)

// Service opens and verifies connections to the relational store
type Service struct {
	connectionTimeout time.Duration
	logger            *logging.Logger
	retryHandler      *errors.RetryHandler
	open              func(dsn string) (*sql.DB, error)
}

// NewService creates a new database service with default settings
func NewService(logger *logging.Logger) *Service {
	retry := errors.DefaultRetryConfig()
	return NewServiceWithOptions(30*time.Second, retry.MaxAttempts, retry.BaseDelay, logger)
}

// NewServiceWithOptions creates a new database service with custom retry settings
func NewServiceWithOptions(timeout time.Duration, maxRetries int, retryDelay time.Duration, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	retry := errors.DefaultRetryConfig()
	retry.MaxAttempts = maxRetries
	retry.BaseDelay = retryDelay
	retry.OnRetry = func(attempt int, delay time.Duration, err *errors.AppError) {
		logger.WithFields(map[string]interface{}{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		}).Warn("Store connection failed, retrying")
	}
	return &Service{
		connectionTimeout: timeout,
		logger:            logger,
		retryHandler:      errors.NewRetryHandler(retry),
		open:              openMySQL,
	}
}

func openMySQL(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// Connect opens a pooled connection to the store and pings it, retrying recoverable failures
func (s *Service) Connect(ctx context.Context, config StoreConfig) (*sql.DB, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeConfiguration, "invalid store configuration", err).
			WithUserMessage(err.Error())
	}
	dsn, err := config.DSN()
	if err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeConfiguration, "invalid store URL", err)
	}

	startTime := time.Now()
	s.logger.WithFields(map[string]interface{}{
		"host":     config.Host(),
		"database": config.Database(),
	}).Info("Connecting to store")

	ctx, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	var db *sql.DB
	err = s.retryHandler.Retry(ctx, func() error {
		var openErr error
		db, openErr = s.open(dsn)
		if openErr != nil {
			return errors.WrapError(openErr, "failed to open store connection")
		}

		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)

		if pingErr := s.TestConnection(ctx, db); pingErr != nil {
			db.Close()
			return pingErr
		}
		return nil
	})

	s.logger.LogStoreConnection(config.Host(), config.Database(), err == nil, time.Since(startTime), err)
	if err != nil {
		return nil, err
	}
	if version, verr := s.GetVersion(ctx, db); verr == nil {
		s.logger.WithField("server_version", version).Info("Store ready")
	}
	return db, nil
}

// TestConnection verifies that the connection is working
func (s *Service) TestConnection(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return errors.WrapError(err, "failed to ping store")
	}
	s.logger.Debug("Store connection test successful")
	return nil
}

// Close gracefully closes the connection pool
func (s *Service) Close(db *sql.DB) error {
	if db == nil {
		s.logger.Debug("Database connection is nil, nothing to close")
		return nil
	}

	s.logger.Debug("Closing store connection")
	if err := db.Close(); err != nil {
		s.logger.WithField("error", err.Error()).Error("Failed to close store connection")
		return errors.WrapError(err, "failed to close store connection")
	}
	return nil
}

// GetVersion retrieves the server version
func (s *Service) GetVersion(ctx context.Context, db *sql.DB) (string, error) {
	if db == nil {
		return "", errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", errors.WrapError(err, "failed to get store version")
	}
	s.logger.WithField("version", version).Debug("Retrieved store version")
	return version, nil
}
