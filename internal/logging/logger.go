package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses everything except errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows run summaries and per-schedule outcomes
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose adds per-table and per-page detail
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows everything
	LogLevelDebug LogLevel = "debug"
)

// ParseLevel maps a configuration string to a LogLevel, defaulting to normal.
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LogLevelQuiet:
		return LogLevelQuiet
	case LogLevelVerbose:
		return LogLevelVerbose
	case LogLevelDebug:
		return LogLevelDebug
	default:
		return LogLevelNormal
	}
}

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
	file   *os.File
}

// Config holds logger configuration
type Config struct {
	Level   LogLevel
	Output  io.Writer
	Format  string // "text" or "json"
	LogFile string
}

type contextKey string

const runIDKey contextKey = "run_id"

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	logger.SetFormatter(newFormatter(config.Format))
	logger.SetLevel(toLogrusLevel(config.Level))

	l := &Logger{logger: logger, level: config.Level}
	if l.level == "" {
		l.level = LogLevelNormal
	}

	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}
		logger.SetOutput(io.MultiWriter(out, file))
		l.file = file
	}

	return l, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: os.Stderr,
		Format: "text",
	})
	return logger
}

// NewNopLogger returns a logger that discards everything. Used by tests and library callers.
func NewNopLogger() *Logger {
	logger, _ := NewLogger(Config{Level: LogLevelQuiet, Output: io.Discard})
	return logger
}

// Close releases the log file, if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func newFormatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
	}
	return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelQuiet:
		return logrus.ErrorLevel
	case LogLevelVerbose:
		return logrus.DebugLevel
	case LogLevelDebug:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// WithContext returns an entry carrying the run ID stored in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.logger.WithContext(ctx)
	if runID := RunIDFromContext(ctx); runID != "" {
		entry = entry.WithField(string(runIDKey), runID)
	}
	return entry
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// LogStoreConnection logs relational store connection attempts
func (l *Logger) LogStoreConnection(host string, database string, success bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "store_connection",
		"host":      host,
		"database":  database,
		"duration":  duration.String(),
		"success":   success,
	}

	if success {
		l.logger.WithFields(fields).Info("Store connection established")
		return
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.logger.WithFields(fields).Error("Store connection failed")
}

// LogTableExtraction logs the result of paging through one table.
func (l *Logger) LogTableExtraction(ctx context.Context, table string, rows, pages int, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"operation": "table_extraction",
		"table":     table,
		"rows":      rows,
		"pages":     pages,
		"duration":  duration.String(),
	})

	if err != nil {
		entry.WithField("error", err.Error()).Warn("Table extraction truncated")
		return
	}
	entry.Debug("Table extracted")
}

// LogArtifactUpload logs an upload of a backup artifact to the blob store.
func (l *Logger) LogArtifactUpload(ctx context.Context, path string, size int64, checksum string, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"operation":  "artifact_upload",
		"path":       path,
		"size_bytes": size,
		"duration":   duration.String(),
	})
	if checksum != "" {
		entry = entry.WithField("checksum", checksum)
	}

	if err != nil {
		entry.WithField("error", err.Error()).Error("Artifact upload failed")
		return
	}
	entry.Info("Artifact uploaded")
}

// Info logs msg at info level
func (l *Logger) Info(msg string) {
	l.logger.Info(msg)
}

// Debug logs msg at debug level; shown from the verbose level up
func (l *Logger) Debug(msg string) {
	l.logger.Debug(msg)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	l.logger.SetLevel(toLogrusLevel(level))
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	switch level {
	case LogLevelQuiet, LogLevelNormal, LogLevelVerbose, LogLevelDebug:
		return l.logger.IsLevelEnabled(toLogrusLevel(level))
	default:
		return false
	}
}

// LogOperationStart logs the start of an operation and returns a function to log completion
func (l *Logger) LogOperationStart(ctx context.Context, operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{
		"operation": operation,
		"status":    "started",
	}
	for k, v := range fields {
		logFields[k] = v
	}

	l.WithContext(ctx).WithFields(logFields).Debug("Operation started")

	return func(err error) {
		logFields["status"] = "completed"
		logFields["duration"] = time.Since(startTime).String()

		entry := l.WithContext(ctx)
		if err != nil {
			logFields["error"] = err.Error()
			logFields["success"] = false
			entry.WithFields(logFields).Error("Operation failed")
			return
		}
		logFields["success"] = true
		entry.WithFields(logFields).Info("Operation completed")
	}
}

// ContextWithRunID returns a context carrying a run correlation ID
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run correlation ID from ctx
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// RedactDSN masks the password portion of a MySQL DSN or store URL for logging.
func RedactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	prefix := dsn[:at]
	start := strings.Index(prefix, "://")
	if start >= 0 {
		start += 3
	} else {
		start = 0
	}
	colon := strings.Index(prefix[start:], ":")
	if colon < 0 {
		return dsn
	}
	return prefix[:start+colon+1] + "***" + dsn[at:]
}
