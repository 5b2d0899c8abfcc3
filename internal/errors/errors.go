package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ErrorType groups failures by how a caller should react to them
type ErrorType string

const (
	ErrorTypeConnection    ErrorType = "connection"
	ErrorTypeSQL           ErrorType = "sql"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypePermission    ErrorType = "permission"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeInterruption  ErrorType = "interruption"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// AppError is a classified error. Recoverable errors are retried by RetryHandler;
// UserMessage, when set, replaces Message in CLI and HTTP responses.
type AppError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
	UserMessage string
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return string(e.Type) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns UserMessage, falling back to Message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage == "" {
		return e.Message
	}
	return e.UserMessage
}

func (e *AppError) IsRecoverable() bool {
	return e.Recoverable
}

// WithContext attaches a key/value pair, such as the table or offset being read
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// NewAppError creates a non-recoverable error
func NewAppError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewRecoverableError creates an error RetryHandler will retry
func NewRecoverableError(errorType ErrorType, message string, cause error) *AppError {
	e := NewAppError(errorType, message, cause)
	e.Recoverable = true
	return e
}

type mysqlRule struct {
	errorType   ErrorType
	message     string
	recoverable bool
}

// Server error numbers seen while reading source tables and the schedule and backup tables
var mysqlRules = map[uint16]mysqlRule{
	1045: {ErrorTypePermission, "Store access denied, check the service credential", false},
	1049: {ErrorTypeConfiguration, "Database named in the store URL does not exist", false},
	1142: {ErrorTypePermission, "Service credential lacks privileges on table", false},
	1146: {ErrorTypeSQL, "Table does not exist", false},
	1205: {ErrorTypeSQL, "Lock wait timeout", true},
	1213: {ErrorTypeSQL, "Deadlock while reading", true},
	2003: {ErrorTypeConnection, "Cannot connect to the store", true},
	2006: {ErrorTypeConnection, "Store connection lost", true},
	2013: {ErrorTypeConnection, "Store connection lost during query", true},
}

// ErrorClassifier maps driver, network, context and file system errors onto AppErrors
type ErrorClassifier struct{}

func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError returns err as an AppError. Errors that already are AppErrors pass through.
func (ec *ErrorClassifier) ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	for _, classify := range []func(error) *AppError{
		classifyStoreError,
		classifyContextError,
		classifyNetworkError,
		classifyFileSystemError,
	} {
		if classified := classify(err); classified != nil {
			return classified
		}
	}
	return NewAppError(ErrorTypeUnknown, "An unexpected error occurred", err)
}

func classifyStoreError(err error) *AppError {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		rule, ok := mysqlRules[mysqlErr.Number]
		if !ok {
			rule = mysqlRule{ErrorTypeSQL, "MySQL error: " + mysqlErr.Message, false}
		}
		classified := NewAppError(rule.errorType, rule.message, err)
		classified.Recoverable = rule.recoverable
		return classified.WithContext("mysql_error_code", mysqlErr.Number)
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return NewAppError(ErrorTypeValidation, "No rows found", err)
	case errors.Is(err, sql.ErrTxDone):
		return NewAppError(ErrorTypeSQL, "Transaction already finished", err)
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, mysql.ErrInvalidConn):
		return NewRecoverableError(ErrorTypeConnection, "Store connection is closed", err)
	}
	return nil
}

func classifyContextError(err error) *AppError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewRecoverableError(ErrorTypeTimeout, "Operation timed out", err)
	case errors.Is(err, context.Canceled):
		return NewAppError(ErrorTypeInterruption, "Operation was canceled", err)
	}
	return nil
}

func classifyNetworkError(err error) *AppError {
	var opErr *net.OpError
	if errors.As(err, &opErr) && (opErr.Op == "dial" || opErr.Op == "read" || opErr.Op == "write") {
		return NewRecoverableError(ErrorTypeConnection, "Network "+opErr.Op+" failed", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewRecoverableError(ErrorTypeTimeout, "Network operation timed out", err)
	}
	return nil
}

func classifyFileSystemError(err error) *AppError {
	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		return nil
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NewAppError(ErrorTypeValidation, "File or directory not found: "+pathErr.Path, err)
	case errors.Is(err, fs.ErrPermission):
		return NewAppError(ErrorTypePermission, "Permission denied: "+pathErr.Path, err)
	case errors.Is(err, syscall.ENOSPC):
		return NewAppError(ErrorTypeValidation, "No space left on device", err)
	}
	return nil
}

// RetryConfig controls exponential backoff. OnRetry, if set, is called before each wait.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	OnRetry     func(attempt int, delay time.Duration, err *AppError)
}

// DefaultRetryConfig is used for store connections
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryHandler retries operations whose classified error is recoverable
type RetryHandler struct {
	config     RetryConfig
	classifier *ErrorClassifier
}

// NewRetryHandler clamps MaxAttempts and Multiplier to at least 1
func NewRetryHandler(config RetryConfig) *RetryHandler {
	config.MaxAttempts = max(config.MaxAttempts, 1)
	config.Multiplier = max(config.Multiplier, 1)
	return &RetryHandler{config: config, classifier: NewErrorClassifier()}
}

// Retry runs operation until it succeeds, fails with a non-recoverable error,
// runs out of attempts or ctx is done.
func (rh *RetryHandler) Retry(ctx context.Context, operation func() error) error {
	if err := ctx.Err(); err != nil {
		return NewAppError(ErrorTypeInterruption, "Operation canceled", err)
	}

	for attempt := 1; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		classified := rh.classifier.ClassifyError(err)
		if !IsRecoverableError(classified) {
			return classified
		}
		if attempt >= rh.config.MaxAttempts {
			return classified.WithContext("attempts", attempt)
		}

		delay := rh.calculateDelay(attempt)
		if rh.config.OnRetry != nil {
			rh.config.OnRetry(attempt, delay, classified)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return NewAppError(ErrorTypeInterruption, "Operation canceled during retry", ctx.Err())
		case <-timer.C:
		}
	}
}

// calculateDelay returns BaseDelay * Multiplier^(attempt-1), capped at MaxDelay
func (rh *RetryHandler) calculateDelay(attempt int) time.Duration {
	delay := float64(rh.config.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= rh.config.Multiplier
	}
	if rh.config.MaxDelay > 0 && delay > float64(rh.config.MaxDelay) {
		return rh.config.MaxDelay
	}
	return time.Duration(delay)
}

func IsRecoverableError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.IsRecoverable()
}

// GetErrorType returns ErrorTypeUnknown for errors that are not AppErrors
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// FormatUserError renders err for the HTTP response body or CLI output
func FormatUserError(err error) string {
	var appErr *AppError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &appErr):
		return appErr.GetUserMessage()
	default:
		return err.Error()
	}
}

// WrapError classifies err and replaces its message. The classification and
// recoverability of an existing AppError are kept.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		wrapped := NewAppError(appErr.Type, message, err)
		wrapped.Recoverable = appErr.Recoverable
		return wrapped
	}

	classified := NewErrorClassifier().ClassifyError(err)
	classified.Message = message
	return classified
}
