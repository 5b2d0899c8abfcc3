package backup

import (
	"errors"
	"fmt"
	"strings"
)

// BackupErrorType names the part of the backup pipeline that failed
type BackupErrorType string

const (
	BackupErrorTypeStorage       BackupErrorType = "STORAGE_ERROR"
	BackupErrorTypeValidation    BackupErrorType = "VALIDATION_ERROR"
	BackupErrorTypeCompression   BackupErrorType = "COMPRESSION_ERROR"
	BackupErrorTypeDatabase      BackupErrorType = "DATABASE_ERROR"
	BackupErrorTypeConfiguration BackupErrorType = "CONFIGURATION_ERROR"
	BackupErrorTypeExtraction    BackupErrorType = "EXTRACTION_ERROR"
	BackupErrorTypeAssembly      BackupErrorType = "ASSEMBLY_ERROR"
	BackupErrorTypeScheduling    BackupErrorType = "SCHEDULING_ERROR"
	BackupErrorTypeRetention     BackupErrorType = "RETENTION_ERROR"
)

// BackupError is returned by the engine's components. Context carries
// identifiers such as the schedule, table or object path involved.
type BackupError struct {
	Type    BackupErrorType        `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *BackupError) Error() string {
	if e.Cause == nil {
		return string(e.Type) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
}

func (e *BackupError) Unwrap() error {
	return e.Cause
}

// Is matches another BackupError of the same type, so callers can test
// errors.Is(err, &BackupError{Type: BackupErrorTypeStorage}).
func (e *BackupError) Is(target error) bool {
	t, ok := target.(*BackupError)
	return ok && t.Message == "" && t.Type == e.Type
}

func (e *BackupError) WithContext(key string, value interface{}) *BackupError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newBackupError(errorType BackupErrorType, message string, cause error) *BackupError {
	return &BackupError{Type: errorType, Message: message, Cause: cause}
}

func NewStorageError(message string, cause error) *BackupError {
	return newBackupError(BackupErrorTypeStorage, message, cause)
}

func NewValidationError(message string, cause error) *BackupError {
	return newBackupError(BackupErrorTypeValidation, message, cause)
}

func NewCompressionError(message string, cause error) *BackupError {
	return newBackupError(BackupErrorTypeCompression, message, cause)
}

func NewDatabaseError(message string, cause error) *BackupError {
	return newBackupError(BackupErrorTypeDatabase, message, cause)
}

func NewConfigurationError(message string, cause error) *BackupError {
	return newBackupError(BackupErrorTypeConfiguration, message, cause)
}

func NewExtractionError(message string, cause error) *BackupError {
	return newBackupError(BackupErrorTypeExtraction, message, cause)
}

func NewAssemblyError(message string, cause error) *BackupError {
	return newBackupError(BackupErrorTypeAssembly, message, cause)
}

func NewSchedulingError(message string, cause error) *BackupError {
	return newBackupError(BackupErrorTypeScheduling, message, cause)
}

func NewRetentionError(message string, cause error) *BackupError {
	return newBackupError(BackupErrorTypeRetention, message, cause)
}

// ValidationError reports one invalid configuration field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every invalid field of a configuration section
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i := range e {
		msgs[i] = e[i].Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationErrors) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationError{Field: field, Message: message, Value: value})
}

// Merge appends the errors of a nested section with their fields prefixed.
// A plain error is recorded under prefix itself.
func (e *ValidationErrors) Merge(prefix string, other error) {
	if other == nil {
		return
	}
	var nested ValidationErrors
	if !errors.As(other, &nested) {
		e.Add(prefix, other.Error(), nil)
		return
	}
	for _, v := range nested {
		v.Field = prefix + "." + v.Field
		*e = append(*e, v)
	}
}

func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}
