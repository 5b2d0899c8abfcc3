package backup

import (
	"os"
	"strings"
	"time"
)

// Scope selects which tables a schedule backs up
type Scope string

const (
	ScopeFull   Scope = "full"
	ScopeModule Scope = "module"
)

// ParseScope normalizes a stored scope value. Missing or unknown values mean full.
func ParseScope(s string) Scope {
	if Scope(strings.ToLower(strings.TrimSpace(s))) == ScopeModule {
		return ScopeModule
	}
	return ScopeFull
}

// Frequency is the cadence label stored on a schedule
type Frequency string

const (
	FrequencyDaily      Frequency = "daily"
	FrequencyEvery2Days Frequency = "every_2_days"
	FrequencyWeekly     Frequency = "weekly"
)

// Status is the outcome of one backup attempt, as recorded in the ledger
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage names a step of the per-schedule pipeline
type Stage string

const (
	StagePending      Stage = "pending"
	StageExtracting   Stage = "extracting"
	StageAssembling   Stage = "assembling"
	StageStoring      Stage = "storing"
	StageRescheduling Stage = "rescheduling"
	StageTrimming     Stage = "trimming"
	StageDone         Stage = "done"
)

const (
	// ArtifactVersion is written into every artifact
	ArtifactVersion = "1.0"
	// BackupTypeScheduled marks artifacts and ledger rows created by this engine
	BackupTypeScheduled = "scheduled"
	// ContentTypeJSON is the content type of uncompressed artifacts
	ContentTypeJSON = "application/json"
)

// Schedule is a persisted backup schedule row
type Schedule struct {
	ID        string
	Enabled   bool
	Scope     Scope
	Module    string
	Frequency Frequency
	TimeOfDay string
	Owner     string
	LastRunAt *time.Time
	NextRunAt *time.Time
}

// Record is a ledger row describing one produced artifact
type Record struct {
	ID           string         `json:"id"`
	FileName     string         `json:"file_name"`
	FilePath     string         `json:"file_path"`
	BackupType   string         `json:"backup_type"`
	Module       *string        `json:"module_name"`
	Status       Status         `json:"status"`
	Owner        string         `json:"created_by"`
	SizeBytes    int64          `json:"size_bytes"`
	TablesCount  int            `json:"tables_count"`
	RecordsCount int            `json:"records_count"`
	Manifest     map[string]int `json:"manifest"`
	CreatedAt    time.Time      `json:"created_at"`
	// Checksum of the uploaded object; reported, not stored in the ledger
	Checksum string `json:"checksum,omitempty"`
	// UploadErr is set when Status is failed because the upload did not succeed
	UploadErr error `json:"-" yaml:"-"`
}

// Outcome is the per-schedule entry in a run report
type Outcome struct {
	ScheduleID string `json:"scheduleId" yaml:"scheduleId"`
	Status     Status `json:"status" yaml:"status"`
	Records    *int   `json:"records,omitempty" yaml:"records,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	Stage      Stage  `json:"stage,omitempty" yaml:"stage,omitempty"`
}

// RunReport is the aggregate result of one invocation
type RunReport struct {
	Message   string    `json:"message,omitempty" yaml:"message,omitempty"`
	Processed int       `json:"processed" yaml:"processed"`
	Results   []Outcome `json:"results,omitempty" yaml:"results,omitempty"`
}

// NoSchedulesDueMessage is reported when a run finds nothing to do
const NoSchedulesDueMessage = "No scheduled backups due"

// StorageConfig defines storage provider configuration
type StorageConfig struct {
	Provider StorageProviderType `mapstructure:"provider" yaml:"provider"`
	Local    *LocalConfig        `mapstructure:"local" yaml:"local,omitempty"`
	S3       *S3Config           `mapstructure:"s3" yaml:"s3,omitempty"`
	Azure    *AzureConfig        `mapstructure:"azure" yaml:"azure,omitempty"`
	GCS      *GCSConfig          `mapstructure:"gcs" yaml:"gcs,omitempty"`
}

// LocalConfig for local file system storage
type LocalConfig struct {
	BasePath    string      `mapstructure:"base_path" yaml:"base_path"`
	Permissions os.FileMode `mapstructure:"permissions" yaml:"permissions"`
}

// S3Config for Amazon S3 and S3-compatible storage
type S3Config struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region"`
	AccessKey      string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey      string `mapstructure:"secret_key" yaml:"secret_key"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
	Prefix         string `mapstructure:"prefix" yaml:"prefix,omitempty"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
}

type CompressionType string

const (
	CompressionTypeNone CompressionType = "NONE"
	CompressionTypeGzip CompressionType = "GZIP"
	CompressionTypeLZ4  CompressionType = "LZ4"
	CompressionTypeZstd CompressionType = "ZSTD"
)

type StorageProviderType string

const (
	StorageProviderLocal StorageProviderType = "LOCAL"
	StorageProviderS3    StorageProviderType = "S3"
	StorageProviderAzure StorageProviderType = "AZURE"
	StorageProviderGCS   StorageProviderType = "GCS"
)
