package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scheduled-backup/internal/backup"
	"scheduled-backup/internal/logging"
)

// Initializer checks that a configuration is usable before the engine starts
type Initializer struct {
	config *Config
	logger *logging.Logger
}

// NewInitializer creates a new initializer. A nil logger discards output.
func NewInitializer(config *Config, logger *logging.Logger) *Initializer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Initializer{config: config, logger: logger}
}

// InitializationResult represents the result of a start-up check
type InitializationResult struct {
	Success          bool     `json:"success" yaml:"success"`
	ConfigValid      bool     `json:"config_valid" yaml:"config_valid"`
	StoreConfigured  bool     `json:"store_configured" yaml:"store_configured"`
	StorageReady     bool     `json:"storage_ready" yaml:"storage_ready"`
	Warnings         []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors           []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	RecommendedFixes []string `json:"recommended_fixes,omitempty" yaml:"recommended_fixes,omitempty"`
}

// Initialize validates the configuration and prepares storage.
// For local storage the base directory is created and a marker file written and removed.
func (in *Initializer) Initialize(ctx context.Context) *InitializationResult {
	result := &InitializationResult{
		Success:         true,
		ConfigValid:     true,
		StoreConfigured: true,
		StorageReady:    true,
	}

	in.logger.Debug("Checking configuration")

	if err := in.config.Store.Validate(); err != nil {
		result.Success = false
		result.StoreConfigured = false
		result.Errors = append(result.Errors, err.Error())
		result.RecommendedFixes = append(result.RecommendedFixes,
			"Set the store location: export MY_STORE_URL=mysql://user@host:3306/dbname",
			"Set the store credential: export MY_STORE_SERVICE_KEY=...")
	}

	if err := in.config.Engine.Validate(); err != nil {
		result.Success = false
		result.ConfigValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Engine configuration invalid: %v", err))
	}

	if err := in.config.Storage.Validate(); err != nil {
		result.Success = false
		result.ConfigValid = false
		result.StorageReady = false
		result.Errors = append(result.Errors, fmt.Sprintf("Storage configuration invalid: %v", err))
	} else if err := in.prepareStorage(ctx, result); err != nil {
		result.Success = false
		result.StorageReady = false
		result.Errors = append(result.Errors, fmt.Sprintf("Storage initialization failed: %v", err))
	}

	in.recommend(result)

	in.logger.WithFields(map[string]interface{}{
		"success":  result.Success,
		"errors":   len(result.Errors),
		"warnings": len(result.Warnings),
	}).Debug("Configuration check finished")

	return result
}

func (in *Initializer) prepareStorage(ctx context.Context, result *InitializationResult) error {
	switch in.config.Storage.Provider {
	case backup.StorageProviderLocal:
		return in.prepareLocalStorage()
	case backup.StorageProviderS3:
		s3 := in.config.Storage.S3
		if s3.AccessKey == "" {
			result.Warnings = append(result.Warnings, "S3 access key not configured, relying on the default AWS credential chain")
		}
	case backup.StorageProviderAzure:
		if in.config.Storage.Azure.AccountKey == "" {
			result.Warnings = append(result.Warnings, "Azure account key is not configured")
			result.RecommendedFixes = append(result.RecommendedFixes, "export BACKUP_AZURE_ACCOUNT_KEY=...")
		}
	case backup.StorageProviderGCS:
		if in.config.Storage.GCS.CredentialsPath == "" {
			result.Warnings = append(result.Warnings, "GCS credentials path not set, using application default credentials")
		} else if _, err := os.Stat(in.config.Storage.GCS.CredentialsPath); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("GCS credentials file is not readable: %s", in.config.Storage.GCS.CredentialsPath))
		}
		// the GCS client dials on construction; it is built on first run instead
		return nil
	}

	provider, err := backup.NewStorageProvider(ctx, in.config.Storage)
	if err != nil {
		return err
	}
	in.logger.WithField("location", provider.Location("")).Debug("Storage provider ready")
	return nil
}

func (in *Initializer) prepareLocalStorage() error {
	local := in.config.Storage.Local
	if err := os.MkdirAll(local.BasePath, local.Permissions); err != nil {
		return fmt.Errorf("failed to create backup directory %s: %w", local.BasePath, err)
	}

	marker := filepath.Join(local.BasePath, ".write_check")
	if err := os.WriteFile(marker, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("backup directory %s is not writable: %w", local.BasePath, err)
	}
	return os.Remove(marker)
}

func (in *Initializer) recommend(result *InitializationResult) {
	if in.config.Engine.RetentionCap > 100 {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"A retention cap above 100 keeps many full snapshots, consider enabling compression")
	}
	if in.config.Engine.Compression.Algorithm == backup.CompressionTypeNone && in.config.Engine.PageSize >= 5000 {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"Large page sizes usually mean large artifacts, consider engine.compression.algorithm: zstd")
	}
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Timestamp       time.Time         `json:"timestamp"`
	OverallHealth   string            `json:"overall_health"`   // healthy, degraded, unhealthy
	ComponentStatus map[string]string `json:"component_status"` // component -> status
	Issues          []string          `json:"issues,omitempty"`
}

// HealthCheck reports configuration and storage readiness without touching the store
func (in *Initializer) HealthCheck() *HealthCheckResult {
	result := &HealthCheckResult{
		Timestamp:       time.Now().UTC(),
		OverallHealth:   "healthy",
		ComponentStatus: make(map[string]string),
	}

	if err := in.config.Store.Validate(); err != nil {
		result.ComponentStatus["store"] = "unhealthy"
		result.Issues = append(result.Issues, err.Error())
		result.OverallHealth = "unhealthy"
	} else {
		result.ComponentStatus["store"] = "healthy"
	}

	storage := in.checkStorageHealth()
	result.ComponentStatus["storage"] = storage
	if storage != "healthy" {
		if result.OverallHealth == "healthy" {
			result.OverallHealth = "degraded"
		}
		result.Issues = append(result.Issues, "Storage is not fully operational")
	}

	return result
}

func (in *Initializer) checkStorageHealth() string {
	if err := in.config.Storage.Validate(); err != nil {
		return "unhealthy"
	}
	if in.config.Storage.Provider != backup.StorageProviderLocal {
		return "healthy"
	}

	info, err := os.Stat(in.config.Storage.Local.BasePath)
	if err != nil {
		// created on first upload
		if os.IsNotExist(err) {
			return "degraded"
		}
		return "unhealthy"
	}
	if !info.IsDir() {
		return "unhealthy"
	}
	return "healthy"
}
