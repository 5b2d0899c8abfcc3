package backup

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EngineConfig holds the tunables of the backup engine
type EngineConfig struct {
	PageSize             int                 `mapstructure:"page_size" yaml:"page_size"`
	RetentionCap         int                 `mapstructure:"retention_cap" yaml:"retention_cap"`
	Timezone             string              `mapstructure:"timezone" yaml:"timezone"`
	TableConcurrency     int                 `mapstructure:"table_concurrency" yaml:"table_concurrency"`
	ExtractRetryAttempts int                 `mapstructure:"extract_retry_attempts" yaml:"extract_retry_attempts"`
	ExtractRetryDelay    time.Duration       `mapstructure:"extract_retry_delay" yaml:"extract_retry_delay"`
	Compression          CompressionConfig   `mapstructure:"compression" yaml:"compression"`
	Tables               []string            `mapstructure:"tables" yaml:"tables,omitempty"`
	Modules              map[string][]string `mapstructure:"modules" yaml:"modules,omitempty"`
	Frequencies          map[string]int      `mapstructure:"frequencies" yaml:"frequencies,omitempty"`
}

const (
	DefaultPageSize     = 1000
	DefaultRetentionCap = 30
)

// SetDefaults sets default values for the engine configuration
func (ec *EngineConfig) SetDefaults() {
	if ec.PageSize == 0 {
		ec.PageSize = DefaultPageSize
	}
	if ec.RetentionCap == 0 {
		ec.RetentionCap = DefaultRetentionCap
	}
	if ec.Timezone == "" {
		ec.Timezone = "UTC"
	}
	if ec.TableConcurrency == 0 {
		ec.TableConcurrency = 1
	}
	if ec.ExtractRetryAttempts == 0 {
		ec.ExtractRetryAttempts = 2
	}
	if ec.ExtractRetryDelay == 0 {
		ec.ExtractRetryDelay = 200 * time.Millisecond
	}
	if len(ec.Tables) == 0 {
		ec.Tables = append([]string(nil), DefaultTables...)
	}
	if len(ec.Modules) == 0 {
		ec.Modules = make(map[string][]string, len(DefaultModules))
		for name, list := range DefaultModules {
			ec.Modules[name] = append([]string(nil), list...)
		}
	}
	if len(ec.Frequencies) == 0 {
		ec.Frequencies = make(map[string]int, len(DefaultFrequencies))
		for f, days := range DefaultFrequencies {
			ec.Frequencies[string(f)] = days
		}
	}
	ec.Compression.SetDefaults()
}

// Validate validates the EngineConfig
func (ec *EngineConfig) Validate() error {
	var errs ValidationErrors

	if ec.PageSize < 1 {
		errs.Add("page_size", "page size must be positive", ec.PageSize)
	}
	if ec.RetentionCap < 1 {
		errs.Add("retention_cap", "retention cap must be positive", ec.RetentionCap)
	}
	if _, err := time.LoadLocation(ec.Timezone); err != nil {
		errs.Add("timezone", "unknown time zone", ec.Timezone)
	}
	if ec.TableConcurrency < 1 {
		errs.Add("table_concurrency", "table concurrency must be at least 1", ec.TableConcurrency)
	}
	if ec.ExtractRetryAttempts < 1 {
		errs.Add("extract_retry_attempts", "at least one attempt is required", ec.ExtractRetryAttempts)
	}
	if ec.ExtractRetryDelay < 0 {
		errs.Add("extract_retry_delay", "retry delay cannot be negative", ec.ExtractRetryDelay)
	}
	errs.Merge("compression", ec.Compression.Validate())
	if _, err := ec.Catalog(); err != nil {
		errs.Merge("catalog", err)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Catalog builds the immutable table catalog from the configuration
func (ec *EngineConfig) Catalog() (*Catalog, error) {
	freqs := make(map[Frequency]int, len(ec.Frequencies))
	for f, days := range ec.Frequencies {
		freqs[Frequency(f)] = days
	}
	return NewCatalog(ec.Tables, ec.Modules, freqs)
}

// Location returns the configured time zone, falling back to UTC
func (ec *EngineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(ec.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SetDefaults sets default values for storage configuration
func (sc *StorageConfig) SetDefaults() {
	sc.Provider = StorageProviderType(strings.ToUpper(string(sc.Provider)))
	if sc.Provider == "" {
		sc.Provider = StorageProviderLocal
	}

	switch sc.Provider {
	case StorageProviderLocal:
		if sc.Local == nil {
			sc.Local = &LocalConfig{}
		}
		if sc.Local.BasePath == "" {
			sc.Local.BasePath = "./backups"
		}
		if sc.Local.Permissions == 0 {
			sc.Local.Permissions = 0755
		}
	case StorageProviderS3:
		if sc.S3 == nil {
			sc.S3 = &S3Config{}
		}
		if sc.S3.Region == "" {
			sc.S3.Region = "us-east-1"
		}
	case StorageProviderAzure:
		if sc.Azure == nil {
			sc.Azure = &AzureConfig{}
		}
		if sc.Azure.ContainerName == "" {
			sc.Azure.ContainerName = "backups"
		}
	case StorageProviderGCS:
		if sc.GCS == nil {
			sc.GCS = &GCSConfig{}
		}
		if sc.GCS.CredentialsPath == "" {
			sc.GCS.CredentialsPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		}
	}
}

// LoadFromEnvironment loads storage settings and secrets from BACKUP_* variables
func (sc *StorageConfig) LoadFromEnvironment() {
	if val := os.Getenv("BACKUP_STORAGE_PROVIDER"); val != "" {
		sc.Provider = StorageProviderType(strings.ToUpper(val))
	}

	switch sc.Provider {
	case StorageProviderLocal:
		if sc.Local == nil {
			sc.Local = &LocalConfig{}
		}
		if val := os.Getenv("BACKUP_LOCAL_BASE_PATH"); val != "" {
			sc.Local.BasePath = val
		}
		if val := os.Getenv("BACKUP_LOCAL_PERMISSIONS"); val != "" {
			if parsed, err := strconv.ParseUint(val, 8, 32); err == nil {
				sc.Local.Permissions = os.FileMode(parsed)
			}
		}
	case StorageProviderS3:
		if sc.S3 == nil {
			sc.S3 = &S3Config{}
		}
		setFromEnv(&sc.S3.Bucket, "BACKUP_S3_BUCKET")
		setFromEnv(&sc.S3.Region, "BACKUP_S3_REGION")
		setFromEnv(&sc.S3.AccessKey, "BACKUP_S3_ACCESS_KEY")
		setFromEnv(&sc.S3.SecretKey, "BACKUP_S3_SECRET_KEY")
		setFromEnv(&sc.S3.Endpoint, "BACKUP_S3_ENDPOINT")
	case StorageProviderAzure:
		if sc.Azure == nil {
			sc.Azure = &AzureConfig{}
		}
		setFromEnv(&sc.Azure.AccountName, "BACKUP_AZURE_ACCOUNT_NAME")
		setFromEnv(&sc.Azure.AccountKey, "BACKUP_AZURE_ACCOUNT_KEY")
		setFromEnv(&sc.Azure.ContainerName, "BACKUP_AZURE_CONTAINER_NAME")
	case StorageProviderGCS:
		if sc.GCS == nil {
			sc.GCS = &GCSConfig{}
		}
		setFromEnv(&sc.GCS.Bucket, "BACKUP_GCS_BUCKET")
		setFromEnv(&sc.GCS.CredentialsPath, "BACKUP_GCS_CREDENTIALS_PATH")
		setFromEnv(&sc.GCS.ProjectID, "BACKUP_GCS_PROJECT_ID")
	}
}

func setFromEnv(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

// Validate validates the StorageConfig
func (sc *StorageConfig) Validate() error {
	var errs ValidationErrors

	switch sc.Provider {
	case StorageProviderLocal:
		if sc.Local == nil || sc.Local.BasePath == "" {
			errs.Add("local.base_path", "base path is required for local storage", nil)
		}
	case StorageProviderS3:
		if sc.S3 == nil {
			errs.Add("s3", "S3 storage configuration is required", nil)
			break
		}
		if sc.S3.Bucket == "" {
			errs.Add("s3.bucket", "S3 bucket name is required", sc.S3.Bucket)
		}
		if sc.S3.Region == "" {
			errs.Add("s3.region", "S3 region is required", sc.S3.Region)
		}
		if (sc.S3.AccessKey == "") != (sc.S3.SecretKey == "") {
			errs.Add("s3.access_key", "access key and secret key must be set together", nil)
		}
	case StorageProviderAzure:
		if sc.Azure == nil {
			errs.Add("azure", "Azure storage configuration is required", nil)
			break
		}
		if sc.Azure.AccountName == "" {
			errs.Add("azure.account_name", "Azure account name is required", sc.Azure.AccountName)
		}
		if sc.Azure.AccountKey == "" {
			errs.Add("azure.account_key", "Azure account key is required", nil)
		}
		if sc.Azure.ContainerName == "" {
			errs.Add("azure.container_name", "Azure container name is required", sc.Azure.ContainerName)
		}
	case StorageProviderGCS:
		if sc.GCS == nil {
			errs.Add("gcs", "GCS storage configuration is required", nil)
			break
		}
		if sc.GCS.Bucket == "" {
			errs.Add("gcs.bucket", "GCS bucket name is required", sc.GCS.Bucket)
		}
	default:
		names := make([]string, 0, 4)
		for _, p := range SupportedProviders() {
			names = append(names, strings.ToLower(string(p)))
		}
		errs.Add("provider", "invalid storage provider, must be one of "+strings.Join(names, ", "), sc.Provider)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
