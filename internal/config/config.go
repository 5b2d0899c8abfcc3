package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"scheduled-backup/internal/backup"
	"scheduled-backup/internal/database"
	"scheduled-backup/internal/logging"
)

// EnvPrefix is the prefix of every environment override, e.g. SCHEDULED_BACKUP_ENGINE_PAGE_SIZE
const EnvPrefix = "SCHEDULED_BACKUP"

// Config is the complete configuration of the backup engine
type Config struct {
	Store   database.StoreConfig `mapstructure:"store" yaml:"store"`
	Engine  backup.EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Storage backup.StorageConfig `mapstructure:"storage" yaml:"storage"`
	Log     LogConfig            `mapstructure:"log" yaml:"log"`
	Server  ServerConfig         `mapstructure:"server" yaml:"server"`
}

// LogConfig selects verbosity, format and an optional log file
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// ServerConfig configures the HTTP trigger
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	Cron            string        `mapstructure:"cron" yaml:"cron,omitempty"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// SetupViper points v at the config file (or the default search path) and enables env overrides
func SetupViper(v *viper.Viper, configFile string) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("scheduled-backup")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/scheduled-backup")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerDefaults(v)
}

// registerDefaults makes scalar keys known to viper so AutomaticEnv can override them on Unmarshal
func registerDefaults(v *viper.Viper) {
	v.SetDefault("store.url", "")
	v.SetDefault("store.service_key", "")
	v.SetDefault("store.timeout", "30s")

	v.SetDefault("engine.page_size", backup.DefaultPageSize)
	v.SetDefault("engine.retention_cap", backup.DefaultRetentionCap)
	v.SetDefault("engine.timezone", "UTC")
	v.SetDefault("engine.table_concurrency", 1)
	v.SetDefault("engine.compression.algorithm", "none")
	v.SetDefault("engine.compression.level", 0)

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local.base_path", "./backups")

	v.SetDefault("log.level", string(logging.LogLevelNormal))
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cron", "")
	v.SetDefault("server.shutdown_timeout", "30s")
}

// ReadFile reads the configured file. A missing file in the default search path is not an error.
func ReadFile(v *viper.Viper) (string, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load unmarshals v, applies defaults and environment secrets, and validates the result.
// On a validation failure the finalized config is returned alongside the error.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.Finalize()
	if err := cfg.Validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

// Finalize fills defaults and pulls the store and storage secrets from the environment
func (c *Config) Finalize() {
	c.Store.LoadFromEnvironment()
	c.Store.SetDefaults()
	c.Engine.SetDefaults()
	// provider names are normalized before the env lookup switches on them
	c.Storage.SetDefaults()
	c.Storage.LoadFromEnvironment()
	c.Storage.SetDefaults()
	if c.Log.Level == "" {
		c.Log.Level = string(logging.LogLevelNormal)
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
}

// Validate checks every section and joins the failures
func (c *Config) Validate() error {
	var errs []error

	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log: unsupported format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// LoggerConfig translates the log section for the logging package
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:   logging.ParseLevel(c.Log.Level),
		Format:  c.Log.Format,
		LogFile: c.Log.File,
	}
}

const redacted = "********"

// Redacted returns a copy with secrets masked, for display
func (c *Config) Redacted() Config {
	out := *c
	if out.Store.ServiceKey != "" {
		out.Store.ServiceKey = redacted
	}
	if out.Store.URL != "" {
		out.Store.URL = logging.RedactDSN(out.Store.URL)
	}
	if c.Storage.S3 != nil {
		s3 := *c.Storage.S3
		if s3.SecretKey != "" {
			s3.SecretKey = redacted
		}
		out.Storage.S3 = &s3
	}
	if c.Storage.Azure != nil {
		az := *c.Storage.Azure
		if az.AccountKey != "" {
			az.AccountKey = redacted
		}
		out.Storage.Azure = &az
	}
	return out
}

// EnvironmentVariables lists the variables read outside the SCHEDULED_BACKUP_ prefix
func EnvironmentVariables() []string {
	vars := append([]string{}, database.StoreURLEnv...)
	vars = append(vars, database.StoreServiceKeyEnv...)
	return append(vars,
		"BACKUP_STORAGE_PROVIDER",
		"BACKUP_LOCAL_BASE_PATH",
		"BACKUP_LOCAL_PERMISSIONS",
		"BACKUP_S3_BUCKET",
		"BACKUP_S3_REGION",
		"BACKUP_S3_ACCESS_KEY",
		"BACKUP_S3_SECRET_KEY",
		"BACKUP_S3_ENDPOINT",
		"BACKUP_AZURE_ACCOUNT_NAME",
		"BACKUP_AZURE_ACCOUNT_KEY",
		"BACKUP_AZURE_CONTAINER_NAME",
		"BACKUP_GCS_BUCKET",
		"BACKUP_GCS_CREDENTIALS_PATH",
		"BACKUP_GCS_PROJECT_ID",
	)
}

// Template returns a commented sample configuration file
func Template() string {
	return `# Scheduled Backup Configuration File

# Relational store holding the source tables, backup_schedules and backups.
# Prefer MY_STORE_URL / STORE_URL and MY_STORE_SERVICE_KEY / STORE_SERVICE_KEY.
store:
  url: ""                 # mysql://user@host:3306/dbname?tls=true
  service_key: ""         # Used as the connection password
  timeout: 30s            # Connect and ping timeout
  max_open_conns: 10
  max_idle_conns: 5
  conn_max_lifetime: 5m

# Backup engine
engine:
  page_size: 1000         # Rows per page when reading a table
  retention_cap: 30       # Completed backups kept; older ones are removed
  timezone: UTC           # Zone used to interpret schedule time_of_day
  table_concurrency: 1    # Tables read in parallel per schedule
  extract_retry_attempts: 2
  extract_retry_delay: 200ms

  # Optional artifact compression (none, gzip, zstd, lz4)
  compression:
    algorithm: none
    level: 0              # 0 picks the algorithm default

  # Override the built-in table list, modules or frequencies
  # tables: [contacts, accounts, deals]
  # modules:
  #   contacts: [contacts, contact_action_items]
  # frequencies:
  #   daily: 1
  #   every_2_days: 2
  #   weekly: 7

# Artifact storage
storage:
  provider: local         # local, s3, azure, gcs

  local:
    base_path: ./backups
    permissions: 0755

  # s3:
  #   bucket: backups
  #   region: us-east-1
  #   access_key: ""      # Or BACKUP_S3_ACCESS_KEY
  #   secret_key: ""      # Or BACKUP_S3_SECRET_KEY
  #   endpoint: ""        # S3-compatible endpoint
  #   force_path_style: false

  # azure:
  #   account_name: ""
  #   account_key: ""
  #   container_name: backups

  # gcs:
  #   bucket: backups
  #   credentials_path: ""
  #   project_id: ""

# Logging
log:
  level: normal           # quiet, normal, verbose, debug
  format: text            # text or json
  file: ""

# HTTP trigger (serve command)
server:
  addr: ":8080"
  cron: ""                # e.g. "*/15 * * * *" to also run on a timer
  shutdown_timeout: 30s

# Every key can be overridden with SCHEDULED_BACKUP_<SECTION>_<KEY>,
# e.g. SCHEDULED_BACKUP_ENGINE_RETENTION_CAP=50
`
}
