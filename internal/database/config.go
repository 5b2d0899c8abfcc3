package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Environment variables holding the store location and credential.
// The MY_ prefixed names take precedence.
var (
	StoreURLEnv        = []string{"MY_STORE_URL", "STORE_URL"}
	StoreServiceKeyEnv = []string{"MY_STORE_SERVICE_KEY", "STORE_SERVICE_KEY"}
)

// StoreConfig holds the configuration parameters for the relational store
type StoreConfig struct {
	URL             string        `mapstructure:"url" yaml:"url"`
	ServiceKey      string        `mapstructure:"service_key" yaml:"service_key"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// SetDefaults sets default values for the store configuration
func (sc *StoreConfig) SetDefaults() {
	if sc.Timeout <= 0 {
		sc.Timeout = 30 * time.Second
	}
	if sc.MaxOpenConns == 0 {
		sc.MaxOpenConns = 10
	}
	if sc.MaxIdleConns == 0 {
		sc.MaxIdleConns = 5
	}
	if sc.ConnMaxLifetime == 0 {
		sc.ConnMaxLifetime = 5 * time.Minute
	}
}

// LoadFromEnvironment fills URL and ServiceKey from the environment when set.
// For each setting the first non-empty variable wins.
func (sc *StoreConfig) LoadFromEnvironment() {
	if v := firstEnv(StoreURLEnv...); v != "" {
		sc.URL = v
	}
	if v := firstEnv(StoreServiceKeyEnv...); v != "" {
		sc.ServiceKey = v
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks that the store location and credential are present and parseable
func (sc *StoreConfig) Validate() error {
	var errs []error

	if sc.URL == "" {
		errs = append(errs, errors.New("store URL is required (MY_STORE_URL or STORE_URL)"))
	}
	if sc.ServiceKey == "" {
		errs = append(errs, errors.New("store service key is required (MY_STORE_SERVICE_KEY or STORE_SERVICE_KEY)"))
	}
	if sc.URL != "" {
		if _, err := sc.driverConfig(); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.MaxOpenConns < 0 || sc.MaxIdleConns < 0 {
		errs = append(errs, errors.New("connection pool sizes cannot be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("store configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// DSN returns the Data Source Name for the MySQL driver
func (sc *StoreConfig) DSN() (string, error) {
	cfg, err := sc.driverConfig()
	if err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

// Host returns host:port of the store URL, or "" if it cannot be parsed
func (sc *StoreConfig) Host() string {
	cfg, err := sc.driverConfig()
	if err != nil {
		return ""
	}
	return cfg.Addr
}

// Database returns the schema name of the store URL
func (sc *StoreConfig) Database() string {
	cfg, err := sc.driverConfig()
	if err != nil {
		return ""
	}
	return cfg.DBName
}

// driverConfig parses mysql://user@host:port/dbname?param=value.
// The service key is used as the password; a password inside the URL is ignored.
func (sc *StoreConfig) driverConfig() (*mysql.Config, error) {
	u, err := url.Parse(sc.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid store URL: %w", err)
	}
	if u.Scheme != "mysql" {
		return nil, fmt.Errorf("unsupported store URL scheme %q, expected mysql", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.New("store URL must include a host")
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" || strings.Contains(dbName, "/") {
		return nil, errors.New("store URL must name exactly one database")
	}

	port := u.Port()
	if port == "" {
		port = "3306"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("invalid store port %q", port)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(u.Hostname(), port)
	cfg.DBName = dbName
	cfg.User = u.User.Username()
	cfg.Passwd = sc.ServiceKey
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if sc.Timeout > 0 {
		cfg.Timeout = sc.Timeout
	}

	query := u.Query()
	for key := range query {
		val := query.Get(key)
		switch key {
		case "tls":
			cfg.TLSConfig = val
		case "collation":
			cfg.Collation = val
		default:
			if cfg.Params == nil {
				cfg.Params = map[string]string{}
			}
			cfg.Params[key] = val
		}
	}
	return cfg, nil
}
