package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for querybench-engine.
// Values come from config.yaml with environment variable overrides; secrets
// (passwords, encryption keys) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database is the engine-owned metadata store holding encrypted
	// connection records. Distinct from the external databases users query.
	Database DatabaseConfig `yaml:"database"`

	// Datasource governs external-database resource pooling.
	Datasource DatasourceConfig `yaml:"datasource"`

	// CredentialsKey encrypts stored connection secrets.
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	// Server will fail to start if this is not set.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"`
}

// DatabaseConfig holds the metadata store (PostgreSQL) configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"querybench"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"querybench_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
}

// DatasourceConfig holds external-database resource management settings.
type DatasourceConfig struct {
	// PoolMinConns/PoolMaxConns bound each per-connection relational pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"5"`
	// CommandTimeoutSeconds bounds every statement issued to an external database.
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds" env:"DATASOURCE_COMMAND_TIMEOUT_SECONDS" env-default:"60"`
	// ConnectTimeoutSeconds bounds connectivity tests.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" env:"DATASOURCE_CONNECT_TIMEOUT_SECONDS" env-default:"10"`
	// MaxBlockingOps caps concurrent operations against blocking drivers.
	MaxBlockingOps int64 `yaml:"max_blocking_ops" env:"DATASOURCE_MAX_BLOCKING_OPS" env-default:"10"`
	// DefaultBatchSize is the page size used when a paginated request omits one.
	DefaultBatchSize int `yaml:"default_batch_size" env:"DATASOURCE_DEFAULT_BATCH_SIZE" env-default:"9000"`
}

// Load reads configuration from config.yaml with environment variable
// overrides and validates it.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.CredentialsKey == "" {
		return fmt.Errorf("CREDENTIALS_KEY is required")
	}
	if c.Datasource.PoolMinConns < 1 {
		return fmt.Errorf("pool_min_conns must be at least 1")
	}
	if c.Datasource.PoolMaxConns < c.Datasource.PoolMinConns {
		return fmt.Errorf("pool_max_conns (%d) must be >= pool_min_conns (%d)",
			c.Datasource.PoolMaxConns, c.Datasource.PoolMinConns)
	}
	if c.Datasource.MaxBlockingOps < 1 {
		return fmt.Errorf("max_blocking_ops must be at least 1")
	}
	if c.Datasource.CommandTimeoutSeconds <= 0 {
		return fmt.Errorf("command_timeout_seconds must be positive")
	}
	if c.Datasource.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("connect_timeout_seconds must be positive")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string for the metadata store.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
