// Package config provides configuration management for the copy-trade ledger.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/copytrade-ledger/internal/types"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultSeenUpdateLimit is how many feed update ids a session remembers
// when LEDGER_SEEN_UPDATE_LIMIT is unset
const DefaultSeenUpdateLimit = 1024

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Ledger    LedgerConfig
	Directory DirectoryConfig
	Notify    NotifyConfig
	Feed      FeedConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	SQLite     SQLiteConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// SQLiteConfig holds the local database file location
type SQLiteConfig struct {
	Path string
}

// StorageConfig selects where ledger snapshots are persisted
type StorageConfig struct {
	Backend       types.StorageBackend
	QueueSize     int
	RetryAttempts int
}

// LedgerConfig holds ledger policy and session settings
type LedgerConfig struct {
	MinimumWithdrawal decimal.Decimal
	MinimumInvestment decimal.Decimal
	InitialBalance    decimal.Decimal
	PolicyFile        string
	ClearOnDisconnect bool
	SeenUpdateLimit   int // remembered feed update ids per account
}

// DirectoryConfig holds trader directory configuration
type DirectoryConfig struct {
	Source   string // "static" or "postgres"
	SeedFile string
}

// NotifyConfig holds notification dispatch configuration
type NotifyConfig struct {
	Channel   string
	QueueSize int
	Redis     bool
	Journal   bool
}

// FeedConfig holds P&L feed configuration
type FeedConfig struct {
	Enabled   bool
	Channel   string
	DedupeTTL time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig holds per-account rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// PolicyFile is the YAML document referenced by LEDGER_POLICY_FILE.
// Fields left out keep their environment or default values.
type PolicyFile struct {
	MinimumWithdrawal *decimal.Decimal `yaml:"minimumWithdrawal"`
	MinimumInvestment *decimal.Decimal `yaml:"minimumInvestment"`
	InitialBalance    *decimal.Decimal `yaml:"initialBalance"`
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "copytrade"),
				User:           getEnv("POSTGRES_USER", "copytrade"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "copytrade"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "copytrade.db"),
			},
		},
		Storage: StorageConfig{
			Backend:       types.StorageBackend(strings.ToLower(getEnv("STORAGE_BACKEND", string(types.BackendSQLite)))),
			QueueSize:     getEnvAsInt("STORAGE_QUEUE_SIZE", 1024),
			RetryAttempts: getEnvAsInt("STORAGE_RETRY_ATTEMPTS", 5),
		},
		Ledger: LedgerConfig{
			MinimumWithdrawal: getEnvAsDecimal("LEDGER_MIN_WITHDRAWAL", decimal.NewFromInt(5)),
			MinimumInvestment: getEnvAsDecimal("LEDGER_MIN_INVESTMENT", decimal.NewFromInt(1000)),
			InitialBalance:    getEnvAsDecimal("LEDGER_INITIAL_BALANCE", decimal.NewFromInt(10000)),
			PolicyFile:        getEnv("LEDGER_POLICY_FILE", ""),
			ClearOnDisconnect: getEnvAsBool("LEDGER_CLEAR_ON_DISCONNECT", false),
			SeenUpdateLimit:   getEnvAsInt("LEDGER_SEEN_UPDATE_LIMIT", DefaultSeenUpdateLimit),
		},
		Directory: DirectoryConfig{
			Source:   strings.ToLower(getEnv("TRADER_SOURCE", "static")),
			SeedFile: getEnv("TRADER_SEED_FILE", ""),
		},
		Notify: NotifyConfig{
			Channel:   getEnv("NOTIFY_CHANNEL", "copytrade:events"),
			QueueSize: getEnvAsInt("NOTIFY_QUEUE_SIZE", 1024),
			Redis:     getEnvAsBool("NOTIFY_REDIS", true),
			Journal:   getEnvAsBool("NOTIFY_JOURNAL", false),
		},
		Feed: FeedConfig{
			Enabled:   getEnvAsBool("FEED_ENABLED", false),
			Channel:   getEnv("FEED_CHANNEL", "copytrade:pnl"),
			DedupeTTL: getEnvAsDuration("FEED_DEDUPE_TTL", 24*time.Hour),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 600),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 60),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if config.Ledger.PolicyFile != "" {
		if err := config.applyPolicyFile(config.Ledger.PolicyFile); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyPolicyFile overrides ledger policy values from a YAML file
func (c *Config) applyPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading policy file: %w", err)
	}

	var policy PolicyFile
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return fmt.Errorf("error parsing policy file %s: %w", path, err)
	}

	if policy.MinimumWithdrawal != nil {
		c.Ledger.MinimumWithdrawal = *policy.MinimumWithdrawal
	}
	if policy.MinimumInvestment != nil {
		c.Ledger.MinimumInvestment = *policy.MinimumInvestment
	}
	if policy.InitialBalance != nil {
		c.Ledger.InitialBalance = *policy.InitialBalance
	}
	return nil
}

// Validate checks values that would make the service misbehave
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case types.BackendMemory, types.BackendSQLite, types.BackendPostgres, types.BackendRedis:
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	switch c.Directory.Source {
	case "static", "postgres":
	default:
		return fmt.Errorf("unsupported trader source %q", c.Directory.Source)
	}
	if c.Ledger.MinimumWithdrawal.IsNegative() || c.Ledger.MinimumInvestment.IsNegative() {
		return fmt.Errorf("ledger minimums must not be negative")
	}
	if c.Ledger.InitialBalance.IsNegative() {
		return fmt.Errorf("initial balance must not be negative")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDecimal gets an environment variable as a decimal with a default value
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
