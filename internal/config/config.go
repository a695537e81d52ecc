// Package config loads service settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the ledger service.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	// TimeZone names the calendar that decides the current date for
	// transaction and foundation dates.
	TimeZone string         `mapstructure:"LEDGER_TIMEZONE"`
	Location *time.Location `mapstructure:"-"`

	MaxTransferAmount  decimal.Decimal `mapstructure:"-"`
	MaxAccountBalance  decimal.Decimal `mapstructure:"-"`
	TransferMaxRetries int             `mapstructure:"TRANSFER_MAX_RETRIES"`

	RelationshipSweepSchedule string `mapstructure:"RELATIONSHIP_SWEEP_SCHEDULE"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	RedisURL                   string `mapstructure:"REDIS_URL"`
	TransferRateLimitPerMinute int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
}

var keys = []string{
	"SERVER_PORT",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"STORAGE_DRIVER", "LOG_LEVEL", "LEDGER_TIMEZONE",
	"MAX_TRANSFER_AMOUNT", "MAX_ACCOUNT_BALANCE", "TRANSFER_MAX_RETRIES",
	"RELATIONSHIP_SWEEP_SCHEDULE",
	"RABBITMQ_URL", "EVENTS_EXCHANGE",
	"REDIS_URL", "TRANSFER_RATE_LIMIT_PER_MINUTE",
}

// LoadConfig reads configuration from environment variables. A .env file in
// the working directory is loaded first when present; real environment
// variables take precedence over it.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "bank_ledger")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("STORAGE_DRIVER", DriverPostgres)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LEDGER_TIMEZONE", "UTC")
	viper.SetDefault("MAX_TRANSFER_AMOUNT", "1000000000")
	viper.SetDefault("MAX_ACCOUNT_BALANCE", "1000000000")
	viper.SetDefault("TRANSFER_MAX_RETRIES", 3)
	viper.SetDefault("RELATIONSHIP_SWEEP_SCHEDULE", "@every 5m")
	viper.SetDefault("EVENTS_EXCHANGE", "ledger.events")
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 60)
	viper.AutomaticEnv()

	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	var err error
	if cfg.MaxTransferAmount, err = positiveDecimal("MAX_TRANSFER_AMOUNT"); err != nil {
		return nil, err
	}
	if cfg.MaxAccountBalance, err = positiveDecimal("MAX_ACCOUNT_BALANCE"); err != nil {
		return nil, err
	}

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if cfg.StorageDriver != DriverPostgres && cfg.StorageDriver != DriverMemory {
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.StorageDriver)
	}
	if cfg.Location, err = time.LoadLocation(strings.TrimSpace(cfg.TimeZone)); err != nil {
		return nil, fmt.Errorf("LEDGER_TIMEZONE %q is not a known time zone: %w", cfg.TimeZone, err)
	}
	if cfg.TransferMaxRetries < 0 {
		return nil, fmt.Errorf("TRANSFER_MAX_RETRIES must not be negative, got %d", cfg.TransferMaxRetries)
	}
	if cfg.TransferRateLimitPerMinute < 0 {
		return nil, fmt.Errorf("TRANSFER_RATE_LIMIT_PER_MINUTE must not be negative, got %d", cfg.TransferRateLimitPerMinute)
	}

	return &cfg, nil
}

func positiveDecimal(key string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(viper.GetString(key)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal number: %w", key, err)
	}
	if !value.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return value, nil
}

// DSN builds the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// SlogLevel maps LOG_LEVEL onto a slog level, falling back to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
