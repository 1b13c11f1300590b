// Package common provides shared utilities for the KI7MT SSI applications.
package common

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/cache"
)

// Config holds common configuration for all applications.
type Config struct {
	LogLevel   slog.Level       `yaml:"log_level"`
	Cache      CacheConfig      `yaml:"cache"`
	Fetch      FetchConfig      `yaml:"fetch"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// CacheConfig locates the raw/formatted store.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// FetchConfig controls downloads.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	FTPUser     string        `yaml:"ftp_user"`
	FTPPassword string        `yaml:"ftp_password"`
}

// ClickHouseConfig holds warehouse connection settings.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// BatchSize is the number of spectrum rows per native insert block.
	BatchSize int `yaml:"batch_size"`
}

// Addr returns host:port.
func (c *ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsConfig names the Prometheus textfile written at exit.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
		Cache: CacheConfig{
			Dir: cache.DefaultRoot(),
		},
		Fetch: FetchConfig{
			Timeout:     60 * time.Second,
			FTPUser:     getEnv("SSI_FTP_USER", ""),
			FTPPassword: getEnv("SSI_FTP_PASSWORD", ""),
		},
		ClickHouse: ClickHouseConfig{
			Host:      getEnv("CLICKHOUSE_HOST", "localhost"),
			Port:      getEnvInt("CLICKHOUSE_PORT", 9000),
			Database:  getEnv("CLICKHOUSE_DATABASE", "solar"),
			User:      getEnv("CLICKHOUSE_USER", "default"),
			Password:  getEnv("CLICKHOUSE_PASSWORD", ""),
			BatchSize: 100000,
		},
		Metrics: MetricsConfig{
			Textfile: getEnv("SSI_METRICS_FILE", ""),
		},
	}
}

// LoadConfig reads a YAML file over the defaults. Environment variables in
// the file are expanded before parsing. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Fetch.Validate(); err != nil {
		return err
	}
	return c.ClickHouse.Validate()
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// Validate validates the fetch configuration.
func (c *FetchConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return err
	}
	if c.FTPPassword != "" && c.FTPUser == "" {
		return errors.New("fetch: ftp_password set without ftp_user")
	}
	return nil
}

// Validate validates the ClickHouse configuration.
func (c *ClickHouseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Database, validation.Required),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
	)
}

// NewLogger returns a text slog logger at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
