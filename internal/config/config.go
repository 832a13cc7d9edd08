package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"finportal/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig
	Warehouse WarehouseConfig
	Cache     CacheConfig
	Data      DataConfig
	Portal    PortalConfig
	Metrics   MetricsConfig
	LogLevel  string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// WarehouseConfig holds the analytical warehouse connection settings.
// Driver is "databricks" (production), "postgres" (local mirror) or "file".
type WarehouseConfig struct {
	Driver       string
	Host         string
	HTTPPath     string
	Token        string
	Catalog      string
	URL          string // postgres DSN
	QueryTimeout time.Duration
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	Backend   string // "memory" or "redis"
	TTL       time.Duration
	RedisAddr string
	RedisDB   int
	RedisPass string
	KeyPrefix string
}

// DataConfig holds the offline data source settings
type DataConfig struct {
	FactFile string
}

// PortalConfig holds reporting defaults shown in the selectors
type PortalConfig struct {
	Entities      []string
	WeekFrom      string
	WeekTo        string
	DefaultWeek   string // used when the week list is unavailable
	FirstVersion  string
	SecondVersion string
}

// MetricsConfig holds prometheus settings
type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:    *loadServerConfig(),
		Warehouse: *loadWarehouseConfig(),
		Cache:     *loadCacheConfig(),
		Data:      *loadDataConfig(),
		Portal:    *loadPortalConfig(),
		Metrics:   *loadMetricsConfig(),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadWarehouseConfig() *WarehouseConfig {
	return &WarehouseConfig{
		Driver:       strings.ToLower(getEnvOrDefault("WAREHOUSE_DRIVER", "databricks")),
		Host:         getEnvOrDefault("DATABRICKS_HOST", ""),
		HTTPPath:     getEnvOrDefault("DATABRICKS_HTTP_PATH", ""),
		Token:        getEnvOrDefault("DATABRICKS_TOKEN", ""),
		Catalog:      getEnvOrDefault("DATABRICKS_CATALOG", "hive_metastore"),
		URL:          getEnvOrDefault("DATABASE_URL", ""),
		QueryTimeout: getEnvDurationOrDefault("WAREHOUSE_QUERY_TIMEOUT", 2*time.Minute),
	}
}

func loadCacheConfig() *CacheConfig {
	return &CacheConfig{
		Backend:   strings.ToLower(getEnvOrDefault("CACHE_BACKEND", "memory")),
		TTL:       getEnvDurationOrDefault("CACHE_TTL", 30*time.Minute),
		RedisAddr: getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvIntOrDefault("REDIS_DB", 0),
		RedisPass: getEnvOrDefault("REDIS_PASSWORD", ""),
		KeyPrefix: getEnvOrDefault("CACHE_KEY_PREFIX", "finportal:"),
	}
}

func loadDataConfig() *DataConfig {
	return &DataConfig{
		FactFile: getEnvOrDefault("FACT_FILE", ""),
	}
}

func loadPortalConfig() *PortalConfig {
	return &PortalConfig{
		Entities:      getEnvListOrDefault("PORTAL_ENTITIES", []string{"AU", "AO", "NZ"}),
		WeekFrom:      getEnvOrDefault("PORTAL_WEEK_FROM", "2025-W01"),
		WeekTo:        getEnvOrDefault("PORTAL_WEEK_TO", "2026-W52"),
		DefaultWeek:   getEnvOrDefault("PORTAL_DEFAULT_WEEK", ""),
		FirstVersion:  getEnvOrDefault("PORTAL_FIRST_VERSION", "v2"),
		SecondVersion: getEnvOrDefault("PORTAL_SECOND_VERSION", "v3"),
	}
}

func loadMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled: getEnvBoolOrDefault("METRICS_ENABLED", true),
	}
}

func validateConfig(config *Config) error {
	switch config.Warehouse.Driver {
	case "databricks":
		if config.Warehouse.Host == "" || config.Warehouse.HTTPPath == "" || config.Warehouse.Token == "" {
			return errors.ConfigInvalid("DATABRICKS_HOST, DATABRICKS_HTTP_PATH and DATABRICKS_TOKEN are required for the databricks driver")
		}
	case "postgres":
		if config.Warehouse.URL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required for the postgres driver")
		}
	case "file":
		if config.Data.FactFile == "" {
			return errors.ConfigInvalid("FACT_FILE is required for the file driver")
		}
	default:
		return errors.ConfigInvalid("unsupported WAREHOUSE_DRIVER: " + config.Warehouse.Driver)
	}

	switch config.Cache.Backend {
	case "memory", "redis":
	default:
		return errors.ConfigInvalid("unsupported CACHE_BACKEND: " + config.Cache.Backend)
	}

	if len(config.Portal.Entities) == 0 {
		return errors.ConfigInvalid("at least one portal entity is required")
	}
	if config.Portal.FirstVersion == config.Portal.SecondVersion {
		return errors.ConfigInvalid("first and second comparison versions must differ")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma separated variable, dropping blanks
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
