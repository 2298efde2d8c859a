// Package config loads campus service configuration from CAMPUS_-prefixed
// environment variables with validated defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      postgres.ConnectionConfig
	Redis         postgres.RedisConfig
	RBAC          RBACConfig
	Approval      ApprovalConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	AllowedOrigins  []string

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// RBACConfig holds role-resolution settings
type RBACConfig struct {
	// SnapshotCacheSize is the LRU capacity for resolved permission
	// snapshots, keyed by user ID.
	SnapshotCacheSize int
	// SnapshotTTL bounds how stale a cached snapshot may get before a
	// re-fetch is forced.
	SnapshotTTL time.Duration
}

// ApprovalConfig holds approval workflow settings
type ApprovalConfig struct {
	// PendingPageSize caps the pending-approval list; there is no paging
	// beyond the first page.
	PendingPageSize int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		RBAC:          loadRBACConfig(),
		Approval:      loadApprovalConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CAMPUS_HOST", "0.0.0.0"),
		Port:            getEnv("CAMPUS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CAMPUS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CAMPUS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CAMPUS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CAMPUS_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("CAMPUS_MAX_BODY_BYTES", 1<<20),
		AllowedOrigins:  strings.Split(getEnv("CAMPUS_ALLOWED_ORIGINS", "*"), ","),
		HealthPort:      getEnv("CAMPUS_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() postgres.ConnectionConfig {
	cfg := postgres.ConnectionConfig{
		PrimaryURL:  getEnv("CAMPUS_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("CAMPUS_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("CAMPUS_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("CAMPUS_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("CAMPUS_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("CAMPUS_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
	if replicas := getEnv("CAMPUS_POSTGRES_REPLICA_URLS", ""); replicas != "" {
		cfg.ReplicaURLs = strings.Split(replicas, ",")
	}
	return cfg
}

func loadRedisConfig() postgres.RedisConfig {
	return postgres.RedisConfig{
		URL:        getEnv("CAMPUS_REDIS_URL", "redis://localhost:6379/0"),
		Password:   getEnv("CAMPUS_REDIS_PASSWORD", ""),
		DB:         getEnvInt("CAMPUS_REDIS_DB", -1),
		MaxRetries: getEnvInt("CAMPUS_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("CAMPUS_REDIS_POOL_SIZE", 10),
	}
}

func loadRBACConfig() RBACConfig {
	return RBACConfig{
		SnapshotCacheSize: getEnvInt("CAMPUS_RBAC_SNAPSHOT_CACHE_SIZE", 1024),
		SnapshotTTL:       getEnvDuration("CAMPUS_RBAC_SNAPSHOT_TTL", 5*time.Minute),
	}
}

func loadApprovalConfig() ApprovalConfig {
	return ApprovalConfig{
		PendingPageSize: getEnvInt("CAMPUS_APPROVAL_PAGE_SIZE", 50),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("CAMPUS_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("CAMPUS_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("CAMPUS_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("CAMPUS_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("CAMPUS_OTEL_SERVICE_NAME", "campus"),
		OTelServiceVersion: getEnv("CAMPUS_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("CAMPUS_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.PrimaryURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.RBAC.SnapshotCacheSize <= 0 {
		return fmt.Errorf("snapshot cache size must be positive")
	}
	if c.Approval.PendingPageSize <= 0 {
		return fmt.Errorf("approval page size must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
