package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vKaizen/graduation-backend/pkg/observability"
	"github.com/vKaizen/graduation-backend/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      postgres.ConnectionConfig
	Cache         CacheConfig
	Jobs          JobsConfig
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

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// CacheConfig holds the optional redis role cache settings
type CacheConfig struct {
	Enabled  bool
	RedisURL string
	RoleTTL  time.Duration
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	// Cron expression for purging expired invitations.
	InvitationCleanupSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Jobs:          loadJobsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("WORKSPACED_HOST", "0.0.0.0"),
		Port:            getEnv("WORKSPACED_PORT", "8080"),
		ReadTimeout:     getEnvDuration("WORKSPACED_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WORKSPACED_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("WORKSPACED_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("WORKSPACED_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("WORKSPACED_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() postgres.ConnectionConfig {
	cfg := postgres.DefaultConnectionConfig(getEnv("WORKSPACED_POSTGRES_URL", ""))

	if maxConns := getEnvInt("WORKSPACED_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("WORKSPACED_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("WORKSPACED_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	if lifetime := getEnvDuration("WORKSPACED_POSTGRES_CONN_LIFETIME", 0); lifetime > 0 {
		cfg.MaxLifetime = lifetime
	}

	return cfg
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  getEnvBool("WORKSPACED_CACHE_ENABLED", true),
		RedisURL: getEnv("WORKSPACED_REDIS_URL", ""),
		RoleTTL:  getEnvDuration("WORKSPACED_ROLE_CACHE_TTL", 5*time.Minute),
	}
}

func loadJobsConfig() JobsConfig {
	return JobsConfig{
		InvitationCleanupSchedule: getEnv("WORKSPACED_INVITATION_CLEANUP_SCHEDULE", "@hourly"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("WORKSPACED_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("WORKSPACED_METRICS_ENABLED", true),
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

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Cache.Enabled && c.Cache.RedisURL == "" {
		return fmt.Errorf("redis URL is required when the role cache is enabled")
	}
	if c.Cache.RoleTTL <= 0 {
		return fmt.Errorf("role cache TTL must be positive")
	}

	if c.Jobs.InvitationCleanupSchedule == "" {
		return fmt.Errorf("invitation cleanup schedule is required")
	}

	return nil
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
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
