// Package config provides application configuration management from environment variables.
//
// # Configuration Structure
//
// Server settings:
//
//	WORKSPACED_HOST="0.0.0.0"
//	WORKSPACED_PORT="8080"
//	WORKSPACED_HEALTH_PORT="9090"
//	WORKSPACED_READ_TIMEOUT="15s"
//	WORKSPACED_WRITE_TIMEOUT="15s"
//	WORKSPACED_SHUTDOWN_TIMEOUT="30s"
//
// Database settings:
//
//	WORKSPACED_POSTGRES_URL="postgres://localhost/workspaced"
//	WORKSPACED_POSTGRES_MAX_CONNS="25"
//	WORKSPACED_POSTGRES_MIN_CONNS="5"
//
// Cache settings:
//
//	WORKSPACED_CACHE_ENABLED="true"
//	WORKSPACED_REDIS_URL="redis://localhost:6379"
//	WORKSPACED_ROLE_CACHE_TTL="5m"
//
// Job settings:
//
//	WORKSPACED_INVITATION_CLEANUP_SCHEDULE="@hourly"
//
// Observability settings:
//
//	WORKSPACED_LOG_LEVEL="info"  # debug, info, warn, error
//	WORKSPACED_METRICS_ENABLED="true"
//
// All settings have defaults except WORKSPACED_POSTGRES_URL, which is
// required, and WORKSPACED_REDIS_URL, which is required only when the
// role cache is enabled.
package config
