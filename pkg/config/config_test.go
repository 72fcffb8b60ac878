package config

import (
	"os"
	"testing"
	"time"

	"github.com/vKaizen/graduation-backend/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{
			name:         "true string",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "true",
			want:         true,
		},
		{
			name:         "numeric one",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "1",
			want:         true,
		},
		{
			name:         "false string",
			key:          "TEST_BOOL",
			defaultValue: true,
			envValue:     "false",
			want:         false,
		},
		{
			name:         "default when unset",
			key:          "TEST_BOOL_NOT_SET",
			defaultValue: true,
			envValue:     "",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "parses duration",
			key:          "TEST_DURATION",
			defaultValue: time.Second,
			envValue:     "45s",
			want:         45 * time.Second,
		},
		{
			name:         "default on invalid value",
			key:          "TEST_DURATION",
			defaultValue: time.Second,
			envValue:     "not-a-duration",
			want:         time.Second,
		},
		{
			name:         "default when unset",
			key:          "TEST_DURATION_NOT_SET",
			defaultValue: 2 * time.Minute,
			envValue:     "",
			want:         2 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("fails without postgres URL", func(t *testing.T) {
		os.Unsetenv("WORKSPACED_POSTGRES_URL")
		os.Setenv("WORKSPACED_CACHE_ENABLED", "false")
		defer os.Unsetenv("WORKSPACED_CACHE_ENABLED")

		if _, err := LoadConfig(); err == nil {
			t.Error("Expected error when postgres URL is missing")
		}
	})

	t.Run("loads with defaults", func(t *testing.T) {
		os.Setenv("WORKSPACED_POSTGRES_URL", "postgres://localhost/workspaced")
		os.Setenv("WORKSPACED_CACHE_ENABLED", "false")
		defer os.Unsetenv("WORKSPACED_POSTGRES_URL")
		defer os.Unsetenv("WORKSPACED_CACHE_ENABLED")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
		}
		if cfg.Server.HealthPort != "9090" {
			t.Errorf("Expected default health port 9090, got %s", cfg.Server.HealthPort)
		}
		if cfg.Observability.LogLevel != observability.InfoLevel {
			t.Errorf("Expected info log level, got %v", cfg.Observability.LogLevel)
		}
		if cfg.Cache.RoleTTL != 5*time.Minute {
			t.Errorf("Expected 5m role TTL, got %v", cfg.Cache.RoleTTL)
		}
		if cfg.Jobs.InvitationCleanupSchedule != "@hourly" {
			t.Errorf("Expected @hourly schedule, got %s", cfg.Jobs.InvitationCleanupSchedule)
		}
	})

	t.Run("fails when cache enabled without redis URL", func(t *testing.T) {
		os.Setenv("WORKSPACED_POSTGRES_URL", "postgres://localhost/workspaced")
		os.Setenv("WORKSPACED_CACHE_ENABLED", "true")
		os.Unsetenv("WORKSPACED_REDIS_URL")
		defer os.Unsetenv("WORKSPACED_POSTGRES_URL")
		defer os.Unsetenv("WORKSPACED_CACHE_ENABLED")

		if _, err := LoadConfig(); err == nil {
			t.Error("Expected error when redis URL is missing")
		}
	})

	t.Run("fails when server and health ports collide", func(t *testing.T) {
		os.Setenv("WORKSPACED_POSTGRES_URL", "postgres://localhost/workspaced")
		os.Setenv("WORKSPACED_CACHE_ENABLED", "false")
		os.Setenv("WORKSPACED_PORT", "8080")
		os.Setenv("WORKSPACED_HEALTH_PORT", "8080")
		defer os.Unsetenv("WORKSPACED_POSTGRES_URL")
		defer os.Unsetenv("WORKSPACED_CACHE_ENABLED")
		defer os.Unsetenv("WORKSPACED_PORT")
		defer os.Unsetenv("WORKSPACED_HEALTH_PORT")

		if _, err := LoadConfig(); err == nil {
			t.Error("Expected error when ports collide")
		}
	})
}
