package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// HealthStatus represents the health state of a component
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the result of checking a single component
type HealthCheck struct {
	Name     string       `json:"name"`
	Status   HealthStatus `json:"status"`
	Message  string       `json:"message,omitempty"`
	Duration string       `json:"duration"`
}

// HealthReport aggregates component checks
type HealthReport struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []HealthCheck `json:"checks"`
}

// HealthChecker verifies connectivity to the service's backing stores.
// The redis client is optional since the role cache itself is optional.
type HealthChecker struct {
	db     *sql.DB
	redis  *redis.Client
	logger *Logger
}

// NewHealthChecker creates a health checker
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, logger *Logger) *HealthChecker {
	return &HealthChecker{
		db:     db,
		redis:  redisClient,
		logger: logger,
	}
}

// Check runs all component checks and aggregates the result
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
	}

	report.Checks = append(report.Checks, h.checkDatabase(ctx))
	if h.redis != nil {
		report.Checks = append(report.Checks, h.checkRedis(ctx))
	}

	for _, c := range report.Checks {
		switch c.Status {
		case StatusUnhealthy:
			// The database is required; redis only degrades role resolution.
			if c.Name == "database" {
				report.Status = StatusUnhealthy
			} else if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
	}

	return report
}

func (h *HealthChecker) checkDatabase(ctx context.Context) HealthCheck {
	start := time.Now()
	check := HealthCheck{Name: "database", Status: StatusHealthy}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}

	check.Duration = time.Since(start).String()
	return check
}

func (h *HealthChecker) checkRedis(ctx context.Context) HealthCheck {
	start := time.Now()
	check := HealthCheck{Name: "redis", Status: StatusHealthy}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.redis.Ping(ctx).Err(); err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}

	check.Duration = time.Since(start).String()
	return check
}

// LivenessHandler reports whether the process is running
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// ReadinessHandler reports whether the service can serve traffic
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	report := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(report)
}
