// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown for the workspace service.
//
// Logging is JSON to stdout via log/slog. Metrics cover HTTP traffic,
// permission denials, membership mutations, section reorders, role cache
// effectiveness, and database pool state. The health checker reports the
// database as required and redis as optional, since losing the role cache
// only degrades role resolution latency.
package observability
