package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Audit rows are written after the caller response, on a detached context.
const AuditWriteTimeout = 5 * time.Second

// Request body limit for the pipeline
const MaxRequestBodyBytes = 1 << 20

// Rate limiter housekeeping
const (
	RateLimitWindow          = time.Minute
	RateLimitCleanupInterval = time.Minute
	RateLimitMaxEntries      = 10000
)
