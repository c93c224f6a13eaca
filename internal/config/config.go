// Package config provides centralized configuration management for the
// importer. It loads settings from environment variables with sensible
// defaults and validates everything on startup to fail fast on
// misconfiguration.
package config

import "time"

// Config holds all importer configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Progress ProgressConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// ImportConfig holds import execution settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// ChunkSize is the number of rows processed in memory at once (default: 1000)
	ChunkSize int `env:"IMPORT_CHUNK_SIZE" default:"1000"`

	// BatchSize is the number of rows per storage flush (default: 500)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"500"`

	// ErrorCap is how many row errors a job retains in detail (default: 100)
	ErrorCap int `env:"IMPORT_ERROR_CAP" default:"100"`

	// MaxConcurrentFiles is the number of files imported in parallel within
	// one dependency tier (default: 4)
	MaxConcurrentFiles int `env:"IMPORT_MAX_CONCURRENT_FILES" default:"4"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single file import (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// Mode is the default conflict behavior: skip, overwrite or merge (default: skip)
	Mode string `env:"IMPORT_MODE" default:"skip"`
}

// ProgressConfig holds progress snapshot retention settings.
type ProgressConfig struct {
	// TTL is how long finished jobs keep their progress visible (default: 30m)
	TTL time.Duration `env:"PROGRESS_TTL" default:"30m"`

	// Capacity is the maximum number of tracked jobs (default: 1024)
	Capacity int `env:"PROGRESS_CAPACITY" default:"1024"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
