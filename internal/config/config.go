// Package config loads the upload service configuration from environment
// variables, applies defaults, and validates the result so the process
// fails fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Archive  ArchiveConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout bounds reading a request, body included (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout bounds writing a response (default: 0, disabled)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the per-request middleware timeout (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StorageConfig controls where sessions live and how long they are kept.
type StorageConfig struct {
	// DataDir holds chunk files, assembled files and manifests (default: .data)
	DataDir string `env:"UPLOAD_DATA_DIR" default:".data"`

	// SessionTTL is how long an idle session is kept (default: 24h)
	SessionTTL time.Duration `env:"UPLOAD_SESSION_TTL" default:"24h"`

	// JanitorInterval is how often expired sessions are swept (default: 10m)
	JanitorInterval time.Duration `env:"UPLOAD_JANITOR_INTERVAL" default:"10m"`
}

// UploadConfig holds chunk and finalize settings.
type UploadConfig struct {
	// MaxChunkSize is the largest accepted chunk body in bytes (default: 8MiB)
	MaxChunkSize int64 `env:"UPLOAD_MAX_CHUNK_SIZE" default:"8388608"`

	// MaxTotalChunks caps the chunk count a session may declare (default: 10000)
	MaxTotalChunks int `env:"UPLOAD_MAX_TOTAL_CHUNKS" default:"10000"`

	// PreviewRows is the row cap of cached previews (default: 50)
	PreviewRows int `env:"UPLOAD_PREVIEW_ROWS" default:"50"`

	// MaxConcurrent is the number of finalizations run at once (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long finalize waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds one assembly plus parse (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the per-IP budget; chunked uploads are chatty (default: 600)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"600"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// DatabaseConfig holds the optional Postgres journal connection. When URL
// is empty, sessions are journaled to manifest files under DataDir.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (DATABASE_URL or DB_URL)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of pooled connections (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of open connections (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime closes idle connections after this long (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a Postgres journal is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// ArchiveConfig controls copying finalized files to S3.
type ArchiveConfig struct {
	// Enabled turns on archiving (default: false)
	Enabled bool `env:"ARCHIVE_S3_ENABLED" default:"false"`

	// Bucket is the destination bucket
	Bucket string `env:"ARCHIVE_S3_BUCKET"`

	// Region is the bucket region (default: us-east-1)
	Region string `env:"ARCHIVE_S3_REGION" default:"us-east-1"`

	// Prefix is prepended to object keys (default: uploads/)
	Prefix string `env:"ARCHIVE_S3_PREFIX" default:"uploads/"`

	// AccessKey and SecretKey select static credentials; when empty the
	// default AWS credential chain is used
	AccessKey string `env:"ARCHIVE_S3_ACCESS_KEY"`
	SecretKey string `env:"ARCHIVE_S3_SECRET_KEY"`

	// Endpoint overrides the S3 endpoint for S3-compatible stores
	Endpoint string `env:"ARCHIVE_S3_ENDPOINT"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled exposes metrics over HTTP (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Path is the metrics route (default: /metrics)
	Path string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
