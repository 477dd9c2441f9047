package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Load reads the configuration from the process environment, fills in
// tag defaults and validates the result.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	if err := decode(reflect.ValueOf(cfg).Elem(), getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	stringsType  = reflect.TypeOf([]string(nil))
)

// decode fills the env-tagged fields of v and descends into nested
// sections. Every unparsable value is reported, not only the first.
func decode(v reflect.Value, getenv func(string) string) error {
	var errs []error
	t := v.Type()
	for i := range t.NumField() {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			errs = append(errs, decode(fv, getenv))
			continue
		}

		name, raw := lookup(sf.Tag, getenv)
		if raw == "" {
			continue
		}
		if err := setValue(fv, raw); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", name, raw, err))
		}
	}
	return errors.Join(errs...)
}

// lookup resolves a field's raw value from its env variable, then the
// envAlt fallback, then the default tag. An empty variable counts as unset.
func lookup(tag reflect.StructTag, getenv func(string) string) (name, raw string) {
	name = tag.Get("env")
	if name == "" {
		return "", ""
	}
	for _, key := range []string{name, tag.Get("envAlt")} {
		if key == "" {
			continue
		}
		if v := getenv(key); v != "" {
			return name, v
		}
	}
	return name, tag.Get("default")
}

func setValue(fv reflect.Value, raw string) error {
	switch fv.Type() {
	case durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	case stringsType:
		fv.Set(reflect.ValueOf(splitList(raw)))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

// splitList turns "a, b,,c" into [a b c].
func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// problems collects validation failures so Validate reports them together.
type problems []string

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
}

// Validate reports every invalid setting in one error.
func (c *Config) Validate() error {
	var p problems

	p.check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	p.check(strings.TrimSpace(c.Storage.DataDir) != "", "UPLOAD_DATA_DIR must not be empty")
	p.check(c.Storage.SessionTTL > 0, "UPLOAD_SESSION_TTL must be positive")
	p.check(c.Storage.JanitorInterval > 0, "UPLOAD_JANITOR_INTERVAL must be positive")

	p.check(c.Upload.MaxChunkSize > 0, "UPLOAD_MAX_CHUNK_SIZE must be positive")
	p.check(c.Upload.MaxTotalChunks > 0, "UPLOAD_MAX_TOTAL_CHUNKS must be positive")
	p.check(c.Upload.PreviewRows >= 0, "UPLOAD_PREVIEW_ROWS must be non-negative")
	p.check(c.Upload.MaxConcurrent > 0, "UPLOAD_MAX_CONCURRENT must be positive")
	p.check(c.Upload.MaxWaitTime > 0, "UPLOAD_MAX_WAIT_TIME must be positive")
	p.check(c.Upload.Timeout > 0, "UPLOAD_TIMEOUT must be positive")

	p.check(!c.Rate.Enabled || c.Rate.RequestsPerMinute > 0,
		"RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")

	if c.Database.Enabled() {
		p.check(c.Database.MaxConns >= c.Database.MinConns,
			"DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
		p.check(c.Database.MaxConns > 0, "DB_MAX_CONNS must be positive")
		p.check(c.Database.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
	}

	if c.Archive.Enabled {
		p.check(c.Archive.Bucket != "", "ARCHIVE_S3_BUCKET is required when ARCHIVE_S3_ENABLED is true")
		p.check(c.Archive.Region != "", "ARCHIVE_S3_REGION is required when ARCHIVE_S3_ENABLED is true")
		p.check((c.Archive.AccessKey == "") == (c.Archive.SecretKey == ""),
			"ARCHIVE_S3_ACCESS_KEY and ARCHIVE_S3_SECRET_KEY must be set together")
	}

	p.check(!c.Metrics.Enabled || strings.HasPrefix(c.Metrics.Path, "/"),
		"METRICS_PATH (%q) must start with /", c.Metrics.Path)

	p.check(slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)),
		"LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	p.check(slices.Contains([]string{"text", "json"}, strings.ToLower(c.Logging.Format)),
		"LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)

	return p.err()
}

// String returns a safe string representation of the config for logging.
// Database URLs and S3 credentials are masked.
func (c *Config) String() string {
	dbURL := "[UNSET]"
	if c.Database.Enabled() {
		dbURL = "[MASKED]"
	}
	accessKey := "[UNSET]"
	if c.Archive.AccessKey != "" {
		accessKey = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Storage: {DataDir: %q, SessionTTL: %s}, ", c.Storage.DataDir, c.Storage.SessionTTL))
	b.WriteString(fmt.Sprintf("Upload: {MaxChunkSize: %d, MaxTotalChunks: %d, PreviewRows: %d, MaxConcurrent: %d}, ",
		c.Upload.MaxChunkSize, c.Upload.MaxTotalChunks, c.Upload.PreviewRows, c.Upload.MaxConcurrent))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		dbURL, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Archive: {Enabled: %v, Bucket: %q, AccessKey: %s, SecretKey: [MASKED]}, ",
		c.Archive.Enabled, c.Archive.Bucket, accessKey))
	b.WriteString(fmt.Sprintf("Metrics: {Enabled: %v, Path: %q}, ", c.Metrics.Enabled, c.Metrics.Path))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
