package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the upload service.
type Config struct {
	// Service Configuration
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"upload-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"UPLOAD_API_PORT" envDefault:"8290"`
	LogLevel        string        `env:"UPLOAD_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"UPLOAD_LOG_FORMAT" envDefault:"console"`
	LogPIILevel     string        `env:"UPLOAD_LOG_PII_LEVEL" envDefault:"hashed"`
	LogPIISalt      string        `env:"UPLOAD_LOG_PII_SALT" envDefault:""`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Database (required, no defaults)
	DBPostgresqlWriteDSN string `env:"DB_POSTGRESQL_WRITE_DSN,notEmpty"`

	// Database Connection Pool
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Local Storage Layout, relative directories are resolved against StorageRoot
	StorageRoot  string `env:"UPLOAD_STORAGE_ROOT" envDefault:"."`
	ImageDir     string `env:"UPLOAD_IMAGE_DIR" envDefault:"uploads/images"`
	VideoDir     string `env:"UPLOAD_VIDEO_DIR" envDefault:"uploads/videos"`
	DocumentDir  string `env:"UPLOAD_DOCUMENT_DIR" envDefault:"uploads/documents"`
	FallbackDir  string `env:"UPLOAD_FALLBACK_DIR" envDefault:"uploads/others"`
	TempDir      string `env:"UPLOAD_TEMP_DIR" envDefault:"uploads/temp"`
	PublicPrefix string `env:"UPLOAD_PUBLIC_PREFIX" envDefault:"/uploads"`

	// Staging sweeper. An empty schedule disables it.
	StagingSweepSchedule string        `env:"UPLOAD_STAGING_SWEEP_SCHEDULE" envDefault:"*/15 * * * *"`
	StagingMaxAge        time.Duration `env:"UPLOAD_STAGING_MAX_AGE" envDefault:"1h"`

	// Image Policy
	ImageMaxBytes     int64    `env:"UPLOAD_IMAGE_MAX_BYTES" envDefault:"10485760"`
	ImageAllowedTypes []string `env:"UPLOAD_IMAGE_TYPES" envSeparator:"," envDefault:"image/jpeg,image/png,image/gif,image/webp,image/svg+xml,image/avif"`
	ImageMaxWidth     int      `env:"UPLOAD_IMAGE_MAX_WIDTH" envDefault:"4096"`
	ImageMaxHeight    int      `env:"UPLOAD_IMAGE_MAX_HEIGHT" envDefault:"4096"`
	ImageCompress     bool     `env:"UPLOAD_IMAGE_COMPRESS" envDefault:"true"`
	ImageQuality      int      `env:"UPLOAD_IMAGE_QUALITY" envDefault:"80"`

	// Video Policy
	VideoMaxBytes     int64         `env:"UPLOAD_VIDEO_MAX_BYTES" envDefault:"524288000"`
	VideoAllowedTypes []string      `env:"UPLOAD_VIDEO_TYPES" envSeparator:"," envDefault:"video/mp4,video/mpeg,video/quicktime,video/webm"`
	VideoMaxDuration  time.Duration `env:"UPLOAD_VIDEO_MAX_DURATION" envDefault:"10m"`

	// Document Policy
	DocumentMaxBytes     int64    `env:"UPLOAD_DOCUMENT_MAX_BYTES" envDefault:"52428800"`
	DocumentAllowedTypes []string `env:"UPLOAD_DOCUMENT_TYPES" envSeparator:"," envDefault:"application/pdf,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document,application/vnd.ms-excel,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,text/plain"`

	// PolicyFile optionally points at a YAML document that replaces per-category entries.
	PolicyFile string `env:"UPLOAD_POLICY_FILE"`

	// Pipeline Behaviour
	VerifyContent      bool           `env:"UPLOAD_VERIFY_CONTENT" envDefault:"true"`
	MaxConcurrency     int            `env:"UPLOAD_MAX_CONCURRENCY" envDefault:"4"`
	MaxMultipartMemory int64          `env:"UPLOAD_MAX_MULTIPART_MEMORY" envDefault:"33554432"`
	// MaxRequestBytes caps an upload request body. Zero derives the cap from the policy table.
	MaxRequestBytes    int64          `env:"UPLOAD_MAX_REQUEST_BYTES" envDefault:"0"`
	MultiFields        map[string]int `env:"UPLOAD_MULTI_FIELDS" envSeparator:"," envKeyValSeparator:":" envDefault:"images:10,videos:3,documents:5"`

	// Authentication
	AuthEnabled bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer  string `env:"AUTH_ISSUER"`
	Account     string `env:"ACCOUNT"`
	AuthJWKSURL string `env:"AUTH_JWKS_URL"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.StorageRoot = strings.TrimSpace(c.StorageRoot)
	if c.StorageRoot == "" {
		c.StorageRoot = "."
	}
	c.PublicPrefix = "/" + strings.Trim(strings.TrimSpace(c.PublicPrefix), "/")
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 1
	}
	if c.MaxMultipartMemory <= 0 {
		c.MaxMultipartMemory = 32 << 20
	}
	if c.MaxRequestBytes < 0 {
		return fmt.Errorf("UPLOAD_MAX_REQUEST_BYTES must not be negative, got %d", c.MaxRequestBytes)
	}
	if c.ImageQuality < 1 || c.ImageQuality > 100 {
		return fmt.Errorf("UPLOAD_IMAGE_QUALITY must be between 1 and 100, got %d", c.ImageQuality)
	}
	for field, limit := range c.MultiFields {
		if limit <= 0 {
			return fmt.Errorf("UPLOAD_MULTI_FIELDS: field %q needs a positive max count", field)
		}
	}
	if c.AuthEnabled {
		if strings.TrimSpace(c.AuthIssuer) == "" {
			return fmt.Errorf("AUTH_ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthJWKSURL) == "" {
			return fmt.Errorf("AUTH_JWKS_URL is required when AUTH_ENABLED is true")
		}
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// StoragePath resolves a configured directory against the storage root.
func (c *Config) StoragePath(dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.StorageRoot, dir)
}
