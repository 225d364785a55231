package config

import (
	"fmt"
	"net/url"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the archivist service.
// Environment variables are automatically parsed from the ARCHIVIST_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// PublicHost is the externally reachable base URL used when signing
	// file links, e.g. "https://archive.example.org".
	PublicHost string `envconfig:"PUBLIC_HOST" default:"http://localhost:8080"`

	// Database Configuration
	DBDriver   string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBName     string `envconfig:"DB_NAME" default:"archivist"`
	DBUser     string `envconfig:"DB_USER" default:"archivist"`
	DBPassword string `envconfig:"DB_PASSWORD" default:""`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"archivist.db"`

	// Filesystem layout
	ArchivesRoot   string `envconfig:"ARCHIVES_ROOT" default:"archives"`
	ThumbnailsRoot string `envconfig:"THUMBNAILS_ROOT" default:"thumbnails"`

	// FileTokenSecret keys the derivation of per-file access tokens.
	FileTokenSecret string `envconfig:"FILE_TOKEN_SECRET" default:""`

	// External media toolchain
	TranscoderBin string `envconfig:"TRANSCODER_BIN" default:"ffmpeg"`
	ProbeBin      string `envconfig:"PROBE_BIN" default:"ffprobe"`

	// FetchFullTracks re-downloads segmented video tracks in one request
	// when the capture left gaps.
	FetchFullTracks bool `envconfig:"FETCH_FULL_TRACKS" default:"true"`

	// DevAuthBypass disables token checks. Development only.
	DevAuthBypass bool `envconfig:"DEV_AUTH_BYPASS" default:"false"`
}

// ResolveDefaults validates the driver choice and fills in derived values.
func (c *Config) ResolveDefaults() error {
	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH must be set when DB_DRIVER=sqlite")
	}
	if c.Environment == EnvProduction && c.FileTokenSecret == "" {
		return fmt.Errorf("FILE_TOKEN_SECRET must be set in production")
	}
	if c.Environment == EnvProduction && c.DevAuthBypass {
		return fmt.Errorf("DEV_AUTH_BYPASS is not allowed in production")
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Environment variables should be prefixed with ARCHIVIST_
// Example: ARCHIVIST_HTTP_PORT, ARCHIVIST_DB_DRIVER
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("ARCHIVIST", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("archives_root", cfg.ArchivesRoot).
		Str("thumbnails_root", cfg.ThumbnailsRoot).
		Bool("dev_auth_bypass", cfg.DevAuthBypass).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing.
func NewForTesting() *Config {
	return &Config{
		Environment:     EnvTesting,
		HTTPPort:        8080,
		PublicHost:      "http://localhost:8080",
		DBDriver:        "sqlite",
		SQLitePath:      ":memory:",
		ArchivesRoot:    "archives",
		ThumbnailsRoot:  "thumbnails",
		FileTokenSecret: "test-secret",
		TranscoderBin:   "ffmpeg",
		ProbeBin:        "ffprobe",
		FetchFullTracks: true,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// PostgresDSN assembles a connection string from the DB_* settings.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword),
		c.DBHost, c.DBPort, c.DBName)
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
