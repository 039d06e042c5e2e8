// Package config provides configuration management for renditiond using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultMaxUploadSize   = 8 * 1024 * 1024 * 1024 // 8GB
	defaultProbeTimeout    = 30 * time.Second
	defaultJobTimeout      = 2 * time.Hour
	defaultWorkers         = 2
	defaultQueueSize       = 16
	defaultOrphanTTL       = 24 * time.Hour
	defaultTicketTTL       = 7 * 24 * time.Hour
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	S3        S3Config        `mapstructure:"s3"`
	Janitor   JanitorConfig   `mapstructure:"janitor"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxUploadSize caps the size of a single uploaded source file.
	// Supports human-readable values like "8GB" or raw byte counts.
	MaxUploadSize ByteSize `mapstructure:"max_upload_size"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds local file storage configuration.
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	// WorkDir is the directory under BaseDir that holds per-job workspaces.
	WorkDir string `mapstructure:"work_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath   string        `mapstructure:"binary_path"`   // Path to ffmpeg binary (empty = auto-detect)
	ProbePath    string        `mapstructure:"probe_path"`    // Path to ffprobe binary (empty = auto-detect)
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"` // Timeout for a single ffprobe run
}

// TranscodeConfig holds encoder configuration.
type TranscodeConfig struct {
	Encoder  string `mapstructure:"encoder"`   // Video encoder (default h264_nvenc)
	Preset   string `mapstructure:"preset"`    // Encoder preset (default p4)
	HWDecode bool   `mapstructure:"hw_decode"` // Use CUDA hardware decoders when the input codec supports it
}

// PipelineConfig holds transcode pipeline configuration.
type PipelineConfig struct {
	Workers    int           `mapstructure:"workers"`     // Concurrent transcode jobs
	QueueSize  int           `mapstructure:"queue_size"`  // Pending job queue capacity
	JobTimeout time.Duration `mapstructure:"job_timeout"` // Deadline for a single video job
	// PreserveWorkspaces keeps per-job temp directories after completion.
	// Intended for debugging failed jobs.
	PreserveWorkspaces bool `mapstructure:"preserve_workspaces"`
}

// S3Config holds object storage configuration for rendition uploads.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"` // Custom endpoint for S3-compatible stores (empty = AWS)
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	// PublicBaseURL overrides the derived public URL prefix for stored objects.
	// Empty means the standard virtual-hosted AWS URL is used.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// JanitorConfig holds scheduled maintenance configuration.
type JanitorConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Cron      string        `mapstructure:"cron"`       // standard 5-field cron expression
	OrphanTTL time.Duration `mapstructure:"orphan_ttl"` // Age before an abandoned workspace is removed
	TicketTTL time.Duration `mapstructure:"ticket_ttl"` // Age before a consumed ticket row is purged
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with RENDITIOND_ and use underscores for nesting.
// Example: RENDITIOND_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/renditiond")
		v.AddConfigPath("$HOME/.renditiond")
	}

	v.SetEnvPrefix("RENDITIOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK, defaults and env vars apply
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.max_upload_size", defaultMaxUploadSize)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "renditiond.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.work_dir", "work")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.probe_timeout", defaultProbeTimeout)

	// Transcode defaults
	v.SetDefault("transcode.encoder", "h264_nvenc")
	v.SetDefault("transcode.preset", "p4")
	v.SetDefault("transcode.hw_decode", true)

	// Pipeline defaults
	v.SetDefault("pipeline.workers", defaultWorkers)
	v.SetDefault("pipeline.queue_size", defaultQueueSize)
	v.SetDefault("pipeline.job_timeout", defaultJobTimeout)
	v.SetDefault("pipeline.preserve_workspaces", false)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.force_path_style", false)
	v.SetDefault("s3.public_base_url", "")

	// Janitor defaults
	v.SetDefault("janitor.enabled", true)
	v.SetDefault("janitor.cron", "0 3 * * *") // Daily at 3 AM
	v.SetDefault("janitor.orphan_ttl", defaultOrphanTTL)
	v.SetDefault("janitor.ticket_ttl", defaultTicketTTL)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}
	if c.Server.MaxUploadSize < 1 {
		return fmt.Errorf("server.max_upload_size must be positive")
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Transcode.Encoder == "" {
		return fmt.Errorf("transcode.encoder is required")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Pipeline.QueueSize < 1 {
		return fmt.Errorf("pipeline.queue_size must be at least 1")
	}

	if c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required")
	}
	if c.S3.Region == "" {
		return fmt.Errorf("s3.region is required")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WorkPath returns the full path to the workspace directory.
func (c *StorageConfig) WorkPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.WorkDir)
}
