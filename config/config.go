// Package config loads the kiosk settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the kiosk agent
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Liveness  LivenessConfig  `yaml:"liveness"`
	Slideshow SlideshowConfig `yaml:"slideshow"`
	S3        S3Config        `yaml:"s3"`
	RootPath  string          `yaml:"root_path"`
	LogLevel  string          `yaml:"log_level"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// BackendConfig points at the PC backend and the macro server.
type BackendConfig struct {
	URL      string `yaml:"url"`
	MacroURL string `yaml:"macro_url"`
}

type LivenessConfig struct {
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
	OfflineAfter     time.Duration `yaml:"offline_after"`
}

type SlideshowConfig struct {
	Source        string        `yaml:"source"`
	Dwell         time.Duration `yaml:"dwell"`
	ReadyTimeout  time.Duration `yaml:"ready_timeout"`
	Settle        time.Duration `yaml:"settle"`
	StallTimeout  time.Duration `yaml:"stall_timeout"`
	CacheDir      string        `yaml:"cache_dir"`
	WatchInterval time.Duration `yaml:"watch_interval"`
}

type S3Config struct {
	Profile string `yaml:"profile"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
}

const (
	SourceBackend = "backend"
	SourceS3      = "s3"
)

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: "0.0.0.0:8080"},
		Backend: BackendConfig{
			URL:      "http://127.0.0.1:5000",
			MacroURL: "http://127.0.0.1:5001",
		},
		Liveness: LivenessConfig{
			Interval:         30 * time.Second,
			Timeout:          8 * time.Second,
			FailureThreshold: 3,
			OfflineAfter:     90 * time.Second,
		},
		Slideshow: SlideshowConfig{
			Source:        SourceBackend,
			Dwell:         7 * time.Second,
			ReadyTimeout:  8 * time.Second,
			Settle:        2 * time.Second,
			StallTimeout:  7 * time.Second,
			WatchInterval: time.Hour,
		},
		RootPath: ".",
		LogLevel: "info",
	}
}

// Load builds the configuration. Precedence, lowest first: defaults, the
// YAML file named by KIOSK_CONFIG_FILE, then KIOSK_* environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (optional)
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("KIOSK_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Server.Addr = getEnv("KIOSK_ADDR", cfg.Server.Addr)
	cfg.Backend.URL = strings.TrimSuffix(getEnv("KIOSK_BACKEND_URL", cfg.Backend.URL), "/")
	cfg.Backend.MacroURL = strings.TrimSuffix(getEnv("KIOSK_MACRO_URL", cfg.Backend.MacroURL), "/")

	cfg.Liveness.Interval = getEnvAsDuration("KIOSK_LIVENESS_INTERVAL", cfg.Liveness.Interval)
	cfg.Liveness.Timeout = getEnvAsDuration("KIOSK_LIVENESS_TIMEOUT", cfg.Liveness.Timeout)
	cfg.Liveness.FailureThreshold = getEnvAsInt("KIOSK_LIVENESS_FAILURES", cfg.Liveness.FailureThreshold)
	cfg.Liveness.OfflineAfter = getEnvAsDuration("KIOSK_LIVENESS_OFFLINE_AFTER", cfg.Liveness.OfflineAfter)

	cfg.Slideshow.Source = getEnv("KIOSK_MEDIA_SOURCE", cfg.Slideshow.Source)
	cfg.Slideshow.Dwell = getEnvAsDuration("KIOSK_SLIDESHOW_DWELL", cfg.Slideshow.Dwell)
	cfg.Slideshow.ReadyTimeout = getEnvAsDuration("KIOSK_SLIDESHOW_READY_TIMEOUT", cfg.Slideshow.ReadyTimeout)
	cfg.Slideshow.Settle = getEnvAsDuration("KIOSK_SLIDESHOW_SETTLE", cfg.Slideshow.Settle)
	cfg.Slideshow.StallTimeout = getEnvAsDuration("KIOSK_SLIDESHOW_STALL_TIMEOUT", cfg.Slideshow.StallTimeout)
	cfg.Slideshow.WatchInterval = getEnvAsDuration("KIOSK_SLIDESHOW_WATCH_INTERVAL", cfg.Slideshow.WatchInterval)

	cfg.S3.Profile = getEnv("KIOSK_AWS_PROFILE", cfg.S3.Profile)
	cfg.S3.Bucket = getEnv("KIOSK_S3_BUCKET", cfg.S3.Bucket)
	cfg.S3.Prefix = getEnv("KIOSK_S3_PREFIX", cfg.S3.Prefix)

	cfg.RootPath = getEnv("KIOSK_ROOT_PATH", cfg.RootPath)
	cfg.LogLevel = getEnv("KIOSK_LOG_LEVEL", cfg.LogLevel)

	if cfg.Slideshow.CacheDir == "" {
		cfg.Slideshow.CacheDir = filepath.Join(cfg.RootPath, "cache")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the monitor or scheduler cannot run with.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("backend url is required")
	}
	if c.Liveness.Interval <= 0 || c.Liveness.Timeout <= 0 {
		return errors.New("liveness interval and timeout must be positive")
	}
	if c.Liveness.FailureThreshold < 1 {
		return fmt.Errorf("liveness failure threshold must be at least 1, got %d", c.Liveness.FailureThreshold)
	}
	if c.Slideshow.Dwell <= 0 || c.Slideshow.ReadyTimeout <= 0 || c.Slideshow.Settle < 0 || c.Slideshow.StallTimeout <= 0 || c.Slideshow.WatchInterval <= 0 {
		return errors.New("slideshow timings must be positive")
	}
	switch c.Slideshow.Source {
	case SourceBackend:
	case SourceS3:
		if c.S3.Bucket == "" {
			return errors.New("no s3 bucket provided in KIOSK_S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown media source %q", c.Slideshow.Source)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("unable to parse integer setting, using default", "key", key, "value", value, "default", defaultValue)
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("30s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("unable to parse duration setting, using default", "key", key, "value", value, "default", defaultValue)
	return defaultValue
}
