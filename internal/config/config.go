package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageType controls the attempt-log backend.
type StorageType string

const (
	StorageSQLite StorageType = "sqlite"
	StorageMemory StorageType = "memory"
	StorageOff    StorageType = "off"
)

// Config contains all runtime configuration for the console.
type Config struct {
	// Core
	ListenAddr string
	BackendURL string
	LogLevel   string

	// Sessions
	SessionTTL     time.Duration
	MaxUploadBytes int64
	StrictDefault  bool

	// Generation
	GenerateTimeout time.Duration

	// Attempt log
	Storage        StorageType
	StoragePath    string
	StorageMaxRows int

	// Backend health polling
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration

	// Events
	EventBuffer int

	// HTTP
	CORSAllowOrigin string
}

// Load parses env vars and returns a validated Config.
func Load() (Config, error) {
	cfg := Config{
		// Core
		ListenAddr: getEnvString("LISTEN_ADDR", ":8090"),
		BackendURL: getEnvString("BACKEND_URL", "http://127.0.0.1:8000"),
		LogLevel:   getEnvString("LOG_LEVEL", "info"),

		// Sessions
		SessionTTL:     getEnvDuration("SESSION_TTL", 30*time.Minute),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 25*1024*1024),
		StrictDefault:  getEnvBool("STRICT_DEFAULT", true),

		// Generation
		GenerateTimeout: getEnvDuration("GENERATE_TIMEOUT", 2*time.Minute),

		// Attempt log
		Storage:        StorageType(getEnvString("STORAGE", string(StorageMemory))),
		StoragePath:    getEnvString("STORAGE_PATH", "invoice-console.sqlite"),
		StorageMaxRows: getEnvInt("STORAGE_MAX_ROWS", 1000),

		// Backend health polling
		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", 15*time.Second),
		HealthCheckTimeout:  getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),

		// Events
		EventBuffer: getEnvInt("EVENT_BUFFER", 100),

		// HTTP
		CORSAllowOrigin: getEnvString("CORS_ALLOW_ORIGIN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration constraints.
func (c Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid BACKEND_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid BACKEND_URL: %q (must be http or https)", c.BackendURL)
	}

	switch c.Storage {
	case StorageSQLite, StorageMemory, StorageOff:
		// ok
	default:
		return fmt.Errorf("invalid STORAGE: %q (must be sqlite|memory|off)", c.Storage)
	}

	if c.StorageMaxRows < 10 {
		return fmt.Errorf("STORAGE_MAX_ROWS must be >= 10")
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0")
	}

	if c.GenerateTimeout <= 0 {
		return fmt.Errorf("GENERATE_TIMEOUT must be > 0")
	}

	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL must be > 0")
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be > 0")
	}

	if c.EventBuffer < 0 {
		return fmt.Errorf("EVENT_BUFFER must be >= 0")
	}

	return nil
}

// Helper functions for parsing environment variables

func getEnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
