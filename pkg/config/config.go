// Package config loads all process configuration from environment variables
// at startup. Components receive config values at construction; nothing
// deeper reads the environment. The active byte backend is exposed through a
// Provider so it can be hot-swapped (see watch.go).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Backend BackendConfig
	Auth    AuthConfig
	Obs     ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	ListenAddr      string
	HealthAddr      string
	PublicBaseURL   string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig holds metadata repository configuration. An empty DatabaseURL
// selects the embedded sqlite store under DataDir.
type StoreConfig struct {
	DatabaseURL   string
	DataDir       string
	RedisURL      string
	RedisPoolSize int
	IntentTTL     time.Duration
	SweepEvery    time.Duration
}

// BackendConfig selects and configures the active byte backend: r2 whenever
// R2_BUCKET is present, the platform store otherwise.
type BackendConfig struct {
	R2            blob.R2Config
	OverridesFile string
}

// Active returns the configured backend kind.
func (b BackendConfig) Active() blob.Kind {
	if b.R2.Bucket != "" {
		return blob.KindR2
	}
	return blob.KindConvex
}

// AuthConfig holds the actor-resolution inputs.
type AuthConfig struct {
	AdminEmails []string
	AdminKey    string
}

// ObservabilityConfig holds logging/metrics/tracing settings.
type ObservabilityConfig struct {
	LogLevel       string
	MetricsEnabled bool
	OTelEnabled    bool
	OTelEndpoint   string
	ServiceName    string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
			HealthAddr:      getEnv("HEALTH_ADDR", ":9090"),
			PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
			AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			DatabaseURL:   getEnv("DATABASE_URL", ""),
			DataDir:       getEnv("DATA_DIR", "./data"),
			RedisURL:      getEnv("REDIS_URL", ""),
			RedisPoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
			IntentTTL:     getEnvDuration("UPLOAD_INTENT_TTL", time.Hour),
			SweepEvery:    getEnvDuration("UPLOAD_INTENT_SWEEP_EVERY", 10*time.Minute),
		},
		Backend: BackendConfig{
			R2: blob.R2Config{
				Bucket:          getEnv("R2_BUCKET", ""),
				Endpoint:        getEnv("R2_ENDPOINT", ""),
				AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
				PublicBaseURL:   getEnv("R2_PUBLIC_URL", ""),
				KeyPrefix:       getEnv("R2_KEY_PREFIX", ""),
			},
			OverridesFile: getEnv("BACKEND_OVERRIDES_FILE", ""),
		},
		Auth: AuthConfig{
			AdminEmails: splitList(getEnv("ADMIN_EMAILS", "")),
			AdminKey:    getEnv("CONVEX_ADMIN_KEY", ""),
		},
		Obs: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
			OTelEnabled:    getEnvBool("OTEL_ENABLED", false),
			OTelEndpoint:   getEnv("OTEL_ENDPOINT", "localhost:4317"),
			ServiceName:    getEnv("SERVICE_NAME", "assetvault"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Server.ListenAddr == c.Server.HealthAddr {
		return fmt.Errorf("listen address and health address must be different")
	}
	if c.Store.DatabaseURL == "" && c.Store.DataDir == "" {
		return fmt.Errorf("either DATABASE_URL or DATA_DIR is required")
	}
	if c.Backend.R2.Bucket != "" {
		if c.Backend.R2.Endpoint == "" || c.Backend.R2.AccessKeyID == "" || c.Backend.R2.SecretAccessKey == "" {
			return fmt.Errorf("R2_ENDPOINT, R2_ACCESS_KEY_ID and R2_SECRET_ACCESS_KEY are required when R2_BUCKET is set")
		}
	}
	if c.Store.IntentTTL <= 0 {
		return fmt.Errorf("upload intent TTL must be positive")
	}
	return nil
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.EqualFold(value, "true") || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
