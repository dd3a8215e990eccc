package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kinshipapp/gatekeeper/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Stores   StoreConfig
	Identity IdentityConfig
	CSRF     CSRFConfig

	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// StoreConfig holds counter and document store configuration
type StoreConfig struct {
	RedisURL     string
	RedisDB      int
	RedisTimeout time.Duration

	PostgresURL      string
	PostgresMaxConns int
	PostgresTimeout  time.Duration
}

// IdentityConfig holds identity-assertion verification settings
type IdentityConfig struct {
	// Mode selects the verifier: "oidc" or "hmac"
	Mode string

	// OIDC settings
	IssuerURL string
	ClientID  string

	// HMAC settings (self-hosted deployments and tests)
	HMACSecret string
}

// CSRFConfig holds anti-forgery token settings
type CSRFConfig struct {
	SigningSecret  string
	SessionTTL     time.Duration
	AuthedTTL      time.Duration
	TrustedClients []string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Stores:        loadStoreConfig(),
		Identity:      loadIdentityConfig(),
		CSRF:          loadCSRFConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GATEKEEPER_HOST", "0.0.0.0"),
		Port:            getEnv("GATEKEEPER_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GATEKEEPER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GATEKEEPER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GATEKEEPER_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GATEKEEPER_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("GATEKEEPER_HEALTH_PORT", "9090"),
	}
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		RedisURL:         getEnv("GATEKEEPER_REDIS_URL", "redis://localhost:6379"),
		RedisDB:          getEnvInt("GATEKEEPER_REDIS_DB", 0),
		RedisTimeout:     getEnvDuration("GATEKEEPER_REDIS_TIMEOUT", 2*time.Second),
		PostgresURL:      getEnv("GATEKEEPER_POSTGRES_URL", ""),
		PostgresMaxConns: getEnvInt("GATEKEEPER_POSTGRES_MAX_CONNS", 25),
		PostgresTimeout:  getEnvDuration("GATEKEEPER_POSTGRES_TIMEOUT", 5*time.Second),
	}
}

func loadIdentityConfig() IdentityConfig {
	return IdentityConfig{
		Mode:       getEnv("GATEKEEPER_IDENTITY_MODE", "oidc"),
		IssuerURL:  getEnv("GATEKEEPER_OIDC_ISSUER", ""),
		ClientID:   getEnv("GATEKEEPER_OIDC_CLIENT_ID", ""),
		HMACSecret: getEnv("GATEKEEPER_IDENTITY_HMAC_SECRET", ""),
	}
}

func loadCSRFConfig() CSRFConfig {
	trusted := getEnv("GATEKEEPER_CSRF_TRUSTED_CLIENTS", "KinshipMobile,okhttp,Darwin")
	return CSRFConfig{
		SigningSecret:  getEnv("GATEKEEPER_CSRF_SECRET", ""),
		SessionTTL:     getEnvDuration("GATEKEEPER_CSRF_SESSION_TTL", 30*time.Minute),
		AuthedTTL:      getEnvDuration("GATEKEEPER_CSRF_AUTHED_TTL", 4*time.Hour),
		TrustedClients: splitNonEmpty(trusted),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("GATEKEEPER_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("GATEKEEPER_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Stores.RedisURL == "" {
		return fmt.Errorf("redis URL is required for rate-limit counters")
	}
	if c.Stores.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required for the document store")
	}

	switch c.Identity.Mode {
	case "oidc":
		if c.Identity.IssuerURL == "" || c.Identity.ClientID == "" {
			return fmt.Errorf("OIDC issuer and client id are required in oidc mode")
		}
	case "hmac":
		if c.Identity.HMACSecret == "" {
			return fmt.Errorf("identity HMAC secret is required in hmac mode")
		}
	default:
		return fmt.Errorf("invalid identity mode: %s (must be oidc or hmac)", c.Identity.Mode)
	}

	if c.CSRF.SigningSecret == "" {
		return fmt.Errorf("CSRF signing secret is required")
	}
	if c.CSRF.SessionTTL <= 0 || c.CSRF.AuthedTTL <= 0 {
		return fmt.Errorf("CSRF token TTLs must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func splitNonEmpty(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
