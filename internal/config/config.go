// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Shortener ShortenerConfig
	Analytics AnalyticsConfig
	Auth      AuthConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Env      string
	LogLevel string
}

// IsProduction returns true if the app is running in production mode.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustProxy      bool
}

// Address returns the server address in host:port format.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis connection configuration. An empty Host disables
// the cache layer entirely.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	CacheTTL time.Duration
}

// Enabled reports whether a Redis cache is configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// ShortenerConfig holds shortener-specific configuration.
type ShortenerConfig struct {
	BaseURL string
}

// AnalyticsConfig holds the outbound analytics sink configuration. Both
// fields must be set for page-view events to be delivered; otherwise the
// notifier is a no-op.
type AnalyticsConfig struct {
	Endpoint  string
	WebsiteID string
	Timeout   time.Duration
}

// Enabled reports whether an analytics destination is configured.
func (a AnalyticsConfig) Enabled() bool {
	return a.Endpoint != "" && a.WebsiteID != ""
}

// AuthConfig holds session token configuration.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.App.Env = getEnvOrDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", "0.0.0.0")
	var err error
	if cfg.Server.Port, err = getEnvAsInt("SERVER_PORT", 8080); err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	if cfg.Server.ReadTimeout, err = getEnvAsDuration("SERVER_READ_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}
	if cfg.Server.WriteTimeout, err = getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}
	if cfg.Server.ShutdownTimeout, err = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.Server.TrustProxy = getEnvOrDefault("SERVER_TRUST_PROXY", "false") == "true"

	cfg.Database.Host = getEnvOrDefault("DB_HOST", "localhost")
	if cfg.Database.Port, err = getEnvAsInt("DB_PORT", 5432); err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.User = getEnvOrDefault("DB_USER", "linkshort")
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", "")
	cfg.Database.DBName = getEnvOrDefault("DB_NAME", "linkshort")
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	if cfg.Database.MaxOpenConns, err = getEnvAsInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	if cfg.Database.MaxIdleConns, err = getEnvAsInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}
	if cfg.Database.ConnMaxLifetime, err = getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	cfg.Redis.Host = os.Getenv("REDIS_HOST")
	if cfg.Redis.Port, err = getEnvAsInt("REDIS_PORT", 6379); err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.Redis.PoolSize, err = getEnvAsInt("REDIS_POOL_SIZE", 10); err != nil {
		return nil, fmt.Errorf("invalid REDIS_POOL_SIZE: %w", err)
	}
	if cfg.Redis.CacheTTL, err = getEnvAsDuration("REDIS_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, fmt.Errorf("invalid REDIS_CACHE_TTL: %w", err)
	}

	cfg.Shortener.BaseURL = getEnvOrDefault("BASE_URL", "http://localhost:8080")

	cfg.Analytics.Endpoint = os.Getenv("UMAMI_API_ENDPOINT")
	cfg.Analytics.WebsiteID = os.Getenv("UMAMI_WEBSITE_ID")
	if cfg.Analytics.Timeout, err = getEnvAsDuration("UMAMI_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid UMAMI_TIMEOUT: %w", err)
	}

	cfg.Auth.JWTSecret = getEnvOrDefault("JWT_SECRET", "")
	if cfg.Auth.TokenTTL, err = getEnvAsDuration("AUTH_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, fmt.Errorf("invalid AUTH_TOKEN_TTL: %w", err)
	}
	if cfg.Auth.JWTSecret == "" && cfg.App.IsProduction() {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(valueStr)
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(valueStr)
}
