// Package config holds all runtime configuration for the sentiment service.
package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/Souradip121/sentiment-service/pkg/config"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the sentiment service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"sentiment"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"sentiment_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"sentiment_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (token denylist)
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Auth
	JWTSecret  string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTExpiry  time.Duration `env:"JWT_TOKEN_EXPIRY" envDefault:"15m"`
	JWTLeeway  time.Duration `env:"JWT_CLOCK_LEEWAY" envDefault:"30s"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`

	// Remote scorer
	ScorerURL         string        `env:"SCORER_URL" envDefault:"https://api-inference.huggingface.co/models/distilbert-base-uncased-finetuned-sst-2-english"`
	ScorerAPIKey      string        `env:"SCORER_API_KEY" envDefault:""`
	ScorerTimeout     time.Duration `env:"SCORER_TIMEOUT" envDefault:"10s"`
	ScorerMaxAttempts int           `env:"SCORER_MAX_ATTEMPTS" envDefault:"3"`

	// Retry backoff between remote attempts
	BackoffBase      time.Duration `env:"SCORER_BACKOFF_BASE" envDefault:"200ms"`
	BackoffMaxDelay  time.Duration `env:"SCORER_BACKOFF_MAX_DELAY" envDefault:"2s"`
	BackoffMaxJitter time.Duration `env:"SCORER_BACKOFF_MAX_JITTER" envDefault:"100ms"`

	// Circuit breaker
	BreakerFailureThreshold int           `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	BreakerCooldown         time.Duration `env:"BREAKER_COOLDOWN" envDefault:"30s"`

	// Analysis input
	MaxTextBytes int `env:"MAX_TEXT_BYTES" envDefault:"4096"`

	// Tracing
	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint   string  `env:"TRACING_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load sentiment config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.ScorerMaxAttempts < 1 {
		return nil, fmt.Errorf("SCORER_MAX_ATTEMPTS must be at least 1, got %d", cfg.ScorerMaxAttempts)
	}
	if cfg.BreakerFailureThreshold < 1 {
		return nil, fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be at least 1, got %d", cfg.BreakerFailureThreshold)
	}
	if cfg.MaxTextBytes < 1 {
		return nil, fmt.Errorf("MAX_TEXT_BYTES must be positive, got %d", cfg.MaxTextBytes)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if cfg.Environment != "development" {
		if cfg.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(cfg.JWTSecret))
		}
	}

	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// RedisAddr returns the Redis host:port address.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
