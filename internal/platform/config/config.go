package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const EnvProduction = "production"

// Server captures process level configuration.
type Server struct {
	Addr        string        `env:"LEDGER_ADDR" envDefault:":8080"`
	Environment string        `env:"LEDGER_ENV" envDefault:"development"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	TxTimeout   time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`

	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Auth      AuthConfig
	Admin     AdminConfig
}

type HTTPConfig struct {
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig configures the postgres pool. An empty URL selects the
// in-memory stores.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	Migrate         bool          `env:"DB_MIGRATE" envDefault:"true"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig configures the redis client. An empty URL disables redis.
type RedisConfig struct {
	URL             string        `env:"REDIS_URL"`
	PoolSize        int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns    int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout     time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout     time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout    time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	ConnectAttempts int           `env:"REDIS_CONNECT_ATTEMPTS" envDefault:"3"`
}

// RateLimitConfig bounds API requests per client.
type RateLimitConfig struct {
	Disabled bool          `env:"RATE_LIMIT_DISABLED" envDefault:"false"`
	Requests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"120"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// AuditConfig configures the outbox relay. No brokers disables the relay.
type AuditConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	Topic        string        `env:"AUDIT_TOPIC" envDefault:"attendance.audit"`
	Partitions   int32         `env:"AUDIT_TOPIC_PARTITIONS" envDefault:"3"`
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Disabled   bool   `env:"AUTH_DISABLED" envDefault:"false"`
	SigningKey string `env:"JWT_SIGNING_KEY"`
	Issuer     string `env:"JWT_ISSUER" envDefault:"ledger"`
}

// AdminConfig enables the operator endpoints when Token is set.
type AdminConfig struct {
	Token string `env:"ADMIN_TOKEN"`
}

func (c Server) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate rejects combinations that cannot start.
func (c Server) Validate() error {
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit requests and window must be positive")
	}
	if !c.Auth.Disabled && c.Auth.SigningKey == "" {
		return errors.New("JWT_SIGNING_KEY is required unless AUTH_DISABLED=true")
	}
	if c.IsProduction() && c.Database.URL == "" {
		return errors.New("DATABASE_URL is required in production")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Audit.BatchSize <= 0 {
		return fmt.Errorf("outbox batch size must be positive, got %d", c.Audit.BatchSize)
	}
	return nil
}

// FromEnv loads optional .env files and parses the environment so main stays lean.
func FromEnv(envFiles ...string) (Server, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return Server{}, err
	}
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}
