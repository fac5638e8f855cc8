package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`

	StorageBackend string `env:"STORAGE_BACKEND,default=memory" validate:"oneof=memory postgres badger"`
	DatabaseDSN    string `env:"DATABASE_DSN" validate:"required_if=StorageBackend postgres"`
	BadgerPath     string `env:"BADGER_PATH,default=data/badger" validate:"required_if=StorageBackend badger"`
	RedisAddr      string `env:"REDIS_ADDR,default=localhost:6379" validate:"required_if=StorageBackend postgres"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB,default=0" validate:"gte=0"`

	JWTSecret string        `env:"JWT_SECRET,required=true" validate:"min=16"`
	JWTIssuer string        `env:"JWT_ISSUER,default=peerline"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=72h" validate:"gt=0"`

	SentimentEnabled bool          `env:"SENTIMENT_ENABLED,default=true"`
	SendBufferSize   int           `env:"SEND_BUFFER_SIZE,default=256" validate:"gt=0"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
}

var validate = validator.New()

// Load reads an optional .env file, binds the environment and validates it.
func Load() (*Config, error) {
	// a missing .env is fine, the real environment wins anyway
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints declared in the struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
