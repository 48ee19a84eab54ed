package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the process configuration. Every field maps to a ROADWATCH_* variable.
type Config struct {
	Env            string        `env:"ROADWATCH_ENV" envDefault:"production"`
	HTTPAddr       string        `env:"ROADWATCH_HTTP_ADDR" envDefault:":5000"`
	GRPCAddr       string        `env:"ROADWATCH_GRPC_ADDR"`
	DatabaseDSN    string        `env:"ROADWATCH_PG_DSN"`
	JWTSecret      string        `env:"ROADWATCH_JWT_SECRET"`
	JWTIssuer      string        `env:"ROADWATCH_JWT_ISSUER" envDefault:"roadwatch"`
	TokenTTL       time.Duration `env:"ROADWATCH_TOKEN_TTL" envDefault:"24h"`
	UploadDir      string        `env:"ROADWATCH_UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadBytes int64         `env:"ROADWATCH_MAX_UPLOAD_BYTES" envDefault:"52428800"`
	AllowedOrigins []string      `env:"ROADWATCH_ALLOWED_ORIGINS" envSeparator:","`
	RateBurst      int           `env:"ROADWATCH_RATE_BURST" envDefault:"60"`
	RatePerSecond  int           `env:"ROADWATCH_RATE_PER_SECOND" envDefault:"30"`
	MigrationsDir  string        `env:"ROADWATCH_MIGRATIONS_DIR" envDefault:"ops/migrations/sql"`
	SeedsDir       string        `env:"ROADWATCH_SEEDS_DIR" envDefault:"ops/migrations/seeds"`
	AdminUsername  string        `env:"ROADWATCH_ADMIN_USERNAME" envDefault:"admin"`
	AdminEmail     string        `env:"ROADWATCH_ADMIN_EMAIL"`
	AdminPassword  string        `env:"ROADWATCH_ADMIN_PASSWORD"`
}

// Load reads an optional .env file (existing variables win) and parses the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// a missing .env is normal outside local development
		_ = godotenv.Load(f)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("ROADWATCH_JWT_SECRET is not set")
	}
	if c.TokenTTL <= 0 {
		return errors.New("ROADWATCH_TOKEN_TTL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("ROADWATCH_MAX_UPLOAD_BYTES must be positive")
	}
	if c.RateBurst <= 0 || c.RatePerSecond <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	return nil
}

// Development reports whether error details may be exposed to clients.
func (c Config) Development() bool {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "dev", "development", "local":
		return true
	}
	return false
}
