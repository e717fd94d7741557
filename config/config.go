package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	Version           string
	LogLevel          string
	Postgres          PostgresConfig
	Auth              AuthConfig
	Redis             RedisConfig
	RateLimit         RateLimitConfig
	CORSAllowedOrigin string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the lib/pq connection URL.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

type AuthConfig struct {
	JWTSecret     string
	UsernameClaim string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads a .env file when present and then the process environment.
func Load() (*Config, error) {
	// Missing .env is fine; the OS environment is used instead.
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "9000"),
		Version:  getEnv("VERSION", "0.0.0"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "postgres"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("AUTH_JWT_SECRET", ""),
			UsernameClaim: getEnv("AUTH_USERNAME_CLAIM", "username"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		CORSAllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "*"),
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "10"), 64)
	if err != nil || rps <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %q", os.Getenv("RATE_LIMIT_RPS"))
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "20"))
	if err != nil || burst <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %q", os.Getenv("RATE_LIMIT_BURST"))
	}
	cfg.RateLimit = RateLimitConfig{RPS: rps, Burst: burst}

	if _, err := strconv.Atoi(cfg.Postgres.Port); err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_PORT: %q", cfg.Postgres.Port)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
