package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config opsdesk (HTTP API) configuration. Everything is env-driven; a .env
// file in the working directory is honored for local development.
type Config struct {
	HTTP struct {
		Addr string
	}

	Database DatabaseConfig

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Elastic struct {
		Addr  string
		Index string
	}

	Auth struct {
		// Secret verifies bearer tokens issued by the external login service.
		Secret string
	}

	Health struct {
		ProbeInterval time.Duration
		ProbeTimeout  time.Duration
	}

	Projector struct {
		Workers    int
		MaxBackoff time.Duration
	}

	Sweep struct {
		Interval time.Duration
	}

	Calendar CalendarConfig

	Log struct {
		Level  string
		Format string
	}
}

// DatabaseConfig Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN builds the lib/pq connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// CalendarConfig outbound calendar service (optional; empty Addr disables it).
type CalendarConfig struct {
	Addr       string
	CalendarID string
	Token      string
}

func Load() *Config {
	// Missing .env is fine; environment always wins.
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "opsdesk")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Elastic.Addr = getEnv("ELASTIC_ADDR", "http://localhost:9200")
	cfg.Elastic.Index = getEnv("ELASTIC_INDEX", "opsdesk")

	cfg.Auth.Secret = getEnv("AUTH_SECRET", "")

	cfg.Health.ProbeInterval = parseDuration(getEnv("HEALTH_PROBE_INTERVAL", "5s"), 5*time.Second)
	cfg.Health.ProbeTimeout = parseDuration(getEnv("HEALTH_PROBE_TIMEOUT", "2s"), 2*time.Second)

	cfg.Projector.Workers = parseInt(getEnv("PROJECTOR_WORKERS", "2"), 2)
	cfg.Projector.MaxBackoff = parseDuration(getEnv("PROJECTOR_MAX_BACKOFF", "30s"), 30*time.Second)

	cfg.Sweep.Interval = parseDuration(getEnv("SWEEP_INTERVAL", "10m"), 10*time.Minute)

	cfg.Calendar.Addr = getEnv("CALENDAR_ADDR", "")
	cfg.Calendar.CalendarID = getEnv("CALENDAR_ID", "")
	cfg.Calendar.Token = getEnv("CALENDAR_TOKEN", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
