package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendNATS     = "nats"
)

type Config struct {
	App      AppConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	SQLite   SQLiteConfig
	NATS     NATSConfig
}

type AppConfig struct {
	AppName     string `env:"APP_NAME" envDefault:"elo-sync"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
}

type StoreConfig struct {
	Backend       string `env:"ELO_BACKEND" envDefault:"memory"`
	Key           string `env:"ELO_STORE_KEY" envDefault:"loggedInUser"`
	DefaultRating int    `env:"ELO_DEFAULT_RATING" envDefault:"1200"`
	NoUserPolicy  string `env:"ELO_NO_USER_POLICY" envDefault:"transient"`
	TierPreset    string `env:"ELO_TIER_PRESET" envDefault:"standard"`
	TierFile      string `env:"ELO_TIER_FILE"`
	// Origin names this process on the change feed; random when empty.
	Origin string `env:"ELO_ORIGIN"`
}

type DatabaseConfig struct {
	URL        string `env:"DATABASE_URL"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBName     string `env:"DB_NAME"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBSSLMode  string `env:"DB_SSL_MODE" envDefault:"disable"`

	ConnectTimeout      time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`
	PoolMaxConns        int32         `env:"DB_POOL_MAX_CONNS"`
	PoolMinConns        int32         `env:"DB_POOL_MIN_CONNS"`
	PoolMaxConnLifetime time.Duration `env:"DB_POOL_MAX_CONN_LIFETIME"`
	PoolMaxConnIdleTime time.Duration `env:"DB_POOL_MAX_CONN_IDLE_TIME"`
	AutoMigrate         bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

type RedisConfig struct {
	URL      string `env:"REDIS_URL"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type SQLiteConfig struct {
	Path         string        `env:"ELO_SQLITE_PATH" envDefault:"elo.db"`
	PollInterval time.Duration `env:"ELO_SQLITE_POLL_INTERVAL" envDefault:"250ms"`
}

type NATSConfig struct {
	URL    string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	Bucket string `env:"ELO_NATS_BUCKET" envDefault:"elo"`
}

var (
	errMissingRequiredEnv = errors.New("missing required environment variables")
	errInvalidEnv         = errors.New("invalid environment variable")
)

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", errInvalidEnv, err)
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if !validBackend(cfg.Store.Backend) {
		return Config{}, fmt.Errorf("%w: ELO_BACKEND=%q", errInvalidEnv, cfg.Store.Backend)
	}
	if cfg.Store.DefaultRating < 0 {
		return Config{}, fmt.Errorf("%w: ELO_DEFAULT_RATING=%d", errInvalidEnv, cfg.Store.DefaultRating)
	}
	if cfg.SQLite.PollInterval <= 0 {
		return Config{}, fmt.Errorf("%w: ELO_SQLITE_POLL_INTERVAL=%s", errInvalidEnv, cfg.SQLite.PollInterval)
	}

	var missing []string
	switch cfg.Store.Backend {
	case BackendPostgres:
		if strings.TrimSpace(cfg.Database.URL) == "" {
			if strings.TrimSpace(cfg.Database.DBName) == "" {
				missing = append(missing, "DB_NAME")
			}
			if strings.TrimSpace(cfg.Database.DBUser) == "" {
				missing = append(missing, "DB_USER")
			}
		}
	case BackendSQLite:
		if strings.TrimSpace(cfg.SQLite.Path) == "" {
			missing = append(missing, "ELO_SQLITE_PATH")
		}
	case BackendNATS:
		if strings.TrimSpace(cfg.NATS.Bucket) == "" {
			missing = append(missing, "ELO_NATS_BUCKET")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}

	return cfg, nil
}

func validBackend(b string) bool {
	switch b {
	case BackendMemory, BackendRedis, BackendPostgres, BackendSQLite, BackendNATS:
		return true
	}
	return false
}

// DSN prefers DATABASE_URL and falls back to the DB_* parts.
func (c DatabaseConfig) DSN() string {
	if u := strings.TrimSpace(c.URL); u != "" {
		return u
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		strings.TrimSpace(c.DBHost),
		strings.TrimSpace(c.DBPort),
		strings.TrimSpace(c.DBUser),
		c.DBPassword,
		strings.TrimSpace(c.DBName),
		strings.TrimSpace(c.DBSSLMode),
	)
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", strings.TrimSpace(c.Host), strings.TrimSpace(c.Port))
}
