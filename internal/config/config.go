// internal/config/config.go
//
// Server configuration.
// Precedence (lowest first):
//  1. Defaults()
//  2. YAML file named by CONFIG_FILE (optional)
//  3. Environment variables
//
// main loads a .env file with godotenv before calling Load, so values from
// .env count as environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

type Config struct {
	Port      string `yaml:"port" env:"PORT"`
	AppEnv    string `yaml:"appEnv" env:"APP_ENV"`
	LogLevel  string `yaml:"logLevel" env:"LOG_LEVEL"`
	LogFormat string `yaml:"logFormat" env:"LOG_FORMAT"` // json | console

	StoreDriver string `yaml:"storeDriver" env:"STORE_DRIVER"`
	SQLitePath  string `yaml:"sqlitePath" env:"SQLITE_PATH"`
	DatabaseURL string `yaml:"databaseUrl" env:"DATABASE_URL"`
	RedisURL    string `yaml:"redisUrl" env:"REDIS_URL"`

	JWTSecret      string `yaml:"jwtSecret" env:"JWT_SECRET"`
	JWTExpiresDays int    `yaml:"jwtExpiresDays" env:"JWT_EXPIRES_DAYS"`
	CookieName     string `yaml:"cookieName" env:"COOKIE_NAME"`

	// Comma separated in the environment.
	ClientOrigins  []string      `yaml:"clientOrigins" env:"CLIENT_ORIGIN" envSeparator:","`
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"REQUEST_TIMEOUT"`

	MaxCommitAttempts int  `yaml:"maxCommitAttempts" env:"MAX_COMMIT_ATTEMPTS"`
	OwnerInRotation   bool `yaml:"ownerInRotation" env:"OWNER_IN_ROTATION"`
}

func Defaults() Config {
	return Config{
		Port:              "8080",
		AppEnv:            "development",
		LogLevel:          "info",
		LogFormat:         "json",
		StoreDriver:       DriverSQLite,
		SQLitePath:        "./data/andthen.db",
		JWTSecret:         "dev_secret_change_me",
		JWTExpiresDays:    14,
		CookieName:        "andthen_auth",
		ClientOrigins:     []string{"http://localhost:5173"},
		RequestTimeout:    15 * time.Second,
		MaxCommitAttempts: 3,
	}
}

// Load reads CONFIG_FILE (if set) and the process environment.
func Load() (Config, error) {
	return load(os.Getenv("CONFIG_FILE"), env.Options{})
}

func load(path string, opts env.Options) (Config, error) {
	cfg := Defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.MaxCommitAttempts < 1 {
		errs = append(errs, errors.New("MAX_COMMIT_ATTEMPTS must be positive"))
	}
	if c.JWTExpiresDays < 1 {
		errs = append(errs, errors.New("JWT_EXPIRES_DAYS must be positive"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Production() && c.JWTSecret == Defaults().JWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

func (c Config) Production() bool { return c.AppEnv == "production" }

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiresDays) * 24 * time.Hour
}
