package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the error monitoring server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	SMTP     SMTPConfig
	Notify   NotifyConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	RequestsPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	// JWTSecret verifies bearer tokens issued by the identity service.
	// Tokens are never minted here.
	JWTSecret         string
	IngestKeyRequired bool
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type NotifyConfig struct {
	// Mode selects the dispatcher: "smtp" sends real mail, "log" only logs.
	Mode string
	// AdminAddress is the single administrative fallback recipient used
	// whenever ownership cannot be resolved.
	AdminAddress string
	// SystemUserID owns alerts whose source error has no resolvable
	// application.
	SystemUserID    int64
	DispatchTimeout time.Duration
}

var validNotifyModes = map[string]bool{
	"smtp": true,
	"log":  true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("ERRMON_PORT", 8080),
			Env:            envString("ERRMON_ENV", "development"),
			RequestsPerMin: envInt("ERRMON_REQUESTS_PER_MIN", 120),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("ERRMON_JWT_SECRET"),
			IngestKeyRequired: envBool("ERRMON_INGEST_KEY_REQUIRED", false),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envString("SMTP_FROM", "noreply@errormonitoring.com"),
			Timeout:  envDuration("SMTP_TIMEOUT", 15*time.Second),
		},
		Notify: NotifyConfig{
			Mode:            envString("ERRMON_NOTIFY_MODE", "log"),
			AdminAddress:    envString("ERRMON_ADMIN_ADDRESS", "admin@errormonitoring.com"),
			SystemUserID:    int64(envInt("ERRMON_SYSTEM_USER_ID", 1)),
			DispatchTimeout: envDuration("ERRMON_DISPATCH_TIMEOUT", 10*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("ERRMON_JWT_SECRET is required")
	}

	if !validNotifyModes[c.Notify.Mode] {
		return fmt.Errorf("ERRMON_NOTIFY_MODE must be one of smtp, log; got %q", c.Notify.Mode)
	}

	if c.Notify.Mode == "smtp" && c.SMTP.Host == "" {
		return fmt.Errorf("SMTP_HOST is required when ERRMON_NOTIFY_MODE is smtp")
	}

	if c.Notify.AdminAddress == "" {
		return fmt.Errorf("ERRMON_ADMIN_ADDRESS must not be empty")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
