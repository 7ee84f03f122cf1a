package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBDriver        string
	DBHost          string
	DBPort          string
	DBUser          string
	DBPass          string
	DBName          string
	DBSSLMode       string
	SQLitePath      string
	JWTSecret       string
	TokenSecret     string
	Port            string
	Env             string
	LogLevel        string
	Timezone        string
	RealtimeEnabled bool
	RealtimeChannel string
}

func NewConfigFromEnv() (*Config, error) {
	realtimeEnabled, _ := strconv.ParseBool(getenv("REALTIME_ENABLED", "true"))

	cfg := &Config{
		DBDriver:        getenv("DB_DRIVER", "postgres"),
		DBHost:          getenv("DB_HOST", "localhost"),
		DBPort:          getenv("DB_PORT", "5432"),
		DBUser:          getenv("DB_USER", "postgres"),
		DBPass:          getenv("DB_PASSWORD", "postgres"),
		DBName:          getenv("DB_NAME", "campdb"),
		DBSSLMode:       getenv("DB_SSLMODE", "disable"),
		SQLitePath:      getenv("SQLITE_PATH", "camp.db"),
		JWTSecret:       getenv("JWT_SECRET", ""),
		TokenSecret:     getenv("TOKEN_SECRET", ""),
		Port:            getenv("PORT", "3000"),
		Env:             getenv("ENV", "development"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		Timezone:        getenv("TIMEZONE", "UTC"),
		RealtimeEnabled: realtimeEnabled,
		RealtimeChannel: getenv("REALTIME_CHANNEL", "registration_changes"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = cfg.JWTSecret
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, errors.New("DB_DRIVER must be postgres or sqlite")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, errors.New("TIMEZONE is not a valid IANA location")
	}

	return cfg, nil
}

// PostgresDSN builds the key/value DSN shared by GORM and the LISTEN/NOTIFY bridge.
func (c *Config) PostgresDSN() string {
	return "host=" + c.DBHost +
		" port=" + c.DBPort +
		" user=" + c.DBUser +
		" password=" + c.DBPass +
		" dbname=" + c.DBName +
		" sslmode=" + c.DBSSLMode
}

// Location returns the configured timezone; "today" on the console is resolved in it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getenv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
