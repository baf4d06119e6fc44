package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the DialMap server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Telephony TelephonyConfig
	Discovery DiscoveryConfig
}

type ServerConfig struct {
	Port int
	Env  string
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

// TelephonyConfig points at the external telephony backend that places real
// calls. BackendURL may be empty when only text/simulated entry points are
// used; the session factory rejects real entry points without it.
type TelephonyConfig struct {
	BackendURL string
	Timeout    time.Duration
}

type DiscoveryConfig struct {
	MaxDepth int
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("DIALMAP_PORT", 8080),
			Env:  envString("DIALMAP_ENV", "development"),
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
		Telephony: TelephonyConfig{
			BackendURL: os.Getenv("TELEPHONY_BACKEND_URL"),
			Timeout:    envDuration("TELEPHONY_TIMEOUT", 60*time.Second),
		},
		Discovery: DiscoveryConfig{
			MaxDepth: envInt("DISCOVERY_MAX_DEPTH", 5),
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

	if c.Telephony.BackendURL != "" &&
		!strings.HasPrefix(c.Telephony.BackendURL, "http://") &&
		!strings.HasPrefix(c.Telephony.BackendURL, "https://") {
		return fmt.Errorf("TELEPHONY_BACKEND_URL must start with http:// or https://, got %q", c.Telephony.BackendURL)
	}

	if c.Discovery.MaxDepth < 1 {
		return fmt.Errorf("DISCOVERY_MAX_DEPTH must be at least 1, got %d", c.Discovery.MaxDepth)
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
