// Package config builds the station configuration from defaults, an
// optional YAML file, and environment variables, in that order of
// precedence. A .env file in the working directory is folded into the
// environment first so kiosk deployments can ship one flat file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the gatecheck binary needs to run one station.
type Config struct {
	// HTTPAddr is the listen address for the local observability surface.
	HTTPAddr string `yaml:"http_addr"`
	// DatabasePath is the SQLite file backing the cache and queues.
	DatabasePath string `yaml:"database"`
	// RemoteURL is the base URL of the registration backend.
	RemoteURL string `yaml:"remote_url"`
	// DeviceKey authenticates this station to the backend.
	DeviceKey string `yaml:"device_key"`
	// EventID selects the event whose credentials this station serves.
	EventID string `yaml:"event"`
	// CheckinType is the station role: MAIN, DINING or SESSION.
	CheckinType string `yaml:"checkin_type"`
	// SessionID is required when CheckinType is SESSION.
	SessionID string `yaml:"session"`

	Cooldown        time.Duration `yaml:"cooldown"`
	LogCap          int           `yaml:"log_cap"`
	MaxSyncAttempts int           `yaml:"max_sync_attempts"`
	ProbeInterval   time.Duration `yaml:"probe_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// Load assembles the configuration. yamlPath may be empty; a missing
// .env file is not an error.
func Load(yamlPath string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:        ":8090",
		DatabasePath:    "gatecheck.db",
		RemoteURL:       "http://127.0.0.1:8080",
		CheckinType:     "MAIN",
		Cooldown:        3 * time.Second,
		LogCap:          200,
		MaxSyncAttempts: 10,
		ProbeInterval:   15 * time.Second,
		RequestTimeout:  5 * time.Second,
	}

	if yamlPath != "" {
		if err := applyYAML(&cfg, yamlPath); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.CheckinType {
	case "MAIN", "DINING":
	case "SESSION":
		if c.SessionID == "" {
			return fmt.Errorf("checkin type SESSION requires a session id")
		}
	default:
		return fmt.Errorf("invalid checkin type %q: must be MAIN, DINING or SESSION", c.CheckinType)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative")
	}
	return nil
}

func applyYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenv("GATECHECK_HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabasePath = getenv("GATECHECK_DB", cfg.DatabasePath)
	cfg.RemoteURL = getenv("GATECHECK_REMOTE_URL", cfg.RemoteURL)
	cfg.DeviceKey = getenv("GATECHECK_DEVICE_KEY", cfg.DeviceKey)
	cfg.EventID = getenv("GATECHECK_EVENT", cfg.EventID)
	cfg.CheckinType = getenv("GATECHECK_CHECKIN_TYPE", cfg.CheckinType)
	cfg.SessionID = getenv("GATECHECK_SESSION", cfg.SessionID)
	cfg.Cooldown = getenvDuration("GATECHECK_COOLDOWN", cfg.Cooldown)
	cfg.LogCap = getenvInt("GATECHECK_LOG_CAP", cfg.LogCap)
	cfg.MaxSyncAttempts = getenvInt("GATECHECK_MAX_SYNC_ATTEMPTS", cfg.MaxSyncAttempts)
	cfg.ProbeInterval = getenvDuration("GATECHECK_PROBE_INTERVAL", cfg.ProbeInterval)
	cfg.RequestTimeout = getenvDuration("GATECHECK_REQUEST_TIMEOUT", cfg.RequestTimeout)
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
