package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Values come from built-in
// defaults, then an optional YAML file, then TRANSITNOW_* environment
// variables, then command-line flags.
type Config struct {
	Port     int    `yaml:"port" validate:"gt=0,lt=65536"`
	GTFSPath string `yaml:"gtfsPath" validate:"required"`
	GTFSURL  string `yaml:"gtfsURL" validate:"omitempty,url"`

	VehiclePositionsURL string        `yaml:"vehiclePositionsURL" validate:"omitempty,url"`
	TripUpdatesURL      string        `yaml:"tripUpdatesURL" validate:"omitempty,url"`
	PollInterval        time.Duration `yaml:"pollInterval" validate:"gt=0"`
	FetchTimeout        time.Duration `yaml:"fetchTimeout" validate:"gt=0"`

	// Timezone for time-of-day arithmetic. Empty uses agency.txt, then local time.
	Timezone string `yaml:"timezone"`

	NATSURL     string `yaml:"natsURL" validate:"omitempty,url"`
	NATSSubject string `yaml:"natsSubject"`

	LogLevel string `yaml:"logLevel" validate:"oneof=debug info warn error"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:         8080,
		GTFSPath:     "./data/gtfs.zip",
		PollInterval: 5 * time.Second,
		FetchTimeout: 10 * time.Second,
		NATSSubject:  "transitnow.vehicles",
		LogLevel:     "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (if non-empty),
// and the environment. A .env file in the working directory is loaded into
// the environment first when present. Call Validate after applying flags.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path == "" {
		path = os.Getenv("TRANSITNOW_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envInt("TRANSITNOW_PORT", c.Port)
	c.GTFSPath = envStr("TRANSITNOW_GTFS_PATH", c.GTFSPath)
	c.GTFSURL = envStr("TRANSITNOW_GTFS_URL", c.GTFSURL)
	c.VehiclePositionsURL = envStr("TRANSITNOW_VEHICLE_POSITIONS_URL", c.VehiclePositionsURL)
	c.TripUpdatesURL = envStr("TRANSITNOW_TRIP_UPDATES_URL", c.TripUpdatesURL)
	c.PollInterval = envDuration("TRANSITNOW_POLL_INTERVAL", c.PollInterval)
	c.FetchTimeout = envDuration("TRANSITNOW_FETCH_TIMEOUT", c.FetchTimeout)
	c.Timezone = envStr("TRANSITNOW_TIMEZONE", c.Timezone)
	c.NATSURL = envStr("TRANSITNOW_NATS_URL", c.NATSURL)
	c.NATSSubject = envStr("TRANSITNOW_NATS_SUBJECT", c.NATSSubject)
	c.LogLevel = strings.ToLower(envStr("TRANSITNOW_LOG_LEVEL", c.LogLevel))
}

// Validate checks field constraints and that Timezone names a known zone.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid config: timezone: %w", err)
		}
	}
	return nil
}

// Location resolves the configured timezone, falling back to the given
// zone name (typically the agency timezone) and then to local time.
func (c *Config) Location(fallback string) *time.Location {
	for _, name := range []string{c.Timezone, fallback} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.Local
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
