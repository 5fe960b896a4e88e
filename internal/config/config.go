// Package config loads process settings from the environment (optionally
// primed from a .env file) and the YAML provisioning seed.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/smartcity/signalctl/internal/domain"
)

var log = logrus.WithField("module", "config")

// Journal backends
const (
	JournalPostgres = "postgres"
	JournalMongo    = "mongo"
	JournalMemory   = "memory"
)

// Config holds every process setting
type Config struct {
	Port       string
	EventsAddr string
	Env        string
	LogLevel   string

	JournalBackend string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string

	GreenWaveDuration    int
	PeakGreenDuration    int
	OffPeakGreenDuration int
	SpeedUnit            domain.SpeedUnit

	SeedFile string
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using system environment")
	}
	return FromEnv()
}

// FromEnv reads the environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		EventsAddr:     getEnv("EVENTS_ADDR", ":8081"),
		Env:            getEnv("GO_ENV", "development"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		JournalBackend: strings.ToLower(getEnv("JOURNAL_BACKEND", JournalMemory)),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "signalctl"),
		SeedFile:       getEnv("SEED_FILE", ""),
	}

	var err error
	if cfg.GreenWaveDuration, err = getEnvInt("GREEN_WAVE_DURATION", domain.DefaultPhaseDuration); err != nil {
		return nil, err
	}
	if cfg.PeakGreenDuration, err = getEnvInt("PEAK_GREEN_DURATION", 45); err != nil {
		return nil, err
	}
	if cfg.OffPeakGreenDuration, err = getEnvInt("OFFPEAK_GREEN_DURATION", 30); err != nil {
		return nil, err
	}
	if cfg.SpeedUnit, err = domain.ParseSpeedUnit(getEnv("SPEED_UNIT", "")); err != nil {
		return nil, fmt.Errorf("config: SPEED_UNIT: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	switch c.JournalBackend {
	case JournalPostgres, JournalMongo, JournalMemory:
	default:
		return fmt.Errorf("config: JOURNAL_BACKEND must be one of postgres, mongo, memory: got %q", c.JournalBackend)
	}
	for key, v := range map[string]int{
		"GREEN_WAVE_DURATION":    c.GreenWaveDuration,
		"PEAK_GREEN_DURATION":    c.PeakGreenDuration,
		"OFFPEAK_GREEN_DURATION": c.OffPeakGreenDuration,
	} {
		if v <= 0 {
			return fmt.Errorf("config: %s must be positive: got %d", key, v)
		}
	}
	return nil
}

// IsProduction reports whether GO_ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
