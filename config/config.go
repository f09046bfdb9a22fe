// Package config loads environment-driven settings for the collector.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/solidangle/housemetrics/tariff"
)

const (
	defaultPort         = 8080
	defaultTimezone     = "America/Toronto"
	defaultMaxSampleAge = 24 * time.Hour
	defaultLogLevel     = "info"
)

// Config holds environment-driven settings for the collector.
type Config struct {
	DatabaseURL  string
	Port         int
	Timezone     string
	Holidays     []tariff.Date
	MaxSampleAge time.Duration
	LogLevel     string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:         defaultPort,
		Timezone:     defaultTimezone,
		Holidays:     tariff.DefaultHolidays,
		MaxSampleAge: defaultMaxSampleAge,
		LogLevel:     defaultLogLevel,
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	}

	if tz := strings.TrimSpace(os.Getenv("COLLECTOR_TZ")); tz != "" {
		cfg.Timezone = tz
	}

	if raw := strings.TrimSpace(os.Getenv("TOU_HOLIDAYS")); raw != "" {
		holidays, err := parseHolidays(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid TOU_HOLIDAYS: %w", err)
		}
		cfg.Holidays = holidays
	}

	if v := strings.TrimSpace(os.Getenv("MAX_SAMPLE_AGE")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid MAX_SAMPLE_AGE: %s", v)
		}
		cfg.MaxSampleAge = d
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	return cfg, nil
}

// parseHolidays parses a comma-separated list of MM-DD entries.
func parseHolidays(raw string) ([]tariff.Date, error) {
	parts := strings.Split(raw, ",")
	holidays := make([]tariff.Date, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		monthStr, dayStr, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("entry %q is not MM-DD", part)
		}
		month, err := strconv.Atoi(monthStr)
		if err != nil || month < 1 || month > 12 {
			return nil, fmt.Errorf("entry %q has a bad month", part)
		}
		day, err := strconv.Atoi(dayStr)
		if err != nil || day < 1 || day > 31 {
			return nil, fmt.Errorf("entry %q has a bad day", part)
		}
		holidays = append(holidays, tariff.Date{Month: time.Month(month), Day: day})
	}
	return holidays, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Location resolves the configured civil timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
