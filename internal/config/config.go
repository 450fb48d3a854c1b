// Package config handles Slotwise configuration.
//
// Precedence (low -> high): defaults, YAML file, environment (SLOTWISE_ prefix).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration
type Config struct {
	// Paths / server
	DataDir  string `koanf:"data_dir"`
	Addr     string `koanf:"addr"`
	LogLevel string `koanf:"log_level"`

	// Calendar store selection: "google", "ics" or "memory"
	Store      string `koanf:"store"`
	CalendarID string `koanf:"calendar_id"`
	ICSPath    string `koanf:"ics_path"`

	// Scheduling policy
	Timezone               string `koanf:"timezone"`
	DefaultDurationMinutes int    `koanf:"default_duration_minutes"`
	LookaheadDays          int    `koanf:"lookahead_days"`
	ConflictAlternatives   int    `koanf:"conflict_alternatives_count"`
	WorkdayStartHour       int    `koanf:"workday_start_hour"`
	WorkdayEndHour         int    `koanf:"workday_end_hour"`
	StoreTimeoutSeconds    int    `koanf:"store_timeout_seconds"`

	// Preference learning
	RecencyHalfLifeDays    float64 `koanf:"preference_recency_half_life_days"`
	HistoryWindowDays      int     `koanf:"history_window_days"`
	RebuildIntervalMinutes int     `koanf:"preference_rebuild_interval_minutes"`
	HourWeight             float64 `koanf:"hour_weight"`
	WeekdayWeight          float64 `koanf:"weekday_weight"`
	DurationWeight         float64 `koanf:"duration_weight"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir:  filepath.Join(home, ".slotwise"),
		Addr:     ":8080",
		LogLevel: "info",

		Store:      "memory",
		CalendarID: "primary",

		Timezone:               "Local",
		DefaultDurationMinutes: 30,
		LookaheadDays:          7,
		ConflictAlternatives:   3,
		WorkdayStartHour:       9,
		WorkdayEndHour:         18,
		StoreTimeoutSeconds:    10,

		RecencyHalfLifeDays:    30,
		HistoryWindowDays:      90,
		RebuildIntervalMinutes: 60,
		HourWeight:             0.5,
		WeekdayWeight:          0.3,
		DurationWeight:         0.2,
	}
}

// Load builds a Config by layering defaults, an optional YAML file, and
// environment variables. An empty path falls back to SLOTWISE_CONFIG.
func Load(path string) (*Config, error) {
	cfg := *Default()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv("SLOTWISE_CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// SLOTWISE_LOOKAHEAD_DAYS -> lookahead_days, matching the koanf tags
	envProvider := env.Provider("SLOTWISE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "slotwise_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the planner cannot operate under
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.DefaultDurationMinutes <= 0 {
		return errors.New("default_duration_minutes must be positive")
	}
	if c.LookaheadDays <= 0 {
		return errors.New("lookahead_days must be positive")
	}
	if c.ConflictAlternatives < 0 {
		return errors.New("conflict_alternatives_count must not be negative")
	}
	if c.WorkdayStartHour < 0 || c.WorkdayEndHour > 24 || c.WorkdayStartHour >= c.WorkdayEndHour {
		return fmt.Errorf("invalid workday hours %d-%d", c.WorkdayStartHour, c.WorkdayEndHour)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured time zone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// DefaultDuration returns the default meeting duration
func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.DefaultDurationMinutes) * time.Minute
}

// StoreTimeout bounds a single calendar store call
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

// RebuildInterval is how often the preference profile is recomputed
func (c *Config) RebuildInterval() time.Duration {
	return time.Duration(c.RebuildIntervalMinutes) * time.Minute
}

// HistoryWindow is how far back preference learning looks
func (c *Config) HistoryWindow() time.Duration {
	return time.Duration(c.HistoryWindowDays) * 24 * time.Hour
}
