// Package config loads the tracker configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config holds all runtime settings.
type Config struct {
	// DatabasePath is the SQLite database file location.
	DatabasePath string `yaml:"database_path"`

	// ScrapeIntervalSeconds is the fixed pause between full sweeps. When zero,
	// a random interval up to MaxRandomIntervalSeconds is drawn each cycle.
	ScrapeIntervalSeconds    int `yaml:"scrape_interval_seconds"`
	MaxRandomIntervalSeconds int `yaml:"max_random_interval_seconds"`

	// JitterMinMS and JitterMaxMS bound the randomized pause between
	// per-product scrapes within one sweep.
	JitterMinMS int `yaml:"jitter_min_ms"`
	JitterMaxMS int `yaml:"jitter_max_ms"`

	// MinRequestGapMS is the per-host rate limit floor for outbound scrapes.
	MinRequestGapMS int `yaml:"min_request_gap_ms"`

	// DispatchAttempts is how many delivery attempts each webhook endpoint
	// gets before a notification is dropped.
	DispatchAttempts int `yaml:"dispatch_attempts"`

	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DatabasePath:             "data/pricewatch.db",
		ScrapeIntervalSeconds:    0,
		MaxRandomIntervalSeconds: 6 * 60 * 60,
		JitterMinMS:              500,
		JitterMaxMS:              3000,
		MinRequestGapMS:          2000,
		DispatchAttempts:         3,
		ListenAddr:               ":8080",
		LogLevel:                 "info",
	}
}

// Load reads the YAML file at path (skipped when path is empty or missing),
// applies environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file falls back to defaults plus env.
		case err != nil:
			return Config{}, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PRICEWATCH_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("PRICEWATCH_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PRICEWATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	envInt("PRICEWATCH_SCRAPE_INTERVAL_SECONDS", &cfg.ScrapeIntervalSeconds)
	envInt("PRICEWATCH_MAX_RANDOM_INTERVAL_SECONDS", &cfg.MaxRandomIntervalSeconds)
	envInt("PRICEWATCH_MIN_REQUEST_GAP_MS", &cfg.MinRequestGapMS)
	envInt("PRICEWATCH_DISPATCH_ATTEMPTS", &cfg.DispatchAttempts)
}

func envInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

func (c Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.ScrapeIntervalSeconds < 0 {
		return fmt.Errorf("scrape_interval_seconds must not be negative")
	}
	if c.ScrapeIntervalSeconds == 0 && c.MaxRandomIntervalSeconds <= 0 {
		return fmt.Errorf("max_random_interval_seconds must be positive when scrape_interval_seconds is 0")
	}
	if c.JitterMinMS < 0 || c.JitterMaxMS < c.JitterMinMS {
		return fmt.Errorf("jitter bounds invalid: min=%d max=%d", c.JitterMinMS, c.JitterMaxMS)
	}
	if c.DispatchAttempts < 1 {
		return fmt.Errorf("dispatch_attempts must be at least 1")
	}
	return nil
}

// ScrapeInterval returns the fixed sweep interval, zero when randomized.
func (c Config) ScrapeInterval() time.Duration {
	return time.Duration(c.ScrapeIntervalSeconds) * time.Second
}

// MaxRandomInterval returns the upper bound for randomized sweep intervals.
func (c Config) MaxRandomInterval() time.Duration {
	return time.Duration(c.MaxRandomIntervalSeconds) * time.Second
}

// JitterMin returns the lower bound of the inter-product pause.
func (c Config) JitterMin() time.Duration {
	return time.Duration(c.JitterMinMS) * time.Millisecond
}

// JitterMax returns the upper bound of the inter-product pause.
func (c Config) JitterMax() time.Duration {
	return time.Duration(c.JitterMaxMS) * time.Millisecond
}

// MinRequestGap returns the per-host minimum spacing between scrape requests.
func (c Config) MinRequestGap() time.Duration {
	return time.Duration(c.MinRequestGapMS) * time.Millisecond
}
