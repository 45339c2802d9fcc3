package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Environment selects which upstream base URLs are used
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvDevelopment Environment = "dev"
)

// Production and development upstream bases. In development the
// requests go through the local proxy routes served by the HTTP service.
const (
	DefaultStatsBaseURL = "https://api.steampowered.com/"
	DefaultStoreBaseURL = "https://store.steampowered.com/api/"
	DevStatsBaseURL     = "http://localhost:8080/steam-api/"
	DevStoreBaseURL     = "http://localhost:8080/steam-store/api/"
)

// Config is built once at start and passed down; core code never reads the environment itself
type Config struct {
	Env               Environment
	StatsBaseURL      string
	StoreBaseURL      string
	APIKey            string
	Locale            string
	Region            string
	FreeLabel         string
	NotAvailableLabel string
	Timeout           time.Duration
	RankingTTL        time.Duration
	ResultTTL         time.Duration
	Concurrency       int
	BatchDelay        time.Duration
	DBPath            string
	RedisAddr         string
	OutDir            string
	Listen            string
	Seed              uint64
}

// fileConfig mirrors Config for JSON files, durations are strings like "5m"
type fileConfig struct {
	Env               string `json:"env"`
	StatsBaseURL      string `json:"stats_base_url"`
	StoreBaseURL      string `json:"store_base_url"`
	APIKey            string `json:"api_key"`
	Locale            string `json:"locale"`
	Region            string `json:"region"`
	FreeLabel         string `json:"free_label"`
	NotAvailableLabel string `json:"not_available_label"`
	Timeout           string `json:"timeout"`
	RankingTTL        string `json:"ranking_ttl"`
	ResultTTL         string `json:"result_ttl"`
	Concurrency       int    `json:"concurrency"`
	BatchDelay        string `json:"batch_delay"`
	DBPath            string `json:"db_path"`
	RedisAddr         string `json:"redis_addr"`
	OutDir            string `json:"out_dir"`
	Listen            string `json:"listen"`
	Seed              uint64 `json:"seed"`
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Env:               EnvProduction,
		StatsBaseURL:      DefaultStatsBaseURL,
		StoreBaseURL:      DefaultStoreBaseURL,
		Locale:            "english",
		Region:            "US",
		FreeLabel:         "Free",
		NotAvailableLabel: "N/A",
		Timeout:           10 * time.Second,
		RankingTTL:        5 * time.Minute,
		ResultTTL:         10 * time.Minute,
		Concurrency:       5,
		BatchDelay:        200 * time.Millisecond,
		OutDir:            ".",
		Listen:            ":8080",
	}
}

// loadConfigFromFile overlays the values set in a JSON file onto cfg.
// On error cfg is left unchanged.
func loadConfigFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	// Overlay onto a copy so a bad value leaves cfg untouched
	next := *cfg
	if fc.Env != "" {
		next.applyEnvironment(Environment(fc.Env))
	}
	overlayString(&next.StatsBaseURL, fc.StatsBaseURL)
	overlayString(&next.StoreBaseURL, fc.StoreBaseURL)
	overlayString(&next.APIKey, fc.APIKey)
	overlayString(&next.Locale, fc.Locale)
	overlayString(&next.Region, fc.Region)
	overlayString(&next.FreeLabel, fc.FreeLabel)
	overlayString(&next.NotAvailableLabel, fc.NotAvailableLabel)
	overlayString(&next.DBPath, fc.DBPath)
	overlayString(&next.RedisAddr, fc.RedisAddr)
	overlayString(&next.OutDir, fc.OutDir)
	overlayString(&next.Listen, fc.Listen)
	if fc.Concurrency != 0 {
		next.Concurrency = fc.Concurrency
	}
	if fc.Seed != 0 {
		next.Seed = fc.Seed
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"timeout", fc.Timeout, &next.Timeout},
		{"ranking_ttl", fc.RankingTTL, &next.RankingTTL},
		{"result_ttl", fc.ResultTTL, &next.ResultTTL},
		{"batch_delay", fc.BatchDelay, &next.BatchDelay},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
		*d.dst = parsed
	}

	*cfg = next
	return nil
}

func overlayString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// applyEnvironment switches the base URLs for the given environment
func (c *Config) applyEnvironment(env Environment) {
	c.Env = env
	switch env {
	case EnvDevelopment:
		c.StatsBaseURL = DevStatsBaseURL
		c.StoreBaseURL = DevStoreBaseURL
	default:
		c.Env = EnvProduction
		c.StatsBaseURL = DefaultStatsBaseURL
		c.StoreBaseURL = DefaultStoreBaseURL
	}
}

// LoadConfig builds the configuration with priority:
// 1. Defaults
// 2. Local JSON file (if specified)
// 3. STEAM_API_KEY environment variable, used only when the file sets no key
// Flags are applied on top by the caller.
func LoadConfig(configPath string) Config {
	cfg := DefaultConfig()

	if configPath != "" {
		slog.Debug("Loading config from local file", "path", configPath)
		if err := loadConfigFromFile(configPath, &cfg); err != nil {
			slog.Warn("Failed to load local config, using defaults", "error", err)
		} else {
			slog.Info("Successfully loaded config from local file", "path", configPath)
		}
	}

	if key := os.Getenv("STEAM_API_KEY"); key != "" && cfg.APIKey == "" {
		cfg.APIKey = key
	}

	return cfg
}

// Validate checks the values the core depends on
func (c Config) Validate() error {
	var errs []error
	if !strings.HasSuffix(c.StatsBaseURL, "/") || !strings.HasSuffix(c.StoreBaseURL, "/") {
		errs = append(errs, errors.New("base URLs must end with a slash"))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.RankingTTL <= 0 || c.ResultTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.BatchDelay < 0 {
		errs = append(errs, fmt.Errorf("batch delay must not be negative, got %s", c.BatchDelay))
	}
	return errors.Join(errs...)
}
