package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/agilewatch/agilewatch/internal/octopus"
)

// AppConfig is the process configuration, read from environment with
// sensible defaults.
type AppConfig struct {
	// Region is the UK distribution region rates are fetched for.
	Region octopus.Region

	// Upstream endpoints and product codes.
	RatesBaseURL   string
	AgileProduct   string
	TrackerProduct string
	CarbonBaseURL  string

	// RefreshInterval controls how often the fetch-and-index pipeline runs.
	RefreshInterval time.Duration

	// HistoryDays is the lookback window for the historical shape curve.
	HistoryDays int

	// Fetch resilience knobs.
	MaxRetryAttempts int
	PageDelay        time.Duration
	HTTPTimeout      time.Duration

	Port string
}

// Load reads configuration from environment, after best-effort loading a
// .env file.
func Load() (*AppConfig, error) {
	// Missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	region, err := octopus.ParseRegion(getenvDefault("OCTOPUS_REGION", string(octopus.DefaultRegion)))
	if err != nil {
		return nil, err
	}
	cfg.Region = region

	defaults := octopus.NewConfig(region)
	cfg.RatesBaseURL = getenvDefault("OCTOPUS_BASE_URL", defaults.BaseURL)
	cfg.AgileProduct = getenvDefault("AGILE_PRODUCT", defaults.AgileProduct)
	cfg.TrackerProduct = getenvDefault("TRACKER_PRODUCT", defaults.TrackerProduct)
	cfg.CarbonBaseURL = getenvDefault("CARBON_BASE_URL", "https://api.carbonintensity.org.uk")

	interval, err := time.ParseDuration(getenvDefault("REFRESH_INTERVAL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = interval

	cfg.HistoryDays = getenvInt("HISTORY_DAYS", 7)
	cfg.MaxRetryAttempts = getenvInt("MAX_RETRY_ATTEMPTS", 10)

	pageDelay, err := time.ParseDuration(getenvDefault("PAGE_DELAY", "5ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAGE_DELAY: %w", err)
	}
	cfg.PageDelay = pageDelay

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// OctopusConfig builds the URL configuration for the rates upstream.
func (c *AppConfig) OctopusConfig() octopus.Config {
	return octopus.Config{
		BaseURL:        c.RatesBaseURL,
		AgileProduct:   c.AgileProduct,
		TrackerProduct: c.TrackerProduct,
		Region:         c.Region,
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
