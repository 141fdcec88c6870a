package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Store backends selectable at startup. The choice is explicit
// configuration; nothing else in the code inspects environment strings.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the service.
type Config struct {
	Store       string
	DatabaseURL string
	Port        string
	LogLevel    string

	// Paths of the two static fallback files. Both empty disables the
	// local fallback tier.
	DeviceMapPath  string
	DeviceDataPath string

	// Stock policy overrides. Zero values keep the stock package defaults.
	StockPlausibleMaxKg float64
	StockLowMaxKg       float64
	StockHighMinKg      float64
	DonationWindow      time.Duration
}

// Load loads configuration from environment variables. Validation problems
// are reported together rather than one at a time.
func Load() (*Config, error) {
	cfg := &Config{
		Store:          getEnvOrDefault("STORE", StorePostgres),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Port:           getEnvOrDefault("PORT", "8080"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		DeviceMapPath:  os.Getenv("FALLBACK_DEVICE_MAP"),
		DeviceDataPath: os.Getenv("FALLBACK_DEVICE_DATA"),
	}

	var errs error

	if cfg.Store != StorePostgres && cfg.Store != StoreMemory {
		errs = multierror.Append(errs, fmt.Errorf("STORE must be %q or %q, got %q",
			StorePostgres, StoreMemory, cfg.Store))
	}
	if cfg.Store == StorePostgres && cfg.DatabaseURL == "" {
		errs = multierror.Append(errs, fmt.Errorf("DATABASE_URL environment variable is required"))
	}
	if (cfg.DeviceMapPath == "") != (cfg.DeviceDataPath == "") {
		errs = multierror.Append(errs, fmt.Errorf("FALLBACK_DEVICE_MAP and FALLBACK_DEVICE_DATA must be set together"))
	}

	var err error
	if cfg.StockPlausibleMaxKg, err = getEnvFloat("STOCK_PLAUSIBLE_MAX_KG"); err != nil {
		errs = multierror.Append(errs, err)
	}
	if cfg.StockLowMaxKg, err = getEnvFloat("STOCK_LOW_MAX_KG"); err != nil {
		errs = multierror.Append(errs, err)
	}
	if cfg.StockHighMinKg, err = getEnvFloat("STOCK_HIGH_MIN_KG"); err != nil {
		errs = multierror.Append(errs, err)
	}
	if cfg.DonationWindow, err = getEnvDuration("DONATION_WINDOW"); err != nil {
		errs = multierror.Append(errs, err)
	}

	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, raw)
	}
	return v, nil
}

func getEnvDuration(key string) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 24h, got %q", key, raw)
	}
	return v, nil
}
