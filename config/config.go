package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds kiosk client configuration.
type Config struct {
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"user_agent"`
	GPSTimeout       time.Duration `yaml:"gps_timeout"`
	GPSCache         time.Duration `yaml:"gps_cache"`
	AutoLogoutDelay  time.Duration `yaml:"auto_logout_delay"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	TokenFile        string        `yaml:"token_file"`
	CoverCacheSize   int           `yaml:"cover_cache_size"`
	CoverParallelism int           `yaml:"cover_parallelism"`
	MaxLoanLimit     int           `yaml:"max_loan_limit"`
	AlertDays        int           `yaml:"alert_days"`
	LimitDays        int           `yaml:"limit_days"`
	RecentReturnDays int           `yaml:"recent_return_days"`
	Verbose          bool          `yaml:"verbose"`
}

// DefaultConfig returns conservative defaults; the limit values are stale
// placeholders until the remote config patch lands.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://library.example.com/api",
		Timeout:          10 * time.Second,
		UserAgent:        "go-library-kiosk/1.0",
		GPSTimeout:       8 * time.Second,
		GPSCache:         30 * time.Second,
		AutoLogoutDelay:  2 * time.Second,
		MetricsAddr:      "",
		TokenFile:        "",
		CoverCacheSize:   64,
		CoverParallelism: 2,
		MaxLoanLimit:     5,
		AlertDays:        7,
		LimitDays:        3,
		RecentReturnDays: 3,
		Verbose:          false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.GPSTimeout <= 0 {
		return fmt.Errorf("gps timeout must be positive")
	}
	if c.GPSCache < 0 {
		return fmt.Errorf("gps cache cannot be negative")
	}
	if c.AutoLogoutDelay < 0 {
		return fmt.Errorf("auto logout delay cannot be negative")
	}
	if c.CoverCacheSize <= 0 {
		return fmt.Errorf("cover cache size must be positive")
	}
	if c.CoverParallelism <= 0 {
		return fmt.Errorf("cover parallelism must be positive")
	}
	if c.MaxLoanLimit <= 0 {
		return fmt.Errorf("max loan limit must be positive")
	}
	if c.AlertDays < 0 {
		return fmt.Errorf("alert days cannot be negative")
	}
	if c.LimitDays < 0 {
		return fmt.Errorf("limit days cannot be negative")
	}
	if c.LimitDays > c.AlertDays {
		return fmt.Errorf("limit days (%d) cannot exceed alert days (%d)", c.LimitDays, c.AlertDays)
	}
	if c.RecentReturnDays < 0 {
		return fmt.Errorf("recent return days cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
