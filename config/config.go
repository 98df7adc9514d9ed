package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the client needs from the environment.
type Config struct {
	BaseURL       string        // root of the topmeals REST API
	SessionFile   string        // persisted session blob location
	HTTPTimeout   time.Duration // per-request timeout
	SlowThreshold time.Duration // delay before a fetch is reported as slow
	PageSize      int           // results per page for list endpoints
}

const (
	defaultBaseURL       = "http://localhost:8080"
	defaultHTTPTimeout   = 10 * time.Second
	defaultSlowThreshold = 500 * time.Millisecond
	defaultPageSize      = 10
)

// Load reads configuration from the environment. A .env file is picked up
// when present but is not required.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BaseURL:       defaultBaseURL,
		SessionFile:   defaultSessionFile(),
		HTTPTimeout:   defaultHTTPTimeout,
		SlowThreshold: defaultSlowThreshold,
		PageSize:      defaultPageSize,
	}

	if v := os.Getenv("TOPMEALS_API_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("TOPMEALS_SESSION_FILE"); v != "" {
		cfg.SessionFile = v
	}
	if v := os.Getenv("TOPMEALS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("TOPMEALS_TIMEOUT: %w", err)
		}
		cfg.HTTPTimeout = d
	}
	if v := os.Getenv("TOPMEALS_SLOW_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("TOPMEALS_SLOW_THRESHOLD: %w", err)
		}
		cfg.SlowThreshold = d
	}
	if v := os.Getenv("TOPMEALS_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("TOPMEALS_PAGE_SIZE: must be a positive integer, got %q", v)
		}
		cfg.PageSize = n
	}

	return cfg, nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "topmeals", "session.json")
}
