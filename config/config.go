// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/fundwise/fundsheet/store"
)

// Settings carries everything the server needs to start.
type Settings struct {
	// SpreadsheetID is the remote document holding every table.
	SpreadsheetID string

	// Credentials is either an inline service-account JSON blob or a
	// path to a key file. Empty means unauthenticated (local emulator).
	Credentials string

	// StaticToken, when set, bypasses the service-account exchange.
	StaticToken string

	BaseURL        string
	CacheTTL       time.Duration
	MaxConnections int
	Retry          store.RetryConfig

	Port           int
	AllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// Defaults returns the settings the service runs with when the
// environment is silent.
func Defaults() Settings {
	return Settings{
		CacheTTL:       5 * time.Minute,
		MaxConnections: 10,
		Retry:          store.DefaultRetryConfig(),
		Port:           8000,
		AllowedOrigins: []string{"*"},
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// FromEnv loads settings, applying defaults for unset variables.
func FromEnv() (Settings, error) {
	s := Defaults()
	s.SpreadsheetID = os.Getenv("SPREADSHEET_ID")
	s.Credentials = os.Getenv("GOOGLE_CREDENTIALS")
	s.StaticToken = os.Getenv("STATIC_TOKEN")
	s.BaseURL = os.Getenv("SHEETS_BASE_URL")

	var err error
	if s.CacheTTL, err = envSeconds("CACHE_TTL_SECONDS", s.CacheTTL); err != nil {
		return s, err
	}
	if s.MaxConnections, err = envInt("MAX_CONNECTIONS", s.MaxConnections); err != nil {
		return s, err
	}
	if s.Retry.MaxRetries, err = envInt("MAX_RETRIES", s.Retry.MaxRetries); err != nil {
		return s, err
	}
	if s.Retry.BaseDelay, err = envSeconds("RETRY_BASE_DELAY_SECONDS", s.Retry.BaseDelay); err != nil {
		return s, err
	}
	if s.Retry.MaxDelay, err = envSeconds("RETRY_MAX_DELAY_SECONDS", s.Retry.MaxDelay); err != nil {
		return s, err
	}
	if s.Port, err = envInt("PORT", s.Port); err != nil {
		return s, err
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		s.AllowedOrigins = splitCSV(origins)
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		s.LogLevel = lvl
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		s.LogFormat = format
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks the loaded settings.
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.SpreadsheetID, validation.Required),
		validation.Field(&s.MaxConnections, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&s.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&s.CacheTTL, validation.Required, validation.Min(time.Second)),
	)
}

func envInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func envSeconds(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return time.Duration(n) * time.Second, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
