package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "sheet-1")

	s, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", s.SpreadsheetID)
	assert.Equal(t, 5*time.Minute, s.CacheTTL)
	assert.Equal(t, 10, s.MaxConnections)
	assert.Equal(t, 3, s.Retry.MaxRetries)
	assert.Equal(t, 8000, s.Port)
	assert.Equal(t, []string{"*"}, s.AllowedOrigins)
	assert.Equal(t, "info", s.LogLevel)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "sheet-1")
	t.Setenv("CACHE_TTL_SECONDS", "60")
	t.Setenv("MAX_CONNECTIONS", "4")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	s, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, s.CacheTTL)
	assert.Equal(t, 4, s.MaxConnections)
	assert.Equal(t, 5, s.Retry.MaxRetries)
	assert.Equal(t, 9090, s.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, s.AllowedOrigins)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestFromEnvRejectsMissingSpreadsheet(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "sheet-1")
	t.Setenv("PORT", "not-a-number")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "PORT")
}

func TestValidateBounds(t *testing.T) {
	s := Defaults()
	s.SpreadsheetID = "sheet-1"
	require.NoError(t, s.Validate())

	s.MaxConnections = 0
	assert.Error(t, s.Validate())

	s = Defaults()
	s.SpreadsheetID = "sheet-1"
	s.Port = 70000
	assert.Error(t, s.Validate())
}
