package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/backend/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "production", config.LogConfig{Level: "info", Format: "json"})

	logger.Debug("hidden")
	logger.Info("search finished", "retailer", "Screwfix", "results", 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "search finished", entry["msg"])
	assert.Equal(t, "Screwfix", entry["retailer"])
	assert.EqualValues(t, 3, entry["results"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewWithWriter_Development(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "development", config.LogConfig{Level: "debug", Format: "text"})

	logger.Debug("session warmed", "retailer", "Toolstation")
	assert.Contains(t, buf.String(), "session warmed")
	assert.Contains(t, buf.String(), "Toolstation")
}
