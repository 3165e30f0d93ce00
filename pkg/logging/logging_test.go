package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "production", "debug")

	l := Component(logger, "session")
	l.Info().Str("user_id", "u1").Msg("logged in")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "session", entry["component"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "logged in", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "production", "warn")

	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewWithWriter_UnknownLevelDefaultsToInfo(t *testing.T) {
	logger := NewWithWriter(&bytes.Buffer{}, "production", "loud")
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNewWithWriter_DevelopmentIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "development", "info")

	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
