package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collegovibe/internal/config"
)

func TestNew_JSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger
	defer func() { Logger = prev }()

	Logger = New(&buf, "json")
	l := WithComponent("relay")
	l.Info().Str("receiver", "bob").Msg("pushed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "relay", entry["component"])
	assert.Equal(t, "bob", entry["receiver"])
	assert.Equal(t, "pushed", entry["message"])
}

func TestInit_LevelAndFile(t *testing.T) {
	prevLevel := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prevLevel)

	path := filepath.Join(t.TempDir(), "app.log")
	closer, err := Init(config.LoggingConfig{Level: "WARN", Format: "json", OutputPath: path})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	prevLevel := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prevLevel)

	closer, err := Init(config.LoggingConfig{Level: "chatty", OutputPath: "stderr"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
