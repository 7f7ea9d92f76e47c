package logger

import (
	"bytes"
	"testing"

	"fireworks-assets/internal/config"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesJSONWithCommonFields(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	log := initWith(config.Config{
		ServiceName: "fireworks-assets",
		InstanceID:  "host-1",
		LogLevel:    "warn",
	}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("filename", "x.png").Msg("visible")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "visible", line["message"])
	assert.Equal(t, "fireworks-assets", line["service"])
	assert.Equal(t, "host-1", line["instance"])
	assert.Equal(t, "x.png", line["filename"])
}

func TestInitFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	log := initWith(config.Config{LogLevel: "loud"}, &buf)

	log.Debug().Msg("debug")
	assert.Zero(t, buf.Len())
	log.Info().Msg("info")
	assert.NotZero(t, buf.Len())
}
