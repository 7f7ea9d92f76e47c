package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fireworks-assets", cfg.ServiceName)
	assert.NotEmpty(t, cfg.InstanceID)
	assert.Equal(t, ":8082", cfg.Server.HTTPAddr)
	assert.Equal(t, "127.0.0.1:8083", cfg.Server.WSAddr)
	assert.Equal(t, ".", cfg.Server.StaticRoot)
	assert.Equal(t, "saved_images", cfg.Server.OutputDir)
	assert.Equal(t, int64(64<<20), cfg.Server.MaxMessageSize)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "fireworks*.png", cfg.Mover.Pattern)
	assert.Equal(t, 2*time.Second, cfg.Mover.PollInterval)
	assert.Equal(t, "Downloads", filepath.Base(cfg.Mover.SourceDir))
	assert.Equal(t, "fireworks_images", filepath.Base(cfg.Mover.DestDir))

	assert.False(t, cfg.Archive.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FIREWORKS_HTTP_ADDR", ":9000")
	t.Setenv("FIREWORKS_OUTPUT_DIR", "frames")
	t.Setenv("FIREWORKS_MOVER_POLL_INTERVAL", "250ms")
	t.Setenv("FIREWORKS_MOVER_PATTERN", "shot*.jpg")
	t.Setenv("FIREWORKS_ARCHIVE_BUCKET", "assets-journal")
	t.Setenv("FIREWORKS_ARCHIVE_BATCH_SIZE", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, "frames", cfg.Server.OutputDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Mover.PollInterval)
	assert.Equal(t, "shot*.jpg", cfg.Mover.Pattern)
	assert.True(t, cfg.Archive.Enabled())
	assert.Equal(t, 7, cfg.Archive.BatchSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "FIREWORKS_MOVER_POLL_INTERVAL", "soon"},
		{"zero interval", "FIREWORKS_MOVER_POLL_INTERVAL", "0s"},
		{"bad pattern", "FIREWORKS_MOVER_PATTERN", "fireworks[.png"},
		{"zero message size", "FIREWORKS_MAX_MESSAGE_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsBadArchiveSettingsOnlyWhenEnabled(t *testing.T) {
	t.Setenv("FIREWORKS_ARCHIVE_S3_RETRIES", "0")

	_, err := Load()
	require.NoError(t, err)

	t.Setenv("FIREWORKS_ARCHIVE_BUCKET", "assets-journal")
	_, err = Load()
	assert.Error(t, err)
}
