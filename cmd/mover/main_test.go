package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want mode
	}{
		{"1", modeOnce},
		{" 1\n", modeOnce},
		{"once", modeOnce},
		{"2", modeWatch},
		{"WATCH", modeWatch},
	}
	for _, tt := range tests {
		got, err := parseMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "3", "12", "move"} {
		_, err := parseMode(bad)
		assert.ErrorIs(t, err, ErrInvalidMode, bad)
	}
}

func TestOnceCommandMovesFiles(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "Downloads")
	dst := filepath.Join(root, "fireworks_images")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "fireworks_1.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("txt"), 0o644))

	t.Setenv("FIREWORKS_MOVER_SOURCE_DIR", src)
	t.Setenv("FIREWORKS_MOVER_DEST_DIR", dst)
	t.Setenv("FIREWORKS_LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"once"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Moved 1 file(s)")
	assert.FileExists(t, filepath.Join(dst, "fireworks_1.png"))
	assert.FileExists(t, filepath.Join(src, "notes.txt"))
}

func TestRootRejectsArguments(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"3"})
	assert.Error(t, cmd.Execute())
}
