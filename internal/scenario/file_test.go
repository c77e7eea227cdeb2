package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScriptFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadScriptFile_Scenes(t *testing.T) {
	path := writeScriptFile(t, `
duration: 12s
scenes:
  - A robot walks through a forest.
  - "  "
  - It finds a hidden door.
`)

	f, err := LoadScriptFile(path)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, f.Duration)
	assert.Equal(t, []string{"A robot walks through a forest.", "It finds a hidden door."}, f.Script().Texts())
}

func TestLoadScriptFile_Scenario(t *testing.T) {
	path := writeScriptFile(t, `
scenario: |
  Scène 1: Dawn over the sea.
  Scène 2: Boats leave the harbour.
`)

	f, err := LoadScriptFile(path)
	require.NoError(t, err)
	assert.Zero(t, f.Duration)
	assert.Equal(t, 2, f.Script().Len())
}

func TestLoadScriptFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no scenes", "duration: 10s\n"},
		{"unlabelled scenario", "scenario: just some text\n"},
		{"negative duration", "duration: -1s\nscenes: [a]\n"},
		{"bad yaml", "scenes: [a\n"},
		{"bad duration", "duration: soon\nscenes: [a]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScriptFile(writeScriptFile(t, tt.content))
			require.ErrorIs(t, err, ErrInvalidScriptFile)
		})
	}
}

func TestLoadScriptFile_Missing(t *testing.T) {
	_, err := LoadScriptFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidScriptFile)
}
