package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"MEDIA_ROOT", "TOPICS_DIR", "PLAYER_PORT", "CONTROLLER_KEY_MAP"} {
		t.Setenv(k, "")
	}

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/audioassistant/media", c.MediaRoot)
	assert.Equal(t, filepath.Join(c.MediaRoot, "topics"), c.TopicsDir)
	assert.Equal(t, 6600, c.PlayerPort)
	assert.Empty(t, c.ControllerKeyMap)
}

func TestLoadKeyMapFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keymap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"toggle": 304, "next": 307}`), 0o644))
	t.Setenv("CONTROLLER_KEY_MAP", path)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 304, c.ControllerKeyMap["toggle"])
	assert.Equal(t, 307, c.ControllerKeyMap["next"])
}

func TestLoadKeyMapMissingFile(t *testing.T) {
	t.Setenv("CONTROLLER_KEY_MAP", filepath.Join(t.TempDir(), "missing.json"))
	_, err := Load()
	assert.Error(t, err)
}
