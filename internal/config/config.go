// Package config loads the appliance's env-var driven configuration
// (spec §6). There is no runtime reload; Load is called once at startup
// and the result threaded through the application root.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds every recognised option (spec §6).
type Config struct {
	MediaRoot   string
	TopicsDir   string
	ExtractsDir string
	ItemsDir    string

	PlayerHost string
	PlayerPort int

	RecordingSink    string
	ExtractExtension string
	RecorderBin      string
	CutBin           string

	ControllerAddress string
	ControllerName    string
	ControllerKeyMap  map[string]int // logical name -> physical keycode

	HeadphonesAddress string
	HeadphonesName    string

	ArchiveFile string

	ProgressSampleInterval time.Duration

	ValkeyHost string
	ValkeyPort int

	ContentDBPath string
}

// Load reads Config from the process environment.
func Load() (*Config, error) {
	mediaRoot := getEnvWithDefault("MEDIA_ROOT", "/var/lib/audioassistant/media")

	c := &Config{
		MediaRoot:   mediaRoot,
		TopicsDir:   getEnvWithDefault("TOPICS_DIR", filepath.Join(mediaRoot, "topics")),
		ExtractsDir: getEnvWithDefault("EXTRACTS_DIR", filepath.Join(mediaRoot, "extracts")),
		ItemsDir:    getEnvWithDefault("ITEMS_DIR", filepath.Join(mediaRoot, "items")),

		PlayerHost: getEnvWithDefault("PLAYER_HOST", "127.0.0.1"),
		PlayerPort: getEnvInt("PLAYER_PORT", 6600),

		RecordingSink:    getEnvWithDefault("RECORDING_SINK", "default"),
		ExtractExtension: getEnvWithDefault("EXTRACT_EXTENSION", ".wav"),
		RecorderBin:      getEnvWithDefault("RECORDER_BIN", "parecord"),
		CutBin:           getEnvWithDefault("CUT_BIN", "ffmpeg"),

		ControllerAddress: os.Getenv("CONTROLLER_ADDRESS"),
		ControllerName:    getEnvWithDefault("CONTROLLER_NAME", "Wireless Controller"),

		HeadphonesAddress: os.Getenv("HEADPHONES_ADDRESS"),
		HeadphonesName:    getEnvWithDefault("HEADPHONES_NAME", "Headphones"),

		ArchiveFile: os.Getenv("ARCHIVE_FILE"),

		ProgressSampleInterval: time.Duration(getEnvInt("PROGRESS_SAMPLE_INTERVAL_SECONDS", 5)) * time.Second,

		ValkeyHost: getEnvWithDefault("VALKEY_HOST", "localhost"),
		ValkeyPort: getEnvInt("VALKEY_PORT", 6379),

		ContentDBPath: getEnvWithDefault("CONTENT_DB_PATH", filepath.Join(mediaRoot, "content.db")),
	}

	keyMap, err := loadKeyMap(os.Getenv("CONTROLLER_KEY_MAP"))
	if err != nil {
		return nil, err
	}
	c.ControllerKeyMap = keyMap

	return c, nil
}

// loadKeyMap reads the JSON file at path mapping logical key names to
// physical keycodes. An empty path yields an empty map; callers that need a
// controller must supply one.
func loadKeyMap(path string) (map[string]int, error) {
	if path == "" {
		return map[string]int{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key map %q: %w", path, err)
	}
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse key map %q: %w", path, err)
	}
	return m, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
