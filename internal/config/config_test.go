// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithKoanf()
	require.NoError(t, err)

	assert.Equal(t, "/data/daybook", cfg.Storage.Dir)
	assert.Equal(t, "auto", cfg.Storage.Engine)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3650, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.False(t, cfg.Remote.Enabled)
	assert.Equal(t, 1, cfg.Encounters.Version)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DAYBOOK_DATA_DIR", "/tmp/saves")
	t.Setenv("STORAGE_ENGINE", "sqlite")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SAVE_API_ENABLED", "true")
	t.Setenv("SAVE_API_URL", "https://save.example.com")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadWithKoanf()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/saves", cfg.Storage.Dir)
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Remote.Enabled)
	assert.Equal(t, "https://save.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://game.example.com, https://staging.example.com")

	cfg, err := LoadWithKoanf()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://game.example.com", "https://staging.example.com"}, cfg.Server.CORSOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
storage:
  dir: /var/lib/daybook
  engine: badger
server:
  port: 4000
encounters:
  version: 3
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadWithKoanf()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/daybook", cfg.Storage.Dir)
	assert.Equal(t, "badger", cfg.Storage.Engine)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Encounters.Version)
	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 4000\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("HTTP_PORT", "5000")

	cfg, err := LoadWithKoanf()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	t.Setenv("STORAGE_ENGINE", "leveldb")

	_, err := LoadWithKoanf()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Engine")
}

func TestValidateRejectsRemoteWithoutURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.Remote.Enabled = true
	cfg.Remote.BaseURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote.base_url")
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
}

func TestEnvTransformDropsUnknownKeys(t *testing.T) {
	assert.Equal(t, "", envTransformFunc("PATH"))
	assert.Equal(t, "", envTransformFunc("HOME"))
	assert.Equal(t, "storage.dir", envTransformFunc("DAYBOOK_DATA_DIR"))
	assert.Equal(t, "remote.base_url", envTransformFunc("SAVE_API_URL"))
}
