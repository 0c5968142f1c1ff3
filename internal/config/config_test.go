package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	base := t.TempDir()
	cfg, err := FromViper(NewViper(base))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "storage"), cfg.StoragePath)
	assert.Equal(t, filepath.Join(base, "storage", "cookies"), cfg.CookiePath)
	assert.Equal(t, filepath.Join(base, "storage", "logs"), cfg.LogPath)
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Headless)
	assert.True(t, cfg.ObjectStore.UseSSL)
}

func TestFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("MULTIPOST_HEADLESS", "true")
	t.Setenv("MULTIPOST_DEBUG", "true")
	t.Setenv("MULTIPOST_FETCH_TIMEOUT", "45s")
	t.Setenv("MULTIPOST_LOG_LEVEL", "debug")
	t.Setenv("MULTIPOST_OBJECT_STORE_ENDPOINT", "minio.local:9000")

	cfg, err := FromViper(NewViper(t.TempDir()))
	require.NoError(t, err)

	assert.True(t, cfg.Headless)
	assert.True(t, cfg.DebugMode)
	assert.Equal(t, 45*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "minio.local:9000", cfg.ObjectStore.Endpoint)
}

func TestFromViper_RejectsNonPositiveTimeout(t *testing.T) {
	v := NewViper(t.TempDir())
	v.Set("fetch_timeout", "0s")

	_, err := FromViper(v)
	assert.Error(t, err)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	storage := filepath.Join(dir, "data")
	path := filepath.Join(dir, "multipost.yaml")
	content := "storage_path: " + storage + "\n" +
		"cookie_path: " + filepath.Join(storage, "c") + "\n" +
		"log_path: " + filepath.Join(storage, "l") + "\n" +
		"headless: true\n" +
		"log:\n  max_size: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	prev := Config
	t.Cleanup(func() { Config = prev })

	require.NoError(t, Load(path))
	assert.True(t, Config.Headless)
	assert.Equal(t, 10, Config.Log.MaxSize)
	assert.DirExists(t, filepath.Join(storage, "c"))
	assert.DirExists(t, filepath.Join(storage, "l"))
	assert.Equal(t, filepath.Join(storage, "c", "dewu.json"), GetCookiePath("dewu"))
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
