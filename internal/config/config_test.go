package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) string {
	t.Helper()

	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, ".local", "share"))
	t.Setenv("TABCOACH_CONFIG", "")
	t.Setenv("TABCOACH_PORT", "")
	t.Setenv("TABCOACH_STATE_DIR", "")
	t.Setenv("TABCOACH_LOG_LEVEL", "")
	t.Setenv("TABCOACH_COORDINATOR_URL", "")
	t.Setenv("TABCOACH_SCAN_INTERVAL", "")
	return tmp
}

func TestLoad_Defaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7821, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://127.0.0.1:7821", cfg.CoordinatorURL)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.ScanInterval))
}

func TestLoad_JSONCWithComments(t *testing.T) {
	tmp := isolateEnv(t)

	configDir := filepath.Join(tmp, ".config", "tabcoach")
	require.NoError(t, os.MkdirAll(configDir, 0755))

	content := `{
		// local dev setup
		"port": 9000,
		"logLevel": "debug",
		"scanInterval": "2s", /* faster while hacking */
	}`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "tabcoach.jsonc"), []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, time.Duration(cfg.ScanInterval))
}

func TestLoad_EnvInterpolation(t *testing.T) {
	tmp := isolateEnv(t)
	t.Setenv("MY_STATE_DIR", "/var/lib/tabcoach")

	configDir := filepath.Join(tmp, ".config", "tabcoach")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(configDir, "tabcoach.json"),
		[]byte(`{"stateDir": "{env:MY_STATE_DIR}"}`), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tabcoach", cfg.StateDir)
	assert.Equal(t, "/var/lib/tabcoach", cfg.StoragePath())
}

func TestLoad_ConfigFileOverride(t *testing.T) {
	tmp := isolateEnv(t)

	override := filepath.Join(tmp, "custom.json")
	require.NoError(t, os.WriteFile(override, []byte(`{"port": 1234}`), 0644))
	t.Setenv("TABCOACH_CONFIG", override)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.Port)
}

func TestLoad_EnvOverridesBeatFiles(t *testing.T) {
	tmp := isolateEnv(t)

	configDir := filepath.Join(tmp, ".config", "tabcoach")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(configDir, "tabcoach.json"),
		[]byte(`{"port": 9000, "logLevel": "debug"}`), 0644))

	t.Setenv("TABCOACH_PORT", "4455")
	t.Setenv("TABCOACH_SCAN_INTERVAL", "750ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4455, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 750*time.Millisecond, time.Duration(cfg.ScanInterval))
}

func TestStoragePath_DefaultsUnderDataDir(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, GetPaths().StoragePath(), cfg.StoragePath())
	assert.Contains(t, cfg.StoragePath(), "tabcoach")
}
