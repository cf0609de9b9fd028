package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"server_endpoint_addr": "vault.example:9000",
		"retries":              0,
		"retry_base":           "1s",
		"retry_max":            "10s",
	})
	partial := writeTempJSON(t, dir, "partial.json", map[string]any{
		"retry_max": "30s",
	})

	t.Run("loads every field", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg, []string{"-config", full})

		assert.Equal(t, "vault.example:9000", cfg.ServerEndpointAddr)
		assert.Equal(t, uint64(0), cfg.Retries)
		assert.Equal(t, time.Second, cfg.RetryBase)
		assert.Equal(t, 10*time.Second, cfg.RetryMax)
	})

	t.Run("absent fields keep defaults", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg, []string{"-c", partial})

		assert.Equal(t, "localhost:8081", cfg.ServerEndpointAddr)
		assert.Equal(t, uint64(5), cfg.Retries)
		assert.Equal(t, 30*time.Second, cfg.RetryMax)
	})

	t.Run("no flag leaves config alone", func(t *testing.T) {
		cfg := &Config{ServerEndpointAddr: "defaults:1234"}
		parseJson(cfg, []string{"versions", "d1"})

		assert.Equal(t, "defaults:1234", cfg.ServerEndpointAddr)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		require.Panics(t, func() { parseJson(&Config{}, []string{"-c", bad}) })
	})
}
