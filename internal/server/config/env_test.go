package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	t.Setenv("CASEVAULT_GRPC_ADDR", ":9999")
	t.Setenv("CASEVAULT_PRESIGN_EXPIRY", "90s")
	t.Setenv("CASEVAULT_UPLOAD_MAX_BYTES", "2048")
	t.Setenv("CASEVAULT_SWEEP_BATCH_SIZE", "10")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, ":9999", cfg.EndpointAddrGRPC)
	assert.Equal(t, 90*time.Second, cfg.PresignExpiry)
	assert.Equal(t, int64(2048), cfg.UploadMaxBytes)
	assert.Equal(t, 10, cfg.SweepBatchSize)
	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP, "unset variables keep the current value")
}

func TestParseEnv_DotenvFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CASEVAULT_NATS_URL=nats://file:4222\nCASEVAULT_S3_REGION=eu-west-1\n"), 0o600))
	t.Setenv("CASEVAULT_S3_REGION", "us-east-2")
	// godotenv sets variables for the whole process; restore afterwards.
	t.Setenv("CASEVAULT_NATS_URL", "")
	require.NoError(t, os.Unsetenv("CASEVAULT_NATS_URL"))

	os.Args = []string{"testbin", "-env-file", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "nats://file:4222", cfg.NatsURL)
	assert.Equal(t, "us-east-2", cfg.S3Region, "process environment wins over the file")
}

func TestParseEnv_Invalid(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	t.Setenv("CASEVAULT_RATE_LIMIT", "many")

	cfg := &Config{}
	require.Panics(t, func() { parseEnv(cfg) })

	os.Args = []string{"testbin", "-env-file", filepath.Join(t.TempDir(), "missing.env")}
	require.Panics(t, func() { parseEnv(&Config{}) })
}
