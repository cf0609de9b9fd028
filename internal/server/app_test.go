package server

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/config"
	"github.com/dmitrijs2005/casevault/internal/server/events"
	"github.com/dmitrijs2005/casevault/internal/server/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	return c
}

func TestNewApp_RejectsInvalidConfig(t *testing.T) {
	c := testConfig()
	c.SecretKey = ""
	c.StorageBackend = "ftp"

	_, err := NewApp(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret key is empty")
	assert.Contains(t, err.Error(), `unknown storage backend "ftp"`)
}

func TestNewApp_FailsWhenDatabaseIsUnreachable(t *testing.T) {
	c := testConfig()
	c.DatabaseDSN = "postgres://u:p@127.0.0.1:1/casevault?sslmode=disable&connect_timeout=1"

	_, err := NewApp(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations")
}

func TestApp_NewLimiter(t *testing.T) {
	app := &App{config: testConfig(), logger: logging.NewNop()}

	l, err := app.newLimiter(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, l)
	assert.Empty(t, app.closers)

	app.config.RedisAddr = miniredis.RunT(t).Addr()
	l, err = app.newLimiter(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.RedisLimiter{}, l)
	assert.Len(t, app.closers, 1)

	app.Close()
	assert.Empty(t, app.closers)
}

func TestApp_NewPublisherWithoutNats(t *testing.T) {
	app := &App{config: testConfig(), logger: logging.NewNop()}

	p, err := app.newPublisher()
	require.NoError(t, err)
	assert.Equal(t, events.Nop{}, p)
}
