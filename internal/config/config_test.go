package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.QueueDB.Type)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scanner.DebounceWindow)
	assert.Equal(t, 4*time.Second, cfg.Scanner.ResolveTimeout)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, time.Second, cfg.Sync.BaseDelay)
	assert.Equal(t, "memory", cfg.Cache.Type)
}

func TestOverridesFromEnv(t *testing.T) {
	t.Setenv("QUEUE_DB_TYPE", "mysql")
	t.Setenv("QUEUE_DB_HOST", "db.internal")
	t.Setenv("QUEUE_DB_PORT", "3307")
	t.Setenv("SCANNER_DEBOUNCE_WINDOW", "2s")
	t.Setenv("SYNC_MAX_RETRIES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.QueueDB.Type)
	assert.Contains(t, cfg.QueueDB.DSN(), "tcp(db.internal:3307)")
	assert.Equal(t, 2*time.Second, cfg.Scanner.DebounceWindow)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
}

func TestAddressHelpers(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8484", cfg.Server.Address())
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddress())
}
