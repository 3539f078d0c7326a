package database

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestNewPoolManager_AppliesLimits(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.MaxOpenConns = 3
	cfg.HealthCheckInterval = 0

	pm, err := NewPoolManager(openTestDB(t), cfg, zap.NewNop())
	require.NoError(t, err)
	defer pm.Close()

	assert.Equal(t, 3, pm.Stats().MaxOpenConnections)
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), zap.NewNop())
	assert.Error(t, err)
}

func TestPoolManager_Ping(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.HealthCheckInterval = 0

	pm, err := NewPoolManager(openTestDB(t), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, pm.Ping(ctx))

	require.NoError(t, pm.Close())
	assert.Error(t, pm.Ping(ctx))
}

func TestPoolManager_CloseIdempotent(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.HealthCheckInterval = 0

	pm, err := NewPoolManager(openTestDB(t), cfg, zap.NewNop())
	require.NoError(t, err)

	assert.NoError(t, pm.Close())
	assert.NoError(t, pm.Close())
}
