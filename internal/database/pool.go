// Package database manages the connection pool behind the run store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PoolConfig holds connection pool limits.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns        int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        5,
		MaxOpenConns:        25,
		ConnMaxLifetime:     5 * time.Minute,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}
}

// PoolManager applies pool limits to the underlying sql.DB and runs a
// periodic health check.
type PoolManager struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	config PoolConfig
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewPoolManager configures the pool and starts the health check loop.
func NewPoolManager(db *gorm.DB, config PoolConfig, logger *zap.Logger) (*PoolManager, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pm := &PoolManager{
		db:     db,
		sqlDB:  sqlDB,
		config: config,
		logger: logger.With(zap.String("component", "db_pool")),
	}

	if config.HealthCheckInterval > 0 {
		go pm.healthCheckLoop()
	}

	pm.logger.Info("database pool initialized",
		zap.Int("max_idle_conns", config.MaxIdleConns),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Duration("conn_max_lifetime", config.ConnMaxLifetime),
	)

	return pm, nil
}

// DB returns the gorm instance.
func (pm *PoolManager) DB() *gorm.DB {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.db
}

// Ping checks database connectivity.
func (pm *PoolManager) Ping(ctx context.Context) error {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if pm.closed {
		return fmt.Errorf("pool is closed")
	}
	return pm.sqlDB.PingContext(ctx)
}

// Stats returns connection pool statistics.
func (pm *PoolManager) Stats() sql.DBStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.sqlDB.Stats()
}

// Close closes the pool. Safe to call more than once.
func (pm *PoolManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return nil
	}
	pm.closed = true
	pm.logger.Info("closing database pool")
	return pm.sqlDB.Close()
}

func (pm *PoolManager) healthCheckLoop() {
	ticker := time.NewTicker(pm.config.HealthCheckInterval)
	defer ticker.Stop()

	for range ticker.C {
		pm.mu.RLock()
		if pm.closed {
			pm.mu.RUnlock()
			return
		}
		pm.mu.RUnlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := pm.Ping(ctx); err != nil {
			pm.logger.Error("database health check failed", zap.Error(err))
		} else {
			stats := pm.Stats()
			pm.logger.Debug("database health check passed",
				zap.Int("open_connections", stats.OpenConnections),
				zap.Int("in_use", stats.InUse),
				zap.Int("idle", stats.Idle),
			)
		}
		cancel()
	}
}
