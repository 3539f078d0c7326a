// Package cache provides the Redis-backed cache used to memoize generated
// automation scripts. This package is internal and should not be imported
// by external projects.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Manager wraps a Redis client with JSON helpers and a health check loop.
type Manager struct {
	redis  *redis.Client
	config Config
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// Config holds Redis connection settings.
type Config struct {
	Addr                string        `yaml:"addr" json:"addr"`
	Password            string        `yaml:"password" json:"password"`
	DB                  int           `yaml:"db" json:"db"`
	DefaultTTL          time.Duration `yaml:"default_ttl" json:"default_ttl"`
	MaxRetries          int           `yaml:"max_retries" json:"max_retries"`
	PoolSize            int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConns        int           `yaml:"min_idle_conns" json:"min_idle_conns"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		Password:            "",
		DB:                  0,
		DefaultTTL:          24 * time.Hour,
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		HealthCheckInterval: 30 * time.Second,
	}
}

// NewManager connects to Redis and starts the health check loop.
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	m := &Manager{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "cache")),
	}

	if config.HealthCheckInterval > 0 {
		go m.healthCheckLoop()
	}

	logger.Info("cache manager initialized",
		zap.String("addr", config.Addr),
		zap.Int("pool_size", config.PoolSize),
	)

	return m, nil
}

// Get returns the cached value for key, or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", fmt.Errorf("cache manager is closed")
	}

	val, err := m.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	if err != nil {
		m.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("cache get failed: %w", err)
	}

	return val, nil
}

// Set stores value under key. A zero ttl uses the configured default.
func (m *Manager) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("cache manager is closed")
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	if err := m.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		m.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}

	return nil
}

// GetJSON unmarshals the cached value for key into dest.
func (m *Manager) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return nil
}

// SetJSON marshals value and stores it under key.
func (m *Manager) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return m.Set(ctx, key, string(data), ttl)
}

// Delete removes the given keys.
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("cache manager is closed")
	}

	if len(keys) == 0 {
		return nil
	}

	if err := m.redis.Del(ctx, keys...).Err(); err != nil {
		m.logger.Error("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("cache delete failed: %w", err)
	}

	return nil
}

// Ping checks the Redis connection.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("cache manager is closed")
	}

	return m.redis.Ping(ctx).Err()
}

// Close shuts down the manager and its connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.logger.Info("closing cache manager")

	return m.redis.Close()
}

func (m *Manager) healthCheckLoop() {
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.RLock()
		if m.closed {
			m.mu.RUnlock()
			return
		}
		m.mu.RUnlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.Ping(ctx); err != nil {
			m.logger.Error("cache health check failed", zap.Error(err))
		}
		cancel()
	}
}

// ErrCacheMiss is returned when a key is not present.
var ErrCacheMiss = fmt.Errorf("cache miss")

// IsCacheMiss reports whether err is a cache miss.
func IsCacheMiss(err error) bool {
	return err == ErrCacheMiss
}
