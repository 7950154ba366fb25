package database

import (
	"context"
	"testing"
	"time"

	"task-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func newMemoryPool(t *testing.T) *DatabasePool {
	t.Helper()
	pool, err := NewDatabasePool(&PoolConfig{
		Driver:       DriverSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 1,
		LogLevel:     logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig()

	if config.Driver != DriverPostgres {
		t.Errorf("Expected Driver to be postgres, got %s", config.Driver)
	}

	if config.MaxOpenConns != 25 {
		t.Errorf("Expected MaxOpenConns to be 25, got %d", config.MaxOpenConns)
	}

	if config.MaxIdleConns != 10 {
		t.Errorf("Expected MaxIdleConns to be 10, got %d", config.MaxIdleConns)
	}

	if config.ConnMaxLifetime != time.Hour {
		t.Errorf("Expected ConnMaxLifetime to be 1 hour, got %v", config.ConnMaxLifetime)
	}

	if config.ConnMaxIdleTime != time.Minute*30 {
		t.Errorf("Expected ConnMaxIdleTime to be 30 minutes, got %v", config.ConnMaxIdleTime)
	}

	if config.LogLevel != logger.Info {
		t.Errorf("Expected LogLevel to be Info, got %v", config.LogLevel)
	}
}

func TestNewDatabasePool_WithNilConfig(t *testing.T) {
	_, err := NewDatabasePool(nil)

	if err == nil {
		t.Fatal("Expected error due to empty DSN, got nil")
	}

	if err.Error() == "" {
		t.Error("Expected non-empty error message")
	}
}

func TestPoolConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  *PoolConfig
		wantErr bool
	}{
		{
			name: "Valid sqlite configuration",
			config: &PoolConfig{
				Driver:          DriverSQLite,
				DSN:             ":memory:",
				MaxOpenConns:    1,
				ConnMaxLifetime: time.Hour,
				LogLevel:        logger.Silent,
			},
			wantErr: false,
		},
		{
			name: "Zero values configuration",
			config: &PoolConfig{
				Driver:   DriverSQLite,
				LogLevel: logger.Silent,
			},
			wantErr: true,
		},
		{
			name: "Negative values configuration",
			config: &PoolConfig{
				Driver:          DriverSQLite,
				DSN:             ":memory:",
				MaxOpenConns:    -1,
				MaxIdleConns:    -1,
				ConnMaxLifetime: -time.Hour,
				LogLevel:        logger.Silent,
			},
			wantErr: true,
		},
		{
			name: "Unknown driver",
			config: &PoolConfig{
				Driver:   "oracle",
				DSN:      "whatever",
				LogLevel: logger.Silent,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewDatabasePool(tt.config)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, pool.Close())
		})
	}
}

func TestDatabasePool_MigrateIsIdempotent(t *testing.T) {
	pool := newMemoryPool(t)
	ctx := context.Background()

	require.NoError(t, pool.Migrate(ctx))
	require.NoError(t, pool.Migrate(ctx))

	assert.True(t, pool.DB.Migrator().HasTable(&models.Task{}))
	assert.True(t, pool.DB.Migrator().HasTable(&models.User{}))
	assert.True(t, pool.DB.Migrator().HasColumn(&models.Task{}, "user_id"))
}

func TestDatabasePool_HealthAndStats(t *testing.T) {
	pool := newMemoryPool(t)

	assert.NoError(t, pool.Health(context.Background()))

	stats := pool.Stats()
	assert.Equal(t, DriverSQLite, stats["driver"])
	assert.Equal(t, 1, stats["max_open_connections"])
}

func TestDatabasePool_Stats_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{
		DB: nil,
		config: &PoolConfig{
			MaxOpenConns: 10,
		},
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Stats() should handle nil DB gracefully, but got panic: %v", r)
		}
	}()

	stats := pool.Stats()

	if _, hasError := stats["error"]; !hasError {
		t.Error("Expected error in stats when DB is nil")
	}
}

func TestDatabasePool_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{DB: nil}

	assert.ErrorIs(t, pool.Health(context.Background()), ErrNoConnection)
	assert.ErrorIs(t, pool.Migrate(context.Background()), ErrNoConnection)
	assert.NoError(t, pool.Close())
}

func BenchmarkDefaultPoolConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultPoolConfig()
	}
}
