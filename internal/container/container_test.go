package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spiritmate/myob-stock-sync/internal/application/service"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/lock"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/worker"
	"github.com/spiritmate/myob-stock-sync/pkg/database"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		Database: database.DefaultConfig(filepath.Join(dir, "stock.db")),
		Sync:     service.SyncConfig{LockKey: "test"},
		Worker:   worker.SyncWorkerConfig{Interval: time.Hour},
		Lock:     LockConfig{Backend: LockBackendLocal},
		Storage:  StorageConfig{ArchiveDir: filepath.Join(dir, "invoices"), PDFMaxPages: 5},
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	cfg.Lock.Backend = LockBackendRedis
	assert.Error(t, cfg.Validate())

	cfg = testConfig(t)
	cfg.Lock.Backend = "zookeeper"
	assert.Error(t, cfg.Validate())

	cfg = testConfig(t)
	cfg.EnableScheduler = true
	cfg.Worker.Interval = 0
	assert.Error(t, cfg.Validate())

	cfg = testConfig(t)
	cfg.Database.Path = ""
	_, err := NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx))

	require.NotNil(t, c.Services())
	assert.NotNil(t, c.Services().Sync)
	assert.NotNil(t, c.Services().History)
	assert.Zero(t, c.Workers().GetWorkerCount())

	runs, err := c.Services().History.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}

func TestContainer_SchedulerHealth(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableScheduler = true
	cfg.Worker.RunOnStart = false

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	assert.Equal(t, 1, c.Workers().GetWorkerCount())
	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.True(t, health.Components["scheduler"].Healthy)

	require.NoError(t, c.Close())
	assert.False(t, c.Workers().IsRunning())
}

func TestContainer_FailedStartReleasesDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lock = LockConfig{Backend: LockBackendRedis, Redis: lock.RedisConfig{Addr: "127.0.0.1:1"}}

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = c.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "external clients")
	assert.False(t, c.Ready())

	require.NotNil(t, c.Database())
	assert.Error(t, c.Database().Ping(), "database was closed by the failed start")
}
