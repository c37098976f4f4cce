package di

import (
	"context"
	"testing"

	"memo-backend/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeContainerMemoryBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.StoreBackend = config.BackendMemory
	cfg.LogLevel = "error"

	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	require.NotNil(t, container.MemoService)
	require.NotNil(t, container.Repository)
	assert.Len(t, container.Stores.Health, 3)

	for name, checker := range container.Stores.Health {
		assert.NoError(t, checker.Ping(context.Background()), name)
	}

	ctx := context.Background()
	result, err := container.MemoService.Create(ctx, "user-1", "Groceries", "milk", []string{"home"})
	require.NoError(t, err)
	assert.False(t, result.Degraded)

	found, err := container.MemoService.Get(ctx, result.Memo.ID().String(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", found.Title())
}

func TestProvideRepositoryConfig(t *testing.T) {
	cfg := config.Defaults()
	repoCfg := ProvideRepositoryConfig(cfg)

	assert.Equal(t, cfg.CacheTTL, repoCfg.CacheTTL)
	assert.Equal(t, cfg.CacheKeyPrefix, repoCfg.CacheKeyPrefix)
	assert.Equal(t, cfg.IndexTimeout, repoCfg.IndexTimeout)
}
