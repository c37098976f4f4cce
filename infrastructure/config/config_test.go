package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendAWS, cfg.StoreBackend)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "memo:", cfg.CacheKeyPrefix)
	assert.Equal(t, time.Minute, cfg.CacheFenceTTL)
	assert.Equal(t, 100, cfg.SearchLimit)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("CACHE_TTL", "90")
	t.Setenv("INDEX_TIMEOUT", "750ms")
	t.Setenv("ELASTICSEARCH_URLS", "http://es-1:9200, http://es-2:9200")
	t.Setenv("ENABLE_RECONCILE_EVENTS", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 750*time.Millisecond, cfg.IndexTimeout)
	assert.Equal(t, []string{"http://es-1:9200", "http://es-2:9200"}, cfg.ElasticsearchURLs)
	assert.True(t, cfg.EnableReconcileEvents)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
dynamodb_table: memos-prod
cache_ttl: 10m
search_limit: 50
elasticsearch_urls:
  - http://search:9200
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SEARCH_LIMIT", "25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "memos-prod", cfg.DynamoDBTable)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 25, cfg.SearchLimit)
	assert.Equal(t, []string{"http://search:9200"}, cfg.ElasticsearchURLs)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"UnknownBackend", func(c *Config) { c.StoreBackend = "sqlite" }},
		{"MissingTable", func(c *Config) { c.DynamoDBTable = "" }},
		{"NoSearchNodes", func(c *Config) { c.ElasticsearchURLs = nil }},
		{"ZeroTimeout", func(c *Config) { c.CacheTimeout = 0 }},
		{"SearchLimitTooHigh", func(c *Config) { c.SearchLimit = 20000 }},
		{"FenceShorterThanFind", func(c *Config) { c.CacheFenceTTL = c.PrimaryTimeout }},
		{"ReconcileWithoutBus", func(c *Config) {
			c.EnableReconcileEvents = true
			c.EventBusName = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("MemoryBackendNeedsNoEndpoints", func(t *testing.T) {
		cfg := Defaults()
		cfg.StoreBackend = BackendMemory
		cfg.DynamoDBTable = ""
		cfg.ElasticsearchURLs = nil
		assert.NoError(t, cfg.Validate())
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}
