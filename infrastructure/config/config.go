package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendAWS    = "aws"
	BackendMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`
	LogLevel      string `yaml:"log_level"`

	// Backend selection: "aws" uses DynamoDB, Redis and Elasticsearch;
	// "memory" runs everything in-process
	StoreBackend string `yaml:"store_backend"`

	// AWS configuration
	AWSRegion          string `yaml:"aws_region"`
	DynamoDBTable      string `yaml:"dynamodb_table"`
	DynamoDBOwnerIndex string `yaml:"dynamodb_owner_index"` // GSI1 - owner listing
	DynamoDBEndpoint   string `yaml:"dynamodb_endpoint"`
	EventBusName       string `yaml:"event_bus_name"`

	// Cache configuration
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	CacheKeyPrefix string        `yaml:"cache_key_prefix"`
	CacheFenceTTL  time.Duration `yaml:"cache_fence_ttl"`

	// Search configuration
	ElasticsearchURLs []string `yaml:"elasticsearch_urls"`
	SearchIndex       string   `yaml:"search_index"`
	SearchLimit       int      `yaml:"search_limit"`

	// Per-store timeouts
	PrimaryTimeout time.Duration `yaml:"primary_timeout"`
	CacheTimeout   time.Duration `yaml:"cache_timeout"`
	IndexTimeout   time.Duration `yaml:"index_timeout"`

	// Feature flags
	EnableReconcileEvents bool   `yaml:"enable_reconcile_events"`
	EnableTracing         bool   `yaml:"enable_tracing"`
	OTLPEndpoint          string `yaml:"otlp_endpoint"`
	EnableCORS            bool     `yaml:"enable_cors"`
	CORSAllowedOrigins    []string `yaml:"cors_allowed_origins"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		ServerAddress: ":8080",
		Environment:   "development",
		LogLevel:      "info",
		StoreBackend:  BackendAWS,

		AWSRegion:          "us-west-2",
		DynamoDBTable:      "memos",
		DynamoDBOwnerIndex: "GSI1",
		EventBusName:       "memo-events",

		RedisAddr:      "localhost:6379",
		CacheTTL:       time.Hour,
		CacheKeyPrefix: "memo:",
		CacheFenceTTL:  time.Minute,

		ElasticsearchURLs: []string{"http://localhost:9200"},
		SearchIndex:       "memos",
		SearchLimit:       100,

		PrimaryTimeout: 5 * time.Second,
		CacheTimeout:   500 * time.Millisecond,
		IndexTimeout:   2 * time.Second,

		EnableReconcileEvents: false,
		EnableTracing:         false,
		EnableCORS:            true,
	}
}

// LoadConfig loads configuration. Sources, lowest priority first:
// defaults, the YAML file named by CONFIG_FILE, environment variables.
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.DynamoDBOwnerIndex = getEnv("DYNAMODB_OWNER_INDEX", c.DynamoDBOwnerIndex)
	c.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", c.DynamoDBEndpoint)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)
	c.CacheKeyPrefix = getEnv("CACHE_KEY_PREFIX", c.CacheKeyPrefix)
	c.CacheFenceTTL = getEnvDuration("CACHE_FENCE_TTL", c.CacheFenceTTL)

	c.ElasticsearchURLs = getEnvList("ELASTICSEARCH_URLS", c.ElasticsearchURLs)
	c.SearchIndex = getEnv("SEARCH_INDEX", c.SearchIndex)
	c.SearchLimit = getEnvInt("SEARCH_LIMIT", c.SearchLimit)

	c.PrimaryTimeout = getEnvDuration("PRIMARY_TIMEOUT", c.PrimaryTimeout)
	c.CacheTimeout = getEnvDuration("CACHE_TIMEOUT", c.CacheTimeout)
	c.IndexTimeout = getEnvDuration("INDEX_TIMEOUT", c.IndexTimeout)

	c.EnableReconcileEvents = getEnvBool("ENABLE_RECONCILE_EVENTS", c.EnableReconcileEvents)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendAWS:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
		if c.DynamoDBOwnerIndex == "" {
			return fmt.Errorf("DYNAMODB_OWNER_INDEX is required")
		}
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required")
		}
		if len(c.ElasticsearchURLs) == 0 {
			return fmt.Errorf("ELASTICSEARCH_URLS is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendAWS, BackendMemory, c.StoreBackend)
	}

	if c.EnableReconcileEvents && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when ENABLE_RECONCILE_EVENTS is set")
	}
	if c.PrimaryTimeout <= 0 || c.CacheTimeout <= 0 || c.IndexTimeout <= 0 {
		return fmt.Errorf("store timeouts must be positive")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL cannot be negative")
	}
	if c.CacheFenceTTL <= c.PrimaryTimeout+c.CacheTimeout {
		return fmt.Errorf("CACHE_FENCE_TTL must exceed PRIMARY_TIMEOUT plus CACHE_TIMEOUT")
	}
	if c.SearchLimit < 1 || c.SearchLimit > 10000 {
		return fmt.Errorf("SEARCH_LIMIT must be between 1 and 10000")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("3600")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
