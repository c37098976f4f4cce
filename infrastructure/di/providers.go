package di

import (
	"context"
	"fmt"
	"time"

	"memo-backend/application/ports"
	"memo-backend/application/services"
	"memo-backend/infrastructure/config"
	"memo-backend/infrastructure/messaging/eventbridge"
	dynamostore "memo-backend/infrastructure/persistence/dynamodb"
	esindex "memo-backend/infrastructure/persistence/elasticsearch"
	"memo-backend/infrastructure/persistence/memory"
	redisstore "memo-backend/infrastructure/persistence/redis"
	"memo-backend/infrastructure/persistence/repository"
	"memo-backend/infrastructure/persistence/resilience"
	pkgerrors "memo-backend/pkg/errors"
	"memo-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is used for tracing and the metrics namespace
const ServiceName = "memo-backend"

// Stores groups the three adapters the coordinator composes, plus the
// health checkers the readiness endpoint pings
type Stores struct {
	Primary ports.PrimaryStore
	Cache   ports.Cache
	Index   ports.SearchIndex
	Health  map[string]ports.HealthChecker
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

// ProvideMetrics creates metrics instance
func ProvideMetrics() *observability.Metrics {
	return observability.NewMetrics("memo")
}

// ProvideTracer creates the tracer used for coordinator spans
func ProvideTracer() *observability.Tracer {
	return observability.NewTracer(ServiceName)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client. Retries are disabled; the
// coordinator reports failures instead of hiding them behind backoff.
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		o.RetryMaxAttempts = 1
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideStores builds the adapters for the configured backend. Cache and
// index are wrapped in circuit breakers; the primary store never is.
func ProvideStores(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*Stores, func(), error) {
	var (
		stores  *Stores
		cleanup func()
		err     error
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		stores, cleanup = newMemoryStores()
	default:
		stores, cleanup, err = newAWSStores(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	cacheBreaker := resilience.DefaultBreakerConfig("memo-cache")
	cacheBreaker.OnStateChange = metrics.SetBreakerState
	indexBreaker := resilience.DefaultBreakerConfig("memo-index")
	indexBreaker.OnStateChange = metrics.SetBreakerState

	stores.Cache = resilience.NewCache(stores.Cache, cacheBreaker, logger)
	stores.Index = resilience.NewSearchIndex(stores.Index, indexBreaker, logger)

	logger.Info("Stores initialized", zap.String("backend", cfg.StoreBackend))
	return stores, cleanup, nil
}

func newMemoryStores() (*Stores, func()) {
	primary := memory.NewPrimaryStore()
	cache := memory.NewCache(time.Minute)
	index := memory.NewSearchIndex()
	return &Stores{
			Primary: primary,
			Cache:   cache,
			Index:   index,
			Health: map[string]ports.HealthChecker{
				"primary": primary,
				"cache":   cache,
				"index":   index,
			},
		}, func() {
			_ = cache.Close()
		}
}

func newAWSStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, func(), error) {
	awsCfg, err := ProvideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	primary := dynamostore.NewMemoStore(ProvideDynamoDBClient(awsCfg, cfg), cfg.DynamoDBTable, cfg.DynamoDBOwnerIndex, logger)

	cache := redisstore.NewCache(redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), logger)

	esClient, err := esindex.NewClient(cfg.ElasticsearchURLs)
	if err != nil {
		_ = cache.Close()
		return nil, nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	index := esindex.NewSearchIndex(esClient, cfg.SearchIndex, cfg.SearchLimit, logger)

	// The index may come up after us; search reports IndexUnavailable until it does.
	ensureCtx, cancel := context.WithTimeout(ctx, cfg.IndexTimeout)
	defer cancel()
	if err := index.EnsureIndex(ensureCtx); err != nil {
		logger.Warn("Search index not ready", zap.String("index", cfg.SearchIndex), zap.Error(err))
	}

	return &Stores{
			Primary: primary,
			Cache:   cache,
			Index:   index,
			Health: map[string]ports.HealthChecker{
				"primary": primary,
				"cache":   cache,
				"index":   index,
			},
		}, func() {
			if err := cache.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}, nil
}

// ProvideReporter returns the EventBridge publisher when reconciliation
// events are enabled and a logging reporter otherwise
func ProvideReporter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.ReconciliationReporter, error) {
	if !cfg.EnableReconcileEvents {
		return eventbridge.NewLogReporter(logger), nil
	}
	awsCfg, err := ProvideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := awseventbridge.NewFromConfig(awsCfg)
	return eventbridge.NewPublisher(client, cfg.EventBusName, eventbridge.DefaultSource, logger), nil
}

// ProvideRepositoryConfig maps application config onto the coordinator's
func ProvideRepositoryConfig(cfg *config.Config) repository.Config {
	return repository.Config{
		CacheTTL:       cfg.CacheTTL,
		CacheKeyPrefix: cfg.CacheKeyPrefix,
		FenceTTL:       cfg.CacheFenceTTL,
		PrimaryTimeout: cfg.PrimaryTimeout,
		CacheTimeout:   cfg.CacheTimeout,
		IndexTimeout:   cfg.IndexTimeout,
	}
}

// ProvideMemoRepository creates the repository coordinator
func ProvideMemoRepository(
	stores *Stores,
	reporter ports.ReconciliationReporter,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
	repoCfg repository.Config,
) *repository.MemoRepository {
	return repository.NewMemoRepository(
		stores.Primary,
		stores.Cache,
		stores.Index,
		reporter,
		metrics,
		tracer,
		logger,
		repoCfg,
	)
}

// ProvideMemoService creates the application service
func ProvideMemoService(repo ports.MemoRepository, logger *zap.Logger) *services.MemoService {
	return services.NewMemoService(repo, logger)
}

// ProvideErrorHandler creates the HTTP error renderer; stack traces are
// included outside production
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}
