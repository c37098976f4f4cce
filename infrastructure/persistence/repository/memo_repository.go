package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"memo-backend/application/ports"
	"memo-backend/domain/core/entities"
	"memo-backend/domain/core/valueobjects"
	"memo-backend/domain/events"
	pkgerrors "memo-backend/pkg/errors"
	"memo-backend/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	storePrimary = "primary"

	reportTimeout = 5 * time.Second

	// tombstoneVersion fences a deleted memo's key against every payload
	tombstoneVersion = math.MaxInt32
)

// Config controls cache keys, TTL and per-store timeouts.
// FenceTTL must outlast the slowest Find, primary read plus cache write.
type Config struct {
	CacheTTL       time.Duration
	CacheKeyPrefix string
	FenceTTL       time.Duration
	PrimaryTimeout time.Duration
	CacheTimeout   time.Duration
	IndexTimeout   time.Duration
}

// DefaultConfig returns the default coordinator configuration
func DefaultConfig() Config {
	return Config{
		CacheTTL:       time.Hour,
		CacheKeyPrefix: "memo:",
		FenceTTL:       time.Minute,
		PrimaryTimeout: 5 * time.Second,
		CacheTimeout:   500 * time.Millisecond,
		IndexTimeout:   2 * time.Second,
	}
}

// MemoRepository is the only writer of the primary store, the cache and the
// search index for memos. Within one save the primary write happens before
// cache invalidation, which happens before the index upsert. It holds no locks;
// concurrent writers are ordered by the primary store's CAS.
type MemoRepository struct {
	primary  ports.PrimaryStore
	cache    ports.Cache
	index    ports.SearchIndex
	reporter ports.ReconciliationReporter
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	logger   *zap.Logger
	config   Config
}

// NewMemoRepository creates the coordinator
func NewMemoRepository(
	primary ports.PrimaryStore,
	cache ports.Cache,
	index ports.SearchIndex,
	reporter ports.ReconciliationReporter,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
	config Config,
) *MemoRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics("memo")
	}
	if tracer == nil {
		tracer = observability.NewTracer("memo-backend")
	}
	if config.FenceTTL <= 0 {
		config.FenceTTL = DefaultConfig().FenceTTL
	}
	return &MemoRepository{
		primary:  primary,
		cache:    cache,
		index:    index,
		reporter: reporter,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
		config:   config,
	}
}

var _ ports.MemoRepository = (*MemoRepository)(nil)

// Find returns the memo, reading through the cache
func (r *MemoRepository) Find(ctx context.Context, id valueobjects.MemoID) (*entities.Memo, error) {
	ctx, span := r.tracer.Start(ctx, "find", attribute.String("memo.id", id.String()))
	defer span.End()

	key := r.cacheKey(id)

	var payload []byte
	var hit bool
	err := r.call(ctx, ports.StoreCache, "get", r.config.CacheTimeout, func(ctx context.Context) error {
		var err error
		payload, hit, err = r.cache.Get(ctx, key)
		return err
	})
	switch {
	case err != nil:
		r.logger.Warn("Cache read failed, falling back to primary store",
			zap.String("memoID", id.String()),
			zap.Error(err),
		)
	case hit:
		memo, decodeErr := decodeMemo(payload)
		if decodeErr == nil {
			r.metrics.RecordCacheHit()
			return memo, nil
		}
		r.logger.Warn("Discarding unreadable cache entry",
			zap.String("memoID", id.String()),
			zap.Error(decodeErr),
		)
		r.invalidate(ctx, key)
	}
	r.metrics.RecordCacheMiss()

	var memo *entities.Memo
	err = r.call(ctx, storePrimary, "get", r.config.PrimaryTimeout, func(ctx context.Context) error {
		var err error
		memo, err = r.primary.Get(ctx, id)
		return err
	})
	if err != nil {
		r.tracer.RecordError(ctx, err)
		return nil, primaryError("get", err)
	}
	if memo == nil {
		return nil, pkgerrors.NewNotFoundError("memo").WithDetail("memoID", id.String())
	}

	r.populate(ctx, key, memo)
	return memo, nil
}

// ListByOwner lists every memo of ownerID straight from the primary store
func (r *MemoRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Memo, error) {
	ctx, span := r.tracer.Start(ctx, "list_by_owner", attribute.String("owner.id", ownerID))
	defer span.End()

	var memos []*entities.Memo
	err := r.call(ctx, storePrimary, "list_by_owner", r.config.PrimaryTimeout, func(ctx context.Context) error {
		var err error
		memos, err = r.primary.ListByOwner(ctx, ownerID)
		return err
	})
	if err != nil {
		r.tracer.RecordError(ctx, err)
		return nil, primaryError("list_by_owner", err)
	}
	return memos, nil
}

// Save writes memo to the primary store, then invalidates the cache entry,
// then upserts the index. Version 1 memos are inserted; anything else is a CAS
// update against expectedVersion, which defaults to memo.Version()-1.
func (r *MemoRepository) Save(ctx context.Context, memo *entities.Memo, expectedVersion int) (ports.SaveResult, error) {
	if memo == nil {
		return ports.SaveResult{}, pkgerrors.NewValidationError("memo is required")
	}
	ctx, span := r.tracer.Start(ctx, "save",
		attribute.String("memo.id", memo.ID().String()),
		attribute.Int("memo.version", memo.Version()),
	)
	defer span.End()

	saved, err := r.writePrimary(ctx, memo, expectedVersion)
	if err != nil {
		r.tracer.RecordError(ctx, err)
		return ports.SaveResult{}, err
	}

	result := ports.SaveResult{Memo: saved}

	// Invalidate rather than overwrite; the next Find repopulates from the
	// primary store. The fence keeps a Find that read the previous version
	// from writing it back.
	key := r.cacheKey(saved.ID())
	if err := r.call(ctx, ports.StoreCache, "invalidate", r.config.CacheTimeout, func(ctx context.Context) error {
		return r.cache.Invalidate(ctx, key, saved.Version(), r.config.FenceTTL)
	}); err != nil {
		result.DegradedStores = append(result.DegradedStores, ports.StoreCache)
		r.reportDegraded(ctx, saved.ID(), saved.OwnerID(), saved.Version(), events.ReasonSaveDegraded, ports.StoreCache, err)
	}

	if err := r.call(ctx, ports.StoreIndex, "index", r.config.IndexTimeout, func(ctx context.Context) error {
		return r.index.Index(ctx, saved)
	}); err != nil {
		result.DegradedStores = append(result.DegradedStores, ports.StoreIndex)
		r.reportDegraded(ctx, saved.ID(), saved.OwnerID(), saved.Version(), events.ReasonSaveDegraded, ports.StoreIndex, err)
	}

	result.Degraded = len(result.DegradedStores) > 0
	span.SetAttributes(attribute.Bool("memo.degraded", result.Degraded))

	r.logger.Debug("Memo saved",
		zap.String("memoID", saved.ID().String()),
		zap.String("ownerID", saved.OwnerID()),
		zap.Int("version", saved.Version()),
		zap.Bool("degraded", result.Degraded),
	)
	return result, nil
}

func (r *MemoRepository) writePrimary(ctx context.Context, memo *entities.Memo, expectedVersion int) (*entities.Memo, error) {
	if memo.IsNew() {
		err := r.call(ctx, storePrimary, "insert", r.config.PrimaryTimeout, func(ctx context.Context) error {
			return r.primary.Insert(ctx, memo)
		})
		if err != nil {
			if pkgerrors.IsConflict(err) {
				r.metrics.RecordConflict()
				return nil, err
			}
			return nil, primaryError("insert", err)
		}
		return memo, nil
	}

	if expectedVersion <= 0 {
		expectedVersion = memo.Version() - 1
	}

	var (
		stored  *entities.Memo
		outcome ports.CASResult
	)
	err := r.call(ctx, storePrimary, "update_if_version", r.config.PrimaryTimeout, func(ctx context.Context) error {
		var err error
		stored, outcome, err = r.primary.UpdateIfVersion(ctx, memo, expectedVersion)
		return err
	})
	if err != nil {
		return nil, primaryError("update_if_version", err)
	}
	if outcome == ports.CASVersionMismatch {
		r.metrics.RecordConflict()
		return nil, pkgerrors.NewConflictError("stale version").
			WithDetail("memoID", memo.ID().String()).
			WithDetail("expectedVersion", expectedVersion)
	}

	if stored == nil {
		return nil, pkgerrors.NewStorageUnavailableError("update_if_version",
			fmt.Errorf("store applied version %d without returning the record", expectedVersion+1))
	}
	return stored, nil
}

// Delete removes the memo from the primary store, then the cache, then the
// index. It succeeds once the primary delete completes.
func (r *MemoRepository) Delete(ctx context.Context, id valueobjects.MemoID) (ports.DeleteResult, error) {
	ctx, span := r.tracer.Start(ctx, "delete", attribute.String("memo.id", id.String()))
	defer span.End()

	err := r.call(ctx, storePrimary, "delete", r.config.PrimaryTimeout, func(ctx context.Context) error {
		return r.primary.Delete(ctx, id)
	})
	if err != nil {
		r.tracer.RecordError(ctx, err)
		return ports.DeleteResult{}, primaryError("delete", err)
	}

	var result ports.DeleteResult

	key := r.cacheKey(id)
	if err := r.call(ctx, ports.StoreCache, "invalidate", r.config.CacheTimeout, func(ctx context.Context) error {
		return r.cache.Invalidate(ctx, key, tombstoneVersion, r.config.FenceTTL)
	}); err != nil {
		result.DegradedStores = append(result.DegradedStores, ports.StoreCache)
		r.reportDegraded(ctx, id, "", 0, events.ReasonDeleteDegraded, ports.StoreCache, err)
	}

	if err := r.call(ctx, ports.StoreIndex, "delete", r.config.IndexTimeout, func(ctx context.Context) error {
		return r.index.Delete(ctx, id)
	}); err != nil {
		result.DegradedStores = append(result.DegradedStores, ports.StoreIndex)
		r.reportDegraded(ctx, id, "", 0, events.ReasonDeleteDegraded, ports.StoreIndex, err)
	}

	result.Degraded = len(result.DegradedStores) > 0
	return result, nil
}

// Search queries the index only; there is no fallback when it is down
func (r *MemoRepository) Search(ctx context.Context, query ports.SearchQuery) ([]*entities.Memo, error) {
	ctx, span := r.tracer.Start(ctx, "search",
		attribute.String("owner.id", query.OwnerID),
		attribute.Bool("search.has_text", query.Text != ""),
		attribute.String("search.tag", query.Tag),
	)
	defer span.End()

	var memos []*entities.Memo
	err := r.call(ctx, ports.StoreIndex, "search", r.config.IndexTimeout, func(ctx context.Context) error {
		var err error
		memos, err = r.index.Search(ctx, query)
		return err
	})
	if err != nil {
		r.tracer.RecordError(ctx, err)
		if pkgerrors.IsAppError(err) && !pkgerrors.IsType(err, pkgerrors.ErrorTypeInternal) {
			return nil, err
		}
		return nil, pkgerrors.NewIndexUnavailableError("search", err)
	}
	if memos == nil {
		memos = []*entities.Memo{}
	}
	return memos, nil
}

// Exists short-circuits on a cache hit, otherwise asks the primary store
func (r *MemoRepository) Exists(ctx context.Context, id valueobjects.MemoID) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "exists", attribute.String("memo.id", id.String()))
	defer span.End()

	key := r.cacheKey(id)
	var cached bool
	err := r.call(ctx, ports.StoreCache, "exists", r.config.CacheTimeout, func(ctx context.Context) error {
		var err error
		cached, err = r.cache.Exists(ctx, key)
		return err
	})
	if err != nil {
		r.logger.Warn("Cache existence check failed", zap.String("memoID", id.String()), zap.Error(err))
	} else if cached {
		return true, nil
	}

	var exists bool
	err = r.call(ctx, storePrimary, "exists", r.config.PrimaryTimeout, func(ctx context.Context) error {
		var err error
		exists, err = r.primary.Exists(ctx, id)
		return err
	})
	if err != nil {
		return false, primaryError("exists", err)
	}
	return exists, nil
}

// call runs fn under its own timeout and a child span, recording metrics
func (r *MemoRepository) call(ctx context.Context, store, operation string, timeout time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := r.tracer.TraceFunction(ctx, fmt.Sprintf("%s.%s", store, operation), func(ctx context.Context) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return fn(ctx)
	})
	r.metrics.RecordStoreOperation(store, operation, time.Since(start), err)
	return err
}

// populate is best-effort; failures only cost a future cache miss. A payload
// older than a concurrent save's fence is dropped by the cache.
func (r *MemoRepository) populate(ctx context.Context, key string, memo *entities.Memo) {
	payload, err := json.Marshal(memo)
	if err != nil {
		r.logger.Warn("Failed to encode memo for cache", zap.String("memoID", memo.ID().String()), zap.Error(err))
		return
	}
	var stored bool
	if err := r.call(ctx, ports.StoreCache, "set_if_newer", r.config.CacheTimeout, func(ctx context.Context) error {
		var err error
		stored, err = r.cache.SetIfNewer(ctx, key, payload, memo.Version(), r.config.CacheTTL)
		return err
	}); err != nil {
		r.logger.Warn("Failed to populate cache", zap.String("memoID", memo.ID().String()), zap.Error(err))
		return
	}
	if !stored {
		r.logger.Debug("Skipped superseded cache payload",
			zap.String("memoID", memo.ID().String()),
			zap.Int("version", memo.Version()),
		)
	}
}

func (r *MemoRepository) invalidate(ctx context.Context, key string) {
	if err := r.call(ctx, ports.StoreCache, "delete", r.config.CacheTimeout, func(ctx context.Context) error {
		return r.cache.Delete(ctx, key)
	}); err != nil {
		r.logger.Warn("Failed to drop cache entry", zap.String("key", key), zap.Error(err))
	}
}

// reportDegraded logs, counts and forwards a secondary-store miss for reconciliation
func (r *MemoRepository) reportDegraded(ctx context.Context, id valueobjects.MemoID, ownerID string, version int, reason, store string, cause error) {
	degraded := pkgerrors.NewDegradedWriteError(store, cause)
	r.logger.Warn(degraded.Message,
		zap.String("store", store),
		zap.String("reason", reason),
		zap.String("memoID", id.String()),
		zap.String("ownerID", ownerID),
		zap.Int("version", version),
		zap.Error(cause),
	)
	r.metrics.RecordDegradedWrite(store)
	r.tracer.AddAnnotation(ctx, "degraded."+store, reason)

	if r.reporter == nil {
		return
	}
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	event := events.NewIndexReconcileRequested(id, ownerID, version, reason, store, time.Now().UTC())
	if err := r.reporter.ReportDegraded(reportCtx, event); err != nil {
		r.logger.Error("Failed to report degraded write",
			zap.String("store", store),
			zap.String("memoID", id.String()),
			zap.Error(err),
		)
	}
}

func (r *MemoRepository) cacheKey(id valueobjects.MemoID) string {
	return r.config.CacheKeyPrefix + id.String()
}

// primaryError keeps typed errors and classifies the rest as StorageUnavailable
func primaryError(operation string, err error) error {
	if pkgerrors.IsAppError(err) {
		return err
	}
	return pkgerrors.NewStorageUnavailableError(operation, err)
}

func decodeMemo(payload []byte) (*entities.Memo, error) {
	var memo entities.Memo
	if err := json.Unmarshal(payload, &memo); err != nil {
		return nil, err
	}
	return &memo, nil
}
