package repository

import (
	"context"

	"memo-backend/application/ports"
	"memo-backend/domain/core/entities"
	"memo-backend/domain/core/valueobjects"
	pkgerrors "memo-backend/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReconcileOutcome describes what Reconcile did to the index
type ReconcileOutcome string

const (
	ReconcileReindexed ReconcileOutcome = "reindexed"
	ReconcileRemoved   ReconcileOutcome = "removed"
)

// Reconcile re-syncs the cache and index for one memo from the primary store.
// A present record is re-indexed, an absent one is removed from the index;
// the cache entry is dropped either way. Unlike Save, secondary failures are
// returned so the caller can retry. Running it twice has no further effect.
func (r *MemoRepository) Reconcile(ctx context.Context, id valueobjects.MemoID) (ReconcileOutcome, error) {
	ctx, span := r.tracer.Start(ctx, "reconcile", attribute.String("memo.id", id.String()))
	defer span.End()

	var memo *entities.Memo
	err := r.call(ctx, storePrimary, "get", r.config.PrimaryTimeout, func(ctx context.Context) error {
		var err error
		memo, err = r.primary.Get(ctx, id)
		return err
	})
	if err != nil {
		r.tracer.RecordError(ctx, err)
		return "", primaryError("get", err)
	}

	fence := tombstoneVersion
	if memo != nil {
		fence = memo.Version()
	}
	key := r.cacheKey(id)
	if err := r.call(ctx, ports.StoreCache, "invalidate", r.config.CacheTimeout, func(ctx context.Context) error {
		return r.cache.Invalidate(ctx, key, fence, r.config.FenceTTL)
	}); err != nil {
		return "", pkgerrors.NewDegradedWriteError(ports.StoreCache, err)
	}

	outcome := ReconcileRemoved
	if memo == nil {
		err = r.call(ctx, ports.StoreIndex, "delete", r.config.IndexTimeout, func(ctx context.Context) error {
			return r.index.Delete(ctx, id)
		})
	} else {
		outcome = ReconcileReindexed
		err = r.call(ctx, ports.StoreIndex, "index", r.config.IndexTimeout, func(ctx context.Context) error {
			return r.index.Index(ctx, memo)
		})
	}
	if err != nil {
		r.tracer.RecordError(ctx, err)
		return "", pkgerrors.NewIndexUnavailableError("reconcile", err)
	}

	r.logger.Info("Memo reconciled",
		zap.String("memoID", id.String()),
		zap.String("outcome", string(outcome)),
	)
	return outcome, nil
}
