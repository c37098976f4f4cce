// Package reconcile consumes index reconciliation requests from EventBridge.
package reconcile

import (
	"context"
	"encoding/json"

	"memo-backend/domain/core/valueobjects"
	domainevents "memo-backend/domain/events"
	"memo-backend/infrastructure/persistence/repository"

	awsevents "github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// Reconciler re-syncs secondary stores for one memo
type Reconciler interface {
	Reconcile(ctx context.Context, id valueobjects.MemoID) (repository.ReconcileOutcome, error)
}

// Handler turns EventBridge deliveries into Reconcile calls
type Handler struct {
	reconciler Reconciler
	logger     *zap.Logger
}

// NewHandler creates a reconciliation event handler
func NewHandler(reconciler Reconciler, logger *zap.Logger) *Handler {
	return &Handler{reconciler: reconciler, logger: logger}
}

// Handle processes one event. Malformed events are logged and dropped since
// a retry cannot fix them; reconcile failures are returned so the delivery
// is retried.
func (h *Handler) Handle(ctx context.Context, event awsevents.CloudWatchEvent) error {
	if event.DetailType != domainevents.EventTypeIndexReconcile {
		h.logger.Warn("Ignoring unexpected event",
			zap.String("detailType", event.DetailType),
			zap.String("eventID", event.ID),
		)
		return nil
	}

	var detail domainevents.IndexReconcileRequested
	if err := json.Unmarshal(event.Detail, &detail); err != nil {
		h.logger.Error("Dropping unreadable reconcile event", zap.String("eventID", event.ID), zap.Error(err))
		return nil
	}

	id, err := valueobjects.NewMemoIDFromString(detail.MemoID)
	if err != nil {
		h.logger.Error("Dropping reconcile event with invalid memo id",
			zap.String("eventID", event.ID),
			zap.String("memoID", detail.MemoID),
		)
		return nil
	}

	outcome, err := h.reconciler.Reconcile(ctx, id)
	if err != nil {
		h.logger.Warn("Reconcile failed, delivery will be retried",
			zap.String("memoID", detail.MemoID),
			zap.String("reason", detail.Reason),
			zap.String("store", detail.Store),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("Reconcile event processed",
		zap.String("memoID", detail.MemoID),
		zap.String("reason", detail.Reason),
		zap.String("store", detail.Store),
		zap.String("outcome", string(outcome)),
	)
	return nil
}
