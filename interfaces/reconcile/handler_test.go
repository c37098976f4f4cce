package reconcile

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"memo-backend/domain/core/valueobjects"
	domainevents "memo-backend/domain/events"
	"memo-backend/infrastructure/persistence/repository"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, id valueobjects.MemoID) (repository.ReconcileOutcome, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(repository.ReconcileOutcome), args.Error(1)
}

func reconcileEvent(t *testing.T, id valueobjects.MemoID) awsevents.CloudWatchEvent {
	t.Helper()
	detail, err := json.Marshal(domainevents.NewIndexReconcileRequested(id, "user-1", 2,
		domainevents.ReasonSaveDegraded, "index", time.Now().UTC()))
	require.NoError(t, err)
	return awsevents.CloudWatchEvent{
		ID:         "evt-1",
		DetailType: domainevents.EventTypeIndexReconcile,
		Source:     "memo-backend",
		Detail:     detail,
	}
}

func TestHandle(t *testing.T) {
	ctx := context.Background()
	id := valueobjects.NewMemoID()

	t.Run("Reconciles", func(t *testing.T) {
		r := new(MockReconciler)
		r.On("Reconcile", mock.Anything, id).Return(repository.ReconcileReindexed, nil)

		require.NoError(t, NewHandler(r, zap.NewNop()).Handle(ctx, reconcileEvent(t, id)))
		r.AssertExpectations(t)
	})

	t.Run("FailureIsRetried", func(t *testing.T) {
		r := new(MockReconciler)
		r.On("Reconcile", mock.Anything, id).Return(repository.ReconcileOutcome(""), stderrors.New("index down"))

		assert.Error(t, NewHandler(r, zap.NewNop()).Handle(ctx, reconcileEvent(t, id)))
	})

	t.Run("MalformedEventsAreDropped", func(t *testing.T) {
		r := new(MockReconciler)
		h := NewHandler(r, zap.NewNop())

		other := reconcileEvent(t, id)
		other.DetailType = "memo.created"
		assert.NoError(t, h.Handle(ctx, other))

		garbage := reconcileEvent(t, id)
		garbage.Detail = json.RawMessage(`{"memo_id":`)
		assert.NoError(t, h.Handle(ctx, garbage))

		badID := reconcileEvent(t, id)
		badID.Detail = json.RawMessage(`{"memo_id":"not-a-uuid"}`)
		assert.NoError(t, h.Handle(ctx, badID))

		r.AssertNotCalled(t, "Reconcile")
	})
}
