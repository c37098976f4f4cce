package repository

import (
	"context"
	"sync"
	"time"

	"memo-backend/application/ports"
	"memo-backend/domain/core/entities"
	"memo-backend/domain/core/valueobjects"
	"memo-backend/domain/events"

	"github.com/stretchr/testify/mock"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	value, _ := args.Get(0).([]byte)
	return value, args.Bool(1), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockCache) Invalidate(ctx context.Context, key string, version int, fenceTTL time.Duration) error {
	return m.Called(ctx, key, version, fenceTTL).Error(0)
}

func (m *MockCache) SetIfNewer(ctx context.Context, key string, value []byte, version int, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, version, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

type MockSearchIndex struct {
	mock.Mock
}

func (m *MockSearchIndex) Index(ctx context.Context, memo *entities.Memo) error {
	return m.Called(ctx, memo).Error(0)
}

func (m *MockSearchIndex) Delete(ctx context.Context, id valueobjects.MemoID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSearchIndex) Search(ctx context.Context, query ports.SearchQuery) ([]*entities.Memo, error) {
	args := m.Called(ctx, query)
	memos, _ := args.Get(0).([]*entities.Memo)
	return memos, args.Error(1)
}

type MockPrimaryStore struct {
	mock.Mock
}

func (m *MockPrimaryStore) Get(ctx context.Context, id valueobjects.MemoID) (*entities.Memo, error) {
	args := m.Called(ctx, id)
	memo, _ := args.Get(0).(*entities.Memo)
	return memo, args.Error(1)
}

func (m *MockPrimaryStore) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Memo, error) {
	args := m.Called(ctx, ownerID)
	memos, _ := args.Get(0).([]*entities.Memo)
	return memos, args.Error(1)
}

func (m *MockPrimaryStore) Insert(ctx context.Context, memo *entities.Memo) error {
	return m.Called(ctx, memo).Error(0)
}

func (m *MockPrimaryStore) UpdateIfVersion(ctx context.Context, memo *entities.Memo, expectedVersion int) (*entities.Memo, ports.CASResult, error) {
	args := m.Called(ctx, memo, expectedVersion)
	stored, _ := args.Get(0).(*entities.Memo)
	return stored, args.Get(1).(ports.CASResult), args.Error(2)
}

func (m *MockPrimaryStore) Delete(ctx context.Context, id valueobjects.MemoID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPrimaryStore) Exists(ctx context.Context, id valueobjects.MemoID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// recordingReporter keeps every reconciliation request it receives
type recordingReporter struct {
	mu     sync.Mutex
	events []events.IndexReconcileRequested
}

func (r *recordingReporter) ReportDegraded(ctx context.Context, event events.IndexReconcileRequested) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingReporter) Events() []events.IndexReconcileRequested {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.IndexReconcileRequested, len(r.events))
	copy(out, r.events)
	return out
}
