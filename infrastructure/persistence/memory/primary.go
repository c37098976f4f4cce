package memory

import (
	"context"
	"sync"

	"memo-backend/application/ports"
	"memo-backend/domain/core/entities"
	"memo-backend/domain/core/valueobjects"
	"memo-backend/pkg/errors"
)

// PrimaryStore is a mutex-guarded map with the same CAS semantics as the
// DynamoDB store. Memos are immutable values so they are stored as-is.
type PrimaryStore struct {
	mu    sync.RWMutex
	memos map[string]*entities.Memo
}

// NewPrimaryStore creates an empty in-memory primary store
func NewPrimaryStore() *PrimaryStore {
	return &PrimaryStore{memos: make(map[string]*entities.Memo)}
}

var _ ports.PrimaryStore = (*PrimaryStore)(nil)

func (s *PrimaryStore) Get(ctx context.Context, id valueobjects.MemoID) (*entities.Memo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewStorageUnavailableError("get", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memos[id.String()], nil
}

func (s *PrimaryStore) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Memo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewStorageUnavailableError("list_by_owner", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	memos := make([]*entities.Memo, 0)
	for _, memo := range s.memos {
		if memo.IsOwnedBy(ownerID) {
			memos = append(memos, memo)
		}
	}
	return memos, nil
}

func (s *PrimaryStore) Insert(ctx context.Context, memo *entities.Memo) error {
	if err := ctx.Err(); err != nil {
		return errors.NewStorageUnavailableError("insert", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memo.ID().String()
	if _, exists := s.memos[key]; exists {
		return errors.NewConflictError("memo already exists").WithDetail("memoID", key)
	}
	s.memos[key] = memo
	return nil
}

// UpdateIfVersion applies memo's mutable fields onto the stored record.
// Id, owner and creation time stay as stored.
func (s *PrimaryStore) UpdateIfVersion(ctx context.Context, memo *entities.Memo, expectedVersion int) (*entities.Memo, ports.CASResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, ports.CASVersionMismatch, errors.NewStorageUnavailableError("update_if_version", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memo.ID().String()
	current, exists := s.memos[key]
	if !exists || current.Version() != expectedVersion {
		return nil, ports.CASVersionMismatch, nil
	}
	stored := current.WithChangesFrom(memo, expectedVersion+1)
	s.memos[key] = stored
	return stored, ports.CASApplied, nil
}

func (s *PrimaryStore) Delete(ctx context.Context, id valueobjects.MemoID) error {
	if err := ctx.Err(); err != nil {
		return errors.NewStorageUnavailableError("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memos, id.String())
	return nil
}

func (s *PrimaryStore) Exists(ctx context.Context, id valueobjects.MemoID) (bool, error) {
	memo, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return memo != nil, nil
}

// Ping always succeeds
func (s *PrimaryStore) Ping(ctx context.Context) error {
	return nil
}
