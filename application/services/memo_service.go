package services

import (
	"context"
	"sort"
	"time"

	"memo-backend/application/ports"
	"memo-backend/domain/core/entities"
	"memo-backend/domain/core/valueobjects"
	pkgerrors "memo-backend/pkg/errors"

	"go.uber.org/zap"
)

// MemoService applies ownership rules and builds new memo versions before
// handing them to the repository. It calls the repository directly; there is
// no command bus in between.
type MemoService struct {
	repo   ports.MemoRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewMemoService creates a new memo service
func NewMemoService(repo ports.MemoRepository, logger *zap.Logger) *MemoService {
	return &MemoService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SearchResult is the response of a search
type SearchResult struct {
	Items      []*entities.Memo `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
}

// Create stores a new memo owned by ownerID
func (s *MemoService) Create(ctx context.Context, ownerID, title, content string, tags []string) (ports.SaveResult, error) {
	memo, err := entities.NewMemoAt(ownerID, title, content, tags, s.now())
	if err != nil {
		return ports.SaveResult{}, err
	}

	result, err := s.repo.Save(ctx, memo, 0)
	if err != nil {
		return ports.SaveResult{}, err
	}

	s.logger.Info("Memo created",
		zap.String("memoID", memo.ID().String()),
		zap.String("ownerID", ownerID),
		zap.Bool("degraded", result.Degraded),
	)
	return result, nil
}

// Update applies patch to the memo if the caller saw expectedVersion
func (s *MemoService) Update(ctx context.Context, id, ownerID string, patch entities.MemoPatch, expectedVersion int) (ports.SaveResult, error) {
	if expectedVersion < 1 {
		return ports.SaveResult{}, pkgerrors.NewValidationError("version is required").WithDetail("field", "version")
	}
	if patch.IsEmpty() {
		return ports.SaveResult{}, pkgerrors.NewValidationError("update must change title, content or tags")
	}

	current, err := s.load(ctx, id, ownerID)
	if err != nil {
		return ports.SaveResult{}, err
	}

	// Fail early; the CAS in the repository still guards concurrent writers.
	if current.Version() != expectedVersion {
		return ports.SaveResult{}, pkgerrors.NewConflictError("memo has been updated by another user").
			WithDetail("currentVersion", current.Version()).
			WithDetail("expectedVersion", expectedVersion)
	}

	next, err := current.Update(patch, s.now())
	if err != nil {
		return ports.SaveResult{}, err
	}

	result, err := s.repo.Save(ctx, next, expectedVersion)
	if err != nil {
		return ports.SaveResult{}, err
	}

	s.logger.Info("Memo updated",
		zap.String("memoID", id),
		zap.String("ownerID", ownerID),
		zap.Int("version", result.Memo.Version()),
		zap.Bool("degraded", result.Degraded),
	)
	return result, nil
}

// Get returns a memo owned by ownerID
func (s *MemoService) Get(ctx context.Context, id, ownerID string) (*entities.Memo, error) {
	return s.load(ctx, id, ownerID)
}

// Delete removes a memo owned by ownerID
func (s *MemoService) Delete(ctx context.Context, id, ownerID string) (ports.DeleteResult, error) {
	memo, err := s.load(ctx, id, ownerID)
	if err != nil {
		return ports.DeleteResult{}, err
	}

	result, err := s.repo.Delete(ctx, memo.ID())
	if err != nil {
		return ports.DeleteResult{}, err
	}

	s.logger.Info("Memo deleted",
		zap.String("memoID", id),
		zap.String("ownerID", ownerID),
		zap.Bool("degraded", result.Degraded),
	)
	return result, nil
}

// List returns every memo of ownerID, most recently updated first
func (s *MemoService) List(ctx context.Context, ownerID string) ([]*entities.Memo, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("ownerID is required")
	}
	memos, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(memos, func(i, j int) bool {
		return memos[i].UpdatedAt().After(memos[j].UpdatedAt())
	})
	return memos, nil
}

// Search runs an owner-scoped search
func (s *MemoService) Search(ctx context.Context, ownerID, text, tag string) (SearchResult, error) {
	if ownerID == "" {
		return SearchResult{}, pkgerrors.NewValidationError("ownerID is required")
	}
	memos, err := s.repo.Search(ctx, ports.SearchQuery{
		OwnerID: ownerID,
		Text:    text,
		Tag:     tag,
	})
	if err != nil {
		return SearchResult{}, err
	}

	return SearchResult{
		Items:      memos,
		Total:      len(memos),
		Page:       1,
		TotalPages: 1,
	}, nil
}

func (s *MemoService) load(ctx context.Context, id, ownerID string) (*entities.Memo, error) {
	memoID, err := valueobjects.NewMemoIDFromString(id)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error()).WithDetail("field", "id")
	}

	memo, err := s.repo.Find(ctx, memoID)
	if err != nil {
		return nil, err
	}
	if !memo.IsOwnedBy(ownerID) {
		return nil, pkgerrors.NewForbiddenError("not authorized to access this memo")
	}
	return memo, nil
}
