package handlers

import (
	"context"
	"net/http"
	"strings"

	"memo-backend/application/ports"
	"memo-backend/application/services"
	"memo-backend/domain/core/entities"
	"memo-backend/pkg/common"
	pkgerrors "memo-backend/pkg/errors"
	"memo-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MemoService is what the handler needs from the application layer
type MemoService interface {
	Create(ctx context.Context, ownerID, title, content string, tags []string) (ports.SaveResult, error)
	Update(ctx context.Context, id, ownerID string, patch entities.MemoPatch, expectedVersion int) (ports.SaveResult, error)
	Get(ctx context.Context, id, ownerID string) (*entities.Memo, error)
	Delete(ctx context.Context, id, ownerID string) (ports.DeleteResult, error)
	List(ctx context.Context, ownerID string) ([]*entities.Memo, error)
	Search(ctx context.Context, ownerID, text, tag string) (services.SearchResult, error)
}

// MemoHandler handles memo-related HTTP requests
type MemoHandler struct {
	service      MemoService
	errorHandler *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewMemoHandler creates a new memo handler
func NewMemoHandler(service MemoService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *MemoHandler {
	return &MemoHandler{
		service:      service,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// CreateMemoRequest represents the request body for creating a memo
type CreateMemoRequest struct {
	Title   string   `json:"title" validate:"required,max=200"`
	Content string   `json:"content" validate:"max=50000"`
	Tags    []string `json:"tags,omitempty" validate:"omitempty,max=10,dive,max=50"`
}

// UpdateMemoRequest represents the request body for updating a memo.
// Version is the version the client last read.
type UpdateMemoRequest struct {
	Title   *string   `json:"title,omitempty" validate:"omitempty,max=200"`
	Content *string   `json:"content,omitempty" validate:"omitempty,max=50000"`
	Tags    *[]string `json:"tags,omitempty" validate:"omitempty,max=10"`
	Version int       `json:"version" validate:"required,min=1"`
}

// Routes mounts the memo endpoints
func (h *MemoHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateMemo)
	r.Get("/", h.ListMemos)
	r.Get("/search", h.SearchMemos)
	r.Get("/{memoID}", h.GetMemo)
	r.Put("/{memoID}", h.UpdateMemo)
	r.Delete("/{memoID}", h.DeleteMemo)
}

// CreateMemo handles POST /memos
func (h *MemoHandler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req CreateMemoRequest
	if err := common.ParseJSONBody(w, r, &req, common.DefaultMaxBodyBytes); err != nil {
		h.errorHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.service.Create(r.Context(), userID, req.Title, req.Content, req.Tags)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.MarkDegraded(w, result.DegradedStores)
	common.RespondJSON(w, http.StatusCreated, result.Memo)
}

// GetMemo handles GET /memos/{memoID}
func (h *MemoHandler) GetMemo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	memo, err := h.service.Get(r.Context(), chi.URLParam(r, "memoID"), userID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, memo)
}

// UpdateMemo handles PUT /memos/{memoID}
func (h *MemoHandler) UpdateMemo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req UpdateMemoRequest
	if err := common.ParseJSONBody(w, r, &req, common.DefaultMaxBodyBytes); err != nil {
		h.errorHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	patch := entities.MemoPatch{Title: req.Title, Content: req.Content, Tags: req.Tags}
	result, err := h.service.Update(r.Context(), chi.URLParam(r, "memoID"), userID, patch, req.Version)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.MarkDegraded(w, result.DegradedStores)
	common.RespondJSON(w, http.StatusOK, result.Memo)
}

// DeleteMemo handles DELETE /memos/{memoID}
func (h *MemoHandler) DeleteMemo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	result, err := h.service.Delete(r.Context(), chi.URLParam(r, "memoID"), userID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.MarkDegraded(w, result.DegradedStores)
	common.RespondNoContent(w)
}

// ListMemos handles GET /memos
func (h *MemoHandler) ListMemos(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	memos, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if memos == nil {
		memos = []*entities.Memo{}
	}
	common.RespondJSON(w, http.StatusOK, memos)
}

// SearchMemos handles GET /memos/search?query=&tag=
func (h *MemoHandler) SearchMemos(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	result, err := h.service.Search(r.Context(),
		userID,
		strings.TrimSpace(q.Get("query")),
		strings.TrimSpace(q.Get("tag")),
	)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

func (h *MemoHandler) principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError(""))
		return "", false
	}
	return userID, true
}
