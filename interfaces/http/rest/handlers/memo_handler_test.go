package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"memo-backend/application/ports"
	"memo-backend/application/services"
	"memo-backend/domain/core/entities"
	"memo-backend/pkg/common"
	pkgerrors "memo-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockMemoService struct {
	mock.Mock
}

func (m *MockMemoService) Create(ctx context.Context, ownerID, title, content string, tags []string) (ports.SaveResult, error) {
	args := m.Called(ctx, ownerID, title, content, tags)
	return args.Get(0).(ports.SaveResult), args.Error(1)
}

func (m *MockMemoService) Update(ctx context.Context, id, ownerID string, patch entities.MemoPatch, expectedVersion int) (ports.SaveResult, error) {
	args := m.Called(ctx, id, ownerID, patch, expectedVersion)
	return args.Get(0).(ports.SaveResult), args.Error(1)
}

func (m *MockMemoService) Get(ctx context.Context, id, ownerID string) (*entities.Memo, error) {
	args := m.Called(ctx, id, ownerID)
	memo, _ := args.Get(0).(*entities.Memo)
	return memo, args.Error(1)
}

func (m *MockMemoService) Delete(ctx context.Context, id, ownerID string) (ports.DeleteResult, error) {
	args := m.Called(ctx, id, ownerID)
	return args.Get(0).(ports.DeleteResult), args.Error(1)
}

func (m *MockMemoService) List(ctx context.Context, ownerID string) ([]*entities.Memo, error) {
	args := m.Called(ctx, ownerID)
	memos, _ := args.Get(0).([]*entities.Memo)
	return memos, args.Error(1)
}

func (m *MockMemoService) Search(ctx context.Context, ownerID, text, tag string) (services.SearchResult, error) {
	args := m.Called(ctx, ownerID, text, tag)
	return args.Get(0).(services.SearchResult), args.Error(1)
}

func newTestRouter(svc MemoService) http.Handler {
	h := NewMemoHandler(svc, pkgerrors.NewErrorHandler(zap.NewNop(), false), zap.NewNop())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user := req.Header.Get("X-User-ID"); user != "" {
				req = req.WithContext(common.WithUserID(req.Context(), user))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/memos", h.Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleMemo(t *testing.T) *entities.Memo {
	t.Helper()
	memo, err := entities.NewMemo("user-1", "Groceries", "milk", []string{"home"})
	require.NoError(t, err)
	return memo
}

func TestCreateMemo(t *testing.T) {
	memo := sampleMemo(t)

	t.Run("Created", func(t *testing.T) {
		svc := new(MockMemoService)
		svc.On("Create", mock.Anything, "user-1", "Groceries", "milk", []string{"home"}).
			Return(ports.SaveResult{Memo: memo}, nil)

		rec := do(t, newTestRouter(svc), http.MethodPost, "/memos/", `{"title":"Groceries","content":"milk","tags":["home"]}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Empty(t, rec.Header().Get(common.HeaderDegradedWrite))
		var body entities.MemoSnapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, memo.ID().String(), body.ID)
		assert.Equal(t, 1, body.Version)
		svc.AssertExpectations(t)
	})

	t.Run("DegradedHeader", func(t *testing.T) {
		svc := new(MockMemoService)
		svc.On("Create", mock.Anything, "user-1", "Groceries", "", []string(nil)).
			Return(ports.SaveResult{Memo: memo, Degraded: true, DegradedStores: []string{ports.StoreCache, ports.StoreIndex}}, nil)

		rec := do(t, newTestRouter(svc), http.MethodPost, "/memos/", `{"title":"Groceries"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "cache,index", rec.Header().Get(common.HeaderDegradedWrite))
	})

	t.Run("ValidationFailsBeforeService", func(t *testing.T) {
		svc := new(MockMemoService)
		rec := do(t, newTestRouter(svc), http.MethodPost, "/memos/", `{"content":"no title"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Create")
	})

	t.Run("UnknownFieldRejected", func(t *testing.T) {
		svc := new(MockMemoService)
		rec := do(t, newTestRouter(svc), http.MethodPost, "/memos/", `{"title":"x","colour":"red"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateMemoPassesVersion(t *testing.T) {
	memo := sampleMemo(t)
	title := "Groceries v2"

	svc := new(MockMemoService)
	svc.On("Update", mock.Anything, memo.ID().String(), "user-1", entities.MemoPatch{Title: &title}, 1).
		Return(ports.SaveResult{}, pkgerrors.NewConflictError("stale version"))

	rec := do(t, newTestRouter(svc), http.MethodPut, "/memos/"+memo.ID().String(), `{"title":"Groceries v2","version":1}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	svc.AssertExpectations(t)
}

func TestUpdateMemoRequiresVersion(t *testing.T) {
	svc := new(MockMemoService)
	rec := do(t, newTestRouter(svc), http.MethodPut, "/memos/abc", `{"title":"x"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Update")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"NotFound", pkgerrors.NewNotFoundError("memo"), http.StatusNotFound},
		{"Forbidden", pkgerrors.NewForbiddenError(""), http.StatusForbidden},
		{"StorageUnavailable", pkgerrors.NewStorageUnavailableError("get", stderrors.New("throttled")), http.StatusServiceUnavailable},
		{"Unclassified", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockMemoService)
			svc.On("Get", mock.Anything, "m-1", "user-1").Return(nil, tt.err)

			rec := do(t, newTestRouter(svc), http.MethodGet, "/memos/m-1", "")
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestDeleteAndListAndSearch(t *testing.T) {
	memo := sampleMemo(t)

	t.Run("DeleteNoContent", func(t *testing.T) {
		svc := new(MockMemoService)
		svc.On("Delete", mock.Anything, "m-1", "user-1").Return(ports.DeleteResult{}, nil)

		rec := do(t, newTestRouter(svc), http.MethodDelete, "/memos/m-1", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("ListEmptyIsArray", func(t *testing.T) {
		svc := new(MockMemoService)
		svc.On("List", mock.Anything, "user-1").Return(nil, nil)

		rec := do(t, newTestRouter(svc), http.MethodGet, "/memos/", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("SearchQueryAndTag", func(t *testing.T) {
		svc := new(MockMemoService)
		svc.On("Search", mock.Anything, "user-1", "milk", "home").
			Return(services.SearchResult{Items: []*entities.Memo{memo}, Total: 1, Page: 1, TotalPages: 1}, nil)

		rec := do(t, newTestRouter(svc), http.MethodGet, "/memos/search?query=milk&tag=home", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Items []entities.MemoSnapshot `json:"items"`
			Total int                     `json:"total"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Total)
		require.Len(t, body.Items, 1)
		assert.Equal(t, "Groceries", body.Items[0].Title)
	})

	t.Run("SearchIndexDown", func(t *testing.T) {
		svc := new(MockMemoService)
		svc.On("Search", mock.Anything, "user-1", "", "").
			Return(services.SearchResult{}, pkgerrors.NewIndexUnavailableError("search", stderrors.New("503")))

		rec := do(t, newTestRouter(svc), http.MethodGet, "/memos/search", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestMissingPrincipal(t *testing.T) {
	svc := new(MockMemoService)
	req := httptest.NewRequest(http.MethodGet, "/memos/", nil)
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "List")
}
