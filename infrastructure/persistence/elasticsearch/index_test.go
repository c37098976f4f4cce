package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"memo-backend/application/ports"
	"memo-backend/domain/core/entities"
	pkgerrors "memo-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCluster records requests and replays canned responses
type fakeCluster struct {
	mu         sync.Mutex
	docs       map[string]json.RawMessage
	lastSearch map[string]interface{}
	created    bool
	status     int // forced status for every request when non-zero
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":"forced"}`))
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodHead && len(parts) == 1 && parts[0] == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead && len(parts) == 1:
		if f.created {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && len(parts) == 1:
		f.created = true
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case r.Method == http.MethodPut && len(parts) == 3 && parts[1] == "_doc":
		body, _ := io.ReadAll(r.Body)
		f.docs[parts[2]] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case r.Method == http.MethodDelete && len(parts) == 3:
		if _, ok := f.docs[parts[2]]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"result":"not_found"}`))
			return
		}
		delete(f.docs, parts[2])
		_, _ = w.Write([]byte(`{"result":"deleted"}`))
	case len(parts) == 2 && parts[1] == "_search":
		if !f.created {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.lastSearch = map[string]interface{}{}
		_ = json.Unmarshal(body, &f.lastSearch)

		hits := make([]map[string]interface{}, 0, len(f.docs))
		for id, doc := range f.docs {
			hits = append(hits, map[string]interface{}{"_id": id, "_source": doc})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": map[string]interface{}{"hits": hits},
		})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestIndex(t *testing.T) (*SearchIndex, *fakeCluster) {
	t.Helper()
	cluster := &fakeCluster{docs: make(map[string]json.RawMessage)}
	server := httptest.NewServer(cluster)
	t.Cleanup(server.Close)

	client, err := NewClient([]string{server.URL})
	require.NoError(t, err)
	return NewSearchIndex(client, "", 0, zap.NewNop()), cluster
}

func TestSearchIndex(t *testing.T) {
	ctx := context.Background()
	index, cluster := newTestIndex(t)

	memo, err := entities.NewMemo("user-1", "Groceries", "milk", []string{"home"})
	require.NoError(t, err)

	t.Run("SearchBeforeIndexExistsIsEmpty", func(t *testing.T) {
		results, err := index.Search(ctx, ports.SearchQuery{OwnerID: "user-1"})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("EnsureIndexCreatesOnce", func(t *testing.T) {
		require.NoError(t, index.EnsureIndex(ctx))
		assert.True(t, cluster.created)
		require.NoError(t, index.EnsureIndex(ctx))
	})

	t.Run("IndexStoresSnapshot", func(t *testing.T) {
		require.NoError(t, index.Index(ctx, memo))

		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(cluster.docs[memo.ID().String()], &doc))
		assert.Equal(t, "user-1", doc["owner_id"])
		assert.Equal(t, "Groceries", doc["title"])
	})

	t.Run("SearchDecodesHits", func(t *testing.T) {
		results, err := index.Search(ctx, ports.SearchQuery{OwnerID: "user-1", Text: "groceries", Tag: "home"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, memo.Equal(results[0]))

		boolQuery := cluster.lastSearch["query"].(map[string]interface{})["bool"].(map[string]interface{})
		assert.Len(t, boolQuery["filter"], 2)
		assert.Len(t, boolQuery["should"], 2)
		assert.EqualValues(t, 1, boolQuery["minimum_should_match"])
		assert.Equal(t, "_score", cluster.lastSearch["sort"].([]interface{})[0])
		assert.EqualValues(t, DefaultSearchLimit, cluster.lastSearch["size"])
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		require.NoError(t, index.Delete(ctx, memo.ID()))
		require.NoError(t, index.Delete(ctx, memo.ID()))
	})

	t.Run("ServerErrorIsIndexUnavailable", func(t *testing.T) {
		cluster.mu.Lock()
		cluster.status = http.StatusServiceUnavailable
		cluster.mu.Unlock()
		defer func() {
			cluster.mu.Lock()
			cluster.status = 0
			cluster.mu.Unlock()
		}()

		_, err := index.Search(ctx, ports.SearchQuery{OwnerID: "user-1"})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsIndexUnavailable(err))

		assert.True(t, pkgerrors.IsIndexUnavailable(index.Index(ctx, memo)))
	})
}

func TestBuildSearchBodyWithoutText(t *testing.T) {
	body := buildSearchBody(ports.SearchQuery{OwnerID: "user-1"}, 10)

	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.NotContains(t, boolQuery, "should")
	assert.Len(t, boolQuery["filter"], 1)

	sort := body["sort"].([]interface{})
	require.Len(t, sort, 1)
	assert.Equal(t, map[string]interface{}{"updated_at": map[string]interface{}{"order": "desc"}}, sort[0])
}
