package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"memo-backend/application/ports"
	"memo-backend/domain/core/entities"
	"memo-backend/domain/core/valueobjects"
	pkgerrors "memo-backend/pkg/errors"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

const (
	// DefaultIndexName is the index memos are stored in
	DefaultIndexName = "memos"
	// DefaultSearchLimit caps the number of hits returned by Search
	DefaultSearchLimit = 100

	titleBoost = 2.0
)

// indexMapping is applied by EnsureIndex when the index does not exist
const indexMapping = `{
  "mappings": {
    "properties": {
      "id":         {"type": "keyword"},
      "title":      {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
      "content":    {"type": "text"},
      "tags":       {"type": "keyword"},
      "owner_id":   {"type": "keyword"},
      "created_at": {"type": "date"},
      "updated_at": {"type": "date"},
      "version":    {"type": "integer"}
    }
  }
}`

// SearchIndex implements ports.SearchIndex on Elasticsearch
type SearchIndex struct {
	client *elasticsearch.Client
	index  string
	limit  int
	logger *zap.Logger
}

// NewClient creates an Elasticsearch client for the given node URLs
func NewClient(urls []string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    urls,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return client, nil
}

// NewSearchIndex creates a new SearchIndex
func NewSearchIndex(client *elasticsearch.Client, index string, limit int, logger *zap.Logger) *SearchIndex {
	if index == "" {
		index = DefaultIndexName
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &SearchIndex{
		client: client,
		index:  index,
		limit:  limit,
		logger: logger,
	}
}

var _ ports.SearchIndex = (*SearchIndex)(nil)

// EnsureIndex creates the index with its mapping if it is missing
func (s *SearchIndex) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return pkgerrors.NewIndexUnavailableError("ensure_index", err)
	}
	drain(res)
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = s.client.Indices.Create(s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return pkgerrors.NewIndexUnavailableError("ensure_index", err)
	}
	defer drain(res)
	// another instance may have created it concurrently
	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		return responseError("ensure_index", res)
	}

	s.logger.Info("Search index ready", zap.String("index", s.index))
	return nil
}

// Index upserts a memo document keyed by its id
func (s *SearchIndex) Index(ctx context.Context, memo *entities.Memo) error {
	body, err := json.Marshal(memo.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to marshal memo document: %w", err)
	}

	res, err := s.client.Index(s.index, bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(memo.ID().String()),
		s.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return pkgerrors.NewIndexUnavailableError("index", err)
	}
	defer drain(res)
	if res.IsError() {
		return responseError("index", res)
	}

	s.logger.Debug("Memo indexed",
		zap.String("memoID", memo.ID().String()),
		zap.Int("version", memo.Version()),
	)
	return nil
}

// Delete removes a memo document; a missing document is success
func (s *SearchIndex) Delete(ctx context.Context, id valueobjects.MemoID) error {
	res, err := s.client.Delete(s.index, id.String(),
		s.client.Delete.WithContext(ctx),
		s.client.Delete.WithRefresh("true"),
	)
	if err != nil {
		return pkgerrors.NewIndexUnavailableError("delete", err)
	}
	defer drain(res)
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string                `json:"_id"`
			Source entities.MemoSnapshot `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs an owner-scoped query. Empty text matches every owned memo.
func (s *SearchIndex) Search(ctx context.Context, query ports.SearchQuery) ([]*entities.Memo, error) {
	limit := query.Limit
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(buildSearchBody(query, limit)); err != nil {
		return nil, fmt.Errorf("failed to encode search body: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(&body),
	)
	if err != nil {
		return nil, pkgerrors.NewIndexUnavailableError("search", err)
	}
	defer drain(res)

	if res.StatusCode == http.StatusNotFound {
		return []*entities.Memo{}, nil
	}
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, pkgerrors.NewIndexUnavailableError("search", fmt.Errorf("decode response: %w", err))
	}

	memos := make([]*entities.Memo, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		memo, err := entities.ReconstructMemo(hit.Source)
		if err != nil {
			s.logger.Warn("Skipping unreadable search hit", zap.String("docID", hit.ID), zap.Error(err))
			continue
		}
		memos = append(memos, memo)
	}
	return memos, nil
}

// Ping checks the cluster is reachable
func (s *SearchIndex) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return pkgerrors.NewIndexUnavailableError("ping", err)
	}
	defer drain(res)
	if res.IsError() {
		return responseError("ping", res)
	}
	return nil
}

func buildSearchBody(query ports.SearchQuery, limit int) map[string]interface{} {
	filter := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"owner_id": query.OwnerID}},
	}
	if query.Tag != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"tags": query.Tag}})
	}

	boolQuery := map[string]interface{}{"filter": filter}
	sort := []interface{}{
		map[string]interface{}{"updated_at": map[string]interface{}{"order": "desc"}},
	}

	if query.Text != "" {
		boolQuery["should"] = []interface{}{
			map[string]interface{}{"match": map[string]interface{}{
				"title": map[string]interface{}{"query": query.Text, "boost": titleBoost},
			}},
			map[string]interface{}{"match": map[string]interface{}{
				"content": map[string]interface{}{"query": query.Text},
			}},
		}
		boolQuery["minimum_should_match"] = 1
		sort = append([]interface{}{"_score"}, sort...)
	}

	return map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  sort,
	}
}

// responseError maps an error response; 5xx means the index is unavailable
func responseError(op string, res *esapi.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	cause := fmt.Errorf("elasticsearch %s: %s", res.Status(), bytes.TrimSpace(raw))
	if res.StatusCode >= http.StatusInternalServerError {
		return pkgerrors.NewIndexUnavailableError(op, cause)
	}
	return pkgerrors.NewInternalError(fmt.Sprintf("search index rejected '%s'", op)).WithCause(cause)
}

func drain(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
