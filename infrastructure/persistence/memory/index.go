package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"memo-backend/application/ports"
	"memo-backend/domain/core/entities"
	"memo-backend/domain/core/valueobjects"
)

const (
	titleWeight   = 2.0
	contentWeight = 1.0

	defaultSearchLimit = 100
)

// SearchIndex is an in-memory stand-in for the Elasticsearch index.
// It scores case-insensitive token matches, weighting titles higher.
type SearchIndex struct {
	mu   sync.RWMutex
	docs map[string]*entities.Memo
}

// NewSearchIndex creates an empty in-memory index
func NewSearchIndex() *SearchIndex {
	return &SearchIndex{docs: make(map[string]*entities.Memo)}
}

var _ ports.SearchIndex = (*SearchIndex)(nil)

func (i *SearchIndex) Index(ctx context.Context, memo *entities.Memo) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.docs[memo.ID().String()] = memo
	return nil
}

func (i *SearchIndex) Delete(ctx context.Context, id valueobjects.MemoID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.docs, id.String())
	return nil
}

type scoredMemo struct {
	memo  *entities.Memo
	score float64
}

func (i *SearchIndex) Search(ctx context.Context, query ports.SearchQuery) ([]*entities.Memo, error) {
	terms := tokenize(query.Text)
	limit := query.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	i.mu.RLock()
	hits := make([]scoredMemo, 0)
	for _, memo := range i.docs {
		if !memo.IsOwnedBy(query.OwnerID) {
			continue
		}
		if query.Tag != "" && !memo.HasTag(query.Tag) {
			continue
		}
		score := 0.0
		if len(terms) > 0 {
			score = titleWeight*matches(terms, memo.Title()) + contentWeight*matches(terms, memo.Content())
			if score == 0 {
				continue
			}
		}
		hits = append(hits, scoredMemo{memo: memo, score: score})
	}
	i.mu.RUnlock()

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].memo.UpdatedAt().After(hits[b].memo.UpdatedAt())
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]*entities.Memo, len(hits))
	for n, hit := range hits {
		out[n] = hit.memo
	}
	return out, nil
}

// Ping always succeeds
func (i *SearchIndex) Ping(ctx context.Context) error {
	return nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// matches counts how many query terms occur as tokens of field
func matches(terms []string, field string) float64 {
	tokens := make(map[string]struct{})
	for _, tok := range tokenize(field) {
		tokens[tok] = struct{}{}
	}
	count := 0.0
	for _, term := range terms {
		if _, ok := tokens[term]; ok {
			count++
		}
	}
	return count
}
