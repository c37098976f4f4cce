package ports

import (
	"context"
	"time"

	"memo-backend/domain/core/entities"
	"memo-backend/domain/core/valueobjects"
	"memo-backend/domain/events"
)

// CASResult is the outcome of a conditional update that reached the store.
// Faults are reported through the accompanying error, never through CASResult.
type CASResult int

const (
	// CASApplied means the stored version matched and the write landed
	CASApplied CASResult = iota
	// CASVersionMismatch means another writer got there first
	CASVersionMismatch
)

func (r CASResult) String() string {
	switch r {
	case CASApplied:
		return "applied"
	case CASVersionMismatch:
		return "version_mismatch"
	default:
		return "unknown"
	}
}

// Secondary store names used in degraded-write reporting
const (
	StoreCache = "cache"
	StoreIndex = "index"
)

// PrimaryStore is the durable, authoritative memo store.
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type PrimaryStore interface {
	// Get returns the memo or nil when it does not exist
	Get(ctx context.Context, id valueobjects.MemoID) (*entities.Memo, error)

	// ListByOwner returns every memo owned by ownerID, unordered
	ListByOwner(ctx context.Context, ownerID string) ([]*entities.Memo, error)

	// Insert stores a new memo; a Conflict error is returned if the id exists
	Insert(ctx context.Context, memo *entities.Memo) error

	// UpdateIfVersion writes memo's title, content, tags and updated_at with
	// version expectedVersion+1 only if the stored version equals
	// expectedVersion. Id, owner and creation time are never rewritten. On
	// CASApplied the record as stored is returned.
	UpdateIfVersion(ctx context.Context, memo *entities.Memo, expectedVersion int) (*entities.Memo, CASResult, error)

	// Delete removes a memo; deleting an absent memo is not an error
	Delete(ctx context.Context, id valueobjects.MemoID) error

	// Exists checks if a memo exists
	Exists(ctx context.Context, id valueobjects.MemoID) (bool, error)
}

// Cache defines the interface for caching serialized memos
type Cache interface {
	// Get retrieves a value; the bool is false on a miss
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value; a zero ttl keeps it until deleted
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key is present
	Exists(ctx context.Context, key string) (bool, error)

	// Invalidate removes key and fences it at version for fenceTTL; while the
	// fence lives, SetIfNewer drops payloads older than version
	Invalidate(ctx context.Context, key string, version int, fenceTTL time.Duration) error

	// SetIfNewer stores value unless key is fenced above version.
	// The bool reports whether the value was stored.
	SetIfNewer(ctx context.Context, key string, value []byte, version int, ttl time.Duration) (bool, error)
}

// SearchQuery defines search parameters
type SearchQuery struct {
	OwnerID string
	Text    string
	Tag     string
	Limit   int
}

// SearchIndex is the eventually consistent, owner-scoped search projection
type SearchIndex interface {
	// Index upserts a memo by id; last write wins
	Index(ctx context.Context, memo *entities.Memo) error

	// Delete removes a memo from the index; absent ids are not an error
	Delete(ctx context.Context, id valueobjects.MemoID) error

	// Search returns owned memos matching the query, best match first
	Search(ctx context.Context, query SearchQuery) ([]*entities.Memo, error)
}

// HealthChecker is implemented by adapters that can ping their backend
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// EventPublisher publishes domain events to a bus
type EventPublisher interface {
	Publish(ctx context.Context, evts ...events.DomainEvent) error
}

// ReconciliationReporter receives secondary-store writes that need repair
type ReconciliationReporter interface {
	ReportDegraded(ctx context.Context, event events.IndexReconcileRequested) error
}

// SaveResult describes a successful save.
// Degraded is set when a secondary store missed the write.
type SaveResult struct {
	Memo           *entities.Memo
	Degraded       bool
	DegradedStores []string
}

// DeleteResult describes a successful delete
type DeleteResult struct {
	Degraded       bool
	DegradedStores []string
}

// MemoRepository coordinates the primary store, the cache and the search index
type MemoRepository interface {
	// Find reads through the cache; a NotFound error is returned when absent
	Find(ctx context.Context, id valueobjects.MemoID) (*entities.Memo, error)

	// ListByOwner lists all memos of an owner from the primary store
	ListByOwner(ctx context.Context, ownerID string) ([]*entities.Memo, error)

	// Save inserts a version 1 memo or applies a CAS update against
	// expectedVersion. A zero expectedVersion means memo.Version()-1.
	Save(ctx context.Context, memo *entities.Memo, expectedVersion int) (SaveResult, error)

	// Delete removes a memo from all stores; it is idempotent
	Delete(ctx context.Context, id valueobjects.MemoID) (DeleteResult, error)

	// Search delegates to the search index with no fallback
	Search(ctx context.Context, query SearchQuery) ([]*entities.Memo, error)

	// Exists checks the cache, then the primary store
	Exists(ctx context.Context, id valueobjects.MemoID) (bool, error)
}
