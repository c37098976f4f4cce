package events

import (
	"time"

	"memo-backend/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// EventTypeIndexReconcile is the detail-type of reconciliation requests
const EventTypeIndexReconcile = "memo.index.reconcile"

// Reconcile reasons
const (
	ReasonSaveDegraded   = "save_degraded"
	ReasonDeleteDegraded = "delete_degraded"
)

// IndexReconcileRequested is raised when a secondary store missed a write
// that the primary store accepted.
type IndexReconcileRequested struct {
	BaseEvent
	MemoID  string `json:"memo_id"`
	OwnerID string `json:"owner_id"`
	Reason  string `json:"reason"`
	Store   string `json:"store"`
}

// NewIndexReconcileRequested creates an IndexReconcileRequested event
func NewIndexReconcileRequested(memoID valueobjects.MemoID, ownerID string, version int, reason, store string, timestamp time.Time) IndexReconcileRequested {
	return IndexReconcileRequested{
		BaseEvent: BaseEvent{
			AggregateID: memoID.String(),
			EventType:   EventTypeIndexReconcile,
			Timestamp:   timestamp,
			Version:     version,
		},
		MemoID:  memoID.String(),
		OwnerID: ownerID,
		Reason:  reason,
		Store:   store,
	}
}
