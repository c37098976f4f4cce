package entities

import (
	"encoding/json"
	"time"

	"memo-backend/domain/config"
	"memo-backend/domain/core/validators"
	"memo-backend/domain/core/valueobjects"
	pkgerrors "memo-backend/pkg/errors"
)

// Memo is a versioned note owned by a single principal.
// Fields are private; every mutation produces a new value with the next version.
type Memo struct {
	id        valueobjects.MemoID
	ownerID   string
	title     string
	content   string
	tags      valueobjects.Tags
	createdAt time.Time
	updatedAt time.Time
	version   int
}

// MemoSnapshot is the serialized form of a Memo used by caches, indexes and the API.
type MemoSnapshot struct {
	ID        string    `json:"id" validate:"required,uuid"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	OwnerID   string    `json:"owner_id" validate:"required"`
	CreatedAt time.Time `json:"created_at" validate:"required"`
	UpdatedAt time.Time `json:"updated_at" validate:"required,gtefield=CreatedAt"`
	Version   int       `json:"version" validate:"min=1"`
}

// MemoPatch carries the optional field changes of an update.
// A nil field is left untouched.
type MemoPatch struct {
	Title   *string
	Content *string
	Tags    *[]string
}

// IsEmpty reports whether the patch changes nothing
func (p MemoPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil
}

var memoValidator = validators.NewMemoValidator()

// NewMemo creates a new memo at version 1
func NewMemo(ownerID, title, content string, tags []string) (*Memo, error) {
	return NewMemoAt(ownerID, title, content, tags, time.Now().UTC())
}

// NewMemoAt creates a new memo at version 1 with an explicit creation time
func NewMemoAt(ownerID, title, content string, tags []string, now time.Time) (*Memo, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("ownerID cannot be empty")
	}
	if err := memoValidator.ValidateText(title, content); err != nil {
		return nil, err
	}
	tagSet, err := valueobjects.NewTags(tags)
	if err != nil {
		return nil, err
	}

	return &Memo{
		id:        valueobjects.NewMemoID(),
		ownerID:   ownerID,
		title:     title,
		content:   content,
		tags:      tagSet,
		createdAt: now,
		updatedAt: now,
		version:   1,
	}, nil
}

// ReconstructMemo rebuilds a memo from a persisted snapshot.
// Used by store adapters; it validates the record but does not touch the version.
func ReconstructMemo(s MemoSnapshot) (*Memo, error) {
	if err := memoValidator.ValidateRecord(s); err != nil {
		return nil, err
	}
	id, err := valueobjects.NewMemoIDFromString(s.ID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	tagSet, err := valueobjects.NewTagsWithConfig(s.Tags, config.DefaultDomainConfig())
	if err != nil {
		return nil, err
	}

	return &Memo{
		id:        id,
		ownerID:   s.OwnerID,
		title:     s.Title,
		content:   s.Content,
		tags:      tagSet,
		createdAt: s.CreatedAt,
		updatedAt: s.UpdatedAt,
		version:   s.Version,
	}, nil
}

// Getters

func (m *Memo) ID() valueobjects.MemoID { return m.id }
func (m *Memo) OwnerID() string         { return m.ownerID }
func (m *Memo) Title() string           { return m.title }
func (m *Memo) Content() string         { return m.content }
func (m *Memo) Tags() []string          { return m.tags.Values() }
func (m *Memo) CreatedAt() time.Time    { return m.createdAt }
func (m *Memo) UpdatedAt() time.Time    { return m.updatedAt }
func (m *Memo) Version() int            { return m.version }

// HasTag reports whether the memo carries tag
func (m *Memo) HasTag(tag string) bool {
	return m.tags.Contains(tag)
}

// IsNew reports whether the memo has never been mutated since creation
func (m *Memo) IsNew() bool {
	return m.version == 1
}

// IsOwnedBy checks ownership
func (m *Memo) IsOwnedBy(ownerID string) bool {
	return m.ownerID == ownerID
}

// Update returns the next version of the memo with patch applied.
// The receiver is left unchanged so its version can serve as the expected version.
func (m *Memo) Update(patch MemoPatch, now time.Time) (*Memo, error) {
	next := *m

	if patch.Title != nil {
		next.title = *patch.Title
	}
	if patch.Content != nil {
		next.content = *patch.Content
	}
	if err := memoValidator.ValidateText(next.title, next.content); err != nil {
		return nil, err
	}
	if patch.Tags != nil {
		tagSet, err := valueobjects.NewTags(*patch.Tags)
		if err != nil {
			return nil, err
		}
		next.tags = tagSet
	}

	// updated_at never moves backwards and must pass created_at after a mutation
	if now.After(m.updatedAt) {
		next.updatedAt = now
	} else {
		next.updatedAt = m.updatedAt.Add(time.Millisecond)
	}
	next.version = m.version + 1

	return &next, nil
}

// WithVersion returns a copy of the memo carrying version v.
// Store adapters use it to report the version they actually persisted.
func (m *Memo) WithVersion(v int) *Memo {
	next := *m
	next.version = v
	return &next
}

// WithChangesFrom returns a copy of m carrying src's title, content and tags
// at version v. Id, owner and created_at always stay those of m, and
// updated_at never moves backwards.
func (m *Memo) WithChangesFrom(src *Memo, v int) *Memo {
	next := *m
	next.title = src.title
	next.content = src.content
	next.tags = src.tags
	if src.updatedAt.After(m.updatedAt) {
		next.updatedAt = src.updatedAt
	} else {
		next.updatedAt = m.updatedAt.Add(time.Millisecond)
	}
	next.version = v
	return &next
}

// Snapshot returns the serializable form of the memo
func (m *Memo) Snapshot() MemoSnapshot {
	return MemoSnapshot{
		ID:        m.id.String(),
		Title:     m.title,
		Content:   m.content,
		Tags:      m.tags.Values(),
		OwnerID:   m.ownerID,
		CreatedAt: m.createdAt,
		UpdatedAt: m.updatedAt,
		Version:   m.version,
	}
}

// Equal compares every field of two memos
func (m *Memo) Equal(other *Memo) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.id.Equals(other.id) &&
		m.ownerID == other.ownerID &&
		m.title == other.title &&
		m.content == other.content &&
		m.tags.Equals(other.tags) &&
		m.createdAt.Equal(other.createdAt) &&
		m.updatedAt.Equal(other.updatedAt) &&
		m.version == other.version
}

// MarshalJSON implements json.Marshaler
func (m *Memo) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Memo) UnmarshalJSON(data []byte) error {
	var s MemoSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	rebuilt, err := ReconstructMemo(s)
	if err != nil {
		return err
	}
	*m = *rebuilt
	return nil
}
