package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// MemoID is a value object representing a unique memo identifier
type MemoID struct {
	value string
}

// NewMemoID creates a new random MemoID
func NewMemoID() MemoID {
	return MemoID{value: uuid.New().String()}
}

// NewMemoIDFromString creates a MemoID from an existing string
func NewMemoIDFromString(id string) (MemoID, error) {
	if id == "" {
		return MemoID{}, errors.New("memo ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return MemoID{}, errors.New("memo ID must be a valid UUID")
	}
	return MemoID{value: id}, nil
}

// String returns the string representation of the MemoID
func (id MemoID) String() string {
	return id.value
}

// Equals checks if two MemoIDs are equal
func (id MemoID) Equals(other MemoID) bool {
	return id.value == other.value
}

// IsZero checks if the MemoID is the zero value
func (id MemoID) IsZero() bool {
	return id.value == ""
}

// MarshalText implements encoding.TextMarshaler
func (id MemoID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *MemoID) UnmarshalText(data []byte) error {
	parsed, err := NewMemoIDFromString(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
