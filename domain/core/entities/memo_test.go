package entities

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	pkgerrors "memo-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewMemo(t *testing.T) {
	t.Run("StartsAtVersionOne", func(t *testing.T) {
		memo, err := NewMemo("user-1", "Groceries", "milk, eggs", []string{"home"})
		require.NoError(t, err)

		assert.False(t, memo.ID().IsZero())
		assert.Equal(t, 1, memo.Version())
		assert.True(t, memo.IsNew())
		assert.True(t, memo.IsOwnedBy("user-1"))
		assert.Equal(t, memo.CreatedAt(), memo.UpdatedAt())
		assert.Equal(t, []string{"home"}, memo.Tags())
	})

	t.Run("EmptyOwnerRejected", func(t *testing.T) {
		_, err := NewMemo("", "title", "", nil)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("EmptyTitleRejected", func(t *testing.T) {
		_, err := NewMemo("user-1", "   ", "body", nil)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("TitleTooLong", func(t *testing.T) {
		_, err := NewMemo("user-1", strings.Repeat("t", 201), "", nil)
		require.Error(t, err)
	})

	t.Run("InvalidTags", func(t *testing.T) {
		_, err := NewMemo("user-1", "title", "", []string{""})
		require.Error(t, err)
	})
}

func TestMemoUpdate(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	memo, err := NewMemoAt("user-1", "Groceries", "milk", []string{"home"}, created)
	require.NoError(t, err)

	t.Run("ReturnsNextVersion", func(t *testing.T) {
		later := created.Add(time.Minute)
		next, err := memo.Update(MemoPatch{Title: strPtr("Groceries v2")}, later)
		require.NoError(t, err)

		assert.Equal(t, 2, next.Version())
		assert.Equal(t, "Groceries v2", next.Title())
		assert.Equal(t, "milk", next.Content())
		assert.Equal(t, later, next.UpdatedAt())
		assert.Equal(t, created, next.CreatedAt())
		assert.True(t, next.ID().Equals(memo.ID()))

		// receiver untouched
		assert.Equal(t, 1, memo.Version())
		assert.Equal(t, "Groceries", memo.Title())
	})

	t.Run("UpdatedAtNeverMovesBackwards", func(t *testing.T) {
		next, err := memo.Update(MemoPatch{Content: strPtr("bread")}, created.Add(-time.Hour))
		require.NoError(t, err)
		assert.True(t, next.UpdatedAt().After(next.CreatedAt()))
	})

	t.Run("ReplacesTags", func(t *testing.T) {
		tags := []string{"errands", "home"}
		next, err := memo.Update(MemoPatch{Tags: &tags}, created.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, []string{"errands", "home"}, next.Tags())
	})

	t.Run("InvalidPatchRejected", func(t *testing.T) {
		_, err := memo.Update(MemoPatch{Title: strPtr("")}, created.Add(time.Second))
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestMemoJSON(t *testing.T) {
	memo, err := NewMemo("user-1", "Groceries", "milk", []string{"home", "errands"})
	require.NoError(t, err)

	data, err := json.Marshal(memo)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "user-1", raw["owner_id"])
	assert.EqualValues(t, 1, raw["version"])

	var decoded Memo
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, memo.Equal(&decoded))
}

func TestReconstructMemo(t *testing.T) {
	now := time.Now().UTC()

	t.Run("RejectsUpdatedBeforeCreated", func(t *testing.T) {
		_, err := ReconstructMemo(MemoSnapshot{
			ID:        "6f1c1e1e-2b1a-4c2f-9b57-0d7d1c2a5b10",
			Title:     "t",
			OwnerID:   "user-1",
			CreatedAt: now,
			UpdatedAt: now.Add(-time.Second),
			Version:   2,
		})
		require.Error(t, err)
	})

	t.Run("RejectsZeroVersion", func(t *testing.T) {
		_, err := ReconstructMemo(MemoSnapshot{
			ID:        "6f1c1e1e-2b1a-4c2f-9b57-0d7d1c2a5b10",
			Title:     "t",
			OwnerID:   "user-1",
			CreatedAt: now,
			UpdatedAt: now,
		})
		require.Error(t, err)
	})

	t.Run("WithVersionCopies", func(t *testing.T) {
		memo, err := ReconstructMemo(MemoSnapshot{
			ID:        "6f1c1e1e-2b1a-4c2f-9b57-0d7d1c2a5b10",
			Title:     "t",
			OwnerID:   "user-1",
			CreatedAt: now,
			UpdatedAt: now,
			Version:   3,
		})
		require.NoError(t, err)

		bumped := memo.WithVersion(4)
		assert.Equal(t, 4, bumped.Version())
		assert.Equal(t, 3, memo.Version())
	})
}

func TestWithChangesFromKeepsIdentity(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	stored, err := NewMemoAt("U1", "Groceries", "milk", []string{"home"}, created)
	require.NoError(t, err)

	other, err := NewMemoAt("U2", "Hijacked", "eggs", []string{"work"}, created.Add(time.Hour))
	require.NoError(t, err)

	next := stored.WithChangesFrom(other, 2)

	assert.Equal(t, stored.ID(), next.ID())
	assert.Equal(t, "U1", next.OwnerID())
	assert.Equal(t, created, next.CreatedAt())
	assert.Equal(t, "Hijacked", next.Title())
	assert.Equal(t, "eggs", next.Content())
	assert.Equal(t, []string{"work"}, next.Tags())
	assert.Equal(t, 2, next.Version())
	assert.True(t, next.UpdatedAt().After(next.CreatedAt()))

	t.Run("UpdatedAtNeverMovesBackwards", func(t *testing.T) {
		older, err := NewMemoAt("U1", "Old", "", nil, created.Add(-time.Hour))
		require.NoError(t, err)

		next := stored.WithChangesFrom(older, 2)
		assert.True(t, next.UpdatedAt().After(stored.UpdatedAt()))
	})
}
