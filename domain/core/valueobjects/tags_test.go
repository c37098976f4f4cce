package valueobjects

import (
	"strings"
	"testing"

	pkgerrors "memo-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTags(t *testing.T) {
	t.Run("TrimsDeduplicatesAndSorts", func(t *testing.T) {
		tags, err := NewTags([]string{" work ", "home", "work"})
		require.NoError(t, err)

		assert.Equal(t, []string{"home", "work"}, tags.Values())
		assert.True(t, tags.Contains("work"))
		assert.False(t, tags.Contains("play"))
	})

	t.Run("EmptyEntryRejected", func(t *testing.T) {
		_, err := NewTags([]string{"home", "   "})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("TooManyTags", func(t *testing.T) {
		raw := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}
		_, err := NewTags(raw)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("DuplicatesDoNotCountTowardsLimit", func(t *testing.T) {
		raw := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "a"}
		tags, err := NewTags(raw)
		require.NoError(t, err)
		assert.Equal(t, 10, tags.Len())
	})

	t.Run("TagTooLong", func(t *testing.T) {
		_, err := NewTags([]string{strings.Repeat("x", 51)})
		require.Error(t, err)
	})

	t.Run("NilIsEmptySet", func(t *testing.T) {
		tags, err := NewTags(nil)
		require.NoError(t, err)
		assert.Equal(t, 0, tags.Len())
		assert.NotNil(t, tags.Values())
	})
}

func TestMemoID(t *testing.T) {
	id := NewMemoID()
	parsed, err := NewMemoIDFromString(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equals(parsed))

	_, err = NewMemoIDFromString("")
	assert.Error(t, err)
	_, err = NewMemoIDFromString("not-a-uuid")
	assert.Error(t, err)
	assert.True(t, MemoID{}.IsZero())
}
