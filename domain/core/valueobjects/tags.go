package valueobjects

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"memo-backend/domain/config"
	pkgerrors "memo-backend/pkg/errors"
)

// Tags is an unordered, bounded set of short labels attached to a memo.
// Entries are trimmed and deduplicated; the set is kept sorted.
type Tags struct {
	values []string
}

// NewTags creates a tag set using the default domain configuration
func NewTags(raw []string) (Tags, error) {
	return NewTagsWithConfig(raw, config.DefaultDomainConfig())
}

// NewTagsWithConfig creates a tag set validated against cfg
func NewTagsWithConfig(raw []string, cfg *config.DomainConfig) (Tags, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	seen := make(map[string]struct{}, len(raw))
	values := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return Tags{}, pkgerrors.NewValidationError("tags cannot contain empty entries")
		}
		if utf8.RuneCountInString(tag) > cfg.MaxTagLength {
			return Tags{}, pkgerrors.NewValidationError(
				fmt.Sprintf("tag exceeds maximum length of %d characters", cfg.MaxTagLength),
			).WithDetail("tag", tag)
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		values = append(values, tag)
	}

	if len(values) > cfg.MaxTagsPerMemo {
		return Tags{}, pkgerrors.NewValidationError(
			fmt.Sprintf("a memo can have at most %d tags", cfg.MaxTagsPerMemo),
		).WithDetail("count", len(values))
	}

	sort.Strings(values)
	return Tags{values: values}, nil
}

// Values returns a copy of the tags
func (t Tags) Values() []string {
	out := make([]string, len(t.values))
	copy(out, t.values)
	return out
}

// Contains reports whether tag is in the set
func (t Tags) Contains(tag string) bool {
	i := sort.SearchStrings(t.values, tag)
	return i < len(t.values) && t.values[i] == tag
}

// Len returns the number of tags
func (t Tags) Len() int {
	return len(t.values)
}

// Equals checks if two tag sets hold the same entries
func (t Tags) Equals(other Tags) bool {
	if len(t.values) != len(other.values) {
		return false
	}
	for i := range t.values {
		if t.values[i] != other.values[i] {
			return false
		}
	}
	return true
}
