package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := NewID()
		require.Len(t, id, 26)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}

		_, err := ParseID(id)
		require.NoError(t, err)
	}
}

func TestParseID_Invalid(t *testing.T) {
	_, err := ParseID("not-a-ulid")
	assert.Error(t, err)
}
