package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatchesExpectedShape(t *testing.T) {
	id := New("task")
	require.True(t, HasPrefix(id, "task"))

	parts := 0
	for _, r := range id {
		if r == '-' {
			parts++
		}
	}
	assert.Equal(t, 2, parts, "expected exactly two '-' separators in %q", id)
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New("agent")
		assert.False(t, seen[id], "expected unique id, got repeat %q", id)
		seen[id] = true
	}
}

func TestHasPrefixRejectsMismatch(t *testing.T) {
	id := New("plan")
	assert.False(t, HasPrefix(id, "task"))
	assert.True(t, HasPrefix(id, "plan"))
}
