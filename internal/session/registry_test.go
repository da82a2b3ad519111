package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandle(t *testing.T, number string) *Handle {
	t.Helper()
	return &Handle{Number: number, CreatedAt: time.Now()}
}

func TestRegistryPutGet(t *testing.T) {
	registry := NewRegistry()
	handle := newTestHandle(t, "628123456789")

	assert.False(t, registry.Has("628123456789"))
	assert.Nil(t, registry.Get("628123456789"))

	registry.Put("628123456789", handle)
	assert.True(t, registry.Has("628123456789"))
	assert.Same(t, handle, registry.Get("628123456789"))
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryRemoveOnlyMatchingHandle(t *testing.T) {
	registry := NewRegistry()
	stale := newTestHandle(t, "628123456789")
	replacement := newTestHandle(t, "628123456789")

	registry.Put("628123456789", stale)
	registry.Put("628123456789", replacement)

	// A supervisor still holding the stale handle must not evict the new one.
	registry.Remove("628123456789", stale)
	assert.Same(t, replacement, registry.Get("628123456789"))

	registry.Remove("628123456789", replacement)
	assert.False(t, registry.Has("628123456789"))
}

func TestRegistryRemoveNilMatchesAny(t *testing.T) {
	registry := NewRegistry()
	registry.Put("628123456789", newTestHandle(t, "628123456789"))

	registry.Remove("628123456789", nil)
	assert.False(t, registry.Has("628123456789"))
}

func TestRegistryRange(t *testing.T) {
	registry := NewRegistry()
	registry.Put("628123456789", newTestHandle(t, "628123456789"))
	registry.Put("628987654321", newTestHandle(t, "628987654321"))

	seen := make(map[string]bool)
	registry.Range(func(number string, handle *Handle) {
		require.NotNil(t, handle)
		seen[number] = true
	})
	assert.Len(t, seen, 2)
	assert.True(t, seen["628123456789"])
	assert.True(t, seen["628987654321"])
}

func TestHandleStateAndTeardown(t *testing.T) {
	handle := newTestHandle(t, "628123456789")
	assert.Equal(t, "connecting", handle.State())

	handle.teardown()
	assert.Equal(t, "closed", handle.State())

	// Second teardown is a no-op.
	handle.teardown()
	assert.Equal(t, "closed", handle.State())
}
