package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mau.fi/whatsmeow"
	wstore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := Config{
		PairingCodeTTL:   time.Minute,
		PairWaitTimeout:  50 * time.Millisecond,
		MaxRetries:       3,
		ReconcileSpacing: time.Millisecond,
	}
	return NewManager(cfg, nil, nil)
}

func TestPairingLockExclusive(t *testing.T) {
	m := newTestManager(t)

	assert.True(t, m.tryLock("628123456789"))
	assert.False(t, m.tryLock("628123456789"))

	// A different number is independent.
	assert.True(t, m.tryLock("628987654321"))

	m.unlock("628123456789")
	assert.True(t, m.tryLock("628123456789"))
}

func TestPairingLockConcurrent(t *testing.T) {
	m := newTestManager(t)

	const attempts = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.tryLock("628123456789") {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one concurrent caller may hold the pairing lock")
}

func TestWaitersResolveOnce(t *testing.T) {
	m := newTestManager(t)

	first := m.addWaiter("628123456789")
	second := m.addWaiter("628123456789")

	m.resolveWaiters("628123456789", "ABCD-EFGH")

	code, ok := <-first
	require.True(t, ok)
	assert.Equal(t, "ABCD-EFGH", code)

	code, ok = <-second
	require.True(t, ok)
	assert.Equal(t, "ABCD-EFGH", code)

	// The channels are closed after delivery; a second receive yields nothing.
	_, ok = <-first
	assert.False(t, ok)

	// Resolving again with no registered waiters is a no-op.
	m.resolveWaiters("628123456789", "IGNORED")
}

func TestWaitersFailClosesChannels(t *testing.T) {
	m := newTestManager(t)

	waiter := m.addWaiter("628123456789")
	m.failWaiters("628123456789")

	code, ok := <-waiter
	assert.False(t, ok)
	assert.Empty(t, code)
}

func TestWaitersDoNotAccumulate(t *testing.T) {
	m := newTestManager(t)

	m.addWaiter("628123456789")
	m.addWaiter("628123456789")
	m.resolveWaiters("628123456789", "ABCD-EFGH")

	m.addWaiter("628987654321")
	m.failWaiters("628987654321")

	m.waitersMu.Lock()
	defer m.waitersMu.Unlock()
	assert.Empty(t, m.waiters, "resolved and failed waiters must leave no map entries behind")
}

func TestRestoredDeviceReleasesCodeWaiters(t *testing.T) {
	m := newTestManager(t)

	waiter := m.addWaiter("628123456789")

	// Restored credentials carry a device identity, so no pairing code is
	// ever requested for them.
	jid := types.NewJID("628123456789", types.DefaultUserServer)
	handle := &Handle{
		Number:    "628123456789",
		Client:    &whatsmeow.Client{Store: &wstore.Device{ID: &jid}},
		CreatedAt: time.Now(),
	}

	m.afterConnect(handle)

	select {
	case code, ok := <-waiter:
		assert.False(t, ok)
		assert.Empty(t, code)
	case <-time.After(time.Second):
		t.Fatal("pair caller left waiting after a restore-path connect")
	}

	m.waitersMu.Lock()
	defer m.waitersMu.Unlock()
	assert.Empty(t, m.waiters, "released waiters must be dropped from the map")
}

func TestDropHandleRemovesAndCloses(t *testing.T) {
	m := newTestManager(t)

	handle := newTestHandle(t, "628123456789")
	m.registry.Put("628123456789", handle)

	m.dropHandle("628123456789", handle)

	assert.False(t, m.registry.Has("628123456789"))
	assert.Equal(t, "closed", handle.State())
}

func TestPairReportsProgressWithAge(t *testing.T) {
	m := newTestManager(t)

	handle := newTestHandle(t, "628123456789")
	handle.CreatedAt = time.Now().Add(-42 * time.Second)
	m.registry.Put("628123456789", handle)

	result := m.Pair(context.Background(), "628123456789", nil)
	assert.Equal(t, PairStatusPairingInProgress, result.Status)
	assert.GreaterOrEqual(t, result.UptimeSeconds, int64(42))
}
