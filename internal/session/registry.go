package session

import (
	"sync"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow"
)

// Handle is the live transport session for one number. The registry entry for
// a number owns its handle exclusively; teardown revokes the event
// subscription and closes the socket in one call.
type Handle struct {
	Number    string
	Client    *whatsmeow.Client
	CreatedAt time.Time

	handlerID uint32
	closed    atomic.Bool
	fresh     atomic.Bool
	retries   atomic.Int32
}

func (h *Handle) Age() time.Duration {
	return time.Since(h.CreatedAt)
}

func (h *Handle) Connected() bool {
	return h.Client != nil && h.Client.IsConnected()
}

func (h *Handle) LoggedIn() bool {
	return h.Client != nil && h.Client.IsLoggedIn()
}

// State reports the coarse connection phase for status responses.
func (h *Handle) State() string {
	switch {
	case h.closed.Load():
		return "closed"
	case h.LoggedIn():
		return "connected"
	default:
		return "connecting"
	}
}

// teardown revokes the event subscription and drops the socket. Idempotent;
// later lifecycle events for this handle are ignored via the closed flag.
func (h *Handle) teardown() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	if h.Client != nil {
		h.Client.RemoveEventHandler(h.handlerID)
		h.Client.Disconnect()
	}
}

// Registry maps sanitized numbers to their live handles. It holds no pairing
// logic; exclusivity comes from the manager's per-number lock discipline.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

func (r *Registry) Has(number string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[number]
	return ok
}

func (r *Registry) Get(number string) *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[number]
}

func (r *Registry) Put(number string, handle *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[number] = handle
}

// Remove drops the entry only when it still points at the given handle, so a
// stale supervisor can never evict its successor.
func (r *Registry) Remove(number string, handle *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.handles[number]; ok && (handle == nil || current == handle) {
		delete(r.handles, number)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

func (r *Registry) Range(fn func(number string, handle *Handle)) {
	r.mu.RLock()
	snapshot := make(map[string]*Handle, len(r.handles))
	for number, handle := range r.handles {
		snapshot[number] = handle
	}
	r.mu.RUnlock()

	for number, handle := range snapshot {
		fn(number, handle)
	}
}
