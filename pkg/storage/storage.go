package storage

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrUnavailable is returned by writes to a store that does not exist in
	// the current environment.
	ErrUnavailable = errors.New("storage: persistent store unavailable")

	// ErrQuotaExceeded is returned when a write would exceed the store quota.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")

	// ErrClosed is returned by operations on a closed store handle.
	ErrClosed = errors.New("storage: store is closed")

	// ErrInvalidKey is returned for keys a backend cannot represent.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Store is a string-keyed persistent store.
// Implementations must be safe for concurrent use.
type Store interface {
	// ID identifies this store handle in logs.
	ID() string

	// Available reports whether the store exists in this environment.
	// Bindings never read from or write to an unavailable store.
	Available() bool

	// GetItem returns the value stored under key.
	// ok is false if the entry does not exist.
	GetItem(key string) (value string, ok bool, err error)

	// SetItem stores value under key.
	SetItem(key, value string) error

	// RemoveItem deletes the entry for key. Removing a missing key is not an error.
	RemoveItem(key string) error

	// Clear deletes every entry.
	Clear() error

	// Subscribe registers fn for change notifications and returns a function
	// that cancels the subscription. Stores deliver events in the order the
	// changes were observed, one at a time.
	Subscribe(fn func(Event)) (cancel func())
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys() ([]string, error)
}

// Event describes a change to an entry made through another handle.
type Event struct {
	// Key is the changed key, or "" when the whole area was cleared.
	Key string

	// OldValue is the previous value, nil if the entry did not exist.
	OldValue *string

	// NewValue is the new value, nil if the entry was removed.
	NewValue *string

	// Area is the store the event concerns, as seen by the receiver.
	Area Store

	// URL is the address of the document that made the change, if known.
	URL string
}

// String returns a pointer to s, for building events.
func String(s string) *string {
	return &s
}

func newID() string {
	return uuid.NewString()
}

// hub fans events out to subscribers.
type hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(Event)
}

// add registers fn and reports how many subscribers exist afterwards.
func (h *hub) add(fn func(Event)) (cancel func(), count int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs == nil {
		h.subs = make(map[uint64]func(Event))
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = fn

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
	return cancel, len(h.subs)
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// emit calls subscribers in registration order outside the lock.
func (h *hub) emit(ev Event) {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
