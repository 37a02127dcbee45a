package storage

import (
	"sync"
)

// DefaultQuota is the per-origin size limit most browsers apply to
// localStorage, counted in bytes of keys plus values.
const DefaultQuota = 5 << 20

// Origin models one origin's localStorage shared by all of its tabs.
type Origin struct {
	mu    sync.Mutex
	items map[string]string
	tabs  []*Memory
	quota int
	url   string
}

// OriginOption configures an Origin.
type OriginOption func(*Origin)

// WithQuota sets the maximum total size of keys plus values. Zero or a
// negative value disables the limit.
func WithQuota(bytes int) OriginOption {
	return func(o *Origin) {
		o.quota = bytes
	}
}

// WithURL sets the document URL reported in events.
func WithURL(url string) OriginOption {
	return func(o *Origin) {
		o.url = url
	}
}

// NewOrigin creates an empty origin.
func NewOrigin(opts ...OriginOption) *Origin {
	o := &Origin{
		items: make(map[string]string),
		quota: DefaultQuota,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Tab opens a new browsing context on the origin and returns its store.
func (o *Origin) Tab() *Memory {
	m := &Memory{
		id:     newID(),
		origin: o,
	}
	o.mu.Lock()
	o.tabs = append(o.tabs, m)
	o.mu.Unlock()
	return m
}

// Len returns the number of stored entries.
func (o *Origin) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// usage returns the size of the stored data with key set to value.
// Caller must hold o.mu.
func (o *Origin) usage(key, value string) int {
	total := 0
	for k, v := range o.items {
		if k == key {
			continue
		}
		total += len(k) + len(v)
	}
	return total + len(key) + len(value)
}

// others returns every open tab except from. Caller must hold o.mu.
func (o *Origin) others(from *Memory) []*Memory {
	tabs := make([]*Memory, 0, len(o.tabs))
	for _, t := range o.tabs {
		if t != from {
			tabs = append(tabs, t)
		}
	}
	return tabs
}

func (o *Origin) detach(m *Memory) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, t := range o.tabs {
		if t == m {
			o.tabs = append(o.tabs[:i], o.tabs[i+1:]...)
			return
		}
	}
}

// broadcast delivers a change made through from to every other tab.
func broadcast(tabs []*Memory, key string, oldValue, newValue *string, url string) {
	for _, t := range tabs {
		t.subs.emit(Event{
			Key:      key,
			OldValue: oldValue,
			NewValue: newValue,
			Area:     t,
			URL:      url,
		})
	}
}

// Memory is one tab's view of an Origin. Writes through a Memory notify the
// other tabs of the origin but not the writer itself.
type Memory struct {
	id     string
	origin *Origin
	subs   hub

	mu       sync.RWMutex
	readErr  error
	writeErr error
	closed   bool
}

// NewMemory returns a tab on a fresh private origin.
func NewMemory(opts ...OriginOption) *Memory {
	return NewOrigin(opts...).Tab()
}

// ID returns the tab identifier.
func (m *Memory) ID() string { return m.id }

// Available always reports true.
func (m *Memory) Available() bool { return true }

// Origin returns the origin the tab belongs to.
func (m *Memory) Origin() *Origin { return m.origin }

// SetReadError makes every subsequent read fail with err. Pass nil to restore.
func (m *Memory) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetWriteError makes every subsequent write fail with err. Pass nil to restore.
func (m *Memory) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *Memory) check(write bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	if write {
		return m.writeErr
	}
	return m.readErr
}

// GetItem returns the value stored under key.
func (m *Memory) GetItem(key string) (string, bool, error) {
	if err := m.check(false); err != nil {
		return "", false, err
	}
	m.origin.mu.Lock()
	defer m.origin.mu.Unlock()
	v, ok := m.origin.items[key]
	return v, ok, nil
}

// SetItem stores value and notifies the other tabs if it changed.
func (m *Memory) SetItem(key, value string) error {
	if err := m.check(true); err != nil {
		return err
	}

	o := m.origin
	o.mu.Lock()
	old, existed := o.items[key]
	if existed && old == value {
		o.mu.Unlock()
		return nil
	}
	if o.quota > 0 && o.usage(key, value) > o.quota {
		o.mu.Unlock()
		return ErrQuotaExceeded
	}
	o.items[key] = value
	tabs := o.others(m)
	o.mu.Unlock()

	var oldValue *string
	if existed {
		oldValue = String(old)
	}
	broadcast(tabs, key, oldValue, String(value), o.url)
	return nil
}

// RemoveItem deletes key and notifies the other tabs if it existed.
func (m *Memory) RemoveItem(key string) error {
	if err := m.check(true); err != nil {
		return err
	}

	o := m.origin
	o.mu.Lock()
	old, existed := o.items[key]
	if !existed {
		o.mu.Unlock()
		return nil
	}
	delete(o.items, key)
	tabs := o.others(m)
	o.mu.Unlock()

	broadcast(tabs, key, String(old), nil, o.url)
	return nil
}

// Clear deletes every entry and notifies the other tabs with an empty key.
func (m *Memory) Clear() error {
	if err := m.check(true); err != nil {
		return err
	}

	o := m.origin
	o.mu.Lock()
	if len(o.items) == 0 {
		o.mu.Unlock()
		return nil
	}
	o.items = make(map[string]string)
	tabs := o.others(m)
	o.mu.Unlock()

	broadcast(tabs, "", nil, nil, o.url)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() ([]string, error) {
	if err := m.check(false); err != nil {
		return nil, err
	}
	m.origin.mu.Lock()
	defer m.origin.mu.Unlock()
	return sortedKeys(m.origin.items), nil
}

// Subscribe registers fn for changes made by other tabs.
func (m *Memory) Subscribe(fn func(Event)) func() {
	cancel, _ := m.subs.add(fn)
	return cancel
}

// Dispatch delivers ev to this tab's subscribers as if the platform had
// fired it. The event is passed through unchanged.
func (m *Memory) Dispatch(ev Event) {
	m.subs.emit(ev)
}

// Close detaches the tab from its origin. Later operations fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.origin.detach(m)
	return nil
}
