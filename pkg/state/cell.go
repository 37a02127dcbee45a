package state

import (
	"reflect"
	"sync"
	"sync/atomic"
)

var idCounter atomic.Uint64

func nextID() uint64 {
	return idCounter.Add(1)
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Cell is a reactive value container.
type Cell[T any] struct {
	id uint64

	// value is the current cell value.
	value T
	mu    sync.RWMutex

	// updateMu serializes Update calls; fn runs without holding mu.
	updateMu sync.Mutex

	subs  []subscriber[T]
	subMu sync.RWMutex

	// equal decides whether a write is a change. If nil, defaultEquals is used.
	equal func(T, T) bool
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		id:    nextID(),
		value: initial,
	}
}

// ID returns the unique identifier for this cell.
func (c *Cell[T]) ID() uint64 {
	return c.id
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the value and notifies subscribers if it changed.
func (c *Cell[T]) Set(value T) {
	c.mu.Lock()
	changed := !c.equals(c.value, value)
	if changed {
		c.value = value
	}
	c.mu.Unlock()

	if changed {
		c.notify(value)
	}
}

// Update computes the next value from the current one and returns the value
// the cell holds afterwards. Updates are serialized against each other, so fn
// may read the cell but must not call Update on it.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.updateMu.Lock()
	next := fn(c.Get())

	c.mu.Lock()
	changed := !c.equals(c.value, next)
	if changed {
		c.value = next
	}
	c.mu.Unlock()
	c.updateMu.Unlock()

	if changed {
		c.notify(next)
	}
	return next
}

// WithEquals configures a custom equality function and returns the cell.
func (c *Cell[T]) WithEquals(fn func(T, T) bool) *Cell[T] {
	c.equal = fn
	return c
}

// Subscribe registers fn to receive every new value.
// The returned function removes the subscription; calling it twice is safe.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	id := nextID()
	c.subMu.Lock()
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs)
}

// notify calls subscribers in registration order outside the locks.
func (c *Cell[T]) notify(value T) {
	c.subMu.RLock()
	subs := make([]subscriber[T], len(c.subs))
	copy(subs, c.subs)
	c.subMu.RUnlock()

	for _, s := range subs {
		s.fn(value)
	}
}

func (c *Cell[T]) equals(a, b T) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals uses == for scalar kinds and reflect.DeepEqual otherwise.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int64:
		return av == any(b).(int64)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		return reflect.DeepEqual(a, b)
	}
}
