package state

import (
	"sync"
	"sync/atomic"
)

// Scope represents a mounted component that owns resources.
// Disposing a scope disposes its children first, then runs its cleanups in
// reverse registration order. Scopes form a tree mirroring the component
// tree.
type Scope struct {
	id     uint64
	parent *Scope

	children   []*Scope
	childrenMu sync.Mutex

	cleanups   []func()
	cleanupsMu sync.Mutex

	// values are context values visible to this scope and its descendants.
	values   map[any]any
	valuesMu sync.RWMutex

	disposed atomic.Bool
}

// NewScope creates a scope under parent. A nil parent creates a root.
func NewScope(parent *Scope) *Scope {
	s := &Scope{
		id:     nextID(),
		parent: parent,
	}
	if parent != nil {
		if parent.Disposed() {
			s.disposed.Store(true)
		} else {
			parent.addChild(s)
		}
	}
	return s
}

// ID returns the unique identifier for this scope.
func (s *Scope) ID() uint64 {
	return s.id
}

// Parent returns the parent scope, or nil for a root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Disposed reports whether the scope has been disposed.
func (s *Scope) Disposed() bool {
	return s.disposed.Load()
}

func (s *Scope) addChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	s.children = append(s.children, child)
}

func (s *Scope) removeChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// OnCleanup registers fn to run when the scope is disposed.
// If the scope is already disposed, fn runs immediately.
func (s *Scope) OnCleanup(fn func()) {
	if fn == nil {
		return
	}

	s.cleanupsMu.Lock()
	if s.disposed.Load() {
		s.cleanupsMu.Unlock()
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
	s.cleanupsMu.Unlock()
}

// SetValue stores a context value on this scope.
func (s *Scope) SetValue(key, value any) {
	s.valuesMu.Lock()
	defer s.valuesMu.Unlock()
	if s.values == nil {
		s.values = make(map[any]any)
	}
	s.values[key] = value
}

// LocalValue looks up key on this scope only.
func (s *Scope) LocalValue(key any) (any, bool) {
	s.valuesMu.RLock()
	defer s.valuesMu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Value looks up key on this scope and then its ancestors.
func (s *Scope) Value(key any) any {
	for cur := s; cur != nil; cur = cur.parent {
		cur.valuesMu.RLock()
		v, ok := cur.values[key]
		cur.valuesMu.RUnlock()
		if ok {
			return v
		}
	}
	return nil
}

// Dispose releases the scope and everything it owns. Only the first call
// has an effect.
func (s *Scope) Dispose() {
	s.cleanupsMu.Lock()
	if s.disposed.Swap(true) {
		s.cleanupsMu.Unlock()
		return
	}
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupsMu.Unlock()

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	s.childrenMu.Lock()
	children := s.children
	s.children = nil
	s.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
