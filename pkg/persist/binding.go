package persist

import (
	"sync"
	"time"

	"github.com/vango-dev/localstate/internal/errors"
	"github.com/vango-dev/localstate/pkg/state"
	"github.com/vango-dev/localstate/pkg/storage"
)

// Binding keeps a state cell and a store entry in step.
type Binding[T any] struct {
	key      string
	initial  T
	cell     *state.Cell[T]
	cfg      config
	registry *Registry

	mu         sync.Mutex
	store      storage.Store
	cancelSync func()
	closed     bool
	closeOnce  sync.Once
}

// Bind creates a binding for key in scope. The current value is read from
// store, or is initial when store is nil, unavailable, has no entry or
// fails. The binding is released when scope is disposed or Close is called.
//
// Bind fails only when another binding for key is active.
func Bind[T any](scope *state.Scope, store storage.Store, key string, initial T, opts ...Option) (*Binding[T], error) {
	cfg := applyOptions(opts)
	if store == nil {
		store = storage.Null()
	}
	registry := cfg.registry
	if registry == nil {
		registry = registryFor(scope)
	}

	b := &Binding[T]{
		key:      key,
		initial:  initial,
		cfg:      cfg,
		registry: registry,
		store:    store,
	}
	b.cell = state.NewCell(b.read(store))

	if err := registry.Register(key); err != nil {
		return nil, err
	}
	if cfg.sync && store.Available() {
		b.cancelSync = store.Subscribe(b.handleEvent)
	}
	if scope != nil {
		scope.OnCleanup(b.Close)
	}
	return b, nil
}

// MustBind is like Bind but panics if another binding for key is active.
func MustBind[T any](scope *state.Scope, store storage.Store, key string, initial T, opts ...Option) *Binding[T] {
	b, err := Bind(scope, store, key, initial, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Key returns the bound key.
func (b *Binding[T]) Key() string { return b.key }

// Initial returns the fallback value.
func (b *Binding[T]) Initial() T { return b.initial }

// Synced reports whether store notifications are adopted.
func (b *Binding[T]) Synced() bool { return b.cfg.sync }

// Cell returns the state cell holding the current value, for subscribing.
func (b *Binding[T]) Cell() *state.Cell[T] { return b.cell }

// Get returns the current value.
func (b *Binding[T]) Get() T { return b.cell.Get() }

// Store returns the store the binding currently uses.
func (b *Binding[T]) Store() storage.Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store
}

// Closed reports whether the binding has been released.
func (b *Binding[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// SetValue stores v.
func (b *Binding[T]) SetValue(v T) {
	b.Set(Value(v))
}

// Update stores fn applied to the current value. fn may call Get but must
// not call Set, SetValue or Update on the same binding.
func (b *Binding[T]) Update(fn func(T) T) {
	b.Set(Func(fn))
}

// Set applies u. Without a persistent store the update is rejected and
// nothing changes. Otherwise the current value changes first and is then
// written; a failed write is logged and does not roll the value back.
func (b *Binding[T]) Set(u Update[T]) {
	store, ok := b.activeStore()
	if !ok {
		return
	}
	start := time.Now()
	if !store.Available() {
		b.warn(errors.CodeUnsupportedEnv, nil)
		b.observe(OpWrite, OutcomeUnsupported, start, nil)
		return
	}

	next := b.cell.Update(u.apply)

	raw, err := b.cfg.codec.Marshal(next)
	if err == nil {
		err = store.SetItem(b.key, raw)
	}
	if err != nil {
		b.warn(errors.CodeWriteFailure, err)
		b.observe(OpWrite, OutcomeFailure, start, err)
		return
	}
	b.observe(OpWrite, OutcomeOK, start, nil)
}

// Reset reverts to the initial value and removes the stored entry.
// Without a persistent store it is rejected like Set.
func (b *Binding[T]) Reset() {
	store, ok := b.activeStore()
	if !ok {
		return
	}
	start := time.Now()
	if !store.Available() {
		b.warn(errors.CodeUnsupportedEnv, nil)
		b.observe(OpRemove, OutcomeUnsupported, start, nil)
		return
	}

	b.cell.Set(b.initial)
	if err := store.RemoveItem(b.key); err != nil {
		b.warn(errors.CodeWriteFailure, err)
		b.observe(OpRemove, OutcomeFailure, start, err)
		return
	}
	b.observe(OpRemove, OutcomeOK, start, nil)
}

// Hydrate moves a binding created without a persistent store onto store,
// as happens when server-rendered UI takes over in the browser. The stored
// value is adopted and sync starts if enabled. It does nothing if the
// binding already has an available store or store is unavailable.
func (b *Binding[T]) Hydrate(store storage.Store) {
	if store == nil || !store.Available() {
		return
	}

	b.mu.Lock()
	if b.closed || b.store.Available() {
		b.mu.Unlock()
		return
	}
	b.store = store
	b.mu.Unlock()

	b.cell.Set(b.read(store))

	if !b.cfg.sync {
		return
	}
	cancel := store.Subscribe(b.handleEvent)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return
	}
	b.cancelSync = cancel
	b.mu.Unlock()
}

// Close releases the key and stops sync. It is safe to call more than once.
func (b *Binding[T]) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		cancel := b.cancelSync
		b.cancelSync = nil
		b.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		b.registry.Unregister(b.key)
	})
}

// activeStore returns the current store, or false once closed.
func (b *Binding[T]) activeStore() (storage.Store, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.cfg.logger.Debug("persist: update on closed binding ignored", "key", b.key)
		return nil, false
	}
	return b.store, true
}

// read loads the value for the key from store.
func (b *Binding[T]) read(store storage.Store) T {
	if !store.Available() {
		return b.initial
	}

	start := time.Now()
	raw, ok, err := store.GetItem(b.key)
	if err != nil {
		b.warn(errors.CodeReadFailure, err)
		b.observe(OpRead, OutcomeFailure, start, err)
		return b.initial
	}
	// An empty string is treated like a missing entry, as the browser's
	// truthiness check does.
	if !ok || raw == "" {
		b.observe(OpRead, OutcomeMiss, start, nil)
		return b.initial
	}

	var v T
	if err := b.cfg.codec.Unmarshal(raw, &v); err != nil {
		b.warn(errors.CodeReadFailure, err)
		b.observe(OpRead, OutcomeFailure, start, err)
		return b.initial
	}
	b.observe(OpRead, OutcomeHit, start, nil)
	return v
}

// handleEvent adopts a store notification for this key and area.
func (b *Binding[T]) handleEvent(ev storage.Event) {
	b.mu.Lock()
	store, closed := b.store, b.closed
	b.mu.Unlock()
	if closed || ev.Area != store {
		return
	}
	// Clear announces an empty key; bindings keep their value.
	if ev.Key != b.key {
		return
	}

	start := time.Now()
	if ev.NewValue == nil || *ev.NewValue == "" {
		b.cell.Set(b.initial)
		b.observe(OpSync, OutcomeReverted, start, nil)
		return
	}

	var v T
	if err := b.cfg.codec.Unmarshal(*ev.NewValue, &v); err != nil {
		b.warn(errors.CodeSyncDecodeFailure, err)
		b.observe(OpSync, OutcomeFailure, start, err)
		return
	}
	b.cell.Set(v)
	b.observe(OpSync, OutcomeOK, start, nil)
}

func (b *Binding[T]) warn(code string, cause error) {
	e := errors.New(code)
	attrs := []any{"code", e.Code, "key", b.key}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	b.cfg.logger.Warn(e.Message, attrs...)
}

func (b *Binding[T]) observe(op Op, outcome Outcome, start time.Time, err error) {
	b.cfg.observer.Observe(Observation{
		Op:       op,
		Key:      b.key,
		Outcome:  outcome,
		Start:    start,
		Duration: time.Since(start),
		Err:      err,
	})
}
