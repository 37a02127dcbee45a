// Package localstate keeps UI state in the browser's localStorage.
//
// This is the recommended import for component code:
//
//	import "github.com/vango-dev/localstate"
//
// Usage:
//
//	theme, setTheme := localstate.Use(scope, "theme", "light", persist.Sync())
//	setTheme(localstate.Value("dark"))
//	setCount(localstate.Func(func(n int) int { return n + 1 }))
//
// On js/wasm the default store is window.localStorage. Elsewhere, as during
// server-side rendering, there is no store: values stay at their initial
// value and updates are rejected until a binding is hydrated.
package localstate

import (
	"fmt"

	"github.com/vango-dev/localstate/pkg/persist"
	"github.com/vango-dev/localstate/pkg/state"
	"github.com/vango-dev/localstate/pkg/storage"
)

// =============================================================================
// Stores
// =============================================================================

type storeKey struct{}

// Provide makes store the store for Use calls in scope and its descendants.
func Provide(scope *state.Scope, store storage.Store) {
	scope.SetValue(storeKey{}, store)
}

// StoreFor returns the store provided on scope or an ancestor, falling
// back to storage.Browser().
func StoreFor(scope *state.Scope) storage.Store {
	if scope != nil {
		if s, ok := scope.Value(storeKey{}).(storage.Store); ok && s != nil {
			return s
		}
	}
	return storage.Browser()
}

// =============================================================================
// Hooks
// =============================================================================

type bindingKey struct{ key string }

// Use returns the current value for key and a setter, binding key to the
// scope's store on the first call. Later calls on the same scope return
// the same binding's current value.
//
// Use panics if another scope already binds key.
func Use[T any](scope *state.Scope, key string, initial T, opts ...persist.Option) (T, func(persist.Update[T])) {
	b := UseBinding(scope, key, initial, opts...)
	return b.Get(), b.Set
}

// UseWith is like Use with an explicit store.
func UseWith[T any](scope *state.Scope, store storage.Store, key string, initial T, opts ...persist.Option) (T, func(persist.Update[T])) {
	b := useBinding(scope, store, key, initial, opts)
	return b.Get(), b.Set
}

// UseBinding is like Use but returns the binding itself.
func UseBinding[T any](scope *state.Scope, key string, initial T, opts ...persist.Option) *persist.Binding[T] {
	return useBinding(scope, StoreFor(scope), key, initial, opts)
}

func useBinding[T any](scope *state.Scope, store storage.Store, key string, initial T, opts []persist.Option) *persist.Binding[T] {
	if scope == nil {
		panic("localstate: Use requires a scope")
	}
	if existing, ok := scope.LocalValue(bindingKey{key}); ok {
		b, ok := existing.(*persist.Binding[T])
		if !ok {
			panic(fmt.Sprintf("localstate: key %q is already bound with type %T", key, existing))
		}
		if !b.Closed() {
			return b
		}
	}
	b := persist.MustBind(scope, store, key, initial, opts...)
	scope.SetValue(bindingKey{key}, b)
	return b
}

// =============================================================================
// Updates
// =============================================================================

// Value is an update that replaces the current value with v.
func Value[T any](v T) persist.Update[T] {
	return persist.Value(v)
}

// Func is an update computed from the current value when applied. fn may
// read the binding but must not update it.
func Func[T any](fn func(T) T) persist.Update[T] {
	return persist.Func(fn)
}
