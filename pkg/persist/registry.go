package persist

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vango-dev/localstate/internal/errors"
	"github.com/vango-dev/localstate/pkg/state"
)

// Registry tracks the keys with an active binding.
type Registry struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: make(map[string]struct{})}
}

// DefaultRegistry is the process-wide registry used when none is provided.
var DefaultRegistry = NewRegistry()

// Register claims key. It fails with code E001 if key is already active.
func (r *Registry) Register(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[key]; ok {
		return errors.New(errors.CodeDuplicateBinding).
			WithDetail(fmt.Sprintf("detected multiple bindings for the same key %q", key))
	}
	r.keys[key] = struct{}{}
	return nil
}

// Unregister releases key. Releasing an unknown key is a no-op.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, key)
}

// Active reports whether key has an active binding.
func (r *Registry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.keys[key]
	return ok
}

// Len returns the number of active keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// Keys returns the active keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.keys))
	for k := range r.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type registryKey struct{}

// ProvideRegistry makes r the registry for bindings created in scope and
// its descendants.
func ProvideRegistry(scope *state.Scope, r *Registry) {
	scope.SetValue(registryKey{}, r)
}

// registryFor resolves the registry for scope.
func registryFor(scope *state.Scope) *Registry {
	if scope != nil {
		if r, ok := scope.Value(registryKey{}).(*Registry); ok {
			return r
		}
	}
	return DefaultRegistry
}
