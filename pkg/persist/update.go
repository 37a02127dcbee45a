package persist

// Update is a pending change to a binding: either a value to store
// directly or a function computing it from the current value.
type Update[T any] struct {
	value    T
	fn       func(T) T
	computed bool
}

// Value returns an update that stores v.
func Value[T any](v T) Update[T] {
	return Update[T]{value: v}
}

// Func returns an update that stores fn(current). fn may read the binding
// but must not update it; nested updates block.
func Func[T any](fn func(T) T) Update[T] {
	return Update[T]{fn: fn, computed: true}
}

// Computed reports whether the update is derived from the current value.
func (u Update[T]) Computed() bool {
	return u.computed
}

func (u Update[T]) apply(current T) T {
	if !u.computed {
		return u.value
	}
	if u.fn == nil {
		return current
	}
	return u.fn(current)
}
