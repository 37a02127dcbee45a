// Package state provides the two primitives a persisted binding lives in:
// a reactive value slot and a component lifecycle scope.
//
// Cell[T] holds a value and notifies subscribers when it changes:
//
//	count := state.NewCell(0)
//	stop := count.Subscribe(func(n int) { fmt.Println("count:", n) })
//	count.Set(1)                                  // prints "count: 1"
//	count.Update(func(n int) int { return n + 1 }) // prints "count: 2"
//	stop()
//
// Scope mirrors a mounted component. Resources register cleanups on it and
// are released when the scope, or any of its ancestors, is disposed:
//
//	page := state.NewScope(nil)
//	widget := state.NewScope(page)
//	widget.OnCleanup(func() { fmt.Println("unmounted") })
//	page.Dispose() // prints "unmounted"
//
// # Thread Safety
//
// Both types are safe for concurrent use. Subscribers and cleanups are
// never invoked while an internal lock is held, so they may freely call
// back into the cell or scope.
package state
