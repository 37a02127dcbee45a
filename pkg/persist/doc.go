// Package persist binds a piece of UI state to an entry in a persistent
// key-value store.
//
// A Binding reads its key once when it is created, falling back to the
// initial value when the entry is missing, unreadable or there is no store
// at all (server-side rendering). Every update is written back. With Sync
// enabled, changes made by other tabs are adopted as they are announced by
// the store.
//
// Example:
//
//	scope := state.NewScope(nil)
//	todos, err := persist.Bind(scope, storage.Browser(), "todos", []string{}, persist.Sync())
//	if err != nil {
//	    return err // only a duplicate binding for "todos" fails
//	}
//
//	todos.SetValue([]string{"buy milk"})
//	todos.Update(func(prev []string) []string { return append(prev, "walk dog") })
//
//	scope.Dispose() // unsubscribes and releases the key
//
// # Failure Policy
//
// Storage failures never reach the caller. Reads degrade to the initial
// value, writes keep the in-memory update, and both are logged as
// warnings. The only error returned is a second concurrent binding for the
// same key, which indicates two owners for one persisted value.
package persist
