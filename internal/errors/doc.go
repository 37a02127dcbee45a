// Package errors provides coded, structured errors for localstate.
//
// Every condition a binding can hit has a registered code:
//   - E001: duplicate binding for a key (fatal, returned to the caller)
//   - W001: reading a stored entry failed (logged, falls back to the initial value)
//   - W002: writing an entry failed (logged, in-memory value still updated)
//   - W003: write attempted without a persistent store (logged, ignored)
//   - W004: a change notification carried an undecodable value (logged, ignored)
//
// Codes starting with E are errors, W are warnings that never reach callers.
//
// # Usage
//
//	err := errors.New("E001").
//	    WithDetail(fmt.Sprintf("key %q is already bound", key)).
//	    Wrap(cause)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E001: Multiple concurrent bindings for the same key
//	//
//	//   key "theme" is already bound
//	//
//	//   Hint: Share one binding through state or context instead.
package errors
