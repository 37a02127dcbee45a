//go:build !(js && wasm)

package storage

// Browser returns window.localStorage. Outside a browser there is none, so
// it returns Null and bindings fall back to their initial values.
func Browser() Store {
	return Null()
}

// Session returns window.sessionStorage, or Null outside a browser.
func Session() Store {
	return Null()
}
