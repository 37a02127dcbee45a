// Package storage defines the persistent key-value store a binding reads
// from and writes to, along with its change-notification channel.
//
// The contract follows the browser's Web Storage API: string keys, string
// values, and a "storage" event delivered to every other browsing context
// that shares the area whenever an entry changes.
//
// # Implementations
//
//   - Null: no persistent store (server-side rendering). Reads report
//     absent, writes fail with ErrUnavailable.
//   - Origin/Memory: an in-process origin with one Memory handle per tab.
//   - Browser/Session: window.localStorage and window.sessionStorage when
//     compiled for js/wasm; Null elsewhere.
//   - File: one file per key in a directory, notified through fsnotify.
//   - SQL: a table in a database/sql database (SQLite bundled), notified by
//     polling a revision column.
//   - S3: objects under a bucket prefix. S3 has no notification channel,
//     so Subscribe never fires.
//
// Choosing the implementation happens once, when the application is
// composed:
//
//	store := storage.Browser() // Null when not running in a browser
//	b, err := persist.Bind(scope, store, "theme", "light", persist.Sync())
package storage
