// Package storage persists pipeline state in independent namespaces.
//
// Invariants:
// - Namespaces never share a document; clearing one leaves the others intact.
// - Values are stored as JSON and decoded into the caller's value on read.
// - File-backed writes are atomic (temp file + rename).
//
// Usage:
//
//	store, _ := storage.Open("file", "/var/lib/beacon/state")
//	defer store.Close()
//	_ = store.Put(ctx, storage.NamespaceConsent, "granted", true)
//	var granted bool
//	ok, _ := store.Get(ctx, storage.NamespaceConsent, "granted", &granted)
package storage
