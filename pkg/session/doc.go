// Package session tracks the visitor session behind every tracked event.
//
// Invariants:
// - A session expires after Timeout without activity; expiry mints a new id and
//   an expired id is never reused.
// - Every tracked action touches the session, sliding its expiry window.
// - Reads through Peek and ID never extend the window.
// - If the store fails the manager continues in memory for the rest of its life.
//
// Usage:
//
//	mgr := session.NewManager(store, session.Options{Timeout: 30 * time.Minute})
//	id := mgr.CurrentSessionID(ctx)
//	_ = id
package session
