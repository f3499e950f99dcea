// Package consent answers whether tracking is permitted.
//
// Invariants:
// - Consent defaults to absent; an unreadable flag means absent.
// - The persisted flag is the source of truth, so a grant written by another
//   process is honoured on the next check.
// - A grant that cannot be persisted still applies for the life of the Gate.
//
// Usage:
//
//	gate := consent.NewGate(store, logger)
//	if !gate.HasConsent(ctx) {
//		return
//	}
package consent
