// Package event defines tracked events and turns raw caller input into
// wire-ready records.
//
// Invariants:
// - An invalid event is refused before any session, attribution or network work.
// - A type-less "page_view" is a pageview; any other type-less event is custom.
// - Pageview events carry a page and every event carries a session id.
// - A normalized Event is not modified afterwards; its ID is the idempotency key.
//
// Usage:
//
//	n, _ := event.NewNormalizer(sessions, attr, event.Options{})
//	evt, err := n.Normalize(ctx, event.RawEvent{Name: "signup_click"})
//	if errors.Is(err, event.ErrValidation) {
//		return
//	}
package event
