// Package dispatch delivers normalized events to the collector.
//
// Invariants:
// - Pageview events go to <collector>/pageview, every other type to <collector>/track.
// - Each request is bounded by a fixed timeout and carries the event id as its
//   Idempotency-Key.
// - Only the status code classifies a response: 2xx delivered, 429/5xx and
//   transport errors transient, other 4xx rejected.
// - An event id that was delivered is not sent again while it is remembered.
//
// Usage:
//
//	d, _ := dispatch.New(dispatch.Config{CollectorURL: "https://collect.example.com"})
//	switch d.Send(ctx, evt).Kind {
//	case dispatch.TransientFailure:
//		queue.Enqueue(ctx, evt)
//	}
package dispatch
