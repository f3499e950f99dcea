// Package retry replays the offline queue through the dispatcher.
//
// Invariants:
// - At most one drain pass runs at a time; a concurrent request is a no-op.
// - No pass sends anything while consent is absent.
// - Entries are retried in FIFO order once due; a transient failure pushes the
//   next attempt out by min(base * 2^retries, max).
// - Delivered and rejected entries leave the queue; exhausted ones are dropped.
//
// Usage:
//
//	s, _ := retry.New(queue, dispatcher, gate, retry.Options{Schedule: "@every 30s"})
//	s.Start()
//	defer s.Stop()
//	s.Trigger()
package retry
