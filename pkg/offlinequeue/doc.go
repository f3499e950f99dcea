// Package offlinequeue holds events whose delivery failed transiently.
//
// Invariants:
// - The queue never holds more than Capacity entries; overflow evicts the oldest.
// - Entries keep FIFO order and an event id appears at most once.
// - An entry is dropped once its retry count reaches MaxRetries.
// - Every mutation is persisted; if persistence fails the queue keeps working in
//   memory and Durable reports false.
//
// Usage:
//
//	q := offlinequeue.New(ctx, store, offlinequeue.Options{})
//	q.Enqueue(ctx, evt)
//	for _, entry := range q.Drain(ctx) {
//		_ = entry
//	}
package offlinequeue
