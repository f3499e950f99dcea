// Package commandqueue provides lane-based task execution with FIFO ordering per lane.
//
// Invariants:
// - Tasks in the same lane start in FIFO order; a lane with concurrency 1 runs
//   them strictly one after another.
// - Tasks in different lanes may execute concurrently.
// - Close lets every submitted task finish before returning.
//
// Usage:
//
//	queue := commandqueue.New()
//	defer queue.Close()
//	_ = queue.Submit(ctx, "dispatch", func(ctx context.Context) (interface{}, error) {
//		return nil, send(ctx)
//	})
package commandqueue
