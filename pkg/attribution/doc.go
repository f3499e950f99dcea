// Package attribution records the campaign that first brought a visitor in.
//
// Invariants:
// - First touch wins: once any utm_* field is captured, later captures are ignored
//   until Clear is called.
// - A URL without utm_* parameters never changes the stored context.
//
// Usage:
//
//	store := attribution.NewStore(kv, logger)
//	store.CaptureFromURL(ctx, "https://blog.example.com/?utm_source=newsletter")
//	ctx := store.Current(ctx)
package attribution
