// Package tracker is the public entry point of the telemetry pipeline.
//
// A Tracker owns one consent gate, session, attribution record and offline
// queue over a single store, plus the dispatcher and retry scheduler that
// move events to the collector.
//
// Invariants:
// - Nothing is normalized, sent or captured while consent is absent.
// - Invalid events never reach the network.
// - Track returns before any I/O; sends leave in Track call order.
// - Transient failures end up in the offline queue; no delivery problem is
//   ever returned as an error.
//
// Usage:
//
//	cfg, _ := config.Load("")
//	t, err := tracker.New(*cfg)
//	if err != nil {
//	    return err
//	}
//	defer t.Close()
//
//	t.Init(ctx, "https://example.com/?utm_source=newsletter")
//	t.GrantConsent(ctx)
//	t.TrackPageView(ctx, "/posts/hello")
//	t.TrackEvent(ctx, "signup", event.TypeConversion, map[string]interface{}{"plan": "pro"})
package tracker
