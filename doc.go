// Package lodstream streams progressive assets one level of detail at a time
// within a per-frame work budget.
//
// The Service facade wires a job.Manager, a scheduler.Scheduler, a
// fetch.Fetcher and a registry of container formats. A host opens assets by
// URL, raises their required level and ticks the service once per frame:
//
//	srv, _ := lodstream.New()
//	defer srv.Shutdown()
//	asset, _ := srv.Open(ctx, "file:///data/mesh.slod", parser.WithRequiredLod(8))
//	_ = srv.Runtime().Run(ctx)
//	fmt.Println(asset.Status())
//
// Notifications (ready, lod, completed, error, active, inactive, stalled) are
// published on Events and can be consumed with an event.Listener.
package lodstream
