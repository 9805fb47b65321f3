// Package courier provides an in-process asynchronous execution engine:
// a bounded, priority-ordered worker pool for background jobs and a
// webhook dispatcher that delivers signed HTTP callbacks to subscribers
// with at-least-once semantics.
//
// Courier is designed as a library. Construct the pieces explicitly and
// pass them to whatever needs them; there are no package-level singletons.
//
// # Quick Start
//
//	eng, _ := engine.New(engine.WithConfig(courier.DefaultConfig()))
//	engine.Register(eng, job.NewDefinition("resize-image", resize))
//	_ = eng.Start(ctx)
//	jobID, _ := engine.Submit(ctx, eng, "resize-image", ResizeInput{ID: 7})
//	snap, _ := eng.Wait(ctx, jobID, 5*time.Second)
//
//	subs := webhook.NewRegistry(logger)
//	_, _ = subs.Subscribe(ctx, "crm", "https://crm.example.com/hooks", []string{"passport.created"}, "s3cret")
//	d, _ := webhook.NewDispatcher(subs, webhook.WithLogger(logger))
//	_ = d.Start(ctx)
//	deliveryIDs, _ := d.Trigger(ctx, "passport.created", map[string]any{"id": 7})
//
// # Architecture
//
// Jobs are serializable commands: a registered kind name plus a JSON
// payload. The worker package runs them with bounded concurrency and
// exponential backoff; the engine package is the caller-facing façade;
// the webhook package specializes a worker pool for outbound deliveries.
// Job history is process-lifetime and in-memory only. Subscriptions can
// be mirrored to Redis through store/redis, and cmd/courierd serves the
// whole thing over HTTP.
package courier
