// Package webhook delivers events to subscribers as signed HTTP callbacks.
//
// A [Registry] holds subscriptions keyed by subscriber id. Subscribing twice
// with the same id updates the subscription in place; unsubscribing only
// deactivates it. Events match subscriptions by exact name.
//
// A [Dispatcher] turns one triggered event into one delivery per matching
// subscription. Each delivery runs as a job on the dispatcher's own engine
// and worker pool, so a failing endpoint is retried with the same
// exponential backoff as any other job, capped at one minute, for up to
// five attempts by default. Delivery is at-least-once.
//
// Every request is a POST of the JSON envelope
//
//	{"event": "...", "timestamp": "...", "webhook_id": "...", "data": {...}}
//
// with the X-Webhook-Event, X-Webhook-ID and X-Webhook-Attempt headers. When
// the subscription has a secret, X-Webhook-Signature carries
// "sha256=" + hex(HMAC-SHA256(secret, body)). Receivers check it with
// [Verify].
//
//	reg := webhook.NewRegistry(logger)
//	reg.Subscribe(ctx, "S1", "https://example.com/hooks", []string{"passport.created"}, "s3cret")
//
//	d, err := webhook.NewDispatcher(reg, webhook.WithLogger(logger))
//	if err != nil { ... }
//	d.Start(ctx)
//	defer d.Stop(ctx)
//
//	d.Trigger(ctx, "passport.created", map[string]any{"id": 7})
package webhook
