// Package relayhook relays courier job lifecycle events to webhook
// subscribers. When registered as an extension on an engine, it triggers
// a webhook event (courier.job.completed, courier.job.failed, etc.) at
// every lifecycle point through a [webhook.Dispatcher].
//
// Usage:
//
//	d, _ := webhook.NewDispatcher(subs)
//	eng, _ := engine.New(engine.WithExtension(relayhook.New(d)))
//
// To restrict which events are emitted:
//
//	hook := relayhook.New(d,
//	    relayhook.WithEvents(
//	        relayhook.EventJobCompleted,
//	        relayhook.EventJobFailed,
//	    ),
//	)
//
// WithSkipKinds keeps noisy job kinds quiet. Cron entries that fire are
// relayed as courier.schedule.fired.
//
// Register the hook on the engine that runs application jobs, never on the
// dispatcher's own engine: deliveries would then trigger deliveries.
package relayhook
