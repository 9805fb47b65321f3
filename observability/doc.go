// Package observability provides an OpenTelemetry metrics extension for
// courier. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for job enqueue, completion, retry and failure, and
// for webhook event fan-out.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
