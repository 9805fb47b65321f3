// Package engine wires the courier subsystems together and provides the
// application-level API for registering and submitting work.
//
// # Building an Engine
//
//	eng, err := engine.New(
//	    engine.WithConfig(cfg),
//	    engine.WithLogger(logger),
//	    engine.WithExtension(myExtension),
//	    engine.WithMiddleware(myMiddleware),
//	)
//
// # Registering and Submitting Work
//
//	engine.Register(eng, ResizeImage)
//
//	jobID, err := engine.Submit(ctx, eng, "resize-image", ResizeInput{URL: u},
//	    job.WithPriority(job.PriorityHigh),
//	)
//
// # Querying
//
//	state, _ := eng.Status(jobID)
//	snap, _ := eng.Wait(ctx, jobID, 30*time.Second) // nil on timeout
//	out, err := engine.ResultAs[ResizeOutput](eng, jobID)
//
// Identifiers have the form "task_<n>_<unix>". Jobs are kept in memory for
// the lifetime of the process; terminal records live in bounded histories
// and an evicted id reports courier.ErrJobNotFound, exactly like an id that
// never existed.
//
// # Options
//
//   - [WithConfig]: engine configuration (workers, history size, timeouts)
//   - [WithLogger]: structured logger
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware to the execution chain
//   - [WithBackoff]: set the retry backoff strategy
//   - [WithIDPrefix]: change the identifier prefix
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
package engine
