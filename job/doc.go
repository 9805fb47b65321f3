// Package job defines the unit of work, its execution record and state
// machine, priorities, and typed job definitions.
//
// # Job and Record
//
// A [Job] is the immutable description of one schedulable piece of work:
// identity, submission sequence, kind name, JSON payload, priority and
// retry budget. A [Record] is the mutable lifecycle state attached to a
// Job and progresses through a state machine:
//
//	pending → running → completed
//	pending → running → retrying → pending → running → ...
//	pending → running → failed   (attempts exhausted)
//
// Records are owned by the worker pool that processes them. Queriers read
// them through [Record.Snapshot].
//
// # Defining a Job
//
// Jobs are serializable commands rather than closures: a registered kind
// name plus a JSON payload. Use [Definition] with a typed handler; the
// payload is deserialized before the handler runs and the handler's return
// value becomes the job result:
//
//	var ResizeImage = job.NewDefinition("resize-image",
//	    func(ctx context.Context, in ResizeInput) (ResizeOutput, error) {
//	        return images.Resize(ctx, in)
//	    },
//	    job.WithPriority(job.PriorityHigh),
//	)
//
//	job.RegisterDefinition(registry, ResizeImage)
package job
