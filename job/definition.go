package job

import "context"

// Definition is a typed job definition with a handler function.
// T is the payload type and R the result type; both must be
// JSON-serializable.
type Definition[T, R any] struct {
	// Name is the unique identifier for this job kind.
	Name string

	// Handler processes the payload and produces the job result.
	Handler func(ctx context.Context, payload T) (R, error)

	// Opts are applied to every job of this kind before per-call options.
	Opts []Option
}

// NewDefinition creates a typed job definition.
func NewDefinition[T, R any](name string, handler func(ctx context.Context, payload T) (R, error), opts ...Option) *Definition[T, R] {
	return &Definition[T, R]{
		Name:    name,
		Handler: handler,
		Opts:    opts,
	}
}
