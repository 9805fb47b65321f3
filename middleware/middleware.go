// Package middleware wraps job attempts with cross-cutting behaviour.
package middleware

import (
	"context"
	"slices"

	"github.com/xraph/courier/job"
)

// Handler runs one attempt of a job.
type Handler func(ctx context.Context) error

// Middleware wraps one attempt of j. It must call next unless it fails the
// attempt itself; the error it returns decides retry or failure.
type Middleware func(ctx context.Context, j *job.Job, next Handler) error

// Chain composes mws into one Middleware. mws[0] is the outermost wrapper
// and nil entries are skipped.
func Chain(mws ...Middleware) Middleware {
	mws = slices.DeleteFunc(slices.Clone(mws), func(m Middleware) bool { return m == nil })
	return func(ctx context.Context, j *job.Job, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			m, inner := mws[i], h
			h = func(ctx context.Context) error {
				return m(ctx, j, inner)
			}
		}
		return h(ctx)
	}
}

// ForKinds applies m only to jobs whose name is one of kinds.
func ForKinds(m Middleware, kinds ...string) Middleware {
	return byKind(m, kinds, true)
}

// ExceptKinds applies m to every job except those named in kinds, e.g.
// ExceptKinds(audit, webhook.KindDeliver).
func ExceptKinds(m Middleware, kinds ...string) Middleware {
	return byKind(m, kinds, false)
}

func byKind(m Middleware, kinds []string, match bool) Middleware {
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if set[j.Name] != match {
			return next(ctx)
		}
		return m(ctx, j, next)
	}
}
