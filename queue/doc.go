// Package queue holds the in-memory priority queue that feeds the worker
// pool and the keyed rate limiter used to throttle outbound deliveries.
//
// # PriorityQueue
//
// [PriorityQueue] orders execution records by job priority, highest first,
// then by submission sequence so equal priorities are served FIFO. Push
// never blocks. Pop blocks up to a timeout so idle workers can re-check
// their stop signal:
//
//	q := queue.NewPriorityQueue()
//	q.Push(rec)
//	rec, ok := q.Pop(ctx, time.Second)
//
// The queue is unbounded.
//
// # Limiter
//
// [Limiter] is a set of token buckets (golang.org/x/time/rate) keyed by an
// arbitrary string such as a destination host. Keys without an explicit
// [Config] share the limiter's default settings, each with its own bucket:
//
//	l := queue.NewLimiter(queue.Config{RateLimit: 10, RateBurst: 20})
//	if err := l.Wait(ctx, "hooks.example.com"); err != nil {
//	    return err
//	}
package queue
