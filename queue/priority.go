package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/xraph/courier/job"
)

// PriorityQueue is a thread-safe, unbounded queue of execution records.
type PriorityQueue struct {
	mu     sync.Mutex
	items  recordHeap
	notify chan struct{}
}

// NewPriorityQueue creates an empty queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{notify: make(chan struct{}, 1)}
}

// Push adds rec to the queue and wakes one waiting consumer.
func (q *PriorityQueue) Push(rec *job.Record) {
	q.mu.Lock()
	heap.Push(&q.items, rec)
	q.mu.Unlock()
	q.signal()
}

// Pop removes the highest-priority record, waiting up to timeout for one to
// arrive. It returns false on timeout or when ctx is done.
func (q *PriorityQueue) Pop(ctx context.Context, timeout time.Duration) (*job.Record, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if rec, ok := q.tryPop(); ok {
			return rec, true
		}
		select {
		case <-q.notify:
		case <-timer.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// TryPop removes the highest-priority record without waiting.
func (q *PriorityQueue) TryPop() (*job.Record, bool) {
	return q.tryPop()
}

func (q *PriorityQueue) tryPop() (*job.Record, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	rec := heap.Pop(&q.items).(*job.Record)
	more := len(q.items) > 0
	q.mu.Unlock()

	// Pass the wake-up on so another consumer drains the rest.
	if more {
		q.signal()
	}
	return rec, true
}

func (q *PriorityQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of queued records.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns every queued record in dequeue order.
func (q *PriorityQueue) Drain() []*job.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*job.Record, 0, len(q.items))
	for len(q.items) > 0 {
		out = append(out, heap.Pop(&q.items).(*job.Record))
	}
	return out
}

// recordHeap implements heap.Interface.
type recordHeap []*job.Record

func (h recordHeap) Len() int { return len(h) }

func (h recordHeap) Less(i, j int) bool {
	a, b := h[i].Job(), h[j].Job()
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Seq < b.Seq
}

func (h recordHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *recordHeap) Push(x any) { *h = append(*h, x.(*job.Record)) }

func (h *recordHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return rec
}
