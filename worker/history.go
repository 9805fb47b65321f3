package worker

import (
	"sync"

	"github.com/xraph/courier/job"
)

// history is a bounded ring of terminal records. When full, the oldest
// record is evicted. It has its own lock so readers of one ring never
// contend with writers of another.
type history struct {
	mu   sync.RWMutex
	buf  []*job.Record
	head int // index of the oldest entry
	n    int
	byID map[string]*job.Record
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = 1
	}
	return &history{
		buf:  make([]*job.Record, capacity),
		byID: make(map[string]*job.Record, capacity),
	}
}

// add appends rec and returns the evicted record, if any.
func (h *history) add(rec *job.Record) (evicted *job.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.n == len(h.buf) {
		evicted = h.buf[h.head]
		delete(h.byID, evicted.ID())
		h.buf[h.head] = rec
		h.head = (h.head + 1) % len(h.buf)
	} else {
		h.buf[(h.head+h.n)%len(h.buf)] = rec
		h.n++
	}
	h.byID[rec.ID()] = rec
	return evicted
}

func (h *history) get(id string) (*job.Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.byID[id]
	return rec, ok
}

func (h *history) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.n
}

// list returns the records oldest first.
func (h *history) list() []*job.Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*job.Record, 0, h.n)
	for i := range h.n {
		out = append(out, h.buf[(h.head+i)%len(h.buf)])
	}
	return out
}
