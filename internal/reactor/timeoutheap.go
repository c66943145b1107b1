package reactor

import (
	"container/heap"
	"time"
)

// timeoutEntry is one scheduled idle-deadline, keyed by the connection's
// generation at the time it was scheduled. A touch does not remove the
// previous entry for a token; it merely becomes stale and is discarded
// when it is popped.
type timeoutEntry struct {
	deadline   time.Time
	token      Token
	generation uint64
}

// timeoutEntryHeap is a container/heap.Interface min-heap ordered by
// deadline. It is not safe for concurrent use; it is owned by one worker.
type timeoutEntryHeap []timeoutEntry

func (h timeoutEntryHeap) Len() int            { return len(h) }
func (h timeoutEntryHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timeoutEntryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timeoutEntryHeap) Push(x interface{}) { *h = append(*h, x.(timeoutEntry)) }
func (h *timeoutEntryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TimeoutScheduler tracks per-connection idle deadlines and produces
// tokens due for close, tolerating stale entries left behind by repeated
// touches on the same connection (the arena+index+epoch idiom: the
// generation stands in for removing the old entry).
type TimeoutScheduler struct {
	h timeoutEntryHeap
}

// NewTimeoutScheduler constructs an empty min-heap timeout scheduler.
func NewTimeoutScheduler() *TimeoutScheduler {
	s := &TimeoutScheduler{}
	heap.Init(&s.h)
	return s
}

// Schedule pushes a new timeout entry for token at deadline, tagged with
// the connection's generation at schedule time. It never removes any
// earlier entry for the same token.
func (s *TimeoutScheduler) Schedule(token Token, generation uint64, deadline time.Time) {
	heap.Push(&s.h, timeoutEntry{deadline: deadline, token: token, generation: generation})
}

// Len reports the number of entries currently queued, live and stale alike.
func (s *TimeoutScheduler) Len() int { return s.h.Len() }

// DrainDue pops every entry whose deadline is <= now and, for each whose
// generation still matches slab.Get(token).Generation(), calls onDue with
// the token. Stale entries (slot empty, or generation mismatch because a
// later touch or a close-and-reuse has since occurred) are discarded
// silently.
func (s *TimeoutScheduler) DrainDue(now time.Time, slab *Slab, onDue func(Token)) {
	for s.h.Len() > 0 && !s.h[0].deadline.After(now) {
		entry := heap.Pop(&s.h).(timeoutEntry)
		conn := slab.Get(entry.token)
		if conn == nil || conn.Generation() != entry.generation {
			continue
		}
		onDue(entry.token)
	}
}
