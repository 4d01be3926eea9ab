package sim

import "container/heap"

// EventID identifies a scheduled event until it is dispatched or cancelled.
type EventID uint64

// Handler is a unit of work dispatched by the Scheduler at its due time.
type Handler interface {
	Handle(now uint64)
}

type scheduled struct {
	due     uint64
	order   uint64
	id      EventID
	handler Handler
}

// eventQueue orders by due time, then by insertion order.
type eventQueue []*scheduled

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].order < q[j].order
}
func (q eventQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x interface{}) { *q = append(*q, x.(*scheduled)) }
func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// Scheduler is a single-threaded virtual clock with a queue of future
// events. Handlers run to completion and may schedule further events.
type Scheduler struct {
	now       uint64
	order     uint64
	nextID    EventID
	queue     eventQueue
	cancelled map[EventID]struct{}

	// generation changes on every Reset so a drain loop interrupted by a
	// reset stops instead of dispatching into the new timeline.
	generation uint64
}

// NewScheduler returns an empty scheduler at virtual time 0.
func NewScheduler() *Scheduler {
	return &Scheduler{cancelled: make(map[EventID]struct{})}
}

// Now returns the current virtual time in milliseconds.
func (s *Scheduler) Now() uint64 { return s.now }

// Pending returns the number of events waiting to be dispatched.
func (s *Scheduler) Pending() int { return len(s.queue) - len(s.cancelled) }

// Schedule enqueues h to fire at Now()+delay.
func (s *Scheduler) Schedule(delay uint64, h Handler) EventID {
	s.nextID++
	s.order++
	heap.Push(&s.queue, &scheduled{
		due:     s.now + delay,
		order:   s.order,
		id:      s.nextID,
		handler: h,
	})
	return s.nextID
}

// Cancel prevents a pending event from firing. Unknown or already
// dispatched ids are ignored.
func (s *Scheduler) Cancel(id EventID) {
	for _, it := range s.queue {
		if it.id == id {
			s.cancelled[id] = struct{}{}
			return
		}
	}
}

// Reset discards every pending event and rewinds the clock to 0.
func (s *Scheduler) Reset() {
	s.now = 0
	s.order = 0
	s.queue = nil
	s.cancelled = make(map[EventID]struct{})
	s.generation++
}

// NextDue returns the due time of the earliest live event.
func (s *Scheduler) NextDue() (uint64, bool) {
	s.dropCancelledHead()
	if len(s.queue) == 0 {
		return 0, false
	}
	return s.queue[0].due, true
}

// Advance dispatches the earliest live event, moving the clock to its due
// time. It reports false when the queue is empty.
func (s *Scheduler) Advance() bool {
	s.dropCancelledHead()
	if len(s.queue) == 0 {
		return false
	}
	it := heap.Pop(&s.queue).(*scheduled)
	if it.due > s.now {
		s.now = it.due
	}
	it.handler.Handle(s.now)
	return true
}

// RunUntil dispatches every event due at or before target, then moves the
// clock to target. The clock never moves backwards.
func (s *Scheduler) RunUntil(target uint64) {
	gen := s.generation
	for {
		due, ok := s.NextDue()
		if !ok || due > target {
			break
		}
		s.Advance()
		if s.generation != gen {
			return
		}
	}
	if target > s.now {
		s.now = target
	}
}

func (s *Scheduler) dropCancelledHead() {
	for len(s.queue) > 0 {
		head := s.queue[0]
		if _, ok := s.cancelled[head.id]; !ok {
			return
		}
		delete(s.cancelled, head.id)
		heap.Pop(&s.queue)
	}
}
