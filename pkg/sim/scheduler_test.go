package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// traceHandler appends its label to a shared trace when dispatched.
type traceHandler struct {
	label string
	trace *[]string
	times *[]uint64
}

func (h *traceHandler) Handle(now uint64) {
	*h.trace = append(*h.trace, h.label)
	*h.times = append(*h.times, now)
}

func TestSchedulerOrdersByTimeThenInsertion(t *testing.T) {
	s := NewScheduler()
	var trace []string
	var times []uint64
	add := func(delay uint64, label string) {
		s.Schedule(delay, &traceHandler{label: label, trace: &trace, times: &times})
	}
	add(30, "c")
	add(10, "a1")
	add(10, "a2")
	add(20, "b")
	add(10, "a3")

	s.RunUntil(100)
	assert.Equal(t, []string{"a1", "a2", "a3", "b", "c"}, trace)
	assert.Equal(t, []uint64{10, 10, 10, 20, 30}, times)
	assert.Equal(t, uint64(100), s.Now())
	assert.Equal(t, 0, s.Pending())
}

func TestSchedulerRunUntilStopsAtTarget(t *testing.T) {
	s := NewScheduler()
	var trace []string
	var times []uint64
	s.Schedule(10, &traceHandler{label: "early", trace: &trace, times: &times})
	s.Schedule(50, &traceHandler{label: "late", trace: &trace, times: &times})

	s.RunUntil(49)
	assert.Equal(t, []string{"early"}, trace)
	assert.Equal(t, uint64(49), s.Now())
	assert.Equal(t, 1, s.Pending())

	// The clock never moves backwards.
	s.RunUntil(20)
	assert.Equal(t, uint64(49), s.Now())

	s.RunUntil(50)
	assert.Equal(t, []string{"early", "late"}, trace)
}

// chainHandler schedules a follow-up event from inside its own dispatch.
type chainHandler struct {
	s     *Scheduler
	left  int
	times *[]uint64
}

func (h *chainHandler) Handle(now uint64) {
	*h.times = append(*h.times, now)
	if h.left > 0 {
		h.left--
		h.s.Schedule(5, h)
	}
}

func TestSchedulerHandlerMaySchedule(t *testing.T) {
	s := NewScheduler()
	var times []uint64
	s.Schedule(0, &chainHandler{s: s, left: 3, times: &times})
	s.RunUntil(100)
	assert.Equal(t, []uint64{0, 5, 10, 15}, times)
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	var trace []string
	var times []uint64
	id := s.Schedule(10, &traceHandler{label: "cancelled", trace: &trace, times: &times})
	s.Schedule(20, &traceHandler{label: "kept", trace: &trace, times: &times})
	s.Cancel(id)
	s.Cancel(9999)
	assert.Equal(t, 1, s.Pending())

	due, ok := s.NextDue()
	require.True(t, ok)
	assert.Equal(t, uint64(20), due)

	s.RunUntil(100)
	assert.Equal(t, []string{"kept"}, trace)
}

func TestSchedulerAdvance(t *testing.T) {
	s := NewScheduler()
	var trace []string
	var times []uint64
	s.Schedule(7, &traceHandler{label: "x", trace: &trace, times: &times})
	assert.True(t, s.Advance())
	assert.Equal(t, uint64(7), s.Now())
	assert.False(t, s.Advance())
}

// resetHandler resets the scheduler from inside a dispatch.
type resetHandler struct {
	s *Scheduler
}

func (h *resetHandler) Handle(uint64) { h.s.Reset() }

func TestSchedulerResetIsTotal(t *testing.T) {
	s := NewScheduler()
	var trace []string
	var times []uint64
	s.Schedule(10, &traceHandler{label: "stale", trace: &trace, times: &times})
	s.RunUntil(5)
	s.Reset()
	assert.Equal(t, uint64(0), s.Now())
	assert.Equal(t, 0, s.Pending())

	s.RunUntil(1000)
	assert.Empty(t, trace)

	// A reset issued by a handler stops the drain loop.
	s.Reset()
	s.Schedule(10, &resetHandler{s: s})
	s.Schedule(20, &traceHandler{label: "after", trace: &trace, times: &times})
	s.RunUntil(1000)
	assert.Empty(t, trace)
	assert.Equal(t, uint64(0), s.Now())
}
