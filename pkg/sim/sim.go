// Package sim implements a discrete-event simulator of a single TCP
// connection: three-way handshake, windowed data transfer with delayed
// ACKs, RTO retransmission, Nagle versus TCP_NODELAY segmentation and
// teardown, all on a virtual millisecond clock driven by the caller.
//
// A Simulation never advances on its own. Operations such as StartHandshake
// and SendBurst schedule future events and return immediately; Step,
// RunUntil and Advance move virtual time and dispatch due events. Every
// timed transition lives in the one Scheduler, so Reset is total.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/irctrakz/tcpsim/pkg/core"
	"github.com/irctrakz/tcpsim/pkg/logging"
)

// Recoverable operation errors. The failing call leaves the engine unchanged.
var (
	ErrNotConnected        = errors.New("not connected")
	ErrAlreadyConnected    = errors.New("already connected")
	ErrHandshakeInProgress = errors.New("handshake already in progress")
	ErrTransferInProgress  = errors.New("transfer in progress")
	ErrConnectionClosed    = errors.New("connection closed")
	ErrInvalidBurst        = errors.New("burst size must be positive")
)

// maxNotes bounds the operator note log.
const maxNotes = 300

// Note is a human-readable line of the operator log.
type Note struct {
	T    uint64 `json:"t"`
	Text string `json:"text"`
}

// Simulation is one simulated connection. It is safe for use from multiple
// goroutines; all mutation is serialized by a single mutex.
type Simulation struct {
	mu sync.Mutex

	cfg   core.SimConfig
	sched *Scheduler
	loss  *lossModel
	win   *window
	rtx   *retransmitter
	rec   *recorder
	conn  connection
	xfer  *transfer

	wire   []core.WireEvent
	nextID uint64
	notes  []Note
	holds  uint64
	paused bool
}

// New validates cfg and returns an idle simulation at virtual time 0.
func New(cfg core.SimConfig) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	s := &Simulation{cfg: cfg, sched: NewScheduler()}
	s.resetLocked()
	return s, nil
}

// Config returns the active parameters.
func (s *Simulation) Config() core.SimConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Configure validates and applies new parameters, then resets.
func (s *Simulation) Configure(cfg core.SimConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid simulation config: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.resetLocked()
	return nil
}

// Reset discards all pending events, the wire log, metrics and notes, and
// returns the connection to IDLE at virtual time 0. Parameters are kept.
func (s *Simulation) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Simulation) resetLocked() {
	s.sched.Reset()
	s.loss = newLossModel(s.cfg.Seed, s.cfg.LossPct)
	s.win = newWindow(s.cfg.Cwnd0, s.cfg.Rwnd)
	s.rtx = newRetransmitter(s)
	s.rec = newRecorder(s)
	s.conn = newConnection(s.cfg)
	s.xfer = nil
	s.wire = nil
	s.nextID = 0
	s.notes = nil
	s.holds = 0
	s.paused = false
	logging.DebugWithFields(logrus.Fields{"component": "sim"}, "simulation reset")
}

// StartHandshake begins the three-way handshake.
func (s *Simulation) StartHandshake() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startHandshake()
}

// SendBurst queues bytes for transfer over the established connection.
func (s *Simulation) SendBurst(bytes uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendBurst(bytes)
}

// Close tears the connection down with FIN / FIN-ACK / ACK.
func (s *Simulation) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.close()
}

// Step advances virtual time by dt milliseconds.
func (s *Simulation) Step(dt uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.sched.RunUntil(s.sched.Now() + dt)
}

// RunUntil advances virtual time to t, dispatching every event due on the way.
func (s *Simulation) RunUntil(t uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.sched.RunUntil(t)
}

// Advance dispatches the next pending event and reports whether there was one.
func (s *Simulation) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return false
	}
	return s.sched.Advance()
}

// RunUntilIdle dispatches events until none is pending or the next one is
// due after deadline. It reports whether the queue drained.
func (s *Simulation) RunUntilIdle(deadline uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return false
	}
	for {
		due, ok := s.sched.NextDue()
		if !ok {
			return true
		}
		if due > deadline {
			return false
		}
		s.sched.Advance()
	}
}

// Pause stops Step, RunUntil and Advance from moving virtual time.
func (s *Simulation) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume undoes Pause.
func (s *Simulation) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Paused reports whether the simulation is paused.
func (s *Simulation) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Now returns the current virtual time in milliseconds.
func (s *Simulation) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Now()
}

// Pending returns the number of scheduled events not yet dispatched.
func (s *Simulation) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Pending()
}

// WireLog returns a copy of the wire log, ordered by time.
func (s *Simulation) WireLog() []core.WireEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.WireEvent, len(s.wire))
	copy(out, s.wire)
	return out
}

// CwndHistory returns the sampled congestion window series.
func (s *Simulation) CwndHistory() []core.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Sample(nil), s.rec.cwnd...)
}

// ThroughputHistory returns the sampled bytes-per-tick series.
func (s *Simulation) ThroughputHistory() []core.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Sample(nil), s.rec.tput...)
}

// TickMs returns the metrics sampling interval.
func (s *Simulation) TickMs() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.tick
}

// State returns a snapshot of the connection state.
func (s *Simulation) State() core.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.snapshot()
}

// Congestion returns a snapshot of the window accounting.
func (s *Simulation) Congestion() core.CongestionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.win.state()
}

// RetransmitCount returns the number of RTO-driven retransmissions.
func (s *Simulation) RetransmitCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rtx.count
}

// NagleHolds returns how many times Nagle held back a small segment.
func (s *Simulation) NagleHolds() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holds
}

// Notes returns the operator log, oldest first.
func (s *Simulation) Notes() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Note(nil), s.notes...)
}

// record stamps ev with the next id and the current time and appends it to
// the wire log.
func (s *Simulation) record(ev core.WireEvent) core.WireEvent {
	s.nextID++
	ev.ID = s.nextID
	ev.T = s.sched.Now()
	s.wire = append(s.wire, ev)

	fields := logrus.Fields{
		"component": "sim",
		"t":         ev.T,
		"kind":      ev.Kind,
		"lost":      ev.Lost,
	}
	if ev.Seq != nil {
		fields["seq"] = *ev.Seq
	}
	if ev.Ack != nil {
		fields["ack"] = *ev.Ack
	}
	if ev.Len != nil {
		fields["len"] = *ev.Len
	}
	logging.DebugWithFields(fields, "%s %s->%s", ev.Kind, ev.From, ev.To)
	return ev
}

func (s *Simulation) note(format string, args ...interface{}) {
	n := Note{T: s.sched.Now(), Text: fmt.Sprintf(format, args...)}
	s.notes = append(s.notes, n)
	if len(s.notes) > maxNotes {
		s.notes = append(s.notes[:0:0], s.notes[len(s.notes)-maxNotes:]...)
	}
}

// half returns the one-way delay.
func (s *Simulation) half() uint64 {
	return s.cfg.RTTMs / 2
}

// emitWire appends a prepared wire event when it comes due.
type emitWire struct {
	sim *Simulation
	ev  core.WireEvent
}

func (e *emitWire) Handle(uint64) {
	e.sim.record(e.ev)
}
