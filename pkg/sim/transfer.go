package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/irctrakz/tcpsim/pkg/core"
	"github.com/irctrakz/tcpsim/pkg/logging"
)

// transfer is the session state of one burst. Scheduler handlers hold a
// pointer to it for the lifetime of the burst.
type transfer struct {
	totalBytes uint32
	segLen     uint32
	totalSegs  uint32
	baseSeq    uint32
	sent       uint32

	// acked holds every ACK value already counted.
	acked map[uint32]struct{}
	// settling is set while an ackBatch is scheduled for the current instant.
	settling bool
	done     bool
}

func newTransfer(totalBytes, segLen, baseSeq uint32) *transfer {
	return &transfer{
		totalBytes: totalBytes,
		segLen:     segLen,
		totalSegs:  ceilDiv(totalBytes, segLen),
		baseSeq:    baseSeq,
		acked:      make(map[uint32]struct{}),
	}
}

func ceilDiv(a, b uint32) uint32 {
	return uint32((uint64(a) + uint64(b) - 1) / uint64(b))
}

// pendingLen is the length of the next segment to send. Only the last
// segment of a burst may be shorter than segLen.
func (t *transfer) pendingLen() uint32 {
	rem := t.totalBytes - t.sent*t.segLen
	if rem < t.segLen {
		return rem
	}
	return t.segLen
}

func (t *transfer) pendingSeq() uint32 {
	return t.baseSeq + t.sent*t.segLen
}

func (t *transfer) complete(inFlight uint32) bool {
	return t.sent == t.totalSegs && inFlight == 0
}

// segLen is the segment size for the active parameters: the receive window
// caps the MSS.
func (s *Simulation) segLen() uint32 {
	if s.cfg.Rwnd < s.cfg.MSS {
		return s.cfg.Rwnd
	}
	return s.cfg.MSS
}

func (s *Simulation) sendBurst(bytes uint32) error {
	if bytes == 0 {
		return ErrInvalidBurst
	}
	if s.conn.closing || s.conn.phase == core.PhaseClosed {
		s.note("Connection closed. Reset first.")
		return ErrConnectionClosed
	}
	if !s.conn.connected {
		s.note("Not connected yet. Run handshake first.")
		return ErrNotConnected
	}
	if s.xfer != nil {
		s.note("Transfer in progress; wait for it to complete.")
		return ErrTransferInProgress
	}

	tr := newTransfer(bytes, s.segLen(), s.conn.clientSeq)
	s.xfer = tr
	s.setPhase(core.PhaseTransfer)
	logging.InfoWithFields(logrus.Fields{
		"component": "sim",
		"t":         s.sched.Now(),
		"bytes":     bytes,
		"segments":  tr.totalSegs,
		"seg_len":   tr.segLen,
	}, "transfer started")

	s.rec.start(tr.segLen)
	s.push(tr)
	return nil
}

// push sends segments while the window allows. Nagle holds a short segment
// while any earlier segment is unacknowledged; NODELAY disables the check.
func (s *Simulation) push(tr *transfer) {
	for tr.sent < tr.totalSegs && s.win.canSend() {
		n := tr.pendingLen()
		if s.cfg.Nagle && !s.cfg.NoDelay && s.win.inFlight > 0 && n < s.cfg.MSS {
			s.holds++
			s.note("Nagle holds small packet until ACK.")
			break
		}

		seq := tr.pendingSeq()
		lost := s.loss.lose()
		s.win.onSend()
		tr.sent++

		s.record(core.WireEvent{
			From: core.Client, To: core.Server, Kind: core.KindData,
			Seq: core.U32(seq), Len: core.U32(n), Lost: lost,
		})

		ack := core.WireEvent{
			From: core.Server, To: core.Client, Kind: core.KindACKData,
			Ack: core.U32(seq + n), Lost: lost,
		}
		if lost {
			ack.Note = "(ghost ACK, lost)"
		}
		s.sched.Schedule(s.half()+s.cfg.DelayedAckMs, &ackArrival{sim: s, tr: tr, seq: seq, ev: ack})
		s.rtx.arm(tr, seq, n)
	}
}

// onAck accounts one arriving ACK. New ACK values free a window slot and
// cancel the segment's RTO timer; the cwnd update and the next push happen
// once per instant in ackBatch.
func (s *Simulation) onAck(tr *transfer, seq, ack uint32) {
	if tr.done {
		return
	}
	if _, seen := tr.acked[ack]; seen {
		return
	}
	tr.acked[ack] = struct{}{}
	s.win.onAck()
	s.rtx.cancel(seq)
	if !tr.settling {
		tr.settling = true
		s.sched.Schedule(0, &ackBatch{sim: s, tr: tr})
	}
}

func (s *Simulation) maybeComplete(tr *transfer) {
	if tr.done || !tr.complete(s.win.inFlight) {
		return
	}
	tr.done = true
	s.conn.clientSeq = tr.baseSeq + tr.totalBytes
	s.xfer = nil
	s.rec.stop()
	s.setPhase(core.PhaseEstablished)
	s.note("Transfer complete: %d bytes.", tr.totalBytes)
}

// ackArrival delivers an ACK-DATA event. A lost ACK is logged but never
// observed by the sender.
type ackArrival struct {
	sim *Simulation
	tr  *transfer
	seq uint32
	ev  core.WireEvent
}

func (a *ackArrival) Handle(uint64) {
	ev := a.sim.record(a.ev)
	if ev.Lost {
		return
	}
	a.sim.onAck(a.tr, a.seq, ev.AckOr(0))
}

// ackBatch runs after every ACK due at the same instant has been delivered.
type ackBatch struct {
	sim *Simulation
	tr  *transfer
}

func (b *ackBatch) Handle(uint64) {
	s, tr := b.sim, b.tr
	tr.settling = false
	if tr.done {
		return
	}
	s.win.cc.OnAckBatch()
	s.push(tr)
	s.maybeComplete(tr)
}
