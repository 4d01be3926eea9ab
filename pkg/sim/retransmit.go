package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/irctrakz/tcpsim/pkg/core"
	"github.com/irctrakz/tcpsim/pkg/logging"
)

// minRTO is the lower bound of the retransmission timeout.
const minRTO = 200

// RTOFor returns the retransmission timeout for rtt: max(200, 1.5*rtt).
func RTOFor(rttMs uint64) uint64 {
	rto := rttMs * 3 / 2
	if rto < minRTO {
		return minRTO
	}
	return rto
}

// RetransmissionTimer guards one unacknowledged segment.
type RetransmissionTimer struct {
	Seq     uint32
	Len     uint32
	ArmedAt uint64
	RTO     uint64

	id EventID
}

// retransmitter arms one timer per outstanding segment, cancels it when the
// segment's ACK arrives and retransmits when it fires.
type retransmitter struct {
	sim    *Simulation
	timers map[uint32]*RetransmissionTimer
	count  uint64
}

func newRetransmitter(s *Simulation) *retransmitter {
	return &retransmitter{sim: s, timers: make(map[uint32]*RetransmissionTimer)}
}

func (r *retransmitter) arm(tr *transfer, seq, n uint32) {
	s := r.sim
	t := &RetransmissionTimer{
		Seq:     seq,
		Len:     n,
		ArmedAt: s.sched.Now(),
		RTO:     RTOFor(s.cfg.RTTMs),
	}
	t.id = s.sched.Schedule(t.RTO, &rtoFire{rtx: r, tr: tr, timer: t})
	r.timers[seq] = t
}

func (r *retransmitter) cancel(seq uint32) {
	t, ok := r.timers[seq]
	if !ok {
		return
	}
	r.sim.sched.Cancel(t.id)
	delete(r.timers, seq)
}

// outstanding returns the number of armed timers.
func (r *retransmitter) outstanding() int {
	return len(r.timers)
}

// rtoFire retransmits a segment whose ACK never arrived. Retransmissions are
// not subject to loss and are followed by a guaranteed ACK.
type rtoFire struct {
	rtx   *retransmitter
	tr    *transfer
	timer *RetransmissionTimer
}

func (f *rtoFire) Handle(now uint64) {
	r, t := f.rtx, f.timer
	s := r.sim
	if cur, ok := r.timers[t.Seq]; !ok || cur != t {
		return
	}
	delete(r.timers, t.Seq)
	r.count++
	s.win.cc.OnLoss(true)

	logging.WarnWithFields(logrus.Fields{
		"component": "sim",
		"t":         now,
		"seq":       t.Seq,
		"armed_at":  t.ArmedAt,
		"rto":       t.RTO,
	}, "retransmission timeout")

	s.record(core.WireEvent{
		From: core.Client, To: core.Server, Kind: core.KindRETX,
		Seq: core.U32(t.Seq), Len: core.U32(t.Len), Note: "RTO",
	})
	s.sched.Schedule(s.half()+s.cfg.DelayedAckMs, &ackArrival{
		sim: s,
		tr:  f.tr,
		seq: t.Seq,
		ev: core.WireEvent{
			From: core.Server, To: core.Client, Kind: core.KindACKData,
			Ack: core.U32(t.Seq + t.Len),
		},
	})
	r.arm(f.tr, t.Seq, t.Len)
}
