package sim

import "github.com/irctrakz/tcpsim/pkg/core"

// congestionControl is the growth policy of the sender's congestion window,
// counted in segments.
type congestionControl interface {
	// Cwnd returns the current congestion window.
	Cwnd() uint32
	// OnAckBatch informs the CC that a batch of new ACK values arrived.
	OnAckBatch()
	// OnLoss informs the CC of a loss event. If timeout is true, it was an RTO.
	OnLoss(timeout bool)
}

// newCongestionControl constructs the additive-increase controller.
func newCongestionControl(cwnd0 uint32) congestionControl {
	return newAdditive(cwnd0)
}

// --- additive increase ---

// additive grows cwnd by one segment per ACK batch up to MaxCwnd and never
// shrinks it. Retransmission is the only loss response.
type additive struct {
	cwnd uint32
}

func newAdditive(cwnd0 uint32) *additive {
	if cwnd0 < core.MinCwnd {
		cwnd0 = core.MinCwnd
	}
	if cwnd0 > core.MaxCwnd {
		cwnd0 = core.MaxCwnd
	}
	return &additive{cwnd: cwnd0}
}

func (a *additive) Cwnd() uint32 { return a.cwnd }

func (a *additive) OnAckBatch() {
	if a.cwnd < core.MaxCwnd {
		a.cwnd++
	}
}

func (a *additive) OnLoss(bool) { /* no-op */ }

// window tracks segments in flight against the congestion window.
type window struct {
	cc       congestionControl
	rwnd     uint32
	inFlight uint32
}

func newWindow(cwnd0, rwnd uint32) *window {
	return &window{cc: newCongestionControl(cwnd0), rwnd: rwnd}
}

// canSend reports whether one more segment fits in the congestion window.
func (w *window) canSend() bool {
	return w.inFlight < w.cc.Cwnd()
}

func (w *window) onSend() {
	w.inFlight++
}

func (w *window) onAck() {
	if w.inFlight > 0 {
		w.inFlight--
	}
}

func (w *window) state() core.CongestionState {
	return core.CongestionState{Cwnd: w.cc.Cwnd(), Rwnd: w.rwnd, InFlight: w.inFlight}
}
