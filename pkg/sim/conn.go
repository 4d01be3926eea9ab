package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/irctrakz/tcpsim/pkg/core"
	"github.com/irctrakz/tcpsim/pkg/logging"
)

// connection is the phase and sequence state of the simulated connection.
// It changes only through the Simulation's transition methods.
type connection struct {
	phase     core.Phase
	clientSeq uint32
	serverSeq uint32
	connected bool
	closing   bool
}

func newConnection(cfg core.SimConfig) connection {
	return connection{
		phase:     core.PhaseIdle,
		clientSeq: cfg.ClientISN,
		serverSeq: cfg.ServerISN,
	}
}

func (c connection) snapshot() core.ConnectionState {
	return core.ConnectionState{
		Phase:     c.phase,
		ClientSeq: c.clientSeq,
		ServerSeq: c.serverSeq,
		Connected: c.connected,
	}
}

func (s *Simulation) setPhase(p core.Phase) {
	if s.conn.phase == p {
		return
	}
	logging.InfoWithFields(logrus.Fields{
		"component": "sim",
		"t":         s.sched.Now(),
		"from":      s.conn.phase,
		"to":        p,
	}, "phase change")
	s.conn.phase = p
}

// startHandshake emits SYN now and schedules SYN-ACK at rtt/2, the final
// ACK at rtt and the switch to ESTABLISHED at rtt+grace. A lost SYN or
// SYN-ACK stalls the handshake; there is no SYN retransmission.
func (s *Simulation) startHandshake() error {
	switch s.conn.phase {
	case core.PhaseEstablished, core.PhaseTransfer:
		s.note("Already connected.")
		return ErrAlreadyConnected
	case core.PhaseHandshake:
		s.note("Handshake already in progress.")
		return ErrHandshakeInProgress
	case core.PhaseClosed:
		s.note("Connection closed. Reset first.")
		return ErrConnectionClosed
	}

	s.setPhase(core.PhaseHandshake)
	s.note("Start 3-way handshake: SYN -> SYN-ACK -> ACK")

	cseq, sseq := s.conn.clientSeq, s.conn.serverSeq
	synLost := s.loss.lose()
	// The server cannot answer a SYN it never saw.
	synAckLost := synLost || s.loss.lose()

	s.record(core.WireEvent{
		From: core.Client, To: core.Server, Kind: core.KindSYN,
		Seq: core.U32(cseq), Lost: synLost,
	})
	synAck := core.WireEvent{
		From: core.Server, To: core.Client, Kind: core.KindSYNACK,
		Seq: core.U32(sseq), Ack: core.U32(cseq + 1), Lost: synAckLost,
	}
	if synLost {
		synAck.Note = "(never sent: SYN lost)"
	}
	s.sched.Schedule(s.half(), &emitWire{sim: s, ev: synAck})

	if synAckLost {
		s.note("Handshake will stall: SYN or SYN-ACK lost.")
		return nil
	}

	s.sched.Schedule(s.cfg.RTTMs, &emitWire{sim: s, ev: core.WireEvent{
		From: core.Client, To: core.Server, Kind: core.KindACK,
		Seq: core.U32(cseq + 1), Ack: core.U32(sseq + 1),
	}})
	s.sched.Schedule(s.cfg.RTTMs+s.cfg.GraceMs, &established{sim: s})
	return nil
}

// established completes the handshake, consuming the SYN sequence slots.
type established struct {
	sim *Simulation
}

func (e *established) Handle(uint64) {
	s := e.sim
	s.conn.connected = true
	s.conn.clientSeq++
	s.conn.serverSeq++
	s.setPhase(core.PhaseEstablished)
	s.note("Connection established.")
}

// close emits FIN now and schedules FIN-ACK at rtt/2, the final ACK at rtt
// and the switch to CLOSED at rtt+grace. Teardown legs are never lost.
func (s *Simulation) close() error {
	if s.conn.phase == core.PhaseClosed || s.conn.closing {
		s.note("Connection already closed.")
		return ErrConnectionClosed
	}
	if !s.conn.connected {
		s.note("Not connected yet. Run handshake first.")
		return ErrNotConnected
	}
	if s.conn.phase == core.PhaseTransfer {
		s.note("Transfer in progress; close after it completes.")
		return ErrTransferInProgress
	}

	s.conn.closing = true
	s.note("Start teardown: FIN -> FIN-ACK -> ACK")
	cseq, sseq := s.conn.clientSeq, s.conn.serverSeq

	s.record(core.WireEvent{
		From: core.Client, To: core.Server, Kind: core.KindFIN,
		Seq: core.U32(cseq),
	})
	s.sched.Schedule(s.half(), &emitWire{sim: s, ev: core.WireEvent{
		From: core.Server, To: core.Client, Kind: core.KindFINACK,
		Seq: core.U32(sseq), Ack: core.U32(cseq + 1),
	}})
	s.sched.Schedule(s.cfg.RTTMs, &emitWire{sim: s, ev: core.WireEvent{
		From: core.Client, To: core.Server, Kind: core.KindACK,
		Seq: core.U32(cseq + 1), Ack: core.U32(sseq + 1),
	}})
	s.sched.Schedule(s.cfg.RTTMs+s.cfg.GraceMs, &closed{sim: s})
	return nil
}

// closed completes the teardown, consuming the FIN sequence slots.
type closed struct {
	sim *Simulation
}

func (c *closed) Handle(uint64) {
	s := c.sim
	s.conn.connected = false
	s.conn.closing = false
	s.conn.clientSeq++
	s.conn.serverSeq++
	s.setPhase(core.PhaseClosed)
	s.note("Connection closed.")
}
