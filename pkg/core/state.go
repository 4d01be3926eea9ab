package core

import "fmt"

// Phase is the connection phase of a simulation.
type Phase int

const (
	// PhaseIdle is a fresh connection; no segment has been exchanged.
	PhaseIdle Phase = iota

	// PhaseHandshake covers SYN, SYN-ACK and the final ACK. A lost SYN or
	// SYN-ACK leaves the connection here until reset.
	PhaseHandshake

	// PhaseEstablished is an open connection with no burst in progress.
	PhaseEstablished

	// PhaseTransfer is an open connection with a burst in progress.
	PhaseTransfer

	// PhaseClosed is a connection torn down with FIN / FIN-ACK.
	PhaseClosed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseHandshake:
		return "HANDSHAKE"
	case PhaseEstablished:
		return "ESTABLISHED"
	case PhaseTransfer:
		return "TRANSFER"
	case PhaseClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ConnectionState is a snapshot of the connection state machine.
type ConnectionState struct {
	Phase     Phase  `json:"phase"`
	ClientSeq uint32 `json:"client_seq"`
	ServerSeq uint32 `json:"server_seq"`
	Connected bool   `json:"connected"`
}

// CongestionState is a snapshot of the sender's window accounting.
type CongestionState struct {
	// Cwnd is the congestion window in segments.
	Cwnd uint32 `json:"cwnd"`

	// Rwnd is the receive window in bytes.
	Rwnd uint32 `json:"rwnd"`

	// InFlight is the number of sent, unacknowledged segments.
	InFlight uint32 `json:"in_flight"`
}

// Sample is one point of a metrics series.
type Sample struct {
	T     uint64 `json:"t"`
	Value uint32 `json:"v"`
}
