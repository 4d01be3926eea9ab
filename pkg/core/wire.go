package core

import (
	"fmt"
	"strings"
)

// Endpoint identifies one side of the simulated connection.
type Endpoint string

// Endpoints
const (
	Client Endpoint = "Client"
	Server Endpoint = "Server"
)

// Peer returns the opposite endpoint.
func (e Endpoint) Peer() Endpoint {
	if e == Client {
		return Server
	}
	return Client
}

// EventKind is the control-flow label of a wire event.
type EventKind string

// Wire event kinds
const (
	KindSYN     EventKind = "SYN"
	KindSYNACK  EventKind = "SYN-ACK"
	KindACK     EventKind = "ACK"
	KindData    EventKind = "DATA"
	KindACKData EventKind = "ACK-DATA"
	KindRETX    EventKind = "RETX"
	KindFIN     EventKind = "FIN"
	KindFINACK  EventKind = "FIN-ACK"
)

// Kinds lists every event kind in protocol order.
var Kinds = []EventKind{KindSYN, KindSYNACK, KindACK, KindData, KindACKData, KindRETX, KindFIN, KindFINACK}

// CarriesPayload reports whether events of this kind carry segment data.
func (k EventKind) CarriesPayload() bool {
	return k == KindData || k == KindRETX
}

// WireEvent is one entry of the simulated wire. Events are immutable once
// appended to a simulation's log.
type WireEvent struct {
	ID   uint64    `json:"id"`
	T    uint64    `json:"t"`
	From Endpoint  `json:"from"`
	To   Endpoint  `json:"to"`
	Kind EventKind `json:"kind"`

	// Seq, Ack and Len are optional; nil means the field is not carried.
	Seq *uint32 `json:"seq,omitempty"`
	Ack *uint32 `json:"ack,omitempty"`
	Len *uint32 `json:"len,omitempty"`

	Lost bool   `json:"lost"`
	Note string `json:"note,omitempty"`
}

// U32 returns a pointer to v, for filling the optional WireEvent fields.
func U32(v uint32) *uint32 {
	return &v
}

// SeqOr returns the sequence number or def if absent.
func (e WireEvent) SeqOr(def uint32) uint32 {
	if e.Seq == nil {
		return def
	}
	return *e.Seq
}

// AckOr returns the acknowledgment number or def if absent.
func (e WireEvent) AckOr(def uint32) uint32 {
	if e.Ack == nil {
		return def
	}
	return *e.Ack
}

// LenOr returns the payload length or def if absent.
func (e WireEvent) LenOr(def uint32) uint32 {
	if e.Len == nil {
		return def
	}
	return *e.Len
}

// String renders the event as a single timeline line.
func (e WireEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "t=%dms #%d %s %s->%s", e.T, e.ID, e.Kind, e.From, e.To)
	if e.Seq != nil {
		fmt.Fprintf(&b, " seq=%d", *e.Seq)
	}
	if e.Ack != nil {
		fmt.Fprintf(&b, " ack=%d", *e.Ack)
	}
	if e.Len != nil {
		fmt.Fprintf(&b, " len=%d", *e.Len)
	}
	if e.Lost {
		b.WriteString(" LOST")
	}
	if e.Note != "" {
		fmt.Fprintf(&b, " %s", e.Note)
	}
	return b.String()
}
