package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/irctrakz/tcpsim/pkg/core"
	"github.com/irctrakz/tcpsim/pkg/scenario"
	"github.com/irctrakz/tcpsim/pkg/sim"
)

type reportSnapshot struct {
	Preset      string                `json:"preset,omitempty"`
	Config      core.SimConfig        `json:"config"`
	T           uint64                `json:"t"`
	State       core.ConnectionState  `json:"state"`
	Congestion  core.CongestionState  `json:"congestion"`
	Retransmits uint64                `json:"retransmits"`
	NagleHolds  uint64                `json:"nagle_holds"`
	Events      map[string]uint64     `json:"events"`
	Lost        uint64                `json:"lost"`
	Steps       []scenario.StepResult `json:"steps"`
	TickMs      uint64                `json:"tick_ms"`
	Cwnd        []core.Sample         `json:"cwnd"`
	Throughput  []core.Sample         `json:"throughput"`
	Notes       []sim.Note            `json:"notes"`
	Wire        []core.WireEvent      `json:"wire"`
}

func buildReport(s *sim.Simulation, preset string, steps []scenario.StepResult) reportSnapshot {
	wire := s.WireLog()
	snap := reportSnapshot{
		Preset:      preset,
		Config:      s.Config(),
		T:           s.Now(),
		State:       s.State(),
		Congestion:  s.Congestion(),
		Retransmits: s.RetransmitCount(),
		NagleHolds:  s.NagleHolds(),
		Events:      make(map[string]uint64, len(core.Kinds)),
		Steps:       steps,
		TickMs:      s.TickMs(),
		Cwnd:        s.CwndHistory(),
		Throughput:  s.ThroughputHistory(),
		Notes:       s.Notes(),
		Wire:        wire,
	}
	for _, ev := range wire {
		snap.Events[string(ev.Kind)]++
		if ev.Lost {
			snap.Lost++
		}
	}
	return snap
}

func writeReport(w io.Writer, snap reportSnapshot, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	default:
		return writeText(w, snap)
	}
}

func writeText(w io.Writer, snap reportSnapshot) error {
	bw := &errWriter{w: w}
	cfg := snap.Config
	if snap.Preset != "" {
		bw.printf("preset: %s\n", snap.Preset)
	}
	policy := "nagle"
	if cfg.NoDelay {
		policy = "nodelay"
	} else if !cfg.Nagle {
		policy = "none"
	}
	bw.printf("config: rtt=%dms loss=%g%% mss=%d cwnd0=%d rwnd=%d policy=%s seed=%d\n",
		cfg.RTTMs, cfg.LossPct, cfg.MSS, cfg.Cwnd0, cfg.Rwnd, policy, cfg.Seed)

	bw.printf("\nsteps:\n")
	for _, r := range snap.Steps {
		status := "ok"
		if r.Err != "" {
			status = "rejected: " + r.Err
		}
		if r.Step.Op == scenario.OpSend {
			bw.printf("  t=%dms %s %d bytes: %s\n", r.T, r.Step.Op, r.Step.Bytes, status)
		} else {
			bw.printf("  t=%dms %s: %s\n", r.T, r.Step.Op, status)
		}
	}

	bw.printf("\nwire:\n")
	for _, ev := range snap.Wire {
		bw.printf("  %s\n", ev)
	}

	bw.printf("\nnotes:\n")
	for _, n := range snap.Notes {
		bw.printf("  t=%dms %s\n", n.T, n.Text)
	}

	st := snap.State
	cg := snap.Congestion
	bw.printf("\nstate: t=%dms phase=%s client_seq=%d server_seq=%d connected=%t\n",
		snap.T, st.Phase, st.ClientSeq, st.ServerSeq, st.Connected)
	bw.printf("congestion: cwnd=%d rwnd=%d in_flight=%d\n", cg.Cwnd, cg.Rwnd, cg.InFlight)

	bw.printf("events:")
	for _, k := range core.Kinds {
		bw.printf(" %s=%d", k, snap.Events[string(k)])
	}
	bw.printf(" lost=%d retx=%d nagle_holds=%d\n", snap.Lost, snap.Retransmits, snap.NagleHolds)

	var acked uint64
	for _, smp := range snap.Throughput {
		acked += uint64(smp.Value)
	}
	bw.printf("metrics: tick=%dms samples=%d acked_est=%d bytes", snap.TickMs, len(snap.Cwnd), acked)
	if n := len(snap.Cwnd); n > 0 {
		bw.printf(" final_cwnd=%d", snap.Cwnd[n-1].Value)
	}
	bw.printf("\n")
	return bw.err
}

// errWriter keeps the first write error so the text report can be printed
// without checking every line.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
