package sim

import "github.com/irctrakz/tcpsim/pkg/core"

// maxSamples bounds each metrics series; the oldest samples are evicted first.
const maxSamples = 300

// TickFor returns the metrics sampling interval for rtt: max(50, rtt/4).
func TickFor(rttMs uint64) uint64 {
	if t := rttMs / 4; t > 50 {
		return t
	}
	return 50
}

// recorder samples cwnd and ACK throughput every tick while a transfer runs.
type recorder struct {
	sim    *Simulation
	tick   uint64
	segLen uint32
	cwnd   []core.Sample
	tput   []core.Sample

	// last and lastID are the time and the newest wire event id of the
	// previous sample. Throughput counts ACKs recorded after lastID.
	last    uint64
	lastID  uint64
	running bool
	ticker  EventID
}

func newRecorder(s *Simulation) *recorder {
	return &recorder{sim: s, tick: TickFor(s.cfg.RTTMs)}
}

func (r *recorder) start(segLen uint32) {
	r.segLen = segLen
	if r.running {
		return
	}
	r.running = true
	r.last = r.sim.sched.Now()
	r.lastID = r.sim.nextID
	r.ticker = r.sim.sched.Schedule(r.tick, &metricsTick{rec: r})
}

// stop cancels the ticker and takes a closing sample. ACKs recorded at the
// instant of the previous sample are folded into it.
func (r *recorder) stop() {
	if !r.running {
		return
	}
	r.running = false
	r.sim.sched.Cancel(r.ticker)
	now := r.sim.sched.Now()
	switch {
	case now > r.last:
		r.sample(now)
	case r.sim.nextID > r.lastID && len(r.tput) > 0:
		r.tput[len(r.tput)-1].Value += r.ackedSince(r.lastID) * r.segLen
		r.cwnd[len(r.cwnd)-1].Value = r.sim.win.cc.Cwnd()
		r.lastID = r.sim.nextID
	}
}

func (r *recorder) sample(now uint64) {
	r.cwnd = appendCapped(r.cwnd, core.Sample{T: now, Value: r.sim.win.cc.Cwnd()})
	r.tput = appendCapped(r.tput, core.Sample{T: now, Value: r.ackedSince(r.lastID) * r.segLen})
	r.last = now
	r.lastID = r.sim.nextID
}

// ackedSince counts distinct non-lost ACK-DATA values recorded after the
// event with id from. Ids grow along the log, so the scan stops at the first
// older event.
func (r *recorder) ackedSince(from uint64) uint32 {
	seen := make(map[uint32]struct{})
	wire := r.sim.wire
	for i := len(wire) - 1; i >= 0; i-- {
		ev := wire[i]
		if ev.ID <= from {
			break
		}
		if ev.Kind != core.KindACKData || ev.Lost || ev.Ack == nil {
			continue
		}
		seen[*ev.Ack] = struct{}{}
	}
	return uint32(len(seen))
}

func appendCapped(series []core.Sample, s core.Sample) []core.Sample {
	series = append(series, s)
	if len(series) > maxSamples {
		series = append(series[:0:0], series[len(series)-maxSamples:]...)
	}
	return series
}

// metricsTick samples and re-arms itself while the recorder runs.
type metricsTick struct {
	rec *recorder
}

func (m *metricsTick) Handle(now uint64) {
	r := m.rec
	if !r.running {
		return
	}
	r.sample(now)
	r.ticker = r.sim.sched.Schedule(r.tick, m)
}
