// Package scenario drives a simulation through a script of timed steps, the
// way the preset buttons of an interactive front end would.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/irctrakz/tcpsim/pkg/core"
	"github.com/irctrakz/tcpsim/pkg/logging"
	"github.com/irctrakz/tcpsim/pkg/sim"
)

// Step operations
const (
	OpHandshake = "handshake"
	OpSend      = "send"
	OpClose     = "close"
	OpReset     = "reset"
	OpPause     = "pause"
	OpResume    = "resume"
)

// idleHorizonMs bounds how far past the last step a script without a
// duration may run while waiting for the simulation to go idle.
const idleHorizonMs = 10 * 60 * 1000

// runChunkMs is the slice of virtual time run between context checks.
const runChunkMs = 1000

// Step is one scripted operation at a virtual time.
type Step struct {
	// Op is one of handshake, send, close, reset, pause or resume.
	Op string `json:"op" yaml:"op"`

	// AtMs is the virtual time at which the step is applied.
	AtMs uint64 `json:"at_ms" yaml:"atMs"`

	// Bytes is the burst size of a send step.
	Bytes uint32 `json:"bytes,omitempty" yaml:"bytes,omitempty"`
}

// Script is an ordered set of steps.
type Script struct {
	// Preset names a built-in parameter set applied before the run.
	Preset string `json:"preset,omitempty" yaml:"preset,omitempty"`

	// Steps run in AtMs order; steps with equal times keep their order.
	Steps []Step `json:"steps,omitempty" yaml:"steps,omitempty"`

	// DurationMs is the virtual time the run ends at. Zero runs until the
	// simulation has nothing left to do.
	DurationMs uint64 `json:"duration_ms,omitempty" yaml:"durationMs,omitempty"`
}

// Validate checks step operations and sizes.
func (s Script) Validate() error {
	if s.Preset != "" {
		if _, err := sim.LookupPreset(s.Preset); err != nil {
			return err
		}
	}
	for i, st := range s.Steps {
		switch strings.ToLower(st.Op) {
		case OpHandshake, OpClose, OpReset, OpPause, OpResume:
		case OpSend:
			if st.Bytes == 0 {
				return fmt.Errorf("step %d: send needs a positive byte count", i)
			}
		default:
			return fmt.Errorf("step %d: unknown op %q", i, st.Op)
		}
		if s.DurationMs > 0 && st.AtMs > s.DurationMs {
			return fmt.Errorf("step %d: at_ms %d is past duration_ms %d", i, st.AtMs, s.DurationMs)
		}
	}
	return nil
}

// ForPreset returns the scripted run of a preset: handshake at t=0 and, if
// the preset has a burst, the burst once the handshake can have completed.
func ForPreset(p sim.Preset, cfg core.SimConfig) Script {
	sc := Script{
		Preset: p.Name,
		Steps:  []Step{{Op: OpHandshake, AtMs: 0}},
	}
	if p.Burst > 0 {
		at := uint64(100)
		if ready := p.RTTMs + cfg.GraceMs; ready > at {
			at = ready
		}
		sc.Steps = append(sc.Steps, Step{Op: OpSend, AtMs: at, Bytes: p.Burst})
	}
	return sc
}

// StepResult records the outcome of one applied step.
type StepResult struct {
	Step Step   `json:"step"`
	T    uint64 `json:"t"`
	Err  string `json:"error,omitempty"`
}

// Run applies the script to s. Rejected steps (for example a send on a
// stalled handshake) are recorded in the results and do not stop the run.
func Run(ctx context.Context, s *sim.Simulation, sc Script) ([]StepResult, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	log := logging.Component("scenario")

	steps := append([]Step(nil), sc.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].AtMs < steps[j].AtMs })

	results := make([]StepResult, 0, len(steps))
	var last uint64
	for _, st := range steps {
		if err := runTo(ctx, s, st.AtMs); err != nil {
			return results, err
		}
		err := apply(s, st)
		res := StepResult{Step: st, T: s.Now()}
		if err != nil {
			res.Err = err.Error()
			log.WithFields(logrus.Fields{"op": st.Op, "t": res.T}).Warnf("step rejected: %v", err)
		} else {
			log.WithFields(logrus.Fields{"op": st.Op, "t": res.T}).Debug("step applied")
		}
		results = append(results, res)
		last = st.AtMs
	}

	if sc.DurationMs > 0 {
		return results, runTo(ctx, s, sc.DurationMs)
	}
	return results, runIdle(ctx, s, last+idleHorizonMs)
}

func apply(s *sim.Simulation, st Step) error {
	switch strings.ToLower(st.Op) {
	case OpHandshake:
		return s.StartHandshake()
	case OpSend:
		return s.SendBurst(st.Bytes)
	case OpClose:
		return s.Close()
	case OpReset:
		s.Reset()
	case OpPause:
		s.Pause()
	case OpResume:
		s.Resume()
	}
	return nil
}

// runTo advances s to virtual time t in chunks, checking ctx in between.
func runTo(ctx context.Context, s *sim.Simulation, t uint64) error {
	for now := s.Now(); now < t; now = s.Now() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Paused() {
			return nil
		}
		next := now + runChunkMs
		if next > t {
			next = t
		}
		s.RunUntil(next)
	}
	return nil
}

// runIdle dispatches events until none remain or the deadline passes.
func runIdle(ctx context.Context, s *sim.Simulation, deadline uint64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Paused() {
			return nil
		}
		next := s.Now() + runChunkMs
		if next > deadline {
			next = deadline
		}
		if s.RunUntilIdle(next) || next >= deadline {
			return nil
		}
		s.RunUntil(next)
	}
}
