package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/tcpsim/pkg/core"
	"github.com/irctrakz/tcpsim/pkg/sim"
)

func newSim(t *testing.T, p *sim.Preset) (*sim.Simulation, core.SimConfig) {
	t.Helper()
	cfg := core.DefaultSimConfig()
	if p != nil {
		p.Apply(&cfg)
	}
	s, err := sim.New(cfg)
	require.NoError(t, err)
	return s, cfg
}

func TestForPreset(t *testing.T) {
	_, cfg := newSim(t, &sim.LANClean)
	sc := ForPreset(sim.LANClean, cfg)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, Step{Op: OpHandshake, AtMs: 0}, sc.Steps[0])
	assert.Equal(t, Step{Op: OpSend, AtMs: 100, Bytes: 32 * 1024}, sc.Steps[1])

	// The burst waits for a slow handshake to finish.
	sc = ForPreset(sim.MobileHighRTT, cfg)
	assert.Equal(t, uint64(305), sc.Steps[1].AtMs)

	sc = ForPreset(sim.HandshakeLoss, cfg)
	assert.Len(t, sc.Steps, 1)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Script{Steps: []Step{{Op: "handshake"}, {Op: "send", AtMs: 200, Bytes: 10}}}.Validate())
	assert.Error(t, Script{Steps: []Step{{Op: "jump"}}}.Validate())
	assert.Error(t, Script{Steps: []Step{{Op: "send"}}}.Validate())
	assert.Error(t, Script{Preset: "nope"}.Validate())
	assert.Error(t, Script{DurationMs: 100, Steps: []Step{{Op: "close", AtMs: 200}}}.Validate())
}

func TestRunLANClean(t *testing.T) {
	s, cfg := newSim(t, &sim.LANClean)
	results, err := Run(context.Background(), s, ForPreset(sim.LANClean, cfg))
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Empty(t, r.Err)
	}
	assert.Equal(t, uint64(100), results[1].T)

	st := s.State()
	assert.Equal(t, core.PhaseEstablished, st.Phase)
	assert.Equal(t, cfg.ClientISN+1+32*1024, st.ClientSeq)
	assert.Equal(t, 0, s.Pending())
}

func TestRunRecordsRejectedSteps(t *testing.T) {
	s, _ := newSim(t, nil)
	sc := Script{Steps: []Step{
		{Op: OpSend, AtMs: 0, Bytes: 1024},
		{Op: OpHandshake, AtMs: 10},
		{Op: OpSend, AtMs: 500, Bytes: 1024},
	}}
	results, err := Run(context.Background(), s, sc)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, sim.ErrNotConnected.Error(), results[0].Err)
	assert.Empty(t, results[1].Err)
	assert.Empty(t, results[2].Err)
	assert.Equal(t, uint64(10), results[1].T)
	assert.Equal(t, core.PhaseEstablished, s.State().Phase)
}

func TestRunStepsSortedByTime(t *testing.T) {
	s, _ := newSim(t, nil)
	sc := Script{Steps: []Step{
		{Op: OpClose, AtMs: 1000},
		{Op: OpHandshake, AtMs: 0},
	}}
	results, err := Run(context.Background(), s, sc)
	require.NoError(t, err)
	assert.Equal(t, OpHandshake, results[0].Step.Op)
	assert.Equal(t, OpClose, results[1].Step.Op)
	assert.Equal(t, core.PhaseClosed, s.State().Phase)
}

func TestRunDuration(t *testing.T) {
	s, _ := newSim(t, nil)
	_, err := Run(context.Background(), s, Script{
		Steps:      []Step{{Op: OpHandshake}},
		DurationMs: 2500,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), s.Now())
}

func TestRunCancelled(t *testing.T) {
	s, _ := newSim(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, s, Script{Steps: []Step{{Op: OpHandshake, AtMs: 5000}}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), s.Now())
}

func TestRunPauseHoldsClock(t *testing.T) {
	s, _ := newSim(t, nil)
	_, err := Run(context.Background(), s, Script{Steps: []Step{
		{Op: OpHandshake, AtMs: 0},
		{Op: OpPause, AtMs: 50},
	}})
	require.NoError(t, err)
	assert.Equal(t, uint64(50), s.Now())
	assert.Equal(t, core.PhaseHandshake, s.State().Phase)
	assert.True(t, s.Paused())
}
