package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSimConfigValid(t *testing.T) {
	cfg := DefaultSimConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(1000), cfg.ClientISN)
	assert.Equal(t, uint32(5000), cfg.ServerISN)
	assert.True(t, cfg.Nagle)
	assert.False(t, cfg.NoDelay)
}

func TestSimConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *SimConfig)
	}{
		{"rtt too small", func(c *SimConfig) { c.RTTMs = 5 }},
		{"rtt too large", func(c *SimConfig) { c.RTTMs = 601 }},
		{"loss negative", func(c *SimConfig) { c.LossPct = -1 }},
		{"loss too large", func(c *SimConfig) { c.LossPct = 51 }},
		{"mss too small", func(c *SimConfig) { c.MSS = 64 }},
		{"mss too large", func(c *SimConfig) { c.MSS = 9000 }},
		{"cwnd zero", func(c *SimConfig) { c.Cwnd0 = 0 }},
		{"cwnd too large", func(c *SimConfig) { c.Cwnd0 = 65 }},
		{"rwnd zero", func(c *SimConfig) { c.Rwnd = 0 }},
		{"both policies", func(c *SimConfig) { c.Nagle = true; c.NoDelay = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSimConfigValidateBoundaries(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.RTTMs = MinRTT
	cfg.LossPct = MaxLoss
	cfg.MSS = MaxMSS
	cfg.Cwnd0 = MaxCwnd
	cfg.Rwnd = MinRwnd
	assert.NoError(t, cfg.Validate())
}

func TestSendPolicyExclusive(t *testing.T) {
	cfg := DefaultSimConfig()

	cfg.SetNoDelay(true)
	assert.True(t, cfg.NoDelay)
	assert.False(t, cfg.Nagle)

	cfg.SetNagle(true)
	assert.True(t, cfg.Nagle)
	assert.False(t, cfg.NoDelay)

	cfg.SetNagle(false)
	assert.False(t, cfg.Nagle)
	assert.False(t, cfg.NoDelay)
	assert.NoError(t, cfg.Validate())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "IDLE", PhaseIdle.String())
	assert.Equal(t, "ESTABLISHED", PhaseEstablished.String())
	assert.Equal(t, "CLOSED", PhaseClosed.String())
	assert.Equal(t, "UNKNOWN(42)", Phase(42).String())
}

func TestWireEventString(t *testing.T) {
	ev := WireEvent{ID: 3, T: 60, From: Client, To: Server, Kind: KindData, Seq: U32(1001), Len: U32(512), Lost: true}
	assert.Equal(t, "t=60ms #3 DATA Client->Server seq=1001 len=512 LOST", ev.String())
	assert.Equal(t, uint32(0), ev.AckOr(0))
	assert.Equal(t, Server, Client.Peer())
	assert.True(t, KindRETX.CarriesPayload())
	assert.False(t, KindACKData.CarriesPayload())
}
