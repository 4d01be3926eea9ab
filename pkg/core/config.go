package core

import "fmt"

// Parameter bounds accepted by SimConfig.Validate.
const (
	MinRTT  = 10
	MaxRTT  = 600
	MinLoss = 0
	MaxLoss = 50
	MinMSS  = 128
	MaxMSS  = 1460
	MinCwnd = 1
	MaxCwnd = 64
	MinRwnd = 1024
	MaxRwnd = 65535
)

// SimConfig contains the parameters of one simulated connection.
type SimConfig struct {
	// RTTMs is the round-trip time; each leg takes half of it.
	RTTMs uint64 `json:"rtt_ms" yaml:"rttMs"`

	// LossPct is the probability, in percent, that a unit is lost.
	LossPct float64 `json:"loss_pct" yaml:"lossPct"`

	// MSS is the maximum segment size in bytes.
	MSS uint32 `json:"mss" yaml:"mss"`

	// Cwnd0 is the initial congestion window in segments.
	Cwnd0 uint32 `json:"cwnd0" yaml:"cwnd0"`

	// Rwnd is the receive window in bytes. It caps the segment size.
	Rwnd uint32 `json:"rwnd" yaml:"rwnd"`

	// Nagle and NoDelay select the send policy. At most one may be set.
	Nagle   bool `json:"nagle" yaml:"nagle"`
	NoDelay bool `json:"nodelay" yaml:"nodelay"`

	// Seed seeds the loss RNG.
	Seed uint32 `json:"seed" yaml:"seed"`

	// DelayedAckMs is added to the one-way delay of every data ACK.
	DelayedAckMs uint64 `json:"delayed_ack_ms" yaml:"delayedAckMs"`

	// GraceMs separates the last handshake/teardown leg from the phase change.
	GraceMs uint64 `json:"established_grace_ms" yaml:"establishedGraceMs" gluamapper:"EstablishedGraceMs"`

	// ClientISN and ServerISN are the initial sequence numbers.
	ClientISN uint32 `json:"client_isn" yaml:"clientISN"`
	ServerISN uint32 `json:"server_isn" yaml:"serverISN"`
}

// DefaultSimConfig returns the parameters the simulator starts with.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		RTTMs:        120,
		LossPct:      0,
		MSS:          512,
		Cwnd0:        4,
		Rwnd:         65535,
		Nagle:        true,
		NoDelay:      false,
		Seed:         42,
		DelayedAckMs: 40,
		GraceMs:      5,
		ClientISN:    1000,
		ServerISN:    5000,
	}
}

// SetNagle enables or disables Nagle. Enabling it clears NoDelay.
func (c *SimConfig) SetNagle(on bool) {
	c.Nagle = on
	if on {
		c.NoDelay = false
	}
}

// SetNoDelay enables or disables TCP_NODELAY. Enabling it clears Nagle.
func (c *SimConfig) SetNoDelay(on bool) {
	c.NoDelay = on
	if on {
		c.Nagle = false
	}
}

// Validate rejects out-of-range parameters. Values are never clamped.
func (c SimConfig) Validate() error {
	if c.RTTMs < MinRTT || c.RTTMs > MaxRTT {
		return fmt.Errorf("invalid rtt_ms %d: must be in [%d, %d]", c.RTTMs, MinRTT, MaxRTT)
	}
	if c.LossPct < MinLoss || c.LossPct > MaxLoss || c.LossPct != c.LossPct {
		return fmt.Errorf("invalid loss_pct %v: must be in [%d, %d]", c.LossPct, MinLoss, MaxLoss)
	}
	if c.MSS < MinMSS || c.MSS > MaxMSS {
		return fmt.Errorf("invalid mss %d: must be in [%d, %d]", c.MSS, MinMSS, MaxMSS)
	}
	if c.Cwnd0 < MinCwnd || c.Cwnd0 > MaxCwnd {
		return fmt.Errorf("invalid cwnd0 %d: must be in [%d, %d]", c.Cwnd0, MinCwnd, MaxCwnd)
	}
	if c.Rwnd < MinRwnd || c.Rwnd > MaxRwnd {
		return fmt.Errorf("invalid rwnd %d: must be in [%d, %d]", c.Rwnd, MinRwnd, MaxRwnd)
	}
	if c.Nagle && c.NoDelay {
		return fmt.Errorf("nagle and nodelay are mutually exclusive")
	}
	return nil
}
