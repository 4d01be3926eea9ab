package sim

import (
	"fmt"
	"sort"
	"strings"

	"github.com/irctrakz/tcpsim/pkg/core"
)

// Preset is a fixed parameter tuple for a typical scenario.
type Preset struct {
	Name    string
	RTTMs   uint64
	LossPct float64
	MSS     uint32
	Cwnd0   uint32
	// Nagle is applied only when set; the default policy is kept otherwise.
	Nagle bool
	// Burst is the size of the scripted burst; 0 means handshake only.
	Burst uint32
}

// Built-in presets.
var (
	LANClean       = Preset{Name: "LAN_CLEAN", RTTMs: 10, LossPct: 0, MSS: 1460, Cwnd0: 8, Burst: 32 * 1024}
	WANLossy       = Preset{Name: "WAN_LOSSY", RTTMs: 120, LossPct: 10, MSS: 1200, Cwnd0: 4, Burst: 32 * 1024}
	MobileHighRTT  = Preset{Name: "MOBILE_HIGH_RTT", RTTMs: 300, LossPct: 2, MSS: 900, Cwnd0: 4, Burst: 64 * 1024}
	HandshakeLoss  = Preset{Name: "HANDSHAKE_LOSS", RTTMs: 80, LossPct: 30, MSS: 512, Cwnd0: 2}
	NagleVsNoDelay = Preset{Name: "NAGLE_VS_NODELAY", RTTMs: 80, LossPct: 0, MSS: 256, Cwnd0: 2, Nagle: true, Burst: 2048}
)

var presets = map[string]Preset{
	LANClean.Name:       LANClean,
	WANLossy.Name:       WANLossy,
	MobileHighRTT.Name:  MobileHighRTT,
	HandshakeLoss.Name:  HandshakeLoss,
	NagleVsNoDelay.Name: NagleVsNoDelay,
}

// LookupPreset finds a preset by name, case-insensitively.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (known: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return p, nil
}

// PresetNames returns the names of the built-in presets, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply writes the preset's parameters into cfg.
func (p Preset) Apply(cfg *core.SimConfig) {
	cfg.RTTMs = p.RTTMs
	cfg.LossPct = p.LossPct
	cfg.MSS = p.MSS
	cfg.Cwnd0 = p.Cwnd0
	if p.Nagle {
		cfg.SetNagle(true)
	}
}
