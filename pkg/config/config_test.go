package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/tcpsim/pkg/core"
	"github.com/irctrakz/tcpsim/pkg/scenario"
	"github.com/irctrakz/tcpsim/pkg/sim"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.ResolveScenario())
	require.NoError(t, config.Validate())

	assert.Equal(t, core.DefaultSimConfig(), config.Sim)
	assert.Equal(t, DemoScript(), config.Scenario)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, "text", config.Output.Format)
}

func TestSaveAndLoad(t *testing.T) {
	for _, ext := range []string{".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "tcpsim"+ext)

			config := DefaultConfig()
			config.Sim.RTTMs = 250
			config.Sim.LossPct = 7.5
			config.Sim.SetNoDelay(true)
			config.Scenario = scenario.Script{
				Steps: []scenario.Step{
					{Op: scenario.OpHandshake},
					{Op: scenario.OpSend, AtMs: 300, Bytes: 9000},
				},
				DurationMs: 5000,
			}
			config.Output.Format = "json"
			require.NoError(t, config.SaveToFile(path))

			loaded := DefaultConfig()
			require.NoError(t, LoadFromFile(path, loaded))
			assert.Equal(t, config, loaded)
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcpsim.toml")
	require.NoError(t, os.WriteFile(path, []byte("rtt = 1"), 0644))
	assert.Error(t, LoadFromFile(path, DefaultConfig()))
	assert.Error(t, DefaultConfig().SaveToFile(path))
}

func TestLoadMissingFile(t *testing.T) {
	assert.Error(t, LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"), DefaultConfig()))
}

func TestLoadLua(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wan.lua")
	script := `
local burst = 16 * 1024
return {
  sim = { rtt_ms = 80, loss_pct = 5, established_grace_ms = 8 },
  scenario = {
    steps = {
      { op = "handshake" },
      { op = "send", at_ms = 200, bytes = burst },
    },
    duration_ms = 3000,
  },
  output = { format = "json", include_lost = true },
}
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0644))

	config := DefaultConfig()
	require.NoError(t, LoadFromFile(path, config))

	assert.Equal(t, uint64(80), config.Sim.RTTMs)
	assert.Equal(t, 5.0, config.Sim.LossPct)
	assert.Equal(t, uint64(8), config.Sim.GraceMs)
	// Keys the table leaves out keep their defaults.
	assert.Equal(t, uint32(512), config.Sim.MSS)
	assert.True(t, config.Sim.Nagle)

	require.Len(t, config.Scenario.Steps, 2)
	assert.Equal(t, scenario.Step{Op: "handshake"}, config.Scenario.Steps[0])
	assert.Equal(t, scenario.Step{Op: "send", AtMs: 200, Bytes: 16 * 1024}, config.Scenario.Steps[1])
	assert.Equal(t, uint64(3000), config.Scenario.DurationMs)
	assert.Equal(t, "json", config.Output.Format)
	assert.True(t, config.Output.IncludeLost)
	assert.NoError(t, config.Validate())
}

func TestLoadLuaErrors(t *testing.T) {
	dir := t.TempDir()

	notTable := filepath.Join(dir, "number.lua")
	require.NoError(t, os.WriteFile(notTable, []byte("return 42"), 0644))
	assert.Error(t, LoadFromFile(notTable, DefaultConfig()))

	broken := filepath.Join(dir, "broken.lua")
	require.NoError(t, os.WriteFile(broken, []byte("return {"), 0644))
	assert.Error(t, LoadFromFile(broken, DefaultConfig()))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TCPSIM_RTT_MS", "200")
	t.Setenv("TCPSIM_LOSS_PCT", "2.5")
	t.Setenv("TCPSIM_MSS", "1000")
	t.Setenv("TCPSIM_CWND", "8")
	t.Setenv("TCPSIM_SEED", "7")
	t.Setenv("TCPSIM_NODELAY", "yes")
	t.Setenv("TCPSIM_FORMAT", "JSON")
	t.Setenv("TCPSIM_PCAP", "/tmp/run.pcap")
	t.Setenv("LOGGING_LEVEL", "debug")
	t.Setenv("LOGGING_MAX_SIZE", "20")

	config := DefaultConfig()
	require.NoError(t, LoadFromEnv(config))

	assert.Equal(t, uint64(200), config.Sim.RTTMs)
	assert.Equal(t, 2.5, config.Sim.LossPct)
	assert.Equal(t, uint32(1000), config.Sim.MSS)
	assert.Equal(t, uint32(8), config.Sim.Cwnd0)
	assert.Equal(t, uint32(7), config.Sim.Seed)
	assert.True(t, config.Sim.NoDelay)
	assert.False(t, config.Sim.Nagle)
	assert.Equal(t, "json", config.Output.Format)
	assert.Equal(t, "/tmp/run.pcap", config.Output.PCAP)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, 20, config.Logging.MaxSize)
	assert.NoError(t, config.Validate())
}

func TestLoadFromEnvMalformed(t *testing.T) {
	tests := map[string]string{
		"TCPSIM_RTT_MS":   "fast",
		"TCPSIM_LOSS_PCT": "ten",
		"TCPSIM_MSS":      "-1",
		"TCPSIM_SEED":     "99999999999",
	}
	for name, val := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, val)
			err := LoadFromEnv(DefaultConfig())
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestResolvePreset(t *testing.T) {
	t.Setenv("TCPSIM_PRESET", "wan_lossy")

	config := DefaultConfig()
	require.NoError(t, LoadFromEnv(config))
	require.NoError(t, config.ResolveScenario())
	require.NoError(t, config.Validate())

	assert.Equal(t, sim.WANLossy.Name, config.Scenario.Preset)
	assert.Equal(t, sim.WANLossy.RTTMs, config.Sim.RTTMs)
	assert.Equal(t, sim.WANLossy.LossPct, config.Sim.LossPct)
	assert.Equal(t, sim.WANLossy.MSS, config.Sim.MSS)
	require.Len(t, config.Scenario.Steps, 2)
	assert.Equal(t, sim.WANLossy.Burst, config.Scenario.Steps[1].Bytes)
}

func TestResolvePresetKeepsSteps(t *testing.T) {
	config := DefaultConfig()
	config.Scenario = scenario.Script{
		Preset:     "lan_clean",
		Steps:      []scenario.Step{{Op: scenario.OpHandshake}},
		DurationMs: 1000,
	}
	require.NoError(t, config.ResolveScenario())

	assert.Equal(t, sim.LANClean.RTTMs, config.Sim.RTTMs)
	assert.Len(t, config.Scenario.Steps, 1)
	assert.Equal(t, uint64(1000), config.Scenario.DurationMs)
}

func TestResolveUnknownPreset(t *testing.T) {
	config := DefaultConfig()
	config.Scenario.Preset = "satellite"
	assert.Error(t, config.ResolveScenario())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"rtt", func(c *Config) { c.Sim.RTTMs = 5 }},
		{"format", func(c *Config) { c.Output.Format = "xml" }},
		{"level", func(c *Config) { c.Logging.Level = "loud" }},
		{"step", func(c *Config) { c.Scenario.Steps = []scenario.Step{{Op: "teleport"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestApplyLogging(t *testing.T) {
	config := DefaultConfig()
	config.Logging.Level = "error"
	config.Logging.File = filepath.Join(t.TempDir(), "logs", "tcpsim.log")
	require.NoError(t, config.ApplyLogging())

	config.Logging.Level = "bogus"
	assert.Error(t, config.ApplyLogging())
}
