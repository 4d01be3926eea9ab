// Package config provides configuration handling for the TCP simulator.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/irctrakz/tcpsim/pkg/core"
	"github.com/irctrakz/tcpsim/pkg/logging"
	"github.com/irctrakz/tcpsim/pkg/scenario"
	"github.com/irctrakz/tcpsim/pkg/sim"
)

// Config represents the complete simulator configuration.
type Config struct {
	// Sim contains the connection parameters.
	Sim core.SimConfig `json:"sim" yaml:"sim"`

	// Scenario contains the scripted run.
	Scenario scenario.Script `json:"scenario" yaml:"scenario"`

	// Logging contains the logging configuration.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Output contains the report and capture settings.
	Output OutputConfig `json:"output" yaml:"output"`
}

// LoggingConfig contains configuration for logging.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// File is the log file path.
	File string `json:"file" yaml:"file"`

	// MaxSize is the maximum size of the log file in megabytes.
	MaxSize int `json:"maxSize" yaml:"maxSize"`

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `json:"maxBackups" yaml:"maxBackups"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `json:"maxAge" yaml:"maxAge"`
}

// OutputConfig selects what the CLI emits after a run.
type OutputConfig struct {
	// Format is text or json.
	Format string `json:"format" yaml:"format"`

	// PCAP is an optional capture file for the wire log.
	PCAP string `json:"pcap" yaml:"pcap"`

	// IncludeLost also writes lost events to the capture.
	IncludeLost bool `json:"includeLost" yaml:"includeLost"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Sim: core.DefaultSimConfig(),
		Logging: LoggingConfig{
			Level:      "warn",
			File:       "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a file.
func LoadFromFile(path string, config *Config) error {
	if strings.HasSuffix(path, ".lua") {
		if err := loadLua(path, config); err != nil {
			return fmt.Errorf("failed to load Lua config: %w", err)
		}
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Determine file format based on extension
	switch {
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables. Malformed
// numbers are reported rather than ignored so a run is never silently
// different from what was asked for.
func LoadFromEnv(config *Config) error {
	if val := os.Getenv("TCPSIM_PRESET"); val != "" {
		config.Scenario.Preset = val
	}
	if err := envUint64("TCPSIM_RTT_MS", &config.Sim.RTTMs); err != nil {
		return err
	}
	if val := os.Getenv("TCPSIM_LOSS_PCT"); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("TCPSIM_LOSS_PCT: %w", err)
		}
		config.Sim.LossPct = f
	}
	for name, dst := range map[string]*uint32{
		"TCPSIM_MSS":  &config.Sim.MSS,
		"TCPSIM_CWND": &config.Sim.Cwnd0,
		"TCPSIM_RWND": &config.Sim.Rwnd,
		"TCPSIM_SEED": &config.Sim.Seed,
	} {
		if err := envUint32(name, dst); err != nil {
			return err
		}
	}
	if val := os.Getenv("TCPSIM_NAGLE"); val != "" {
		config.Sim.SetNagle(truthy(val))
	}
	if val := os.Getenv("TCPSIM_NODELAY"); val != "" {
		config.Sim.SetNoDelay(truthy(val))
	}
	if err := envUint64("TCPSIM_DURATION_MS", &config.Scenario.DurationMs); err != nil {
		return err
	}

	// Output config
	if val := os.Getenv("TCPSIM_FORMAT"); val != "" {
		config.Output.Format = strings.ToLower(val)
	}
	if val := os.Getenv("TCPSIM_PCAP"); val != "" {
		config.Output.PCAP = val
	}

	// Logging config
	if val := os.Getenv("LOGGING_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("LOGGING_FILE"); val != "" {
		config.Logging.File = val
	}
	if val := os.Getenv("LOGGING_MAX_SIZE"); val != "" {
		if maxSize, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxSize = maxSize
		}
	}
	if val := os.Getenv("LOGGING_MAX_BACKUPS"); val != "" {
		if maxBackups, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxBackups = maxBackups
		}
	}
	if val := os.Getenv("LOGGING_MAX_AGE"); val != "" {
		if maxAge, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxAge = maxAge
		}
	}
	return nil
}

// DemoScript is the run used when neither steps nor a preset are given:
// handshake, then a 4 KiB burst.
func DemoScript() scenario.Script {
	return scenario.Script{
		Steps: []scenario.Step{
			{Op: scenario.OpHandshake, AtMs: 0},
			{Op: scenario.OpSend, AtMs: 200, Bytes: 4096},
		},
	}
}

// ResolveScenario applies the configured preset, if any, to the connection
// parameters and installs its script when no steps are configured. Preset
// values override rtt, loss, mss and cwnd from files.
func (c *Config) ResolveScenario() error {
	if c.Scenario.Preset == "" {
		if len(c.Scenario.Steps) == 0 {
			c.Scenario = DemoScript()
		}
		return nil
	}
	p, err := sim.LookupPreset(c.Scenario.Preset)
	if err != nil {
		return err
	}
	p.Apply(&c.Sim)
	if len(c.Scenario.Steps) == 0 {
		duration := c.Scenario.DurationMs
		c.Scenario = scenario.ForPreset(p, c.Sim)
		c.Scenario.DurationMs = duration
	}
	c.Scenario.Preset = p.Name
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Sim.Validate(); err != nil {
		return fmt.Errorf("invalid sim config: %w", err)
	}
	if err := c.Scenario.Validate(); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}

	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output format: %s", c.Output.Format)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ApplyLogging applies the logging configuration.
func (c *Config) ApplyLogging() error {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return err
	}
	logging.SetLevel(level)

	if c.Logging.File != "" {
		err := logging.EnableFileLogging(
			c.Logging.File,
			c.Logging.MaxSize,
			c.Logging.MaxBackups,
			c.Logging.MaxAge,
		)
		if err != nil {
			return fmt.Errorf("failed to enable file logging: %w", err)
		}
	}

	return nil
}

// SaveToFile saves the configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	// Determine file format based on extension
	switch {
	case strings.HasSuffix(path, ".json"):
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func truthy(val string) bool {
	v := strings.ToLower(strings.TrimSpace(val))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func envUint64(name string, dst *uint64) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(val), 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func envUint32(name string, dst *uint32) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(val), 10, 32)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = uint32(n)
	return nil
}
