// Package config loads the YAML configuration shared by the CLI and the
// server.
package config

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/jeongseonghan/modulation-studio/internal/modem"
)

// Config is the top-level configuration file.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`       // listen address
	StaticDir string `yaml:"static_dir"` // directory served at /
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SimulationConfig holds simulation defaults.
type SimulationConfig struct {
	// Seed, when set, makes every run deterministic unless the request
	// carries its own seed.
	Seed *uint32 `yaml:"seed"`
	// PresetsFile is the user preset YAML file.
	PresetsFile string `yaml:"presets_file"`
	// PhaseGain and MaxFreqCorrection tune the adaptive receiver.
	PhaseGain         float64 `yaml:"phase_gain"`
	MaxFreqCorrection float64 `yaml:"max_freq_correction"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	loop := modem.DefaultLoopConfig()
	return &Config{
		Server:     ServerConfig{Addr: "0.0.0.0:8080", StaticDir: "./web/static"},
		Log:        LogConfig{Level: "info"},
		Simulation: SimulationConfig{PresetsFile: "presets.yaml", PhaseGain: loop.PhaseGain, MaxFreqCorrection: loop.MaxFreqCorrection},
	}
}

// Load reads the configuration at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Simulation.PhaseGain <= 0 || c.Simulation.PhaseGain > 1 {
		return fmt.Errorf("simulation.phase_gain must be in (0, 1], got %v", c.Simulation.PhaseGain)
	}
	if c.Simulation.MaxFreqCorrection < 0 {
		return fmt.Errorf("simulation.max_freq_correction must not be negative")
	}
	return nil
}

// LoopConfig returns the adaptive receiver settings.
func (c *Config) LoopConfig() modem.LoopConfig {
	return modem.LoopConfig{
		PhaseGain:         c.Simulation.PhaseGain,
		MaxFreqCorrection: c.Simulation.MaxFreqCorrection,
	}
}

// LogLevel returns the parsed log level, falling back to info.
func (c *Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
