// Package config loads the daemon configuration file. Zero values mean
// "unspecified"; each subsystem applies its own defaults, so a minimal file
// listing only addr and registry is valid.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	Registry string `json:"registry" yaml:"registry" toml:"registry"`

	Fetch   FetchConfig   `json:"fetch" yaml:"fetch" toml:"fetch"`
	Breaker BreakerConfig `json:"breaker" yaml:"breaker" toml:"breaker"`
	Bundle  BundleConfig  `json:"bundle" yaml:"bundle" toml:"bundle"`
	Perf    PerfConfig    `json:"perf" yaml:"perf" toml:"perf"`
	Client  ClientConfig  `json:"client" yaml:"client" toml:"client"`
	Decoder DecoderConfig `json:"decoder" yaml:"decoder" toml:"decoder"`
}

// DecoderConfig locates external transcoder binaries. Empty paths disable
// the corresponding codec.
type DecoderConfig struct {
	// Draco is the path to a binary that reads a Draco-compressed GLB on
	// stdin and writes a plain GLB to stdout.
	Draco string `json:"draco" yaml:"draco" toml:"draco"`
}

// FetchConfig tunes retry behavior per asset request.
type FetchConfig struct {
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" toml:"max_attempts"`
	BaseDelayMS int `json:"base_delay_ms" yaml:"base_delay_ms" toml:"base_delay_ms"`
	CapDelayMS  int `json:"cap_delay_ms" yaml:"cap_delay_ms" toml:"cap_delay_ms"`
}

// BreakerConfig tunes the per-endpoint circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" toml:"failure_threshold"`
	FailureWindowSec int `json:"failure_window_sec" yaml:"failure_window_sec" toml:"failure_window_sec"`
	CooldownSec      int `json:"cooldown_sec" yaml:"cooldown_sec" toml:"cooldown_sec"`
}

// BundleConfig tunes bundle load sessions.
type BundleConfig struct {
	Parallelism   int `json:"parallelism" yaml:"parallelism" toml:"parallelism"`
	ETACeilingSec int `json:"eta_ceiling_sec" yaml:"eta_ceiling_sec" toml:"eta_ceiling_sec"`
}

// PerfConfig tunes the quality feedback loop.
type PerfConfig struct {
	RingSize         int `json:"ring_size" yaml:"ring_size" toml:"ring_size"`
	CheckInterval    int `json:"check_interval" yaml:"check_interval" toml:"check_interval"`
	SustainedWindows int `json:"sustained_windows" yaml:"sustained_windows" toml:"sustained_windows"`
}

// ClientConfig is the served client's capability profile. The daemon trusts
// these facts instead of probing the platform itself.
type ClientConfig struct {
	KTX2           bool `json:"ktx2" yaml:"ktx2" toml:"ktx2"`
	WebP           bool `json:"webp" yaml:"webp" toml:"webp"`
	MaxTextureSize int  `json:"max_texture_size" yaml:"max_texture_size" toml:"max_texture_size"`
	Mobile         bool `json:"mobile" yaml:"mobile" toml:"mobile"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
