// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"audioinput/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Core configuration constants that define the boundaries and defaults
// for the capture bridge.
const (
	// Capture defaults, applied until a client calls initialize.
	DefaultSampleRate  = 44100       // CD-quality audio
	DefaultBufferSize  = 4096        // Samples per device read and per delivered chunk
	DefaultChannels    = 1           // Mono audio
	DefaultFormat      = FormatPCM16 // Signed 16-bit samples
	DefaultAudioSource = 0           // Host default source
	DefaultDeviceID    = MinDeviceID // System default device
	DefaultBackend     = BackendPortAudio

	DefaultListenAddress  = "127.0.0.1:8686"
	DefaultBridgePath     = "/bridge"
	DefaultPermissionMode = PermissionProbe
	DefaultLogLevel       = "info"
	DefaultUDPTarget      = "127.0.0.1:9090"

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MaxBufferSize = 65536  // Maximum samples per buffer (power of 2)
	MaxChannels   = 2
)

// Sample formats understood by the receiver.
const (
	FormatPCM16 = "PCM_16BIT"
	FormatPCM8  = "PCM_8BIT"
)

// Capture backends.
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendTone      = "tone" // synthetic 440 Hz input for headless hosts
)

// Permission modes decide how microphone permission requests are answered.
const (
	PermissionProbe = "probe" // open the input device once and report the outcome
	PermissionGrant = "grant"
	PermissionDeny  = "deny"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug      bool             `yaml:"debug"`             // Shorthand for log_level=debug.
	LogLevel   string           `yaml:"log_level"`         // Logging level ("debug", "info", "warn", "error").
	Command    string           `yaml:"command,omitempty"` // One-off command to execute instead of serving.
	Audio      AudioConfig      `yaml:"audio"`
	Permission PermissionConfig `yaml:"permission"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Transport  TransportConfig  `yaml:"transport"`
}

// AudioConfig holds capture defaults and device selection.
type AudioConfig struct {
	Backend       string      `yaml:"backend"`        // "portaudio", "malgo" or "tone".
	InputDevice   int         `yaml:"input_device"`   // Device index used for audio source 0 (-1 for default).
	Sources       map[int]int `yaml:"sources"`        // Audio source selector -> device index.
	LowLatency    bool        `yaml:"low_latency"`    // Request low latency settings from the device.
	SampleRate    int         `yaml:"sample_rate"`    // Default sample rate in Hz.
	BufferSize    int         `yaml:"buffer_size"`    // Default samples per chunk.
	Channels      int         `yaml:"channels"`       // Default channel count.
	Format        string      `yaml:"format"`         // Default sample format.
	GateThreshold float64     `yaml:"gate_threshold"` // Chunks whose peak is below this (0.0-1.0) are flagged silent.
}

// PermissionConfig configures the permission prompter.
type PermissionConfig struct {
	Mode         string        `yaml:"mode"`          // "probe", "grant" or "deny".
	ProbeTimeout time.Duration `yaml:"probe_timeout"` // Upper bound for a device probe.
}

// ServerConfig configures the plugin boundary.
type ServerConfig struct {
	Listen string `yaml:"listen"` // WebSocket listen address.
	Path   string `yaml:"path"`   // WebSocket endpoint path.
	Stdio  bool   `yaml:"stdio"`  // Serve newline-delimited JSON on stdin/stdout instead.
}

// StoreConfig configures the recordings catalog.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite database path, empty disables the catalog.
}

// TransportConfig holds settings related to mirroring PCM chunks over the network.
type TransportConfig struct {
	UDPEnabled       bool   `yaml:"udp_enabled"`
	UDPTargetAddress string `yaml:"udp_target_address"`
}

// NewConfig creates a new Config instance with default values.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			Backend:       DefaultBackend,
			InputDevice:   DefaultDeviceID,
			Sources:       map[int]int{},
			SampleRate:    DefaultSampleRate,
			BufferSize:    DefaultBufferSize,
			Channels:      DefaultChannels,
			Format:        DefaultFormat,
			GateThreshold: 0.001,
		},
		Permission: PermissionConfig{
			Mode:         DefaultPermissionMode,
			ProbeTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Listen: DefaultListenAddress,
			Path:   DefaultBridgePath,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTarget,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("audioinput.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"audioinput.yaml",
			"config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment overrides apply after the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the capture defaults and the enumerated settings.
func (c *Config) Validate() error {
	if err := ValidateCapture(c.Audio.SampleRate, c.Audio.BufferSize, c.Audio.Channels, c.Audio.Format); err != nil {
		return err
	}

	switch c.Audio.Backend {
	case BackendPortAudio, BackendMalgo, BackendTone:
	default:
		return fmt.Errorf("audio.backend %q is not supported", c.Audio.Backend)
	}

	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device %d is invalid", c.Audio.InputDevice)
	}
	for source, device := range c.Audio.Sources {
		if device < MinDeviceID {
			return fmt.Errorf("audio.sources[%d] device %d is invalid", source, device)
		}
	}

	if c.Audio.GateThreshold < 0 || c.Audio.GateThreshold > 1 {
		return fmt.Errorf("audio.gate_threshold %.3f must be within 0.0-1.0", c.Audio.GateThreshold)
	}

	switch c.Permission.Mode {
	case PermissionProbe, PermissionGrant, PermissionDeny:
	default:
		return fmt.Errorf("permission.mode %q is not supported", c.Permission.Mode)
	}

	if !c.Server.Stdio && c.Server.Listen == "" {
		return fmt.Errorf("server.listen must be set unless server.stdio is enabled")
	}

	if c.Transport.UDPEnabled && c.Transport.UDPTargetAddress == "" {
		return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
	}

	return nil
}

// ValidateCapture checks one set of capture parameters, either the configured
// defaults or the values a client passes to initialize.
func ValidateCapture(sampleRate, bufferSize, channels int, format string) error {
	if sampleRate < MinSampleRate || sampleRate > MaxSampleRate {
		return fmt.Errorf("sample rate %d Hz is outside %d-%d", sampleRate, MinSampleRate, MaxSampleRate)
	}
	if bufferSize <= 0 || bufferSize > MaxBufferSize {
		return fmt.Errorf("buffer size %d is outside 1-%d", bufferSize, MaxBufferSize)
	}
	if channels < 1 || channels > MaxChannels {
		return fmt.Errorf("channel count %d is outside 1-%d", channels, MaxChannels)
	}
	if bufferSize%channels != 0 {
		return fmt.Errorf("buffer size %d is not a multiple of %d channels", bufferSize, channels)
	}
	switch format {
	case FormatPCM16, FormatPCM8:
	default:
		return fmt.Errorf("sample format %q is not supported", format)
	}
	return nil
}

// DeviceForSource maps an audio source selector onto a device index.
// Source 0 and unmapped sources use the configured input device.
func (c *Config) DeviceForSource(source int) int {
	if device, ok := c.Audio.Sources[source]; ok {
		return device
	}
	return c.Audio.InputDevice
}

// PeriodFrames returns the device period, in frames, for a buffer of
// bufferSize interleaved samples. Periods are rounded up to a power of two.
func PeriodFrames(bufferSize, channels int) int {
	if channels < 1 {
		channels = 1
	}
	return bitint.NextPowerOfTwo(bufferSize / channels)
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	// ENV_LISTEN
	if val, ok := os.LookupEnv("ENV_LISTEN"); ok {
		c.Server.Listen = val
	}
	// ENV_PERMISSION_MODE
	if val, ok := os.LookupEnv("ENV_PERMISSION_MODE"); ok {
		c.Permission.Mode = val
	}
	// ENV_AUDIO_BACKEND
	if val, ok := os.LookupEnv("ENV_AUDIO_BACKEND"); ok {
		c.Audio.Backend = val
	}
	// ENV_STORE_PATH
	if val, ok := os.LookupEnv("ENV_STORE_PATH"); ok {
		c.Store.Path = val
	}

	// ENV_UDP_{...}
	// These are specific to the PCM mirror.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
}
