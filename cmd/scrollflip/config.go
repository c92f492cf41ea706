package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the scrollflip daemon.
//
// The config file is the primary configuration surface; flags exist for small
// overrides and for environments where a file is awkward. Defaults and
// validation are centralized here so the rest of the code can assume a
// well-formed config.
type Config struct {
	// Input devices to grab
	Input InputConfig `yaml:"input"`

	// Classifier thresholds (policy knobs, safe to tune)
	Classifier ClassifierFileConfig `yaml:"classifier"`

	// Inversion behavior and the virtual output device
	Invert InvertConfig `yaml:"invert"`

	// Hotkey bindings
	Hotkeys []HotkeyBinding `yaml:"hotkeys,omitempty"`

	// IPC configuration
	IPC IPCConfig `yaml:"ipc"`

	// State websocket server
	StateWS StateWSConfig `yaml:"statews"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	Devices []string `yaml:"devices"` // evdev device nodes to grab
}

// ClassifierFileConfig is the user-facing classifier configuration as
// represented in YAML. It maps 1:1 to ClassifierConfig but uses YAML-friendly
// types (durations in milliseconds).
type ClassifierFileConfig struct {
	MaxHistory      int     `yaml:"max_history"`
	IdleResetMS     float64 `yaml:"idle_reset_ms"`
	RateWindowMS    float64 `yaml:"rate_window_ms"`
	TrackpadRateMin int     `yaml:"trackpad_rate_min"`
	SmallDeltaLimit int     `yaml:"small_delta_limit"`
	SmallRatioReq   float64 `yaml:"small_ratio_req"`
}

type InvertConfig struct {
	// Enabled is the startup state; hotkeys and IPC can flip it at runtime.
	Enabled bool `yaml:"enabled"`

	// OutputName is the uinput device name visible to the rest of the system.
	OutputName string `yaml:"output_name"`
}

// HotkeyBinding is one configured chord. Key is the evdev key code; Mods are
// modifier names (ctrl, shift, alt, meta).
type HotkeyBinding struct {
	Key    int      `yaml:"key"`
	Mods   []string `yaml:"mods,omitempty"`
	Action string   `yaml:"action"`
	Exec   string   `yaml:"exec,omitempty"` // command line for action "exec"
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type StateWSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	Path       string `yaml:"path"`
	SnapshotHz int    `yaml:"snapshot_hz"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Devices: []string{"/dev/input/event0"},
		},
		Classifier: ClassifierFileConfig{
			MaxHistory:      defaultMaxHistory,
			IdleResetMS:     defaultIdleResetMS,
			RateWindowMS:    defaultRateWindowMS,
			TrackpadRateMin: defaultTrackpadRateMin,
			SmallDeltaLimit: defaultSmallDeltaLimit,
			SmallRatioReq:   defaultSmallRatioReq,
		},
		Invert: InvertConfig{
			Enabled:    true,
			OutputName: "scrollflip virtual pointer",
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/scrollflip.sock",
		},
		StateWS: StateWSConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:7474",
			Path:       "/ws/state",
			SnapshotHz: defaultSnapshotHz,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies overrides from flags on top of a loaded config.
// Each override is applied only if its pointer is non-nil.
type FlagOverrides struct {
	Device *string

	ClassMaxHistory      *int
	ClassIdleResetMS     *float64
	ClassRateWindowMS    *float64
	ClassTrackpadRateMin *int
	ClassSmallDeltaLimit *int
	ClassSmallRatioReq   *float64

	InvertEnabled *bool

	IPCSocketPath *string

	StateWSEnabled    *bool
	StateWSListenAddr *string

	LogLevel *string
}

// Apply merges the overrides into cfg. Nil pointers are ignored.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Device != nil {
		cfg.Input.Devices = []string{*o.Device}
	}

	if o.ClassMaxHistory != nil {
		cfg.Classifier.MaxHistory = *o.ClassMaxHistory
	}
	if o.ClassIdleResetMS != nil {
		cfg.Classifier.IdleResetMS = *o.ClassIdleResetMS
	}
	if o.ClassRateWindowMS != nil {
		cfg.Classifier.RateWindowMS = *o.ClassRateWindowMS
	}
	if o.ClassTrackpadRateMin != nil {
		cfg.Classifier.TrackpadRateMin = *o.ClassTrackpadRateMin
	}
	if o.ClassSmallDeltaLimit != nil {
		cfg.Classifier.SmallDeltaLimit = *o.ClassSmallDeltaLimit
	}
	if o.ClassSmallRatioReq != nil {
		cfg.Classifier.SmallRatioReq = *o.ClassSmallRatioReq
	}

	if o.InvertEnabled != nil {
		cfg.Invert.Enabled = *o.InvertEnabled
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}

	if o.StateWSEnabled != nil {
		cfg.StateWS.Enabled = *o.StateWSEnabled
	}
	if o.StateWSListenAddr != nil {
		cfg.StateWS.ListenAddr = *o.StateWSListenAddr
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if len(c.Input.Devices) == 0 {
		return errors.New("input.devices must not be empty")
	}
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	if c.Classifier.MaxHistory <= 0 {
		return errors.New("classifier.max_history must be > 0")
	}
	if c.Classifier.IdleResetMS <= 0 {
		return errors.New("classifier.idle_reset_ms must be > 0")
	}
	if c.Classifier.RateWindowMS <= 0 {
		return errors.New("classifier.rate_window_ms must be > 0")
	}
	if c.Classifier.TrackpadRateMin <= 0 {
		return errors.New("classifier.trackpad_rate_min must be > 0")
	}
	if c.Classifier.SmallDeltaLimit <= 0 {
		return errors.New("classifier.small_delta_limit must be > 0")
	}
	if c.Classifier.SmallRatioReq < 0 || c.Classifier.SmallRatioReq > 1 {
		return errors.New("classifier.small_ratio_req must be within [0, 1]")
	}

	if c.Invert.OutputName == "" {
		return errors.New("invert.output_name must not be empty")
	}

	for i, b := range c.Hotkeys {
		if b.Key <= 0 {
			return fmt.Errorf("hotkeys[%d].key must be a positive evdev key code", i)
		}
		if b.Action == "" {
			return fmt.Errorf("hotkeys[%d].action must not be empty", i)
		}
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	if c.StateWS.Enabled {
		if c.StateWS.ListenAddr == "" {
			return errors.New("statews.enabled is true but statews.listen_addr is empty")
		}
		if c.StateWS.Path == "" {
			return errors.New("statews.enabled is true but statews.path is empty")
		}
		if c.StateWS.SnapshotHz <= 0 || c.StateWS.SnapshotHz > 100 {
			return errors.New("statews.snapshot_hz must be between 1 and 100")
		}
	}

	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ToClassifierConfig converts file config into the internal engine config.
func (c *Config) ToClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MaxHistory:      c.Classifier.MaxHistory,
		IdleReset:       time.Duration(c.Classifier.IdleResetMS * float64(time.Millisecond)),
		RateWindow:      time.Duration(c.Classifier.RateWindowMS * float64(time.Millisecond)),
		TrackpadRateMin: c.Classifier.TrackpadRateMin,
		SmallDeltaLimit: int32(c.Classifier.SmallDeltaLimit),
		SmallRatioReq:   c.Classifier.SmallRatioReq,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
