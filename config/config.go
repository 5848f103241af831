package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"go-lightdesk/fader"
	"go-lightdesk/fx"
	"go-lightdesk/midi"
	"go-lightdesk/universe"
)

// ChannelRef addresses one DMX channel. Universe is zero-based, DMX is the
// one-based channel number printed on fixtures.
type ChannelRef struct {
	Universe int `yaml:"universe"`
	DMX      int `yaml:"dmx"`
}

// Address returns the absolute zero-based channel address
func (r ChannelRef) Address() int {
	return universe.Address(r.Universe, r.DMX-1)
}

// ArtNetTarget sends one universe to one node
type ArtNetTarget struct {
	Address  string `yaml:"address"`
	Universe int    `yaml:"universe"`
}

// ArtNetConfig configures the Art-Net output
type ArtNetConfig struct {
	Targets []ArtNetTarget `yaml:"targets,omitempty"`
}

// MappingConfig binds one MIDI control to a channel
type MappingConfig struct {
	Channel    uint8 `yaml:"channel"`
	CC         uint8 `yaml:"cc"`
	ChannelRef `yaml:",inline"`
}

// ControllerConfig defines a saved controller configuration
type ControllerConfig struct {
	PortName    string          `yaml:"portName"`
	AutoConnect bool            `yaml:"autoConnect"`
	Mappings    []MappingConfig `yaml:"mappings,omitempty"`
}

// MIDIConfig lists the fader boxes to look for
type MIDIConfig struct {
	Controllers []ControllerConfig `yaml:"controllers,omitempty"`
}

// SliderConfig is one on-screen slider
type SliderConfig struct {
	ChannelRef `yaml:",inline"`
	Intensity  bool `yaml:"intensity"`
}

// LevelConfig is one channel level of a look
type LevelConfig struct {
	ChannelRef `yaml:",inline"`
	Level      uint8 `yaml:"level"`
}

// SceneConfig is a saved scene
type SceneConfig struct {
	Name       string        `yaml:"name"`
	FadeInMs   int           `yaml:"fadeInMs,omitempty"`
	FadeOutMs  int           `yaml:"fadeOutMs,omitempty"`
	DurationMs int           `yaml:"durationMs,omitempty"`
	Values     []LevelConfig `yaml:"values"`
}

// StepConfig is one chaser step
type StepConfig struct {
	HoldMs int           `yaml:"holdMs"`
	Values []LevelConfig `yaml:"values"`
}

// ChaserConfig is a saved chaser
type ChaserConfig struct {
	Name      string       `yaml:"name"`
	Loop      bool         `yaml:"loop"`
	FadeOutMs int          `yaml:"fadeOutMs,omitempty"`
	Steps     []StepConfig `yaml:"steps"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Frequency int            `yaml:"frequency"`
	Universes int            `yaml:"universes"`
	FadeOutMs int            `yaml:"fadeOutMs"`
	LTP       []ChannelRef   `yaml:"ltp,omitempty"`
	ArtNet    ArtNetConfig   `yaml:"artnet"`
	MIDI      MIDIConfig     `yaml:"midi"`
	Sliders   []SliderConfig `yaml:"sliders,omitempty"`
	Scenes    []SceneConfig  `yaml:"scenes,omitempty"`
	Chasers   []ChaserConfig `yaml:"chasers,omitempty"`
	Metrics   MetricsConfig  `yaml:"metrics"`
	Debug     bool           `yaml:"debug"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{
		Frequency: 50,
		Universes: 1,
		FadeOutMs: 2000,
		ArtNet: ArtNetConfig{
			Targets: []ArtNetTarget{{Address: "255.255.255.255", Universe: 0}},
		},
		MIDI: MIDIConfig{
			Controllers: []ControllerConfig{
				{
					PortName:    "nanoKONTROL2",
					AutoConnect: true,
				},
			},
		},
	}
	for i := 0; i < 8; i++ {
		ref := ChannelRef{Universe: 0, DMX: i + 1}
		cfg.Sliders = append(cfg.Sliders, SliderConfig{ChannelRef: ref, Intensity: true})
		cfg.MIDI.Controllers[0].Mappings = append(cfg.MIDI.Controllers[0].Mappings,
			MappingConfig{Channel: 0, CC: uint8(i), ChannelRef: ref})
	}
	cfg.Scenes = []SceneConfig{
		{
			Name:      "Full",
			FadeInMs:  1000,
			FadeOutMs: 1000,
			Values:    levels(0, 1, 8, 255),
		},
		{
			Name:      "Half",
			FadeInMs:  1000,
			FadeOutMs: 1000,
			Values:    levels(0, 1, 8, 128),
		},
	}
	cfg.Chasers = []ChaserConfig{
		{
			Name:      "Walk",
			Loop:      true,
			FadeOutMs: 300,
			Steps: []StepConfig{
				{HoldMs: 500, Values: levels(0, 1, 2, 255)},
				{HoldMs: 500, Values: levels(0, 3, 4, 255)},
				{HoldMs: 500, Values: levels(0, 5, 6, 255)},
				{HoldMs: 500, Values: levels(0, 7, 8, 255)},
			},
		},
	}
	return cfg
}

func levels(u, from, to int, level uint8) []LevelConfig {
	var out []LevelConfig
	for dmx := from; dmx <= to; dmx++ {
		out = append(out, LevelConfig{ChannelRef: ChannelRef{Universe: u, DMX: dmx}, Level: level})
	}
	return out
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-lightdesk"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path, or returns defaults if not found.
// Missing fields keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path
func (c *Config) SaveTo(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every out-of-range value
func (c *Config) Validate() error {
	var errs []error
	if c.Frequency < 1 || c.Frequency > 1000 {
		errs = append(errs, fmt.Errorf("frequency %d out of range 1-1000", c.Frequency))
	}
	if c.Universes < 1 || c.Universes > 32768 {
		errs = append(errs, fmt.Errorf("universes %d out of range", c.Universes))
	}
	if c.FadeOutMs < 0 {
		errs = append(errs, fmt.Errorf("fadeOutMs %d is negative", c.FadeOutMs))
	}

	check := func(where string, r ChannelRef) {
		if r.Universe < 0 || r.Universe >= c.Universes {
			errs = append(errs, fmt.Errorf("%s: universe %d out of range", where, r.Universe))
		}
		if r.DMX < 1 || r.DMX > universe.Size {
			errs = append(errs, fmt.Errorf("%s: dmx %d out of range 1-%d", where, r.DMX, universe.Size))
		}
	}

	for i, r := range c.LTP {
		check(fmt.Sprintf("ltp[%d]", i), r)
	}
	for i, t := range c.ArtNet.Targets {
		if t.Address == "" {
			errs = append(errs, fmt.Errorf("artnet.targets[%d]: empty address", i))
		}
		if t.Universe < 0 || t.Universe >= c.Universes {
			errs = append(errs, fmt.Errorf("artnet.targets[%d]: universe %d out of range", i, t.Universe))
		}
	}
	for i, ctrl := range c.MIDI.Controllers {
		for j, m := range ctrl.Mappings {
			where := fmt.Sprintf("midi.controllers[%d].mappings[%d]", i, j)
			if m.Channel > 15 {
				errs = append(errs, fmt.Errorf("%s: midi channel %d out of range 0-15", where, m.Channel))
			}
			if m.CC > 127 {
				errs = append(errs, fmt.Errorf("%s: cc %d out of range 0-127", where, m.CC))
			}
			check(where, m.ChannelRef)
		}
	}
	for i, s := range c.Sliders {
		check(fmt.Sprintf("sliders[%d]", i), s.ChannelRef)
	}
	for i, s := range c.Scenes {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("scenes[%d]: empty name", i))
		}
		for j, v := range s.Values {
			check(fmt.Sprintf("scenes[%d].values[%d]", i, j), v.ChannelRef)
		}
	}
	for i, ch := range c.Chasers {
		if ch.Name == "" {
			errs = append(errs, fmt.Errorf("chasers[%d]: empty name", i))
		}
		for j, st := range ch.Steps {
			for k, v := range st.Values {
				check(fmt.Sprintf("chasers[%d].steps[%d].values[%d]", i, j, k), v.ChannelRef)
			}
		}
	}
	return errors.Join(errs...)
}

// FindController returns the controller whose port name appears in
// portName, ignoring case, the same way the device manager matches ports
func (c *Config) FindController(portName string) *ControllerConfig {
	port := strings.ToLower(portName)
	for i := range c.MIDI.Controllers {
		ctrl := &c.MIDI.Controllers[i]
		if ctrl.PortName != "" && strings.Contains(port, strings.ToLower(ctrl.PortName)) {
			return ctrl
		}
	}
	return nil
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.MIDI.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}

// Bindings converts the auto-connect controllers for the device manager
func (c *Config) Bindings() []midi.Binding {
	var out []midi.Binding
	for _, ctrl := range c.AutoConnectControllers() {
		b := midi.Binding{PortName: ctrl.PortName}
		for _, m := range ctrl.Mappings {
			b.Mappings = append(b.Mappings, midi.Mapping{
				Channel: m.Channel,
				CC:      m.CC,
				Address: m.Address(),
			})
		}
		out = append(out, b)
	}
	return out
}

// Patch sets the merge group of every LTP channel in ua
func (c *Config) Patch(ua *universe.Array) {
	for _, r := range c.LTP {
		ua.SetGroup(r.Address(), universe.Other)
	}
}

func (c *Config) values(ua *universe.Array, in []LevelConfig) []fx.Value {
	out := make([]fx.Value, 0, len(in))
	for _, v := range in {
		addr := v.Address()
		out = append(out, fx.Value{Address: addr, Level: v.Level, Group: ua.GroupOf(addr)})
	}
	return out
}

// BuildScenes creates the configured scenes. ua must already be patched.
func (c *Config) BuildScenes(ua *universe.Array, fd *fader.GenericFader, tickMs int) []*fx.Scene {
	var out []*fx.Scene
	for _, s := range c.Scenes {
		out = append(out, fx.NewScene(fx.SceneConfig{
			Name:       s.Name,
			Values:     c.values(ua, s.Values),
			FadeInMs:   s.FadeInMs,
			FadeOutMs:  s.FadeOutMs,
			DurationMs: s.DurationMs,
		}, fd, tickMs))
	}
	return out
}

// BuildChasers creates the configured chasers. ua must already be patched.
func (c *Config) BuildChasers(ua *universe.Array, fd *fader.GenericFader, tickMs int) []*fx.Chaser {
	var out []*fx.Chaser
	for _, ch := range c.Chasers {
		cfg := fx.ChaserConfig{Name: ch.Name, Loop: ch.Loop, FadeOutMs: ch.FadeOutMs}
		for _, st := range ch.Steps {
			cfg.Steps = append(cfg.Steps, fx.Step{HoldMs: st.HoldMs, Values: c.values(ua, st.Values)})
		}
		out = append(out, fx.NewChaser(cfg, fd, tickMs))
	}
	return out
}

// SliderAddresses returns the addresses and merge groups of the sliders
func (c *Config) SliderAddresses() ([]int, []universe.Group) {
	addrs := make([]int, len(c.Sliders))
	groups := make([]universe.Group, len(c.Sliders))
	for i, s := range c.Sliders {
		addrs[i] = s.Address()
		groups[i] = universe.Other
		if s.Intensity {
			groups[i] = universe.Intensity
		}
	}
	return addrs, groups
}
