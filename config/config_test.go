package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-lightdesk/fader"
	"go-lightdesk/midi"
	"go-lightdesk/universe"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50, cfg.Frequency)
	assert.Len(t, cfg.Sliders, 8)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Frequency = 40
	cfg.Universes = 2
	cfg.LTP = []ChannelRef{{Universe: 1, DMX: 10}}
	cfg.Metrics.Listen = ":9100"
	require.NoError(t, cfg.SaveTo(path))

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frequency: 25\ndebug: true\n"), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Frequency)
	assert.True(t, cfg.Debug)
	assert.Equal(t, DefaultConfig().Scenes, cfg.Scenes)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("frequency: [1, 2\n"), 0644))
	_, err := LoadFrom(bad)
	assert.ErrorContains(t, err, "parse")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("frequency: 0\n"), 0644))
	_, err = LoadFrom(invalid)
	assert.ErrorContains(t, err, "frequency 0")
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Universes = 1
	cfg.LTP = []ChannelRef{{Universe: 1, DMX: 1}}
	cfg.Sliders = append(cfg.Sliders, SliderConfig{ChannelRef: ChannelRef{DMX: 513}})
	cfg.ArtNet.Targets = append(cfg.ArtNet.Targets, ArtNetTarget{})
	cfg.MIDI.Controllers[0].Mappings[0].CC = 200
	cfg.Scenes = append(cfg.Scenes, SceneConfig{})

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"ltp[0]: universe 1 out of range",
		"sliders[8]: dmx 513 out of range",
		"artnet.targets[1]: empty address",
		"midi.controllers[0].mappings[0]: cc 200",
		"scenes[2]: empty name",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestChannelRefAddress(t *testing.T) {
	assert.Equal(t, 0, ChannelRef{Universe: 0, DMX: 1}.Address())
	assert.Equal(t, 512+9, ChannelRef{Universe: 1, DMX: 10}.Address())
}

func TestControllers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MIDI.Controllers = append(cfg.MIDI.Controllers, ControllerConfig{PortName: "spare"})

	assert.Equal(t, "spare", cfg.FindController("spare").PortName)
	assert.Equal(t, "nanoKONTROL2", cfg.FindController("nanoKONTROL2 SLIDER/KNOB").PortName)
	assert.Equal(t, "nanoKONTROL2", cfg.FindController("NANOKONTROL2").PortName)
	assert.Nil(t, cfg.FindController("missing"))
	assert.Nil(t, cfg.FindController(""))
	assert.Len(t, cfg.AutoConnectControllers(), 1)

	bindings := cfg.Bindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, "nanoKONTROL2", bindings[0].PortName)
	assert.Equal(t, midi.Mapping{Channel: 0, CC: 2, Address: 2}, bindings[0].Mappings[2])
}

func TestBuildFunctions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LTP = []ChannelRef{{DMX: 2}}

	ua := universe.NewArray(1, universe.NewGrandMaster())
	cfg.Patch(ua)
	assert.Equal(t, universe.Other, ua.GroupOf(1))

	fd := fader.New(20)
	scenes := cfg.BuildScenes(ua, fd, 20)
	require.Len(t, scenes, 2)
	assert.Equal(t, "Full", scenes[0].Name())
	values := scenes[0].Values()
	assert.Equal(t, universe.Intensity, values[0].Group)
	assert.Equal(t, universe.Other, values[1].Group)

	chasers := cfg.BuildChasers(ua, fd, 20)
	require.Len(t, chasers, 1)
	assert.Equal(t, "Walk", chasers[0].Name())

	addrs, groups := cfg.SliderAddresses()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, addrs)
	assert.Equal(t, universe.Intensity, groups[0])
}
