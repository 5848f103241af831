package fx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-lightdesk/fader"
	"go-lightdesk/universe"
)

const tickMs = 20

func newArray() *universe.Array {
	return universe.NewArray(1, universe.NewGrandMaster())
}

func TestSceneFadesIn(t *testing.T) {
	fd := fader.New(tickMs)
	s := NewScene(SceneConfig{
		Name:     "warm",
		Values:   []Value{{Address: 0, Level: 200}},
		FadeInMs: 100,
	}, fd, tickMs)

	ua := newArray()
	var got []uint8
	for j := 0; j < 6; j++ {
		ua.ZeroIntensityChannels()
		require.True(t, s.Write(ua))
		got = append(got, ua.Read(0))
	}
	assert.Equal(t, []uint8{40, 80, 120, 160, 200, 200}, got)
	assert.Equal(t, "warm", s.Name())
}

func TestSceneStopReleasesIntensityToFader(t *testing.T) {
	fd := fader.New(tickMs)
	ua := newArray()
	ua.SetGroup(1, universe.Other)

	s := NewScene(SceneConfig{
		Name: "look",
		Values: []Value{
			{Address: 0, Level: 255},
			{Address: 1, Level: 90, Group: universe.Other},
		},
		FadeOutMs: 100,
	}, fd, tickMs)

	require.True(t, s.Write(ua))
	s.Stop()

	fc, ok := fd.Channel(0)
	require.True(t, ok)
	assert.Equal(t, uint8(255), fc.Start)
	assert.Equal(t, uint8(0), fc.Target)
	assert.Equal(t, 100, fc.FadeTimeMs)

	_, ok = fd.Channel(1)
	assert.False(t, ok, "LTP channels stay where they are")

	// Stopping twice does not queue another fade
	fd.RemoveAll()
	s.Stop()
	assert.Equal(t, 0, fd.Count())
}

func TestSceneDurationFinishes(t *testing.T) {
	fd := fader.New(tickMs)
	s := NewScene(SceneConfig{
		Name:       "flash",
		Values:     []Value{{Address: 3, Level: 255}},
		DurationMs: 60,
	}, fd, tickMs)

	ua := newArray()
	assert.True(t, s.Write(ua))
	assert.True(t, s.Write(ua))
	assert.False(t, s.Write(ua))
	assert.Equal(t, 1, fd.Count())

	// Restarting begins a fresh run
	assert.True(t, s.Write(ua))
}

func TestSceneTakesOverFadingChannel(t *testing.T) {
	fd := fader.New(tickMs)
	fd.Add(fader.FadeChannel{Address: 0, Start: 120, Target: 0, FadeTimeMs: 1000})

	s := NewScene(SceneConfig{
		Name:     "again",
		Values:   []Value{{Address: 0, Level: 220}},
		FadeInMs: 100,
	}, fd, tickMs)

	ua := newArray()
	require.True(t, s.Write(ua))
	assert.Equal(t, uint8(140), ua.Read(0))
	assert.Equal(t, 0, fd.Count())
}

func TestSceneLTPStartsFromBuffer(t *testing.T) {
	fd := fader.New(tickMs)
	ua := newArray()
	ua.SetGroup(10, universe.Other)
	ua.Write(10, 100, universe.Other)

	s := NewScene(SceneConfig{
		Name:     "pan",
		Values:   []Value{{Address: 10, Level: 200, Group: universe.Other}},
		FadeInMs: 40,
	}, fd, tickMs)

	require.True(t, s.Write(ua))
	assert.Equal(t, uint8(150), ua.Read(10))
	require.True(t, s.Write(ua))
	assert.Equal(t, uint8(200), ua.Read(10))
}

func chaserSteps() []Step {
	return []Step{
		{Values: []Value{{Address: 0, Level: 255}, {Address: 2, Level: 100}}, HoldMs: 40},
		{Values: []Value{{Address: 1, Level: 255}, {Address: 2, Level: 100}}, HoldMs: 40},
	}
}

func TestChaserAdvancesAndReleases(t *testing.T) {
	fd := fader.New(tickMs)
	c := NewChaser(ChaserConfig{Name: "chase", Steps: chaserSteps(), FadeOutMs: 200}, fd, tickMs)

	ua := newArray()
	require.True(t, c.Write(ua))
	assert.Equal(t, uint8(255), ua.Read(0))
	assert.Equal(t, 0, c.CurrentStep())

	require.True(t, c.Write(ua))
	assert.Equal(t, 1, c.CurrentStep())

	_, ok := fd.Channel(0)
	assert.True(t, ok, "channel left behind fades out")
	_, ok = fd.Channel(2)
	assert.False(t, ok, "channel shared with the next step stays up")

	ua.ZeroIntensityChannels()
	require.True(t, c.Write(ua))
	assert.Equal(t, uint8(255), ua.Read(1))
	assert.Equal(t, uint8(0), ua.Read(0))

	assert.False(t, c.Write(ua), "single pass finishes after the last step")
	_, ok = fd.Channel(1)
	assert.True(t, ok)
	_, ok = fd.Channel(2)
	assert.True(t, ok)
}

func TestChaserLoops(t *testing.T) {
	fd := fader.New(tickMs)
	c := NewChaser(ChaserConfig{Name: "loop", Steps: chaserSteps(), Loop: true}, fd, tickMs)

	ua := newArray()
	var steps []int
	for j := 0; j < 6; j++ {
		require.True(t, c.Write(ua))
		steps = append(steps, c.CurrentStep())
	}
	assert.Equal(t, []int{0, 1, 1, 0, 0, 1}, steps)
}

func TestChaserZeroHoldAdvancesEveryTick(t *testing.T) {
	fd := fader.New(tickMs)
	c := NewChaser(ChaserConfig{
		Name: "fast",
		Steps: []Step{
			{Values: []Value{{Address: 0, Level: 10}}},
			{Values: []Value{{Address: 0, Level: 20}}},
		},
		Loop: true,
	}, fd, tickMs)

	ua := newArray()
	c.Write(ua)
	assert.Equal(t, 1, c.CurrentStep())
	c.Write(ua)
	assert.Equal(t, 0, c.CurrentStep())
}

func TestChaserStop(t *testing.T) {
	fd := fader.New(tickMs)
	c := NewChaser(ChaserConfig{Name: "chase", Steps: chaserSteps()}, fd, tickMs)

	c.Stop()
	assert.Equal(t, 0, fd.Count(), "stopping a chaser that never ran is a no-op")

	c.Write(newArray())
	c.Stop()
	assert.Equal(t, 2, fd.Count())
}

func TestEmptyChaserFinishesImmediately(t *testing.T) {
	c := NewChaser(ChaserConfig{Name: "empty"}, fader.New(tickMs), tickMs)
	assert.False(t, c.Write(newArray()))
	c.Stop()
}
