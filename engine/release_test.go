package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-lightdesk/fx"
)

func TestStoppedSceneFadesOutThroughFader(t *testing.T) {
	s, rec, _ := newTestScheduler(t)
	require.Equal(t, 20, s.TickMs())

	scene := fx.NewScene(fx.SceneConfig{
		Name:      "wash",
		Values:    []fx.Value{{Address: 0, Level: 200}, {Address: 1, Level: 100}},
		FadeOutMs: 40,
	}, s.Fader(), s.TickMs())

	s.StartFunction(scene)
	s.timerTick()
	if diff := cmp.Diff([]byte{200, 100, 0}, rec.last()[:3]); diff != "" {
		t.Errorf("scene output (-want +got):\n%s", diff)
	}

	s.StopAllFunctions()
	var got [][]byte
	for j := 0; j < 3; j++ {
		s.timerTick()
		got = append(got, rec.last()[:2])
	}
	want := [][]byte{
		{100, 50},
		{0, 0},
		{0, 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("release (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, s.Fader().Count(), "finished fades are dropped")
	assert.Equal(t, 0, s.RunningFunctions())
}
