package fx

import (
	"go-lightdesk/fader"
	"go-lightdesk/universe"
)

// Value is one channel level of a scene or chaser step
type Value struct {
	Address int
	Level   uint8
	Group   universe.Group
}

// SceneConfig describes a static look
type SceneConfig struct {
	Name       string
	Values     []Value
	FadeInMs   int
	FadeOutMs  int
	DurationMs int // 0 holds until stopped
}

// Scene fades its values in, holds them, and hands its intensity channels
// to the generic fader when it ends so they fade out instead of snapping
// off. A Scene is driven by the tick goroutine only.
type Scene struct {
	cfg    SceneConfig
	fader  *fader.GenericFader
	tickMs int

	fades     []fader.FadeChannel
	elapsedMs int
	started   bool
}

// NewScene creates a scene that releases into fd and advances tickMs per
// Write
func NewScene(cfg SceneConfig, fd *fader.GenericFader, tickMs int) *Scene {
	if tickMs < 1 {
		tickMs = 1
	}
	return &Scene{
		cfg:    cfg,
		fader:  fd,
		tickMs: tickMs,
	}
}

// Name returns the scene name
func (s *Scene) Name() string {
	return s.cfg.Name
}

// Values returns the scene's channel values
func (s *Scene) Values() []Value {
	return s.cfg.Values
}

// Write produces one tick of the scene
func (s *Scene) Write(ua *universe.Array) bool {
	if !s.started {
		s.begin(ua)
	}

	for i := range s.fades {
		fc := &s.fades[i]
		ua.Write(fc.Address, fc.NextStep(s.tickMs), fc.Group)
	}

	s.elapsedMs += s.tickMs
	if s.cfg.DurationMs > 0 && s.elapsedMs >= s.cfg.DurationMs {
		s.release()
		return false
	}
	return true
}

// Stop releases the scene's intensity channels to the fader
func (s *Scene) Stop() {
	if !s.started {
		return
	}
	s.release()
}

// begin builds the fade-in. Intensity channels still fading out in the
// generic fader are taken over from their current level; LTP channels
// start from whatever the buffer holds.
func (s *Scene) begin(ua *universe.Array) {
	s.started = true
	s.elapsedMs = 0
	s.fades = s.fades[:0]

	for _, v := range s.cfg.Values {
		var start uint8
		if v.Group == universe.Intensity {
			if fc, ok := s.fader.Channel(v.Address); ok {
				start = fc.Current
				s.fader.Remove(v.Address)
			}
		} else {
			start = ua.Read(v.Address)
		}
		s.fades = append(s.fades, fader.FadeChannel{
			Address:    v.Address,
			Group:      v.Group,
			Start:      start,
			Current:    start,
			Target:     v.Level,
			FadeTimeMs: s.cfg.FadeInMs,
		})
	}
}

func (s *Scene) release() {
	s.started = false
	for _, fc := range s.fades {
		if fc.Group != universe.Intensity || fc.Current == 0 {
			continue
		}
		s.fader.Add(fader.FadeChannel{
			Address:    fc.Address,
			Group:      universe.Intensity,
			Start:      fc.Current,
			Target:     0,
			FadeTimeMs: s.cfg.FadeOutMs,
		})
	}
}
