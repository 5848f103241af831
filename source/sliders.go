package source

import (
	"sync/atomic"

	"go-lightdesk/universe"
)

// Slider is one fader on the desk bound to a channel
type Slider struct {
	Address int
	Group   universe.Group

	level atomic.Uint32
}

// Sliders is a DMX source driven by a fixed bank of sliders. Levels are
// set from the UI or MIDI goroutines and read by the tick goroutine.
type Sliders struct {
	sliders []*Slider
}

// NewSliders creates a bank with one slider per address
func NewSliders(addresses []int, groups []universe.Group) *Sliders {
	s := &Sliders{sliders: make([]*Slider, len(addresses))}
	for i, addr := range addresses {
		g := universe.Intensity
		if i < len(groups) {
			g = groups[i]
		}
		s.sliders[i] = &Slider{Address: addr, Group: g}
	}
	return s
}

// Len returns the number of sliders
func (s *Sliders) Len() int {
	return len(s.sliders)
}

// Slider returns slider i, or nil when out of range
func (s *Sliders) Slider(i int) *Slider {
	if i < 0 || i >= len(s.sliders) {
		return nil
	}
	return s.sliders[i]
}

// Set moves slider i to v
func (s *Sliders) Set(i int, v uint8) {
	if sl := s.Slider(i); sl != nil {
		sl.level.Store(uint32(v))
	}
}

// Nudge moves slider i by delta, clamped to 0-255
func (s *Sliders) Nudge(i int, delta int) {
	sl := s.Slider(i)
	if sl == nil {
		return
	}
	v := int(sl.level.Load()) + delta
	sl.level.Store(uint32(max(0, min(255, v))))
}

// Level returns the level of slider i
func (s *Sliders) Level(i int) uint8 {
	if sl := s.Slider(i); sl != nil {
		return uint8(sl.level.Load())
	}
	return 0
}

// WriteDMX writes every slider into ua. Intensity sliders at zero write
// nothing so they never mask lower HTP contributions.
func (s *Sliders) WriteDMX(ua *universe.Array) {
	for _, sl := range s.sliders {
		v := uint8(sl.level.Load())
		if sl.Group == universe.Intensity && v == 0 {
			continue
		}
		ua.Write(sl.Address, v, sl.Group)
	}
}
