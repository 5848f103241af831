package midi

import (
	"go-lightdesk/universe"
)

// Mapping binds a MIDI control to a DMX address
type Mapping struct {
	Channel uint8
	CC      uint8
	Address int
}

// FaderSource is a DMX source that writes the controls of one controller.
// Controls that never moved write nothing.
type FaderSource struct {
	ctrl     *FaderController
	mappings []Mapping
}

// NewFaderSource creates a source for ctrl
func NewFaderSource(ctrl *FaderController, mappings []Mapping) *FaderSource {
	return &FaderSource{ctrl: ctrl, mappings: mappings}
}

// Controller returns the controller the source reads from
func (fs *FaderSource) Controller() *FaderController {
	return fs.ctrl
}

// WriteDMX writes every mapped control into ua using the channel's
// patched merge group
func (fs *FaderSource) WriteDMX(ua *universe.Array) {
	for _, m := range fs.mappings {
		v, ok := fs.ctrl.Value(m.Channel, m.CC)
		if !ok {
			continue
		}
		ua.Write(m.Address, Scale(v), ua.GroupOf(m.Address))
	}
}

// Scale maps a 7-bit MIDI value onto the full DMX range
func Scale(v uint8) uint8 {
	v &= 0x7F
	return v<<1 | v>>6
}
