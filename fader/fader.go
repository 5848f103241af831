package fader

import (
	"sync"

	"go-lightdesk/universe"
)

// FadeChannel is a single channel moving from Start to Target over FadeTimeMs
type FadeChannel struct {
	Address    int
	Group      universe.Group
	Start      uint8
	Target     uint8
	Current    uint8
	FadeTimeMs int
	ElapsedMs  int
}

// NextStep advances the fade by one tick and returns the new value
func (fc *FadeChannel) NextStep(tickMs int) uint8 {
	if fc.ElapsedMs < fc.FadeTimeMs {
		fc.ElapsedMs += tickMs
	}
	return fc.Calculate()
}

// Calculate sets Current from the elapsed time without advancing
func (fc *FadeChannel) Calculate() uint8 {
	if fc.FadeTimeMs <= 0 || fc.ElapsedMs >= fc.FadeTimeMs {
		fc.Current = fc.Target
		return fc.Current
	}
	delta := int(fc.Target) - int(fc.Start)
	fc.Current = uint8(int(fc.Start) + delta*fc.ElapsedMs/fc.FadeTimeMs)
	return fc.Current
}

// Done reports whether the fade has reached its target time
func (fc *FadeChannel) Done() bool {
	return fc.FadeTimeMs <= 0 || fc.ElapsedMs >= fc.FadeTimeMs
}

// GenericFader fades channels that no Function drives anymore.
//
// Functions hand their intensity channels to the fader when they stop so
// that HTP channels fade out instead of snapping to zero. The scheduler
// calls Write once per tick after every Function and DMX source has
// written. Add and Remove may be called from any goroutine, including
// from inside a Function's Write.
type GenericFader struct {
	mu       sync.Mutex
	channels map[int]*FadeChannel
	tickMs   int
}

// New creates a fader that advances tickMs per Write
func New(tickMs int) *GenericFader {
	if tickMs < 1 {
		tickMs = 1
	}
	return &GenericFader{
		channels: make(map[int]*FadeChannel),
		tickMs:   tickMs,
	}
}

// Add queues a fade. If an intensity channel is already fading from a
// higher value, the new fade starts from that value instead.
func (f *GenericFader) Add(fc FadeChannel) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if old, ok := f.channels[fc.Address]; ok && fc.Group == universe.Intensity {
		if old.Current > fc.Start {
			fc.Start = old.Current
		}
	}
	fc.Current = fc.Start
	f.channels[fc.Address] = &fc
}

// Remove drops the fade on address, if any
func (f *GenericFader) Remove(address int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, address)
}

// RemoveAll drops every fade
func (f *GenericFader) RemoveAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.channels)
}

// Count returns the number of channels being faded
func (f *GenericFader) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

// Channel returns a copy of the fade on address
func (f *GenericFader) Channel(address int) (FadeChannel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fc, ok := f.channels[address]
	if !ok {
		return FadeChannel{}, false
	}
	return *fc, true
}

// Write advances every fade by one tick and writes the result into ua.
// Finished intensity fades at zero and finished LTP fades are dropped.
func (f *GenericFader) Write(ua *universe.Array) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for addr, fc := range f.channels {
		v := fc.NextStep(f.tickMs)
		ua.Write(addr, v, fc.Group)

		if !fc.Done() {
			continue
		}
		if fc.Group != universe.Intensity || v == 0 {
			delete(f.channels, addr)
		}
	}
}
