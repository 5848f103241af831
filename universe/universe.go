package universe

import (
	"sync/atomic"
)

// Size is the number of channels in one DMX universe
const Size = 512

// Group classifies a channel for merge purposes
type Group uint8

const (
	// Intensity channels merge highest-takes-precedence and are scaled
	// by the grand master
	Intensity Group = iota
	// Other channels (pan, tilt, colour wheels...) merge latest-takes-precedence
	Other
)

// Address returns the absolute channel address for a universe/channel pair.
// Both are zero-based.
func Address(universe, channel int) int {
	return universe*Size + channel
}

// Split is the inverse of Address
func Split(address int) (universe, channel int) {
	return address / Size, address % Size
}

// GrandMaster holds the global intensity master value (0-255).
// Safe for concurrent use.
type GrandMaster struct {
	value atomic.Uint32
}

// NewGrandMaster creates a grand master at full
func NewGrandMaster() *GrandMaster {
	gm := &GrandMaster{}
	gm.value.Store(255)
	return gm
}

// Value returns the current master value
func (gm *GrandMaster) Value() uint8 {
	return uint8(gm.value.Load())
}

// SetValue sets the master value
func (gm *GrandMaster) SetValue(v uint8) {
	gm.value.Store(uint32(v))
}

// Array is the per-tick channel buffer covering one or more universes.
//
// An Array is owned by the tick goroutine: producers write into it while
// a tick is running and the output stage reads it once the tick has
// composed every producer. It is not safe for concurrent use.
type Array struct {
	preGM     []byte
	postGM    []byte
	groups    []Group
	universes int
	gm        *GrandMaster
}

// NewArray creates a buffer of n universes. Every channel starts as an
// intensity channel; use SetGroup to patch LTP channels.
func NewArray(n int, gm *GrandMaster) *Array {
	if n < 1 {
		n = 1
	}
	if gm == nil {
		gm = NewGrandMaster()
	}
	return &Array{
		preGM:     make([]byte, n*Size),
		postGM:    make([]byte, n*Size),
		groups:    make([]Group, n*Size),
		universes: n,
		gm:        gm,
	}
}

// Universes returns the number of universes in the buffer
func (a *Array) Universes() int {
	return a.universes
}

// Size returns the total number of channels
func (a *Array) Size() int {
	return len(a.preGM)
}

// GrandMaster returns the master the buffer scales intensity with
func (a *Array) GrandMaster() *GrandMaster {
	return a.gm
}

// SetGroup patches the merge group of a channel
func (a *Array) SetGroup(address int, g Group) {
	if address < 0 || address >= len(a.groups) {
		return
	}
	a.groups[address] = g
}

// GroupOf returns the patched group of a channel
func (a *Array) GroupOf(address int) Group {
	if address < 0 || address >= len(a.groups) {
		return Other
	}
	return a.groups[address]
}

// Write sets a channel value. Intensity writes only take effect when the
// value is higher than what is already in the buffer this tick.
// Returns false when the address is out of range.
func (a *Array) Write(address int, value uint8, g Group) bool {
	if address < 0 || address >= len(a.preGM) {
		return false
	}
	if g == Intensity && value < a.preGM[address] {
		return true
	}
	a.preGM[address] = value
	return true
}

// Read returns the value of a channel before the grand master is applied
func (a *Array) Read(address int) uint8 {
	if address < 0 || address >= len(a.preGM) {
		return 0
	}
	return a.preGM[address]
}

// ZeroIntensityChannels resets every intensity channel so that HTP
// composition starts from zero. LTP values persist between ticks.
func (a *Array) ZeroIntensityChannels() {
	for i, g := range a.groups {
		if g == Intensity {
			a.preGM[i] = 0
		}
	}
}

// Reset zeroes every channel
func (a *Array) Reset() {
	clear(a.preGM)
	clear(a.postGM)
}

// PostGM returns universe u with the grand master applied to intensity
// channels. The returned slice aliases the buffer and is only valid until
// the next tick.
func (a *Array) PostGM(u int) []byte {
	if u < 0 || u >= a.universes {
		return nil
	}
	start, end := u*Size, (u+1)*Size
	gm := uint32(a.gm.Value())
	for i := start; i < end; i++ {
		v := a.preGM[i]
		if a.groups[i] == Intensity && gm < 255 {
			v = uint8(uint32(v) * gm / 255)
		}
		a.postGM[i] = v
	}
	return a.postGM[start:end]
}

// CopyPostGM writes every universe, grand master applied, into dst and
// returns the number of bytes copied
func (a *Array) CopyPostGM(dst []byte) int {
	n := 0
	for u := 0; u < a.universes && n < len(dst); u++ {
		n += copy(dst[n:], a.PostGM(u))
	}
	return n
}
