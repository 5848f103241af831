package output

import (
	"sync"

	"go-lightdesk/universe"
)

// Stage receives a completed buffer once per tick
type Stage interface {
	Dump(ua *universe.Array)
}

// Monitor keeps the latest post grand master frame for display
type Monitor struct {
	mu     sync.RWMutex
	frame  []byte
	master uint8
	frames uint64
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Dump records the frame
func (m *Monitor) Dump(ua *universe.Array) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := ua.Universes() * universe.Size; len(m.frame) != n {
		m.frame = make([]byte, n)
	}
	ua.CopyPostGM(m.frame)
	m.master = ua.GrandMaster().Value()
	m.frames++
}

// Snapshot returns a copy of the latest frame
func (m *Monitor) Snapshot() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]byte, len(m.frame))
	copy(out, m.frame)
	return out
}

// Level returns one channel of the latest frame
func (m *Monitor) Level(address int) uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if address < 0 || address >= len(m.frame) {
		return 0
	}
	return m.frame[address]
}

// Master returns the grand master value of the latest frame
func (m *Monitor) Master() uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.master
}

// Frames returns the number of frames seen
func (m *Monitor) Frames() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frames
}

// Tee fans one buffer out to several stages in order
type Tee []Stage

// Dump forwards ua to every stage
func (t Tee) Dump(ua *universe.Array) {
	for _, s := range t {
		if s != nil {
			s.Dump(ua)
		}
	}
}
