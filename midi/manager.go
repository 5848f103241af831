package midi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-lightdesk/debug"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller *FaderController
	Binding    Binding
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// Binding selects input ports by name and says what their controls drive
type Binding struct {
	PortName string // case-insensitive substring of the port name
	Mappings []Mapping
}

func (b Binding) matches(port string) bool {
	return b.PortName != "" && strings.Contains(strings.ToLower(port), strings.ToLower(b.PortName))
}

// DeviceManager handles hot-plug detection of MIDI controllers
type DeviceManager struct {
	bindings    []Binding
	controllers map[string]*FaderController
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
	scanTimeout time.Duration
	log         zerolog.Logger

	listPorts func() []string
	open      func(name string) (*FaderController, error)
}

// NewDeviceManager creates a device manager for bindings
func NewDeviceManager(bindings []Binding) *DeviceManager {
	return &DeviceManager{
		bindings:    bindings,
		controllers: make(map[string]*FaderController),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		scanTimeout: 3 * time.Second,
		log:         debug.Logger("midi"),
		listPorts:   inPortNames,
		open:        OpenFaderController,
	}
}

// InPorts lists the names of the MIDI input ports
func InPorts() []string {
	return inPortNames()
}

func inPortNames() []string {
	var names []string
	for _, p := range gomidi.GetInPorts() {
		names = append(names, p.String())
	}
	return names
}

// OpenFaderController opens the input port called name
func OpenFaderController(name string) (*FaderController, error) {
	in, err := gomidi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("find input %q: %w", name, err)
	}
	return NewFaderController(name, in)
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]*FaderController {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make(map[string]*FaderController, len(dm.controllers))
	for k, v := range dm.controllers {
		out[k] = v
	}
	return out
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) error {
	defer close(dm.events)
	defer dm.closeAll()

	if len(dm.bindings) == 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func (dm *DeviceManager) scan(ctx context.Context) {
	// Port enumeration can hang inside the driver
	ch := make(chan []string, 1)
	go func() {
		ch <- dm.listPorts()
	}()

	var ports []string
	select {
	case ports = <-ch:
	case <-time.After(dm.scanTimeout):
		dm.log.Warn().Dur("timeout", dm.scanTimeout).Msg("midi port scan timed out")
		return
	case <-ctx.Done():
		return
	}

	seenIDs := make(map[string]bool)
	for _, id := range ports {
		b, ok := dm.bindingFor(id)
		if !ok {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		ctrl, err := dm.open(id)
		if err != nil {
			debug.Log("midi", "open %s failed: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = ctrl
		dm.mu.Unlock()

		dm.log.Info().Str("port", id).Msg("controller connected")
		dm.emit(ctx, DeviceEvent{
			Type:       DeviceConnected,
			Controller: ctrl,
			Binding:    b,
			ID:         id,
		})
	}

	// Check for disconnects
	dm.mu.Lock()
	var gone []DeviceEvent
	for id, c := range dm.controllers {
		if seenIDs[id] {
			continue
		}
		c.Close()
		delete(dm.controllers, id)
		gone = append(gone, DeviceEvent{Type: DeviceDisconnected, Controller: c, ID: id})
	}
	dm.mu.Unlock()

	for _, ev := range gone {
		dm.log.Info().Str("port", ev.ID).Msg("controller disconnected")
		dm.emit(ctx, ev)
	}
}

func (dm *DeviceManager) bindingFor(port string) (Binding, bool) {
	for _, b := range dm.bindings {
		if b.matches(port) {
			return b, true
		}
	}
	return Binding{}, false
}

func (dm *DeviceManager) emit(ctx context.Context, ev DeviceEvent) {
	select {
	case dm.events <- ev:
	case <-ctx.Done():
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]*FaderController)
}
