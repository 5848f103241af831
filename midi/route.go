package midi

import (
	"context"

	"go-lightdesk/engine"
)

// Registry is where connected controllers are registered as DMX sources
type Registry interface {
	RegisterDMXSource(src engine.DMXSource)
	UnregisterDMXSource(src engine.DMXSource)
}

// Route registers a FaderSource for every controller that connects and
// unregisters it when the controller goes away. Each connected
// controller's CC events are drained into onCC (which may be nil) until
// the controller is closed. Route returns when events is closed or ctx is
// done.
func Route(ctx context.Context, events <-chan DeviceEvent, reg Registry, onCC func(CCEvent)) {
	sources := make(map[string]*FaderSource)
	defer func() {
		for _, src := range sources {
			reg.UnregisterDMXSource(src)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case DeviceConnected:
				if old, ok := sources[ev.ID]; ok {
					reg.UnregisterDMXSource(old)
				}
				src := NewFaderSource(ev.Controller, ev.Binding.Mappings)
				sources[ev.ID] = src
				reg.RegisterDMXSource(src)
				if ev.Controller != nil {
					go drain(ev.Controller, onCC)
				}
			case DeviceDisconnected:
				if src, ok := sources[ev.ID]; ok {
					reg.UnregisterDMXSource(src)
					delete(sources, ev.ID)
				}
			}
		}
	}
}

// drain consumes control changes until the controller closes its channel
func drain(fc *FaderController, onCC func(CCEvent)) {
	for ev := range fc.CCEvents() {
		if onCC != nil {
			onCC(ev)
		}
	}
}
