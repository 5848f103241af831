package midi

import (
	"fmt"
	"sync"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-lightdesk/debug"
)

// CCEvent is sent when a control change arrives
type CCEvent struct {
	Controller string
	Channel    uint8
	CC         uint8
	Value      uint8
}

// FaderController listens to a fader box and remembers the last value of
// every (channel, cc) pair. Values are read lock-free from the tick
// goroutine.
type FaderController struct {
	id       string
	inPort   drivers.In
	stopFunc func()

	// value+1, zero means never received
	values [16][128]atomic.Uint32

	mu     sync.RWMutex
	closed bool
	ccChan chan CCEvent
}

// NewFaderController opens inPort and starts decoding Control Change
// messages. A nil port gives a controller that only receives what is
// passed to Handle.
func NewFaderController(id string, inPort drivers.In) (*FaderController, error) {
	fc := &FaderController{
		id:     id,
		inPort: inPort,
		ccChan: make(chan CCEvent, 32),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			fc.Handle(msg)
		})
		if err != nil {
			return nil, fmt.Errorf("open input %q: %w", id, err)
		}
		fc.stopFunc = stop
	}

	return fc, nil
}

// ID returns the port name the controller was opened on
func (fc *FaderController) ID() string {
	return fc.id
}

// CCEvents returns the channel of incoming control changes. Events are
// dropped when nobody keeps up.
func (fc *FaderController) CCEvents() <-chan CCEvent {
	return fc.ccChan
}

// Handle decodes one message
func (fc *FaderController) Handle(msg gomidi.Message) {
	var channel, cc, value uint8
	if !msg.GetControlChange(&channel, &cc, &value) {
		return
	}
	fc.values[channel&0x0F][cc&0x7F].Store(uint32(value) + 1)

	fc.mu.RLock()
	defer fc.mu.RUnlock()
	if fc.closed {
		return
	}
	select {
	case fc.ccChan <- CCEvent{Controller: fc.id, Channel: channel, CC: cc, Value: value}:
	default:
		debug.LogEvery(100, "midi", "cc event dropped on %s", fc.id)
	}
}

// Value returns the last value received on (channel, cc)
func (fc *FaderController) Value(channel, cc uint8) (uint8, bool) {
	v := fc.values[channel&0x0F][cc&0x7F].Load()
	if v == 0 {
		return 0, false
	}
	return uint8(v - 1), true
}

// Close stops listening and closes the event channel
func (fc *FaderController) Close() error {
	if fc.stopFunc != nil {
		fc.stopFunc()
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.closed {
		return nil
	}
	fc.closed = true
	close(fc.ccChan)
	return nil
}
