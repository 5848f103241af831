// Package engine runs the fixed-frequency tick loop of the desk.
//
// Once per tick the Scheduler composes, in order, every running Function,
// every registered DMX source and the generic fader into one universe
// buffer, then hands the buffer to the output stage.
//
// Lock order: fnMu before queueMu, srcMu before srcReqMu. Public request
// methods (StartFunction, StopAllFunctions, FadeAndStopAll) only take
// queueMu, and source registration only takes srcReqMu, so both may be
// called from inside a Function's Write or a source's WriteDMX.
package engine

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"go-lightdesk/debug"
	"go-lightdesk/fader"
	"go-lightdesk/metrics"
	"go-lightdesk/universe"
)

// DefaultFrequency is the tick rate used when none is configured
const DefaultFrequency = 50

// Function is an animation or timeline entity run by the scheduler.
//
// Functions must be comparable (typically pointers): the scheduler uses
// them as set members to reject duplicate starts.
type Function interface {
	Name() string
	// Write produces one tick of output and reports whether the function
	// is still running. Returning false removes it from the running set.
	Write(ua *universe.Array) bool
	// Stop is called when the scheduler forcibly ends the function
	// (stop-all or fade-and-stop-all). It is not called on natural
	// completion.
	Stop()
}

// DMXSource writes direct channel output every tick until unregistered
type DMXSource interface {
	WriteDMX(ua *universe.Array)
}

// OutputStage receives the composed buffer once per tick. Dump must not
// block and must not retain ua after returning.
type OutputStage interface {
	Dump(ua *universe.Array)
}

// FadeCurve maps the fade-and-stop-all countdown to a master value
type FadeCurve func(original uint8, remainingMs, totalMs int) uint8

// LinearFade interpolates linearly from original down to zero
func LinearFade(original uint8, remainingMs, totalMs int) uint8 {
	if totalMs <= 0 || remainingMs <= 0 {
		return 0
	}
	if remainingMs >= totalMs {
		return original
	}
	return uint8(int(original) * remainingMs / totalMs)
}

// Options configures a Scheduler. Everything is fixed for the lifetime of
// the scheduler.
type Options struct {
	Frequency   int // Hz, DefaultFrequency when zero
	Universes   int // 1 when zero
	GrandMaster *universe.GrandMaster
	Output      OutputStage
	Metrics     *metrics.Metrics
	Logger      *zerolog.Logger // debug.Logger("engine") when nil
	FadeCurve   FadeCurve       // LinearFade when nil
}

// Scheduler is the master timer: it owns the tick loop, the running
// function set, the DMX source set and the generic fader.
type Scheduler struct {
	frequency int
	tickMs    int
	interval  time.Duration

	universes *universe.Array
	gm        *universe.GrandMaster
	fader     *fader.GenericFader
	output    OutputStage
	metrics   *metrics.Metrics
	log       zerolog.Logger
	curve     FadeCurve
	warn      *rate.Limiter

	// Lifecycle
	lifeMu sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
	tickMu sync.Mutex // one tick at a time
	ticks  atomic.Uint64

	// Running functions. fnMu is held for the whole function stage.
	fnMu           sync.Mutex
	functions      []Function
	fade           fadeSequence
	restorePending bool
	restoreValue   uint8

	// Requests from any goroutine, consumed at the start of each tick
	queueMu    sync.Mutex
	startQueue []Function
	members    map[Function]struct{} // queued or running
	stopAll    bool
	fadeReq    fadeRequest

	running atomic.Int64
	names   atomic.Pointer[[]string]

	// DMX sources. srcMu is held for the whole source stage; registration
	// goes through srcRequests and is folded in at the start of the stage.
	srcMu       sync.Mutex
	sources     []DMXSource
	srcReqMu    sync.Mutex
	srcMembers  map[DMXSource]struct{}
	srcRequests []sourceRequest

	listenersMu sync.Mutex
	listeners   []func()
}

// New creates a stopped scheduler
func New(opts Options) *Scheduler {
	freq := opts.Frequency
	if freq <= 0 {
		freq = DefaultFrequency
	}
	tickMs := 1000 / freq
	if tickMs < 1 {
		tickMs = 1
	}
	gm := opts.GrandMaster
	if gm == nil {
		gm = universe.NewGrandMaster()
	}
	log := debug.Logger("engine")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	curve := opts.FadeCurve
	if curve == nil {
		curve = LinearFade
	}

	s := &Scheduler{
		frequency: freq,
		tickMs:    tickMs,
		interval:  time.Duration(tickMs) * time.Millisecond,
		universes: universe.NewArray(opts.Universes, gm),
		gm:        gm,
		fader:     fader.New(tickMs),
		output:    opts.Output,
		metrics:   opts.Metrics,
		log:       log,
		curve:     curve,
		warn:      rate.NewLimiter(rate.Every(time.Second), 5),
		members:   make(map[Function]struct{}),

		srcMembers: make(map[DMXSource]struct{}),
	}
	empty := []string{}
	s.names.Store(&empty)
	return s
}

// Frequency returns the tick frequency in Hertz
func (s *Scheduler) Frequency() int {
	return s.frequency
}

// TickMs returns the length of one tick in milliseconds
func (s *Scheduler) TickMs() int {
	return s.tickMs
}

// Fader returns the scheduler's generic fader. Callers must not keep
// their own copy of its state; it is shared by every Function.
func (s *Scheduler) Fader() *fader.GenericFader {
	return s.fader
}

// GrandMaster returns the master value the buffer is scaled with
func (s *Scheduler) GrandMaster() *universe.GrandMaster {
	return s.gm
}

// Universes returns the tick buffer. Only Functions, DMX sources and
// output stages running on the tick goroutine may touch it.
func (s *Scheduler) Universes() *universe.Array {
	return s.universes
}

// Ticks returns the number of ticks executed so far
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Start begins ticking. No-op if already running.
func (s *Scheduler) Start() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.tickLoop(s.stopCh, s.doneCh)

	s.log.Info().Int("frequency", s.frequency).Int("tick_ms", s.tickMs).Msg("master timer started")
}

// Stop halts ticking and returns once the tick loop has exited; no tick
// runs after Stop returns. Running functions and queues are untouched,
// but a grand master left at zero by a completed fade-and-stop-all is
// restored. Must not be called from a tick callback.
func (s *Scheduler) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.stopCh != nil {
		close(s.stopCh)
		<-s.doneCh
		s.stopCh = nil
		s.doneCh = nil
		s.log.Info().Uint64("ticks", s.ticks.Load()).Msg("master timer stopped")
	}

	s.fnMu.Lock()
	s.restoreGrandMaster()
	s.fnMu.Unlock()
}

// Running reports whether the tick loop is active
func (s *Scheduler) Running() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.stopCh != nil
}

// tickLoop drives timerTick at a fixed interval. Missed fires are dropped
// by the ticker, so a slow tick skips rather than queues.
func (s *Scheduler) tickLoop(stop <-chan struct{}, done chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Stop may have raced the ticker
			select {
			case <-stop:
				return
			default:
			}
			s.timerTick()
		}
	}
}

// timerTick executes one complete tick
func (s *Scheduler) timerTick() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := time.Now()
	ua := s.universes
	ua.ZeroIntensityChannels()

	changed := s.timerTickFunctions(ua)
	s.timerTickDMXSources(ua)
	s.timerTickFader(ua)
	s.dump(ua)

	if changed {
		s.emitFunctionListChanged()
	}

	n := s.ticks.Add(1)
	elapsed := time.Since(start)
	overrun := elapsed > s.interval
	s.metrics.ObserveTick(elapsed, overrun)
	if overrun && s.warn.Allow() {
		s.log.Warn().
			Uint64("tick", n).
			Dur("elapsed", elapsed).
			Dur("interval", s.interval).
			Msg("tick overran its interval")
	}
}

// timerTickFader applies queued fades after every producer has written
func (s *Scheduler) timerTickFader(ua *universe.Array) {
	s.fader.Write(ua)
}

func (s *Scheduler) dump(ua *universe.Array) {
	if s.output == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && s.warn.Allow() {
			s.log.Error().Interface("panic", r).Msg("output stage panicked")
		}
	}()
	s.output.Dump(ua)
}
