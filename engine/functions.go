package engine

import (
	"go-lightdesk/universe"
)

// fadeSequence is the state of an active fade-and-stop-all
type fadeSequence struct {
	active      bool
	totalMs     int
	remainingMs int
	original    uint8
}

// fadeRequest is a fade-and-stop-all waiting for the next tick
type fadeRequest struct {
	pending   bool
	timeoutMs int
	snapshot  uint8
}

// StartFunction queues f to start running on the next tick. A function
// that is already queued or running is ignored. Safe to call from any
// goroutine, including from inside a Function's Write.
func (s *Scheduler) StartFunction(f Function) {
	if f == nil {
		return
	}

	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if _, ok := s.members[f]; ok {
		return
	}
	s.members[f] = struct{}{}
	s.startQueue = append(s.startQueue, f)
}

// StopAllFunctions stops every running and queued function on the next
// tick. Registered DMX sources are not affected.
func (s *Scheduler) StopAllFunctions() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.stopAll = true
	s.fadeReq = fadeRequest{}
}

// FadeAndStopAll dims the grand master to zero over timeoutMs, then stops
// every function and restores the master to its value at call time.
// A timeout of zero or less stops everything on the next tick.
func (s *Scheduler) FadeAndStopAll(timeoutMs int) {
	if timeoutMs <= 0 {
		s.StopAllFunctions()
		return
	}

	snapshot := s.gm.Value()

	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if s.stopAll {
		return
	}
	s.fadeReq = fadeRequest{
		pending:   true,
		timeoutMs: timeoutMs,
		snapshot:  snapshot,
	}
}

// RunningFunctions returns the size of the running set as of the last tick
func (s *Scheduler) RunningFunctions() int {
	return int(s.running.Load())
}

// RunningFunctionNames returns the names of the running functions as of
// the last tick
func (s *Scheduler) RunningFunctionNames() []string {
	names := *s.names.Load()
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// OnFunctionListChanged registers fn to be called after any tick in which
// the running set changed. fn runs on the tick goroutine with no scheduler
// lock held, at most once per tick.
func (s *Scheduler) OnFunctionListChanged(fn func()) {
	if fn == nil {
		return
	}
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Scheduler) emitFunctionListChanged() {
	s.metrics.ListChanged()

	s.listenersMu.Lock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		s.callListener(fn)
	}
}

func (s *Scheduler) callListener(fn func()) {
	defer func() {
		if r := recover(); r != nil && s.warn.Allow() {
			s.log.Error().Interface("panic", r).Msg("function list listener panicked")
		}
	}()
	fn()
}

// takeRequests drains everything queued since the previous tick
func (s *Scheduler) takeRequests() (stopAll bool, fade fadeRequest, queue []Function) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	stopAll = s.stopAll
	fade = s.fadeReq
	queue = s.startQueue

	s.stopAll = false
	s.fadeReq = fadeRequest{}
	s.startQueue = nil
	if stopAll {
		clear(s.members)
	}
	return stopAll, fade, queue
}

// forget removes finished functions from the membership index
func (s *Scheduler) forget(fs []Function) {
	if len(fs) == 0 {
		return
	}
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	for _, f := range fs {
		delete(s.members, f)
	}
}

// timerTickFunctions runs the function stage of a tick and reports
// whether the running set changed
func (s *Scheduler) timerTickFunctions(ua *universe.Array) (changed bool) {
	s.fnMu.Lock()
	defer s.fnMu.Unlock()
	defer func() {
		if changed {
			s.publishRunning()
		}
	}()

	// A fade-and-stop-all completed on the previous tick
	restored := s.restoreGrandMaster()

	stopAll, fadeReq, queue := s.takeRequests()

	if stopAll {
		if s.fade.active {
			s.gm.SetValue(s.fade.original)
			s.fade = fadeSequence{}
		}
		changed = len(s.functions) > 0
		s.stopFunctions(s.functions)
		s.stopFunctions(queue)
		s.functions = nil
		return changed
	}

	if fadeReq.pending {
		switch {
		case s.fade.active:
			// keep the original master of the fade already running
		case restored:
			s.fade.original = s.restoreValue
		default:
			s.fade.original = fadeReq.snapshot
		}
		s.fade.active = true
		s.fade.totalMs = fadeReq.timeoutMs
		s.fade.remainingMs = fadeReq.timeoutMs
	}

	if s.fade.active {
		s.fade.remainingMs -= s.tickMs
		if s.fade.remainingMs <= 0 {
			changed = len(s.functions) > 0
			s.fadeSequenceCompleted(queue)
			return changed
		}
		s.gm.SetValue(s.curve(s.fade.original, s.fade.remainingMs, s.fade.totalMs))
	}

	if len(queue) > 0 {
		s.functions = append(s.functions, queue...)
		changed = true
	}

	var finished []Function
	kept := s.functions[:0]
	for _, f := range s.functions {
		if s.writeFunction(f, ua) {
			kept = append(kept, f)
			continue
		}
		finished = append(finished, f)
	}
	clear(s.functions[len(kept):])
	s.functions = kept

	if len(finished) > 0 {
		s.forget(finished)
		changed = true
	}
	return changed
}

// fadeSequenceCompleted stops everything and leaves the master at zero for
// this tick; the original value is restored at the start of the next one.
func (s *Scheduler) fadeSequenceCompleted(queue []Function) {
	s.gm.SetValue(0)
	s.stopFunctions(s.functions)
	s.stopFunctions(queue)
	s.forget(s.functions)
	s.forget(queue)
	if len(s.functions) > 0 {
		s.log.Info().Int("functions", len(s.functions)).Msg("fade and stop all completed")
	}
	s.functions = nil

	s.restorePending = true
	s.restoreValue = s.fade.original
	s.fade = fadeSequence{}
}

// restoreGrandMaster applies the master value saved by a completed fade.
// Called with fnMu held.
func (s *Scheduler) restoreGrandMaster() bool {
	if !s.restorePending {
		return false
	}
	s.gm.SetValue(s.restoreValue)
	s.restorePending = false
	return true
}

func (s *Scheduler) stopFunctions(fs []Function) {
	for _, f := range fs {
		s.stopFunction(f)
	}
}

func (s *Scheduler) stopFunction(f Function) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.ProducerPanic("function")
			if s.warn.Allow() {
				s.log.Error().Str("function", f.Name()).Interface("panic", r).Msg("function panicked while stopping")
			}
		}
	}()
	f.Stop()
}

// writeFunction runs one Function's tick. A panicking function counts as
// finished.
func (s *Scheduler) writeFunction(f Function, ua *universe.Array) (running bool) {
	defer func() {
		if r := recover(); r != nil {
			running = false
			s.metrics.ProducerPanic("function")
			if s.warn.Allow() {
				s.log.Error().Str("function", f.Name()).Interface("panic", r).Msg("function panicked, removing")
			}
		}
	}()
	return f.Write(ua)
}

// publishRunning refreshes the lock-free view of the running set
func (s *Scheduler) publishRunning() {
	s.running.Store(int64(len(s.functions)))
	s.metrics.SetRunningFunctions(len(s.functions))

	names := make([]string, len(s.functions))
	for i, f := range s.functions {
		names[i] = f.Name()
	}
	s.names.Store(&names)
}
