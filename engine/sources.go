package engine

import (
	"fmt"
	"slices"

	"go-lightdesk/universe"
)

// sourceRequest is a pending register (add) or unregister (!add)
type sourceRequest struct {
	src DMXSource
	add bool
}

// RegisterDMXSource adds src to the sources written every tick, starting
// with the next source stage. Each source is registered at most once;
// registering it again is a no-op. Safe to call from any goroutine,
// including from inside a WriteDMX or a Function's Write.
func (s *Scheduler) RegisterDMXSource(src DMXSource) {
	if src == nil {
		return
	}

	s.srcReqMu.Lock()
	defer s.srcReqMu.Unlock()

	if _, ok := s.srcMembers[src]; ok {
		return
	}
	s.srcMembers[src] = struct{}{}
	s.srcRequests = append(s.srcRequests, sourceRequest{src: src, add: true})
	s.metrics.SetDMXSources(len(s.srcMembers))
}

// UnregisterDMXSource removes src. Once it returns no new WriteDMX call
// on src begins, even within a tick that is already running. Unknown
// sources are ignored. Safe to call from any goroutine, including from
// src's own WriteDMX.
func (s *Scheduler) UnregisterDMXSource(src DMXSource) {
	s.srcReqMu.Lock()
	defer s.srcReqMu.Unlock()

	if _, ok := s.srcMembers[src]; !ok {
		return
	}
	delete(s.srcMembers, src)
	s.srcRequests = append(s.srcRequests, sourceRequest{src: src})
	s.metrics.SetDMXSources(len(s.srcMembers))
}

// DMXSources returns the number of registered sources
func (s *Scheduler) DMXSources() int {
	s.srcReqMu.Lock()
	defer s.srcReqMu.Unlock()
	return len(s.srcMembers)
}

// timerTickDMXSources applies pending registrations, then writes every
// registered source into ua. A source that panics is unregistered.
func (s *Scheduler) timerTickDMXSources(ua *universe.Array) {
	s.srcMu.Lock()
	defer s.srcMu.Unlock()

	s.applySourceRequests()

	var failed []DMXSource
	for _, src := range s.sources {
		if !s.sourceRegistered(src) {
			continue
		}
		if !s.writeSource(src, ua) {
			failed = append(failed, src)
		}
	}
	for _, src := range failed {
		s.UnregisterDMXSource(src)
	}
}

// applySourceRequests folds queued requests into the source list. Called
// with srcMu held.
func (s *Scheduler) applySourceRequests() {
	s.srcReqMu.Lock()
	reqs := s.srcRequests
	s.srcRequests = nil
	s.srcReqMu.Unlock()

	for _, r := range reqs {
		idx := slices.Index(s.sources, r.src)
		switch {
		case r.add && idx < 0:
			s.sources = append(s.sources, r.src)
		case !r.add && idx >= 0:
			s.sources = slices.Delete(s.sources, idx, idx+1)
		}
	}
}

// sourceRegistered catches unregistrations made earlier in this stage
func (s *Scheduler) sourceRegistered(src DMXSource) bool {
	s.srcReqMu.Lock()
	defer s.srcReqMu.Unlock()
	_, ok := s.srcMembers[src]
	return ok
}

func (s *Scheduler) writeSource(src DMXSource, ua *universe.Array) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.metrics.ProducerPanic("source")
			if s.warn.Allow() {
				s.log.Error().
					Str("source", fmt.Sprintf("%T", src)).
					Interface("panic", r).
					Msg("dmx source panicked, unregistering")
			}
		}
	}()
	src.WriteDMX(ua)
	return true
}
