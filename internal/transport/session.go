package transport

import (
	"sync"

	"github.com/rawblock/landkeeper/internal/dirty"
	"github.com/rawblock/landkeeper/internal/ids"
)

// SessionLifecycle is one session's connection state machine.
type SessionLifecycle int

const (
	Unauthenticated SessionLifecycle = iota
	Authenticating
	Bound
	Draining
	Closed
)

func (s SessionLifecycle) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Bound:
		return "bound"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// session is one transport connection's adapter-side bookkeeping: its
// lifecycle state, the player it's bound to (once joined), its accumulated
// pending diff, and simple byte-based backpressure tracking.
type session struct {
	mu sync.Mutex

	id     ids.SessionID
	client ids.ClientID
	player ids.PlayerID

	state     SessionLifecycle
	transport Transport

	pending []dirty.Entry
	stale   bool

	outboundBytes int
}

func newSession(id ids.SessionID, client ids.ClientID, t Transport) *session {
	return &session{id: id, client: client, state: Unauthenticated, transport: t}
}

func (s *session) bind(player ids.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = player
	s.state = Bound
}

func (s *session) appendPending(entries []dirty.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		// Dropped: the session is already over its outbound-queue budget.
		// It stays stale until a flush finds the queue drained, at which
		// point it gets a fresh firstSync instead of this partial diff.
		return
	}
	s.pending = append(s.pending, entries...)
}

func (s *session) takePending() []dirty.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

func (s *session) markStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
	s.pending = nil
}

func (s *session) drainedAndStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale && s.outboundBytes == 0
}

func (s *session) clearStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = false
}

func (s *session) recordSend(n int, queueMax int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if queueMax > 0 && s.outboundBytes+n > queueMax {
		return false
	}
	s.outboundBytes += n
	return true
}

func (s *session) ackSend(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outboundBytes -= n
	if s.outboundBytes < 0 {
		s.outboundBytes = 0
	}
}

func (s *session) setState(st SessionLifecycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *session) getState() SessionLifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
