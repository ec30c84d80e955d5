package realtime

import (
	"errors"
	"sync"

	"bustrack-backend/internal/auth"
)

// ErrDuplicateConnection is returned when a connection id is already registered.
var ErrDuplicateConnection = errors.New("connection id already registered")

// sendBuffer bounds the per-connection outbound queue. A client that cannot
// drain it in time is dropped rather than allowed to stall the fan-out.
const sendBuffer = 64

// Session is one authenticated transport session. The registry owns it from
// successful authentication until disconnect.
type Session struct {
	ID       string
	Identity auth.Identity

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session for a verified identity.
func NewSession(id string, identity auth.Identity) *Session {
	return &Session{
		ID:       id,
		Identity: identity,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// Push queues a payload for delivery without blocking. It reports false when
// the session is closed or its buffer is full; delivery is at-most-once and
// the caller decides what to do with a slow consumer.
func (s *Session) Push(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Outbox is the channel the transport's write loop drains.
func (s *Session) Outbox() <-chan []byte {
	return s.send
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close marks the session closed. Idempotent; queued payloads not yet written
// to the wire are discarded by the transport.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// SessionRegistry tracks each live connection by id. Pure in-memory state,
// safe for concurrent use.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Register adds the session, failing with ErrDuplicateConnection when the id
// is already in use.
func (r *SessionRegistry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return ErrDuplicateConnection
	}
	r.sessions[s.ID] = s
	return nil
}

// Lookup returns the session for the id, if registered.
func (r *SessionRegistry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Deregister removes and returns the session. Deregistering an unknown id is
// a no-op and returns nil.
func (r *SessionRegistry) Deregister(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[id]
	delete(r.sessions, id)
	return s
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
