package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store manages in-memory sessions with a TTL sweep.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a session store. Sessions idle for longer than ttl are
// dropped by a background sweep.
func NewStore(ttl time.Duration) *Store {
	st := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go st.sweep()
	return st
}

// Create registers a new session with the given strict default.
func (st *Store) Create(strictDefault bool) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		Created: time.Now(),
		strict:  strictDefault,
		touched: time.Now(),
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session by ID, or nil.
func (st *Store) Get(id string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// sweep removes sessions idle past the TTL.
func (st *Store) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-st.ttl)
			st.mu.Lock()
			for id, s := range st.sessions {
				s.mu.Lock()
				idle := s.touched.Before(cutoff) && !s.submitting
				s.mu.Unlock()
				if idle {
					delete(st.sessions, id)
				}
			}
			st.mu.Unlock()
		case <-st.done:
			return
		}
	}
}

// Stop signals the sweep goroutine to exit.
func (st *Store) Stop() {
	st.stopOnce.Do(func() { close(st.done) })
}
