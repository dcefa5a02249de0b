package stores

// Registry owns the mapping from session id to session state. It is an
// in-memory store: sessions expire on inactivity and nothing survives a
// process restart.

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/0xArtex/excalidraw-mcp/pkg/idgen"
)

// Sessions count as active when touched within this rolling window.
const activeWindow = 30 * time.Minute

type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Finalized int `json:"finalized"`
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	gen      *idgen.Generator

	sweepOnce sync.Once
	stop      chan struct{}
}

func NewRegistry(gen *idgen.Generator) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		gen:      gen,
		stop:     make(chan struct{}),
	}
}

/*
Create allocates a new session, or returns the live session unchanged when
the optional id already names one. Callers must not assume the result is a
fresh, empty session.
*/
func (r *Registry) Create(optionalID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if optionalID != "" {
		if existing, ok := r.sessions[optionalID]; ok {
			existing.Touch()
			return existing
		}
	}

	id := optionalID
	if id == "" {
		id = r.gen.Next()
	}

	session := newSession(id, r.gen)
	r.sessions[id] = session

	log.Info("session created", "session_id", id)
	return session
}

// Get refreshes the activity timestamp on success.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}
	session.Touch()
	return session, true
}

func (r *Registry) GetOrCreate(id string) *Session {
	if session, ok := r.Get(id); ok {
		return session
	}
	return r.Create(id)
}

// Delete removes the session and its element table; it reports whether the
// session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)

	log.Info("session deleted", "session_id", id)
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Total: len(r.sessions)}
	cutoff := time.Now().Add(-activeWindow)
	for _, session := range r.sessions {
		if session.LastActivity().After(cutoff) {
			stats.Active++
		}
		if session.IsFinalized() {
			stats.Finalized++
		}
	}
	return stats
}

/*
Sweep deletes every session whose last activity is older than ttl and
returns the number evicted. Eviction implicitly forgets the element table;
live observers of an evicted session simply stop receiving events.
*/
func (r *Registry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	evicted := 0
	for id, session := range r.sessions {
		if session.LastActivity().Before(cutoff) {
			delete(r.sessions, id)
			evicted++
			log.Info("session expired", "session_id", id, "ttl", ttl)
		}
	}
	return evicted
}

// StartSweeper runs Sweep on a fixed interval for the lifetime of the
// process. Safe to call once; StopSweeper releases the goroutine.
func (r *Registry) StartSweeper(interval, ttl time.Duration) {
	r.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					if n := r.Sweep(ttl); n > 0 {
						log.Info("session sweep", "evicted", n)
					}
				case <-r.stop:
					return
				}
			}
		}()
	})
}

func (r *Registry) StopSweeper() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
}
