package broadcast

// The bus fans typed change events out to every observer attached to a
// session. Delivery is best-effort and fire-and-forget: an observer whose
// channel is not deliverable is silently skipped, never retried or buffered.
// Membership and element storage have independent lifetimes; when the last
// observer of a session detaches only the membership set is discarded.

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/0xArtex/excalidraw-mcp/pkg/stores"
)

// Observer is one connected real-time client. Send must never block; it
// reports whether the event was accepted for delivery.
type Observer interface {
	Send(evt Event) bool
}

type Bus struct {
	mu        sync.RWMutex
	observers map[string]map[Observer]struct{}
}

func NewBus() *Bus {
	return &Bus{observers: make(map[string]map[Observer]struct{})}
}

/*
Attach registers an observer with a session and sends the mandatory preamble
before anything else: a session-identity event, a full snapshot of every
stored element, and the current element count. The bus lock is held across
the preamble so no live event can interleave with it.
*/
func (b *Bus) Attach(session *stores.Session, obs Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// snapshot under the bus lock: an element committed after this point is
	// published only once this observer is registered, so nothing is missed
	snapshot := session.Snapshot()
	count := len(snapshot)

	obs.Send(SessionInfo(session.ID, session.CreatedAt))
	obs.Send(InitialElements(session.ID, snapshot))
	obs.Send(SyncStatus(session.ID, count))

	set, ok := b.observers[session.ID]
	if !ok {
		set = make(map[Observer]struct{})
		b.observers[session.ID] = set
	}
	set[obs] = struct{}{}

	log.Info("observer attached", "session_id", session.ID, "observers", len(set))
}

// Detach removes the observer; the membership set is discarded when the last
// observer leaves.
func (b *Bus) Detach(sessionID string, obs Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.observers[sessionID]
	if !ok {
		return
	}
	delete(set, obs)
	if len(set) == 0 {
		delete(b.observers, sessionID)
	}

	log.Info("observer detached", "session_id", sessionID, "observers", len(set))
}

// Publish delivers evt to every observer currently attached to the session.
func (b *Bus) Publish(sessionID string, evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for obs := range b.observers[sessionID] {
		if !obs.Send(evt) {
			// slow or dead observer, dropped
			log.Debug("event dropped", "session_id", sessionID, "type", evt.Type)
		}
	}
}

// ObserverCount reports the number of live observers across all sessions.
func (b *Bus) ObserverCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, set := range b.observers {
		total += len(set)
	}
	return total
}

// SessionObserverCount reports the number of observers of one session.
func (b *Bus) SessionObserverCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers[sessionID])
}
