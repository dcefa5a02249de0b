package stores

import (
	"sync"
	"time"

	"github.com/0xArtex/excalidraw-mcp/pkg/canvas"
	"github.com/0xArtex/excalidraw-mcp/pkg/errors"
	"github.com/0xArtex/excalidraw-mcp/pkg/idgen"
)

/*
Session is one isolated diagram workspace: an ordered-insertion element table
plus metadata. The registry is the sole owner of all sessions; every surface
goes through these operations, never the table directly. Each session carries
its own lock so writes to different sessions never contend.
*/
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.RWMutex
	lastActivity time.Time
	title        string
	finalized    bool
	imageURL     string
	elements     map[string]*canvas.Element
	order        []string

	gen *idgen.Generator
}

func newSession(id string, gen *idgen.Generator) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		lastActivity: now,
		elements:     make(map[string]*canvas.Element),
		gen:          gen,
	}
}

// Touch refreshes the activity timestamp. Every read or write touching the
// session goes through here.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *Session) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

// SetTitle is last-writer-wins.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	s.title = title
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Finalize marks the session complete and records the rendered artifact URL.
// Finalization is monotonic: once set it never reverts.
func (s *Session) Finalize(imageURL string) {
	s.mu.Lock()
	s.finalized = true
	s.imageURL = imageURL
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) IsFinalized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized
}

func (s *Session) ImageURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imageURL
}

// Snapshot returns every stored element in insertion order.
func (s *Session) Snapshot() []canvas.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]canvas.Element, 0, len(s.order))
	for _, id := range s.order {
		if el, ok := s.elements[id]; ok {
			out = append(out, *el)
		}
	}
	return out
}

func (s *Session) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// Element returns a copy of one element.
func (s *Session) Element(id string) (canvas.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	el, ok := s.elements[id]
	if !ok {
		return canvas.Element{}, errors.NewElementNotFound(id)
	}
	return *el, nil
}

/*
CreateElement validates the request, resolves its id (caller-supplied ids are
honored verbatim so the rendering client can reuse its own local ids) and
inserts a fresh version-1 record.
*/
func (s *Session) CreateElement(req *canvas.CreateRequest, types canvas.TypeSet) (canvas.Element, error) {
	if err := req.Validate(types); err != nil {
		return canvas.Element{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := req.ID
	if id == "" {
		id = s.gen.Next()
	}
	if _, exists := s.elements[id]; exists {
		return canvas.Element{}, errors.NewValidation("id", "element %q already exists", id)
	}

	el := req.Element(id, time.Now())
	s.insertLocked(&el)
	s.lastActivity = el.CreatedAt
	return el, nil
}

// UpdateElement merges the patch over the existing record, incrementing its
// version and refreshing updatedAt.
func (s *Session) UpdateElement(id string, patch *canvas.Patch) (canvas.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.elements[id]
	if !ok {
		return canvas.Element{}, errors.NewElementNotFound(id)
	}

	now := time.Now()
	patch.Apply(el, now)
	s.lastActivity = now
	return *el, nil
}

func (s *Session) DeleteElement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.elements[id]; !ok {
		return errors.NewElementNotFound(id)
	}

	delete(s.elements, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.lastActivity = time.Now()
	return nil
}

/*
BatchCreate validates every item before creating any, so a bad item leaves
the table untouched. Bindings are repaired against the batch plus the
elements already stored.
*/
func (s *Session) BatchCreate(reqs []canvas.CreateRequest, types canvas.TypeSet) ([]canvas.Element, error) {
	for i := range reqs {
		if err := reqs[i].Validate(types); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	created := make([]canvas.Element, 0, len(reqs))
	for i := range reqs {
		id := reqs[i].ID
		if id == "" {
			id = s.gen.Next()
		}
		if _, exists := s.elements[id]; exists {
			return nil, errors.NewValidation("id", "element %q already exists", id)
		}
		created = append(created, reqs[i].Element(id, now))
	}

	existing := make(map[string]struct{}, len(s.elements))
	for id := range s.elements {
		existing[id] = struct{}{}
	}
	canvas.RepairBindingsAgainst(created, existing)

	// insert copies so later updates cannot rewrite the returned slice
	for i := range created {
		el := created[i]
		s.insertLocked(&el)
	}
	s.lastActivity = now
	return created, nil
}

/*
Sync clears the entire table and rebuilds it wholesale from the snapshot.
Every record is stamped version 1 with a fresh syncedAt regardless of any
version the incoming record carried; observers must treat their cached
version numbers as void afterwards.
*/
func (s *Session) Sync(reqs []canvas.CreateRequest, types canvas.TypeSet) (int, error) {
	for i := range reqs {
		if err := reqs[i].Validate(types); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rebuilt := make([]canvas.Element, 0, len(reqs))
	seen := make(map[string]struct{}, len(reqs))
	for i := range reqs {
		id := reqs[i].ID
		if id == "" {
			id = s.gen.Next()
		}
		if _, dup := seen[id]; dup {
			return 0, errors.NewValidation("id", "duplicate element %q in sync payload", id)
		}
		seen[id] = struct{}{}

		el := reqs[i].Element(id, now)
		synced := now
		el.SyncedAt = &synced
		rebuilt = append(rebuilt, el)
	}

	canvas.RepairBindings(rebuilt)

	s.elements = make(map[string]*canvas.Element, len(rebuilt))
	s.order = s.order[:0]
	for i := range rebuilt {
		s.insertLocked(&rebuilt[i])
	}
	s.lastActivity = now
	return len(rebuilt), nil
}

// insertLocked assumes s.mu is held.
func (s *Session) insertLocked(el *canvas.Element) {
	s.elements[el.ID] = el
	s.order = append(s.order, el.ID)
}
