package idgen

// Opaque string identifiers for sessions and elements. Ids are derived from
// random UUIDs and shortened to 16 lowercase hex characters, which keeps them
// URL and JSON friendly while leaving the collision probability negligible
// for an in-memory keyspace. Uniqueness does not survive a process restart.

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

type Generator struct {
	mu     sync.Mutex
	issued map[string]struct{}
}

func New() *Generator {
	return &Generator{issued: make(map[string]struct{})}
}

// Next returns an id never before issued by this generator.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
		if _, dup := g.issued[id]; dup {
			continue
		}
		g.issued[id] = struct{}{}
		return id
	}
}
