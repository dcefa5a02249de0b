package stores

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/0xArtex/excalidraw-mcp/pkg/canvas"
	"github.com/0xArtex/excalidraw-mcp/pkg/idgen"
)

func TestRegistryCreate(t *testing.T) {
	r := NewRegistry(idgen.New())

	s := r.Create("")
	assert.NotNil(t, s)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, r.Count())

	// Requested ids are honored
	named := r.Create("my-session")
	assert.Equal(t, "my-session", named.ID)
	assert.Equal(t, 2, r.Count())
}

func TestRegistryCreateIdempotentForLiveID(t *testing.T) {
	r := NewRegistry(idgen.New())
	types := canvas.NewTypeSet(nil)

	s := r.Create("shared")
	x := 1.0
	_, err := s.CreateElement(&canvas.CreateRequest{Type: canvas.TypeRectangle, X: &x, Y: &x}, types)
	assert.NoError(t, err)

	// Creating the same id again returns the live session, elements intact
	again := r.Create("shared")
	assert.Same(t, s, again)
	assert.Equal(t, 1, again.Count())
	assert.Equal(t, 1, r.Count())
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(idgen.New())

	_, ok := r.Get("missing")
	assert.False(t, ok)

	created := r.Create("here")
	before := created.LastActivity()
	time.Sleep(5 * time.Millisecond)

	got, ok := r.Get("here")
	assert.True(t, ok)
	assert.Same(t, created, got)
	assert.True(t, got.LastActivity().After(before))
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry(idgen.New())

	first := r.GetOrCreate("lazy")
	second := r.GetOrCreate("lazy")
	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryDelete(t *testing.T) {
	r := NewRegistry(idgen.New())

	r.Create("gone")
	assert.True(t, r.Delete("gone"))
	assert.False(t, r.Delete("gone"))
	assert.Equal(t, 0, r.Count())
}

func TestRegistryStats(t *testing.T) {
	r := NewRegistry(idgen.New())

	active := r.Create("active")
	idle := r.Create("idle")
	done := r.Create("done")
	done.Finalize("http://example.com/done.png")

	// Force the idle session outside the activity window
	idle.mu.Lock()
	idle.lastActivity = time.Now().Add(-time.Hour)
	idle.mu.Unlock()

	_ = active
	stats := r.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Finalized)
}

func TestRegistrySweep(t *testing.T) {
	r := NewRegistry(idgen.New())

	stale := r.Create("stale")
	r.Create("fresh")

	stale.mu.Lock()
	stale.lastActivity = time.Now().Add(-48 * time.Hour)
	stale.mu.Unlock()

	evicted := r.Sweep(24 * time.Hour)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, r.Count())

	_, ok := r.Get("stale")
	assert.False(t, ok)
	_, ok = r.Get("fresh")
	assert.True(t, ok)
}

func TestRegistrySweeperLifecycle(t *testing.T) {
	r := NewRegistry(idgen.New())

	r.StartSweeper(10*time.Millisecond, time.Nanosecond)
	r.Create("doomed")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, r.Count())

	// StopSweeper is safe to call more than once
	r.StopSweeper()
	r.StopSweeper()
}
