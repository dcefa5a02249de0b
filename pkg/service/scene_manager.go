package service

// SceneManager is the single write core behind every surface. The REST
// handlers, the MCP tools and the websocket attach path all go through it:
// mutate the element table, refresh session activity, then publish exactly
// one typed event on success and none on failure.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/0xArtex/excalidraw-mcp/pkg/broadcast"
	"github.com/0xArtex/excalidraw-mcp/pkg/canvas"
	"github.com/0xArtex/excalidraw-mcp/pkg/errors"
	"github.com/0xArtex/excalidraw-mcp/pkg/stores"
)

// Exporter is the external rendering/screenshot collaborator: session id in,
// image URL out.
type Exporter interface {
	Export(ctx context.Context, sessionID string) (string, error)
}

type SceneManager struct {
	registry *stores.Registry
	bus      *broadcast.Bus
	types    canvas.TypeSet
	exporter Exporter
	baseURL  string
}

func NewSceneManager(
	registry *stores.Registry,
	bus *broadcast.Bus,
	types canvas.TypeSet,
	exporter Exporter,
	baseURL string,
) *SceneManager {
	return &SceneManager{
		registry: registry,
		bus:      bus,
		types:    types,
		exporter: exporter,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (m *SceneManager) Registry() *stores.Registry { return m.registry }
func (m *SceneManager) Bus() *broadcast.Bus        { return m.bus }

// CanvasURL is the shareable link for a session.
func (m *SceneManager) CanvasURL(sessionID string) string {
	return fmt.Sprintf("%s/?sessionId=%s", m.baseURL, sessionID)
}

// CreateSession is idempotent for an already-live id.
func (m *SceneManager) CreateSession(optionalID string) *stores.Session {
	return m.registry.Create(optionalID)
}

// Session looks up a live session without creating one.
func (m *SceneManager) Session(id string) (*stores.Session, error) {
	session, ok := m.registry.Get(id)
	if !ok {
		return nil, errors.NewSessionNotFound(id)
	}
	return session, nil
}

// DeleteSession reports whether the session existed.
func (m *SceneManager) DeleteSession(id string) bool {
	return m.registry.Delete(id)
}

// CreateElement decodes, validates and inserts one element, then broadcasts
// element_created.
func (m *SceneManager) CreateElement(sessionID string, body []byte) (canvas.Element, error) {
	req, err := canvas.DecodeCreate(body)
	if err != nil {
		return canvas.Element{}, err
	}

	session := m.registry.GetOrCreate(sessionID)
	el, err := session.CreateElement(req, m.types)
	if err != nil {
		return canvas.Element{}, err
	}

	m.bus.Publish(sessionID, broadcast.ElementCreated(sessionID, el))
	return el, nil
}

// UpdateElement merges a partial update and broadcasts element_updated.
func (m *SceneManager) UpdateElement(sessionID, elementID string, body []byte) (canvas.Element, error) {
	patch, err := canvas.DecodePatch(body)
	if err != nil {
		return canvas.Element{}, err
	}

	session := m.registry.GetOrCreate(sessionID)
	el, err := session.UpdateElement(elementID, patch)
	if err != nil {
		return canvas.Element{}, err
	}

	m.bus.Publish(sessionID, broadcast.ElementUpdated(sessionID, el))
	return el, nil
}

// DeleteElement removes one element and broadcasts element_deleted.
func (m *SceneManager) DeleteElement(sessionID, elementID string) error {
	session := m.registry.GetOrCreate(sessionID)
	if err := session.DeleteElement(elementID); err != nil {
		return err
	}

	m.bus.Publish(sessionID, broadcast.ElementDeleted(sessionID, elementID))
	return nil
}

// BatchCreate inserts a batch all-or-nothing and broadcasts one
// elements_batch_created event carrying every created record.
func (m *SceneManager) BatchCreate(sessionID string, body []byte) ([]canvas.Element, error) {
	reqs, err := canvas.DecodeCreateList(body)
	if err != nil {
		return nil, err
	}

	session := m.registry.GetOrCreate(sessionID)
	created, err := session.BatchCreate(reqs, m.types)
	if err != nil {
		return nil, err
	}

	m.bus.Publish(sessionID, broadcast.ElementsBatchCreated(sessionID, created))
	return created, nil
}

// SyncElements replaces the session's element table wholesale from the
// renderer snapshot and broadcasts elements_synced with the new count.
func (m *SceneManager) SyncElements(sessionID string, body []byte) (int, error) {
	reqs, err := canvas.DecodeSyncList(body)
	if err != nil {
		return 0, err
	}

	session := m.registry.GetOrCreate(sessionID)
	count, err := session.Sync(reqs, m.types)
	if err != nil {
		return 0, err
	}

	m.bus.Publish(sessionID, broadcast.ElementsSynced(sessionID, count))
	return count, nil
}

// ConvertMermaid fans a convert request out to observers. Conversion happens
// on the rendering client, which reports the shapes back through the sync
// surface; nothing is stored here.
func (m *SceneManager) ConvertMermaid(sessionID, diagramText string, config json.RawMessage) error {
	if strings.TrimSpace(diagramText) == "" {
		return errors.NewValidation("diagramText", "is required")
	}

	m.registry.GetOrCreate(sessionID).Touch()
	m.bus.Publish(sessionID, broadcast.MermaidConvert(sessionID, diagramText, config))
	return nil
}

// Attach registers a real-time observer, sending the snapshot preamble. The
// session is created on first reference.
func (m *SceneManager) Attach(sessionID string, obs broadcast.Observer) *stores.Session {
	session := m.registry.GetOrCreate(sessionID)
	m.bus.Attach(session, obs)
	return session
}

func (m *SceneManager) Detach(sessionID string, obs broadcast.Observer) {
	m.bus.Detach(sessionID, obs)
}

/*
FinishDiagram sets the optional title, asks the screenshot collaborator for
an image of the session's current state, finalizes the session with the
resulting artifact URL and returns the shareable canvas URL plus the image
URL. A collaborator failure leaves the session usable and non-finalized so a
retry is side-effect free.
*/
func (m *SceneManager) FinishDiagram(ctx context.Context, sessionID, title string) (string, string, error) {
	session := m.registry.GetOrCreate(sessionID)
	if title != "" {
		session.SetTitle(title)
	}

	imageURL, err := m.exporter.Export(ctx, sessionID)
	if err != nil {
		log.Error("export failed", "session_id", sessionID, "error", err)
		return "", "", &errors.CollaboratorUnavailableError{Collaborator: "export", Err: err}
	}

	session.Finalize(imageURL)
	log.Info("session finalized", "session_id", sessionID, "image_url", imageURL)
	return m.CanvasURL(sessionID), imageURL, nil
}
