package broadcast

import (
	"encoding/json"
	"time"

	"github.com/0xArtex/excalidraw-mcp/pkg/canvas"
)

// Event type discriminators as they appear on the wire.
type EventType string

const (
	EventSessionInfo          EventType = "session_info"
	EventInitialElements      EventType = "initial_elements"
	EventSyncStatus           EventType = "sync_status"
	EventElementCreated       EventType = "element_created"
	EventElementUpdated       EventType = "element_updated"
	EventElementDeleted       EventType = "element_deleted"
	EventElementsBatchCreated EventType = "elements_batch_created"
	EventElementsSynced       EventType = "elements_synced"
	EventMermaidConvert       EventType = "mermaid_convert"
)

// Event is the single message shape pushed to observers. Only the fields
// relevant to the event type are populated.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`

	CreatedAt *time.Time       `json:"createdAt,omitempty"`
	Element   *canvas.Element  `json:"element,omitempty"`
	ElementID string           `json:"elementId,omitempty"`
	Elements  []canvas.Element `json:"elements,omitempty"`
	Count     *int             `json:"count,omitempty"`

	DiagramText string          `json:"diagramText,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

func newEvent(t EventType, sessionID string) Event {
	return Event{Type: t, SessionID: sessionID, Timestamp: time.Now()}
}

func SessionInfo(sessionID string, createdAt time.Time) Event {
	evt := newEvent(EventSessionInfo, sessionID)
	evt.CreatedAt = &createdAt
	return evt
}

func InitialElements(sessionID string, elements []canvas.Element) Event {
	evt := newEvent(EventInitialElements, sessionID)
	evt.Elements = elements
	return evt
}

func SyncStatus(sessionID string, count int) Event {
	evt := newEvent(EventSyncStatus, sessionID)
	evt.Count = &count
	return evt
}

func ElementCreated(sessionID string, el canvas.Element) Event {
	evt := newEvent(EventElementCreated, sessionID)
	evt.Element = &el
	return evt
}

func ElementUpdated(sessionID string, el canvas.Element) Event {
	evt := newEvent(EventElementUpdated, sessionID)
	evt.Element = &el
	return evt
}

func ElementDeleted(sessionID, elementID string) Event {
	evt := newEvent(EventElementDeleted, sessionID)
	evt.ElementID = elementID
	return evt
}

func ElementsBatchCreated(sessionID string, elements []canvas.Element) Event {
	evt := newEvent(EventElementsBatchCreated, sessionID)
	evt.Elements = elements
	return evt
}

func ElementsSynced(sessionID string, count int) Event {
	evt := newEvent(EventElementsSynced, sessionID)
	evt.Count = &count
	return evt
}

func MermaidConvert(sessionID, diagramText string, config json.RawMessage) Event {
	evt := newEvent(EventMermaidConvert, sessionID)
	evt.DiagramText = diagramText
	evt.Config = config
	return evt
}
