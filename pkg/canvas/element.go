package canvas

// The element model mirrors the record shape the rendering client works with:
// a closed type enumeration, numeric geometry, optional style fields and
// relational bindings to other elements in the same session.

import (
	"time"
)

type ElementType string

const (
	TypeRectangle  ElementType = "rectangle"
	TypeEllipse    ElementType = "ellipse"
	TypeDiamond    ElementType = "diamond"
	TypeArrow      ElementType = "arrow"
	TypeLine       ElementType = "line"
	TypeText       ElementType = "text"
	TypeFreedraw   ElementType = "freedraw"
	TypeImage      ElementType = "image"
	TypeFrame      ElementType = "frame"
	TypeEmbeddable ElementType = "embeddable"
)

// DefaultTypes is the built-in enumeration, used when the configuration does
// not override it.
func DefaultTypes() []string {
	return []string{
		string(TypeRectangle), string(TypeEllipse), string(TypeDiamond),
		string(TypeArrow), string(TypeLine), string(TypeText),
		string(TypeFreedraw), string(TypeImage), string(TypeFrame),
		string(TypeEmbeddable),
	}
}

// TypeSet is the closed element type enumeration in effect for a process.
type TypeSet map[ElementType]struct{}

// NewTypeSet builds a TypeSet from configured names, falling back to
// DefaultTypes when names is empty.
func NewTypeSet(names []string) TypeSet {
	if len(names) == 0 {
		names = DefaultTypes()
	}
	ts := make(TypeSet, len(names))
	for _, n := range names {
		ts[ElementType(n)] = struct{}{}
	}
	return ts
}

func (ts TypeSet) Contains(t ElementType) bool {
	_, ok := ts[t]
	return ok
}

// Binding is a relational reference from one element to another in the same
// session, e.g. an arrow bound to a shape or a text label bound to its
// container.
type Binding struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Element is the authoritative record for one shape in a session. Version
// starts at 1 and increments on every successful update; it never decreases.
type Element struct {
	ID   string      `json:"id"`
	Type ElementType `json:"type"`

	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	Angle  *float64 `json:"angle,omitempty"`

	StrokeColor     string   `json:"strokeColor,omitempty"`
	BackgroundColor string   `json:"backgroundColor,omitempty"`
	FillStyle       string   `json:"fillStyle,omitempty"`
	StrokeStyle     string   `json:"strokeStyle,omitempty"`
	StrokeWidth     *float64 `json:"strokeWidth,omitempty"`
	Roughness       *float64 `json:"roughness,omitempty"`
	Opacity         *float64 `json:"opacity,omitempty"`

	Text       string      `json:"text,omitempty"`
	FontSize   *float64    `json:"fontSize,omitempty"`
	FontFamily string      `json:"fontFamily,omitempty"`
	Points     [][]float64 `json:"points,omitempty"`
	FileID     string      `json:"fileId,omitempty"`
	Locked     bool        `json:"locked,omitempty"`

	ContainerID   *string   `json:"containerId,omitempty"`
	BoundElements []Binding `json:"boundElements,omitempty"`

	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	SyncedAt  *time.Time `json:"syncedAt,omitempty"`
}
