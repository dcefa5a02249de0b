package canvas

// Boundary decoding for incoming element payloads. Create and update bodies
// are decoded strictly: keys outside the schema are rejected rather than
// merged into the record. Full-resync snapshots from the rendering client are
// decoded leniently because the renderer carries extra bookkeeping fields the
// store does not own (it stamps version and syncedAt itself anyway).

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/0xArtex/excalidraw-mcp/pkg/errors"
)

// CreateRequest is the payload accepted when creating a single element. X and
// Y are pointers so a missing coordinate is distinguishable from zero.
type CreateRequest struct {
	ID   string      `json:"id,omitempty"`
	Type ElementType `json:"type"`

	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
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

	// Tolerated on resync snapshots and ignored: the store owns versioning.
	Version  *int       `json:"version,omitempty"`
	SyncedAt *time.Time `json:"syncedAt,omitempty"`
}

// Validate checks the closed type enumeration and required geometry.
func (req *CreateRequest) Validate(types TypeSet) error {
	if req.Type == "" {
		return errors.NewValidation("type", "is required")
	}
	if !types.Contains(req.Type) {
		return errors.NewValidation("type", "unknown element type %q", req.Type)
	}
	if req.X == nil {
		return errors.NewValidation("x", "is required and must be numeric")
	}
	if req.Y == nil {
		return errors.NewValidation("y", "is required and must be numeric")
	}
	return nil
}

// Element materializes the request into a fresh version-1 record. The id must
// already be resolved by the caller (generator or caller-supplied).
func (req *CreateRequest) Element(id string, now time.Time) Element {
	return Element{
		ID:              id,
		Type:            req.Type,
		X:               *req.X,
		Y:               *req.Y,
		Width:           req.Width,
		Height:          req.Height,
		Angle:           req.Angle,
		StrokeColor:     req.StrokeColor,
		BackgroundColor: req.BackgroundColor,
		FillStyle:       req.FillStyle,
		StrokeStyle:     req.StrokeStyle,
		StrokeWidth:     req.StrokeWidth,
		Roughness:       req.Roughness,
		Opacity:         req.Opacity,
		Text:            req.Text,
		FontSize:        req.FontSize,
		FontFamily:      req.FontFamily,
		Points:          req.Points,
		FileID:          req.FileID,
		Locked:          req.Locked,
		ContainerID:     req.ContainerID,
		BoundElements:   req.BoundElements,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Patch carries a partial update. Only non-nil fields are merged over the
// existing record.
type Patch struct {
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	Angle  *float64 `json:"angle,omitempty"`

	StrokeColor     *string  `json:"strokeColor,omitempty"`
	BackgroundColor *string  `json:"backgroundColor,omitempty"`
	FillStyle       *string  `json:"fillStyle,omitempty"`
	StrokeStyle     *string  `json:"strokeStyle,omitempty"`
	StrokeWidth     *float64 `json:"strokeWidth,omitempty"`
	Roughness       *float64 `json:"roughness,omitempty"`
	Opacity         *float64 `json:"opacity,omitempty"`

	Text       *string     `json:"text,omitempty"`
	FontSize   *float64    `json:"fontSize,omitempty"`
	FontFamily *string     `json:"fontFamily,omitempty"`
	Points     [][]float64 `json:"points,omitempty"`
	FileID     *string     `json:"fileId,omitempty"`
	Locked     *bool       `json:"locked,omitempty"`

	ContainerID   *string   `json:"containerId,omitempty"`
	BoundElements []Binding `json:"boundElements,omitempty"`
}

// Apply merges the patch into el, bumps the version and refreshes updatedAt.
func (p *Patch) Apply(el *Element, now time.Time) {
	if p.X != nil {
		el.X = *p.X
	}
	if p.Y != nil {
		el.Y = *p.Y
	}
	if p.Width != nil {
		el.Width = p.Width
	}
	if p.Height != nil {
		el.Height = p.Height
	}
	if p.Angle != nil {
		el.Angle = p.Angle
	}
	if p.StrokeColor != nil {
		el.StrokeColor = *p.StrokeColor
	}
	if p.BackgroundColor != nil {
		el.BackgroundColor = *p.BackgroundColor
	}
	if p.FillStyle != nil {
		el.FillStyle = *p.FillStyle
	}
	if p.StrokeStyle != nil {
		el.StrokeStyle = *p.StrokeStyle
	}
	if p.StrokeWidth != nil {
		el.StrokeWidth = p.StrokeWidth
	}
	if p.Roughness != nil {
		el.Roughness = p.Roughness
	}
	if p.Opacity != nil {
		el.Opacity = p.Opacity
	}
	if p.Text != nil {
		el.Text = *p.Text
	}
	if p.FontSize != nil {
		el.FontSize = p.FontSize
	}
	if p.FontFamily != nil {
		el.FontFamily = *p.FontFamily
	}
	if p.Points != nil {
		el.Points = p.Points
	}
	if p.FileID != nil {
		el.FileID = *p.FileID
	}
	if p.Locked != nil {
		el.Locked = *p.Locked
	}
	if p.ContainerID != nil {
		el.ContainerID = p.ContainerID
	}
	if p.BoundElements != nil {
		el.BoundElements = p.BoundElements
	}
	el.Version++
	el.UpdatedAt = now
}

// DecodeCreate strictly decodes a single create payload.
func DecodeCreate(data []byte) (*CreateRequest, error) {
	var req CreateRequest
	if err := decodeStrict(data, &req); err != nil {
		return nil, errors.NewValidation("", "invalid element payload: %v", err)
	}
	return &req, nil
}

// DecodeCreateList strictly decodes a batch-create payload.
func DecodeCreateList(data []byte) ([]CreateRequest, error) {
	var reqs []CreateRequest
	if err := decodeStrict(data, &reqs); err != nil {
		return nil, errors.NewValidation("", "invalid element list payload: %v", err)
	}
	return reqs, nil
}

// DecodePatch strictly decodes a partial-update payload.
func DecodePatch(data []byte) (*Patch, error) {
	var p Patch
	if err := decodeStrict(data, &p); err != nil {
		return nil, errors.NewValidation("", "invalid update payload: %v", err)
	}
	return &p, nil
}

// DecodeSyncList leniently decodes a full-resync snapshot from the renderer.
func DecodeSyncList(data []byte) ([]CreateRequest, error) {
	var reqs []CreateRequest
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, errors.NewValidation("", "invalid sync payload: %v", err)
	}
	return reqs, nil
}

func decodeStrict(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
