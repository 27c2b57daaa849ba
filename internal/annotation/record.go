// Package annotation defines the format-agnostic record of one placed text
// instance and the append-only collection that accumulates records during
// synthesis.
//
// Records are values. Nothing in this module mutates a record after it is
// created; WithImagePath returns a copy instead.
package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/ironsheep/text-synth/internal/geometry"
)

// Position is the top-left pixel of a bounding box. It marshals as [x, y].
type Position struct {
	X int
	Y int
}

func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var xy [2]int
	if err := json.Unmarshal(data, &xy); err != nil {
		return fmt.Errorf("failed to decode position: %w", err)
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Size is a bounding box extent in pixels. It marshals as [width, height].
type Size struct {
	Width  int
	Height int
}

func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Width, s.Height})
}

func (s *Size) UnmarshalJSON(data []byte) error {
	var wh [2]int
	if err := json.Unmarshal(data, &wh); err != nil {
		return fmt.Errorf("failed to decode size: %w", err)
	}
	s.Width, s.Height = wh[0], wh[1]
	return nil
}

// Transform describes how the glyph rectangle was distorted.
type Transform struct {
	// Rotation is in degrees, normalized to [0, 360).
	Rotation float64 `json:"rotation"`

	// Perspective holds the 4 clockwise corners the glyph rectangle was
	// mapped to. Nil means the identity mapping.
	Perspective []geometry.Point `json:"perspective,omitempty"`
}

// UnmarshalJSON accepts documents written by older tools, where rotation
// may be negative or missing altogether.
func (t *Transform) UnmarshalJSON(data []byte) error {
	var raw struct {
		Rotation    float64          `json:"rotation"`
		Perspective []geometry.Point `json:"perspective"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode transform: %w", err)
	}
	t.Rotation = math.Mod(raw.Rotation, 360)
	if t.Rotation < 0 {
		t.Rotation += 360
	}
	t.Perspective = raw.Perspective
	return nil
}

// IsIdentity reports whether the transform leaves the glyph untouched.
func (t Transform) IsIdentity() bool {
	return t.Rotation == 0 && t.Perspective == nil
}

// Record is one placed text instance.
type Record struct {
	Text      string    `json:"text"`
	Position  Position  `json:"position"`
	Size      Size      `json:"size"`
	Transform Transform `json:"transform"`

	// Corners are the final quadrilateral corners in image space. Records
	// loaded from older documents may not carry them.
	Corners []geometry.Point `json:"corners,omitempty"`

	// ImagePath is the composited image, relative to the synthesis output
	// directory.
	ImagePath string `json:"image_path"`
}

// Validation errors.
var (
	ErrEmptyText      = errors.New("text is empty")
	ErrEmptySize      = errors.New("size must be positive")
	ErrBadPerspective = errors.New("perspective must be a simple quadrilateral of 4 points")
	ErrBadRotation    = errors.New("rotation must be in [0, 360)")
	ErrNoImagePath    = errors.New("image path is empty")
)

// Validate checks the record invariants that can be verified without the
// canvas.
func (r Record) Validate() error {
	if r.Text == "" {
		return ErrEmptyText
	}
	if r.Size.Width <= 0 || r.Size.Height <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrEmptySize, r.Size.Width, r.Size.Height)
	}
	if r.Transform.Rotation < 0 || r.Transform.Rotation >= 360 || math.IsNaN(r.Transform.Rotation) {
		return fmt.Errorf("%w: got %v", ErrBadRotation, r.Transform.Rotation)
	}
	if r.Transform.Perspective != nil {
		q, err := geometry.QuadFromPoints(r.Transform.Perspective)
		if err != nil || !geometry.IsSimpleQuad(q) {
			return ErrBadPerspective
		}
	}
	if r.ImagePath == "" {
		return ErrNoImagePath
	}
	return nil
}

// Box returns the record's bounding box.
func (r Record) Box() geometry.Box {
	return geometry.Box{X: r.Position.X, Y: r.Position.Y, Width: r.Size.Width, Height: r.Size.Height}
}

// Quad returns the transformed quadrilateral: the stored corners when
// present, otherwise the perspective corners, otherwise the box outline.
func (r Record) Quad() geometry.Quad {
	if q, err := geometry.QuadFromPoints(r.Corners); err == nil {
		return q
	}
	if q, err := geometry.QuadFromPoints(r.Transform.Perspective); err == nil {
		return q
	}
	return geometry.RectCorners(r.Size.Width, r.Size.Height).
		Translate(float64(r.Position.X), float64(r.Position.Y))
}

// WithImagePath returns a copy of r referencing path.
func (r Record) WithImagePath(path string) Record {
	c := r.clone()
	c.ImagePath = path
	return c
}

func (r Record) clone() Record {
	c := r
	if r.Transform.Perspective != nil {
		c.Transform.Perspective = append([]geometry.Point(nil), r.Transform.Perspective...)
	}
	if r.Corners != nil {
		c.Corners = append([]geometry.Point(nil), r.Corners...)
	}
	return c
}
