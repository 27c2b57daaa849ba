package geometry

import (
	"fmt"
	"image"
	"math"
)

// DegenerateGeometryError reports a point set with zero area.
type DegenerateGeometryError struct {
	// Op names the operation that rejected the points.
	Op string
	// Points is a copy of the rejected point set.
	Points []Point
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("%s: degenerate geometry: %d points span zero area", e.Op, len(e.Points))
}

func degenerate(op string, points []Point) *DegenerateGeometryError {
	return &DegenerateGeometryError{Op: op, Points: append([]Point(nil), points...)}
}

// Size is a width and height in pixels.
type Size struct {
	Width  int
	Height int
}

// Box is an axis-aligned, pixel-aligned rectangle.
type Box struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect converts the box to an image.Rectangle (max exclusive).
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Overlaps reports whether two boxes share at least one pixel.
func (b Box) Overlaps(other Box) bool {
	return b.Rect().Overlaps(other.Rect())
}

// BoundingBox returns the minimal pixel-aligned box covering points.
//
// The position is the floor of the minimum coordinate on each axis and the
// size counts the pixels up to and including the floor of the maximum.
//
// # Errors
//
//   - *DegenerateGeometryError if fewer than three points are given or all
//     points are coincident or collinear.
func BoundingBox(points []Point) (Box, error) {
	if len(points) < 3 || !hasArea(points) {
		return Box{}, degenerate("bounding box", points)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	x0 := int(math.Floor(minX))
	y0 := int(math.Floor(minY))
	return Box{
		X:      x0,
		Y:      y0,
		Width:  int(math.Floor(maxX)) - x0 + 1,
		Height: int(math.Floor(maxY)) - y0 + 1,
	}, nil
}

// Contains reports whether every point lies within [0, width) x [0, height).
func Contains(canvas Size, points []Point) bool {
	w := float64(canvas.Width)
	h := float64(canvas.Height)
	for _, p := range points {
		if p.X < 0 || p.Y < 0 || p.X >= w || p.Y >= h {
			return false
		}
	}
	return true
}

// hasArea reports whether at least three of the points are not collinear.
func hasArea(points []Point) bool {
	o := points[0]
	for i := 1; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			if math.Abs(cross(o, points[i], points[j])) > epsilon {
				return true
			}
		}
	}
	return false
}
