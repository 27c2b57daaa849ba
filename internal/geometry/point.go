package geometry

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a 2D coordinate in pixel space.
//
// Points marshal to JSON as a two element array [x, y], matching the
// annotation document layout.
type Point struct {
	X float64
	Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// MarshalJSON encodes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{round6(p.X), round6(p.Y)})
}

// UnmarshalJSON decodes a point from [x, y].
func (p *Point) UnmarshalJSON(data []byte) error {
	var xy [2]float64
	if err := json.Unmarshal(data, &xy); err != nil {
		return fmt.Errorf("failed to decode point: %w", err)
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Quad is an ordered quadrilateral, clockwise starting at the corner that
// was the top-left of the source rectangle.
type Quad [4]Point

// Points returns the corners as a slice.
func (q Quad) Points() []Point {
	return []Point{q[0], q[1], q[2], q[3]}
}

// Translate returns q moved by (dx, dy).
func (q Quad) Translate(dx, dy float64) Quad {
	d := Point{X: dx, Y: dy}
	return Quad{q[0].Add(d), q[1].Add(d), q[2].Add(d), q[3].Add(d)}
}

// QuadFromPoints converts a slice of exactly four points into a Quad.
func QuadFromPoints(points []Point) (Quad, error) {
	if len(points) != 4 {
		return Quad{}, fmt.Errorf("quadrilateral needs 4 points, got %d", len(points))
	}
	return Quad{points[0], points[1], points[2], points[3]}, nil
}

// RectCorners returns the clockwise corners of a w x h pixel raster.
func RectCorners(w, h int) Quad {
	fw := float64(w - 1)
	fh := float64(h - 1)
	return Quad{{0, 0}, {fw, 0}, {fw, fh}, {0, fh}}
}

// Center returns the pivot of a w x h pixel raster.
func Center(w, h int) Point {
	return Point{X: float64(w-1) / 2, Y: float64(h-1) / 2}
}

// Rotate rotates each point about pivot by angle degrees.
func Rotate(points []Point, angle float64, pivot Point) []Point {
	rad := angle * math.Pi / 180
	sin, cos := math.Sincos(rad)

	out := make([]Point, len(points))
	for i, p := range points {
		dx := p.X - pivot.X
		dy := p.Y - pivot.Y
		out[i] = Point{
			X: pivot.X + dx*cos - dy*sin,
			Y: pivot.Y + dx*sin + dy*cos,
		}
	}
	return out
}

// IsSimpleQuad reports whether q is a non-self-intersecting quadrilateral
// with non-zero area.
func IsSimpleQuad(q Quad) bool {
	if math.Abs(shoelace(q.Points())) < epsilon {
		return false
	}
	// Adjacent edges share a vertex, so only opposite edges can cross.
	if segmentsIntersect(q[0], q[1], q[2], q[3]) {
		return false
	}
	if segmentsIntersect(q[1], q[2], q[3], q[0]) {
		return false
	}
	return true
}

const epsilon = 1e-9

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func shoelace(points []Point) float64 {
	var sum float64
	for i := range points {
		j := (i + 1) % len(points)
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return sum / 2
}

func onSegment(p, q, r Point) bool {
	return math.Min(p.X, r.X)-epsilon <= q.X && q.X <= math.Max(p.X, r.X)+epsilon &&
		math.Min(p.Y, r.Y)-epsilon <= q.Y && q.Y <= math.Max(p.Y, r.Y)+epsilon
}

func sign(v float64) int {
	switch {
	case v > epsilon:
		return 1
	case v < -epsilon:
		return -1
	}
	return 0
}

// segmentsIntersect reports whether segment p1p2 touches segment p3p4.
func segmentsIntersect(p1, p2, p3, p4 Point) bool {
	d1 := sign(cross(p3, p4, p1))
	d2 := sign(cross(p3, p4, p2))
	d3 := sign(cross(p1, p2, p3))
	d4 := sign(cross(p1, p2, p4))

	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	if d1 == 0 && onSegment(p3, p1, p4) {
		return true
	}
	if d2 == 0 && onSegment(p3, p2, p4) {
		return true
	}
	if d3 == 0 && onSegment(p1, p3, p2) {
		return true
	}
	if d4 == 0 && onSegment(p1, p4, p2) {
		return true
	}
	return false
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
