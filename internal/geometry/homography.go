package geometry

import (
	"fmt"
	"math"
)

// Homography is a 3x3 projective transform in row-major order:
//
//	| h0 h1 h2 |
//	| h3 h4 h5 |
//	| h6 h7 h8 |
//
// mapping (x, y) to ((h0*x + h1*y + h2) / w, (h3*x + h4*y + h5) / w)
// with w = h6*x + h7*y + h8.
type Homography [9]float64

// SolveHomography computes the projective transform taking each src corner
// to the matching dst corner.
//
// # Errors
//
//   - *DegenerateGeometryError if either quadrilateral has zero area or the
//     correspondence is singular.
func SolveHomography(src, dst Quad) (Homography, error) {
	if !hasArea(src.Points()) {
		return Homography{}, degenerate("solve homography", src.Points())
	}
	if !hasArea(dst.Points()) {
		return Homography{}, degenerate("solve homography", dst.Points())
	}

	// Eight equations in h0..h7 with h8 fixed to 1.
	var a [8][9]float64
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		a[2*i] = [9]float64{x, y, 1, 0, 0, 0, -x * u, -y * u, u}
		a[2*i+1] = [9]float64{0, 0, 0, x, y, 1, -x * v, -y * v, v}
	}

	for col := 0; col < 8; col++ {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < epsilon {
			return Homography{}, degenerate("solve homography", append(src.Points(), dst.Points()...))
		}
		a[col], a[pivot] = a[pivot], a[col]

		for row := 0; row < 8; row++ {
			if row == col {
				continue
			}
			f := a[row][col] / a[col][col]
			for k := col; k < 9; k++ {
				a[row][k] -= f * a[col][k]
			}
		}
	}

	var h Homography
	for i := 0; i < 8; i++ {
		h[i] = a[i][8] / a[i][i]
	}
	h[8] = 1
	return h, nil
}

// Apply maps p through h. The boolean is false when p maps to infinity.
func (h Homography) Apply(p Point) (Point, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < epsilon {
		return Point{}, false
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// Inverse returns the inverse mapping.
func (h Homography) Inverse() (Homography, error) {
	det := h[0]*(h[4]*h[8]-h[5]*h[7]) -
		h[1]*(h[3]*h[8]-h[5]*h[6]) +
		h[2]*(h[3]*h[7]-h[4]*h[6])
	if math.Abs(det) < epsilon {
		return Homography{}, fmt.Errorf("homography is singular (det=%g)", det)
	}

	inv := Homography{
		h[4]*h[8] - h[5]*h[7], h[2]*h[7] - h[1]*h[8], h[1]*h[5] - h[2]*h[4],
		h[5]*h[6] - h[3]*h[8], h[0]*h[8] - h[2]*h[6], h[2]*h[3] - h[0]*h[5],
		h[3]*h[7] - h[4]*h[6], h[1]*h[6] - h[0]*h[7], h[0]*h[4] - h[1]*h[3],
	}
	for i := range inv {
		inv[i] /= det
	}
	return inv, nil
}

// IsAffine reports whether h has no projective component.
func (h Homography) IsAffine() bool {
	return math.Abs(h[6]) < epsilon && math.Abs(h[7]) < epsilon
}

// ApplyPerspective maps the corners of an axis-aligned rectangle onto
// target through the projective transform between them.
//
// The result lands on target's corners; the call exists so the same
// homography that warps pixels also produces the annotated geometry.
func ApplyPerspective(rect, target Quad) ([]Point, error) {
	h, err := SolveHomography(rect, target)
	if err != nil {
		return nil, err
	}

	out := make([]Point, 4)
	for i, p := range rect {
		q, ok := h.Apply(p)
		if !ok {
			return nil, degenerate("apply perspective", target.Points())
		}
		out[i] = q
	}
	return out, nil
}
