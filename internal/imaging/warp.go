package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ironsheep/text-synth/internal/geometry"
)

// Warp maps glyph onto the quadrilateral corners and returns a layer covering
// exactly box, the bounding box of corners in canvas space.
//
// Corners follow the geometry package convention: pixel-center coordinates,
// clockwise from the glyph's top-left. Affine mappings (rotation only) are
// resampled with golang.org/x/image/draw; projective mappings are inverse
// mapped pixel by pixel with bilinear sampling in premultiplied color.
func Warp(glyph *image.NRGBA, corners geometry.Quad, box geometry.Box) (*image.RGBA, error) {
	gb := glyph.Bounds()
	src := geometry.RectCorners(gb.Dx(), gb.Dy())
	h, err := geometry.SolveHomography(src, corners)
	if err != nil {
		return nil, fmt.Errorf("failed to solve warp: %w", err)
	}

	layer := image.NewRGBA(image.Rect(0, 0, box.Width, box.Height))
	if h.IsAffine() {
		warpAffine(layer, glyph, h, box)
		return layer, nil
	}

	inv, err := h.Inverse()
	if err != nil {
		return nil, fmt.Errorf("failed to invert warp: %w", err)
	}
	warpProjective(layer, glyph, inv, box)
	return layer, nil
}

// warpAffine converts the pixel-center homography into the pixel-edge affine
// matrix that x/image/draw expects, shifted into layer space.
func warpAffine(layer *image.RGBA, glyph *image.NRGBA, h geometry.Homography, box geometry.Box) {
	a, b, c := h[0]/h[8], h[1]/h[8], h[2]/h[8]
	d, e, f := h[3]/h[8], h[4]/h[8], h[5]/h[8]

	s2d := f64.Aff3{
		a, b, c - 0.5*(a+b) + 0.5 - float64(box.X),
		d, e, f - 0.5*(d+e) + 0.5 - float64(box.Y),
	}
	draw.BiLinear.Transform(layer, s2d, glyph, glyph.Bounds(), draw.Over, nil)
}

func warpProjective(layer *image.RGBA, glyph *image.NRGBA, inv geometry.Homography, box geometry.Box) {
	lb := layer.Bounds()
	for py := lb.Min.Y; py < lb.Max.Y; py++ {
		for px := lb.Min.X; px < lb.Max.X; px++ {
			p := geometry.Pt(float64(box.X+px), float64(box.Y+py))
			s, ok := inv.Apply(p)
			if !ok {
				continue
			}
			if c, hit := sampleBilinear(glyph, s.X, s.Y); hit {
				layer.SetRGBA(px, py, c)
			}
		}
	}
}

// sampleBilinear reads glyph at pixel-center coordinates (x, y). Texels
// outside the glyph are transparent. The boolean is false when every
// contributing texel is outside.
func sampleBilinear(glyph *image.NRGBA, x, y float64) (color.RGBA, bool) {
	b := glyph.Bounds()
	if x <= -1 || y <= -1 || x >= float64(b.Dx()) || y >= float64(b.Dy()) {
		return color.RGBA{}, false
	}

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	var r, g, bl, a float64
	for j := 0; j <= 1; j++ {
		for i := 0; i <= 1; i++ {
			tx, ty := x0+i, y0+j
			if tx < 0 || ty < 0 || tx >= b.Dx() || ty >= b.Dy() {
				continue
			}
			wx := 1 - fx
			if i == 1 {
				wx = fx
			}
			wy := 1 - fy
			if j == 1 {
				wy = fy
			}
			w := wx * wy
			c := glyph.NRGBAAt(b.Min.X+tx, b.Min.Y+ty)
			alpha := float64(c.A) / 255
			r += w * float64(c.R) * alpha
			g += w * float64(c.G) * alpha
			bl += w * float64(c.B) * alpha
			a += w * float64(c.A)
		}
	}
	if a <= 0 {
		return color.RGBA{}, false
	}
	return color.RGBA{R: clamp8(r), G: clamp8(g), B: clamp8(bl), A: clamp8(a)}, true
}

func clamp8(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Composite draws layer onto canvas with its top-left at pos and returns the
// result as a new image. The canvas is not modified.
func Composite(canvas image.Image, layer image.Image, pos image.Point) *image.NRGBA {
	return imaging.Overlay(canvas, layer, pos, 1.0)
}

// Clone returns img as a new *image.NRGBA with bounds starting at (0, 0).
func Clone(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}
