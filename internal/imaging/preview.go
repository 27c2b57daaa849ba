package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/ironsheep/text-synth/internal/geometry"
)

// Outline is one annotated instance to draw on a preview.
type Outline struct {
	Quad geometry.Quad
	Box  geometry.Box
}

// PreviewColors are the stroke colors used by Preview.
type PreviewColors struct {
	Quad color.Color
	Box  color.Color
}

// DefaultPreviewColors strokes quads in red and boxes in semi-transparent
// green.
var DefaultPreviewColors = PreviewColors{
	Quad: color.RGBA{255, 0, 0, 255},
	Box:  color.RGBA{0, 160, 0, 160},
}

// Preview returns a copy of img with every outline drawn on it: the axis
// aligned box first, then the transformed quadrilateral on top.
func Preview(img image.Image, outlines []Outline, colors PreviewColors) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	for _, o := range outlines {
		b := o.Box
		x1, y1 := b.X+b.Width-1, b.Y+b.Height-1
		drawLine(result, b.X, b.Y, x1, b.Y, colors.Box)
		drawLine(result, x1, b.Y, x1, y1, colors.Box)
		drawLine(result, x1, y1, b.X, y1, colors.Box)
		drawLine(result, b.X, y1, b.X, b.Y, colors.Box)
	}
	for _, o := range outlines {
		for i := range o.Quad {
			p := o.Quad[i]
			q := o.Quad[(i+1)%4]
			drawLine(result, round(p.X), round(p.Y), round(q.X), round(q.Y), colors.Quad)
		}
	}
	return result
}

// drawLine strokes a 1px Bresenham line, clipped to the image bounds.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	bounds := img.Bounds()
	e := dx + dy
	for {
		if image.Pt(x0, y0).In(bounds) {
			img.Set(x0, y0, blendOver(img.RGBAAt(x0, y0), c))
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// blendOver composites c over dst.
func blendOver(dst color.RGBA, c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	inv := 0xffff - a
	return color.RGBA{
		R: uint8((r + uint32(dst.R)*0x101*inv/0xffff) >> 8),
		G: uint8((g + uint32(dst.G)*0x101*inv/0xffff) >> 8),
		B: uint8((b + uint32(dst.B)*0x101*inv/0xffff) >> 8),
		A: uint8((a + uint32(dst.A)*0x101*inv/0xffff) >> 8),
	}
}

func round(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
