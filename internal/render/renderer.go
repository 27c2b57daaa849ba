// Package render rasterizes a single run of text into a tight glyph image.
//
// Glyphs are drawn with golang.org/x/image/font onto a transparent canvas
// whose size is the ink bounds of the run plus a uniform padding. No layout
// or shaping is performed: runes are drawn left to right with the face's
// kerning.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// DefaultPadding is the transparent margin added around the ink bounds.
const DefaultPadding = 2

// MinSize is the smallest font size a renderer accepts.
const MinSize = 1.0

var (
	// ErrEmptyText is returned when asked to render "".
	ErrEmptyText = errors.New("text is empty")

	// ErrNoInk is returned when the run draws no pixels, e.g. only spaces.
	ErrNoInk = errors.New("text has no visible glyphs")
)

// MissingGlyphError lists runes the font has no glyph for. Rendering them
// would produce .notdef boxes under a label that claims otherwise.
type MissingGlyphError struct {
	Text  string
	Runes []rune
}

func (e *MissingGlyphError) Error() string {
	return fmt.Sprintf("font has no glyph for %q in %q", string(e.Runes), e.Text)
}

// TextRenderer is the rasterizing surface of a Renderer.
type TextRenderer = interface {
	Render(text string) (*image.NRGBA, error)
}

// Options configures a renderer.
type Options struct {
	// Size is the font size in points at 72 DPI, i.e. pixels per em.
	Size float64

	// Color is the text color. The zero value renders black.
	Color color.NRGBA

	// Padding is the margin around the ink bounds. Negative means zero;
	// use DefaultPadding for the usual margin.
	Padding int
}

// Renderer draws text with one font at one size. It is safe for
// concurrent use.
type Renderer struct {
	font *opentype.Font
	opts Options
	src  *image.Uniform

	mu   sync.Mutex
	face font.Face
	buf  sfnt.Buffer
}

// Load parses the TrueType or OpenType font at path.
func Load(path string, opts Options) (*Renderer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}
	return New(data, opts)
}

// New parses font data held in memory.
func New(data []byte, opts Options) (*Renderer, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return newRenderer(f, opts)
}

func newRenderer(f *opentype.Font, opts Options) (*Renderer, error) {
	if opts.Size < MinSize {
		return nil, fmt.Errorf("font size %.2f below minimum %.0f", opts.Size, MinSize)
	}
	if opts.Padding < 0 {
		opts.Padding = 0
	}
	if opts.Color == (color.NRGBA{}) {
		opts.Color = color.NRGBA{A: 255}
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    opts.Size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	return &Renderer{
		font: f,
		opts: opts,
		src:  image.NewUniform(opts.Color),
		face: face,
	}, nil
}

// Size returns the font size in pixels per em.
func (r *Renderer) Size() float64 {
	return r.opts.Size
}

// Scaled returns a renderer for the same font at Size()*factor. The parsed
// font is shared.
func (r *Renderer) Scaled(factor float64) (TextRenderer, error) {
	opts := r.opts
	opts.Size *= factor
	return newRenderer(r.font, opts)
}

// Close releases the font face.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.face.Close()
}

// Render draws text onto a transparent image just large enough for its ink
// plus padding.
func (r *Renderer) Render(text string) (*image.NRGBA, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if missing := r.missing(text); len(missing) > 0 {
		return nil, &MissingGlyphError{Text: text, Runes: missing}
	}

	bounds, _ := font.BoundString(r.face, text)
	if bounds.Empty() {
		return nil, ErrNoInk
	}
	minX, minY := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
	maxX, maxY := bounds.Max.X.Ceil(), bounds.Max.Y.Ceil()

	pad := r.opts.Padding
	img := image.NewNRGBA(image.Rect(0, 0, maxX-minX+2*pad, maxY-minY+2*pad))
	d := &font.Drawer{
		Dst:  img,
		Src:  r.src,
		Face: r.face,
		Dot:  fixed.P(pad-minX, pad-minY),
	}
	d.DrawString(text)
	return img, nil
}

// Check returns a *MissingGlyphError for the first of texts holding runes
// the font has no glyph for.
func (r *Renderer) Check(texts []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, text := range texts {
		if missing := r.missing(text); len(missing) > 0 {
			return &MissingGlyphError{Text: text, Runes: missing}
		}
	}
	return nil
}

// missing returns the non-space runes of text that map to glyph 0.
func (r *Renderer) missing(text string) []rune {
	var out []rune
	for _, c := range text {
		if unicode.IsSpace(c) {
			continue
		}
		idx, err := r.font.GlyphIndex(&r.buf, c)
		if err != nil || idx == 0 {
			out = append(out, c)
		}
	}
	return out
}
