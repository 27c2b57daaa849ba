// Package synth composites rendered text onto backgrounds and records where
// each instance landed.
//
// A Synthesizer combines three collaborators: a BackgroundProvider for the
// canvas, a FontRenderer for glyphs and a placement.Engine for the
// transform and offset. It never mutates shared state while synthesizing,
// so canvases can be produced on several goroutines as long as each one has
// its own *rand.Rand.
//
// # Reproducibility
//
// Batch seeds canvas i with rand.NewPCG(Seed, i). The same texts, options
// and seed produce the same images and records whatever the worker count.
package synth

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/ironsheep/text-synth/internal/annotation"
	"github.com/ironsheep/text-synth/internal/geometry"
	"github.com/ironsheep/text-synth/internal/imaging"
	"github.com/ironsheep/text-synth/internal/logging"
	"github.com/ironsheep/text-synth/internal/placement"
)

// BackgroundProvider supplies a fresh canvas of the requested size.
type BackgroundProvider interface {
	Background(rng *rand.Rand, width, height int) (image.Image, error)
}

// FontRenderer rasterizes one text run into a tight glyph image.
type FontRenderer = interface {
	Render(text string) (*image.NRGBA, error)
}

// ScalableRenderer is a FontRenderer that can produce a copy of itself at a
// different font size. It enables the font-shrink fallback.
type ScalableRenderer interface {
	FontRenderer
	Size() float64
	Scaled(factor float64) (FontRenderer, error)
}

// Options configures a Synthesizer.
type Options struct {
	// Width and Height are the canvas size.
	Width  int
	Height int

	// Backgrounds supplies canvases. Nil means a solid Fill.
	Backgrounds BackgroundProvider
	// Fill is the solid canvas color used without Backgrounds. The zero
	// value means white.
	Fill color.NRGBA

	Renderer FontRenderer

	// Engine places glyphs. Nil means placement.New with default options.
	Engine *placement.Engine

	// InstancesPerCanvas groups that many consecutive texts on one canvas
	// in Batch. Zero means 1.
	InstancesPerCanvas int

	Seed    uint64
	Workers int

	// StartIndex offsets the %06d.png image names written by Batch.
	StartIndex int

	// CollectErrors keeps going after a failed canvas and reports all
	// failures in a *BatchError.
	CollectErrors bool

	// ShrinkFactor re-renders a glyph that is larger than the canvas at
	// Size()*ShrinkFactor until it fits or its size would drop below
	// MinFontSize. Zero disables shrinking. Requires a ScalableRenderer.
	ShrinkFactor float64
	MinFontSize  float64

	// PreviewDir, when set, receives a copy of each canvas written by Batch
	// with every quadrilateral and box outlined.
	PreviewDir string

	Logger *slog.Logger
}

// Synthesizer produces annotated canvases.
type Synthesizer struct {
	opts        Options
	canvas      geometry.Size
	backgrounds BackgroundProvider
	engine      *placement.Engine
	logger      *slog.Logger
}

// Canvas is one composited image and the instances placed on it. Records
// have no image path until the canvas is persisted.
type Canvas struct {
	Image   *image.NRGBA
	Records []annotation.Record
}

// New validates opts and creates a Synthesizer.
func New(opts Options) (*Synthesizer, error) {
	if opts.Renderer == nil {
		return nil, errors.New("synthesizer needs a font renderer")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	if opts.InstancesPerCanvas <= 0 {
		opts.InstancesPerCanvas = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ShrinkFactor < 0 || opts.ShrinkFactor >= 1 {
		return nil, fmt.Errorf("shrink factor %v not in [0, 1)", opts.ShrinkFactor)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	engine := opts.Engine
	if engine == nil {
		engine = placement.New(placement.Options{Logger: logger})
	}
	bg := opts.Backgrounds
	if bg == nil {
		fill := opts.Fill
		if fill == (color.NRGBA{}) {
			fill = color.NRGBA{255, 255, 255, 255}
		}
		bg = imaging.NewBackgrounds(fill, imaging.ModeSolid)
	}

	return &Synthesizer{
		opts:        opts,
		canvas:      geometry.Size{Width: opts.Width, Height: opts.Height},
		backgrounds: bg,
		engine:      engine,
		logger:      logger,
	}, nil
}

// SynthesizeOne places a single text on a fresh canvas. Nothing is written
// to disk.
func (s *Synthesizer) SynthesizeOne(rng *rand.Rand, text string) (*image.NRGBA, annotation.Record, error) {
	c, err := s.SynthesizeCanvas(rng, []string{text})
	if err != nil {
		return nil, annotation.Record{}, err
	}
	return c.Image, c.Records[0], nil
}

// SynthesizeCanvas places every text on one canvas. Each instance avoids the
// bounding boxes of those placed before it.
//
// # Errors
//
//   - *SynthesisError wrapping the render or placement failure of the
//     first text that could not be placed. Index is the position in texts.
func (s *Synthesizer) SynthesizeCanvas(rng *rand.Rand, texts []string) (*Canvas, error) {
	return s.synthesize(rng, texts, 0)
}

func (s *Synthesizer) synthesize(rng *rand.Rand, texts []string, base int) (*Canvas, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts to synthesize")
	}

	bg, err := s.backgrounds.Background(rng, s.canvas.Width, s.canvas.Height)
	if err != nil {
		return nil, &SynthesisError{Text: texts[0], Index: base, Err: fmt.Errorf("failed to get background: %w", err)}
	}
	img := imaging.Clone(bg)

	records := make([]annotation.Record, 0, len(texts))
	occupied := make([]geometry.Box, 0, len(texts))
	for i, text := range texts {
		glyph, res, err := s.place(rng, text, occupied)
		if err != nil {
			return nil, &SynthesisError{Text: text, Index: base + i, Err: err}
		}
		layer, err := imaging.Warp(glyph, res.Corners, res.Box)
		if err != nil {
			return nil, &SynthesisError{Text: text, Index: base + i, Err: err}
		}
		img = imaging.Composite(img, layer, image.Pt(res.Box.X, res.Box.Y))

		occupied = append(occupied, res.Box)
		records = append(records, newRecord(text, res))
	}
	return &Canvas{Image: img, Records: records}, nil
}

// place renders text and finds a placement, shrinking the font while the
// glyph is larger than the canvas.
func (s *Synthesizer) place(rng *rand.Rand, text string, occupied []geometry.Box) (*image.NRGBA, *placement.Result, error) {
	r := s.opts.Renderer
	owned := false
	defer func() {
		if owned {
			closeRenderer(r)
		}
	}()

	for {
		glyph, err := r.Render(text)
		if err != nil {
			return nil, nil, err
		}
		gb := glyph.Bounds()
		res, err := s.engine.Place(rng, placement.Request{
			Glyph:    geometry.Size{Width: gb.Dx(), Height: gb.Dy()},
			Canvas:   s.canvas,
			Occupied: occupied,
		})
		if err == nil {
			return glyph, res, nil
		}

		next, ok := s.shrink(r, err)
		if !ok {
			return nil, nil, err
		}
		s.logger.Debug("glyph too large, shrinking font",
			"text", text, "glyph_width", gb.Dx(), "glyph_height", gb.Dy())
		if owned {
			closeRenderer(r)
		}
		r, owned = next, true
	}
}

// shrink returns a smaller renderer when err is a too-large glyph and the
// next size stays at or above MinFontSize.
func (s *Synthesizer) shrink(r FontRenderer, err error) (FontRenderer, bool) {
	if s.opts.ShrinkFactor == 0 || !errors.Is(err, placement.ErrGlyphTooLarge) {
		return nil, false
	}
	sr, ok := r.(ScalableRenderer)
	if !ok || sr.Size()*s.opts.ShrinkFactor < s.opts.MinFontSize {
		return nil, false
	}
	next, serr := sr.Scaled(s.opts.ShrinkFactor)
	if serr != nil {
		return nil, false
	}
	return next, true
}

func closeRenderer(r FontRenderer) {
	if c, ok := r.(io.Closer); ok {
		c.Close()
	}
}

func newRecord(text string, res *placement.Result) annotation.Record {
	rec := annotation.Record{
		Text:      text,
		Position:  annotation.Position{X: res.Box.X, Y: res.Box.Y},
		Size:      annotation.Size{Width: res.Box.Width, Height: res.Box.Height},
		Transform: annotation.Transform{Rotation: res.Rotation},
		Corners:   res.Corners.Points(),
	}
	if res.Perspective != nil {
		rec.Transform.Perspective = res.Perspective.Points()
	}
	return rec
}
