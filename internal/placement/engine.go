package placement

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/ironsheep/text-synth/internal/geometry"
	"github.com/ironsheep/text-synth/internal/logging"
)

const (
	// DefaultMaxRetries bounds the rejection loop when Options.MaxRetries is 0.
	DefaultMaxRetries = 100

	// DefaultPerspectiveRatio is the corner offset used when perspective is
	// enabled without an explicit ratio.
	DefaultPerspectiveRatio = 0.1

	// MaxPerspectiveRatio caps corner offsets so opposite edges of the glyph
	// rectangle always keep a gap.
	MaxPerspectiveRatio = 0.25
)

var (
	// ErrGlyphTooLarge means the untransformed glyph is wider or taller than
	// the canvas, so no transform can make it fit.
	ErrGlyphTooLarge = errors.New("glyph larger than canvas")

	// ErrBudgetExhausted means every attempt of the retry budget was rejected.
	ErrBudgetExhausted = errors.New("placement retry budget exhausted")
)

// PlacementError reports a glyph that could not be placed on a canvas.
type PlacementError struct {
	Glyph    geometry.Size
	Canvas   geometry.Size
	Attempts int
	Budget   int
	Err      error
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("cannot place %dx%d glyph on %dx%d canvas after %d/%d attempts: %v",
		e.Glyph.Width, e.Glyph.Height, e.Canvas.Width, e.Canvas.Height, e.Attempts, e.Budget, e.Err)
}

func (e *PlacementError) Unwrap() error { return e.Err }

// Range is an inclusive interval of degrees.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Options configures the engine.
type Options struct {
	// Rotation enables a random angle drawn uniformly from RotationRange.
	Rotation      bool
	RotationRange Range

	// Perspective enables random corner displacement of up to
	// PerspectiveRatio * min(w, h) pixels per axis.
	Perspective      bool
	PerspectiveRatio float64

	// MaxRetries is the rejection budget per placement. Zero means
	// DefaultMaxRetries.
	MaxRetries int

	Logger *slog.Logger
}

// Request describes one glyph to place.
type Request struct {
	Glyph  geometry.Size
	Canvas geometry.Size

	// Occupied lists boxes already used on the canvas. Candidates that
	// overlap any of them are rejected.
	Occupied []geometry.Box
}

// Result is a bounds-safe placement.
type Result struct {
	// Rotation is the sampled angle normalized to [0, 360).
	Rotation float64

	// Perspective holds the translated corners that the glyph rectangle was
	// mapped to. Nil unless perspective is enabled.
	Perspective *geometry.Quad

	// Corners are the final glyph corners in canvas space, clockwise from
	// the glyph's top-left.
	Corners geometry.Quad

	// Box is the bounding box of Corners.
	Box geometry.Box

	// Attempts counts the samples drawn, including the accepted one.
	Attempts int
}

// Engine places glyphs. It holds no mutable state and is safe for
// concurrent use as long as each goroutine passes its own *rand.Rand.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// New creates an engine, filling in defaults for zero-valued options.
func New(opts Options) *Engine {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Perspective && opts.PerspectiveRatio <= 0 {
		opts.PerspectiveRatio = DefaultPerspectiveRatio
	}
	if opts.PerspectiveRatio > MaxPerspectiveRatio {
		opts.PerspectiveRatio = MaxPerspectiveRatio
	}
	if opts.RotationRange.Min > opts.RotationRange.Max {
		opts.RotationRange.Min, opts.RotationRange.Max = opts.RotationRange.Max, opts.RotationRange.Min
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{opts: opts, logger: logger}
}

// Options returns the effective options after defaults.
func (e *Engine) Options() Options {
	return e.opts
}

// Place finds a transform and offset for req.Glyph inside req.Canvas.
//
// # Errors
//
//   - *PlacementError wrapping ErrGlyphTooLarge if the glyph exceeds the
//     canvas before any transform.
//   - *PlacementError wrapping ErrBudgetExhausted if every attempt is
//     rejected.
//   - *geometry.DegenerateGeometryError if the glyph has zero area (a
//     single row or column of pixels).
func (e *Engine) Place(rng *rand.Rand, req Request) (*Result, error) {
	w, h := req.Glyph.Width, req.Glyph.Height
	W, H := req.Canvas.Width, req.Canvas.Height
	if w <= 0 || h <= 0 || W <= 0 || H <= 0 {
		return nil, fmt.Errorf("invalid placement sizes: glyph %dx%d, canvas %dx%d", w, h, W, H)
	}
	if w > W || h > H {
		return nil, &PlacementError{
			Glyph:  req.Glyph,
			Canvas: req.Canvas,
			Budget: e.opts.MaxRetries,
			Err:    ErrGlyphTooLarge,
		}
	}

	rect := geometry.RectCorners(w, h)
	pivot := geometry.Center(w, h)

	for attempt := 1; attempt <= e.opts.MaxRetries; attempt++ {
		corners := rect
		if e.opts.Perspective {
			target, ok := e.samplePerspective(rng, rect, w, h)
			if !ok {
				continue
			}
			mapped, err := geometry.ApplyPerspective(rect, target)
			if err != nil {
				continue
			}
			corners, _ = geometry.QuadFromPoints(mapped)
		}

		angle := 0.0
		if e.opts.Rotation {
			angle = e.opts.RotationRange.Min + rng.Float64()*(e.opts.RotationRange.Max-e.opts.RotationRange.Min)
			rotated := geometry.Rotate(corners.Points(), angle, pivot)
			corners, _ = geometry.QuadFromPoints(rotated)
		}

		box, err := geometry.BoundingBox(corners.Points())
		if err != nil {
			return nil, err
		}
		if box.Width > W || box.Height > H {
			continue
		}

		// Integer offsets keep the floor of every coordinate aligned, so
		// the translated box keeps its size.
		x := rng.IntN(W-box.Width+1)
		y := rng.IntN(H-box.Height+1)
		placed := corners.Translate(float64(x-box.X), float64(y-box.Y))

		final, err := geometry.BoundingBox(placed.Points())
		if err != nil {
			return nil, err
		}
		want := geometry.Box{X: x, Y: y, Width: box.Width, Height: box.Height}
		if final != want || !geometry.Contains(req.Canvas, placed.Points()) {
			continue
		}
		if overlapsAny(final, req.Occupied) {
			continue
		}

		res := &Result{
			Rotation: normalizeAngle(angle),
			Corners:  placed,
			Box:      final,
			Attempts: attempt,
		}
		if e.opts.Perspective {
			q := placed
			res.Perspective = &q
		}
		return res, nil
	}

	e.logger.Debug("placement budget exhausted",
		"glyph_width", w, "glyph_height", h,
		"canvas_width", W, "canvas_height", H,
		"budget", e.opts.MaxRetries)

	return nil, &PlacementError{
		Glyph:    req.Glyph,
		Canvas:   req.Canvas,
		Attempts: e.opts.MaxRetries,
		Budget:   e.opts.MaxRetries,
		Err:      ErrBudgetExhausted,
	}
}

// samplePerspective displaces each corner of rect by a bounded random
// offset. The boolean is false when the result is not a simple quad.
func (e *Engine) samplePerspective(rng *rand.Rand, rect geometry.Quad, w, h int) (geometry.Quad, bool) {
	m := e.opts.PerspectiveRatio * float64(min(w, h))
	var q geometry.Quad
	for i, p := range rect {
		q[i] = geometry.Point{
			X: p.X + (rng.Float64()*2-1)*m,
			Y: p.Y + (rng.Float64()*2-1)*m,
		}
	}
	return q, geometry.IsSimpleQuad(q)
}

func overlapsAny(b geometry.Box, boxes []geometry.Box) bool {
	for _, o := range boxes {
		if b.Overlaps(o) {
			return true
		}
	}
	return false
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}
