package placement

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/ironsheep/text-synth/internal/geometry"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestPlace_IdentityRange(t *testing.T) {
	e := New(Options{})
	rng := newRand(1)
	req := Request{
		Glyph:  geometry.Size{Width: 50, Height: 20},
		Canvas: geometry.Size{Width: 200, Height: 200},
	}

	for i := 0; i < 500; i++ {
		res, err := e.Place(rng, req)
		if err != nil {
			t.Fatalf("Place failed: %v", err)
		}
		if res.Box.X < 0 || res.Box.X > 150 || res.Box.Y < 0 || res.Box.Y > 180 {
			t.Fatalf("position out of range: %+v", res.Box)
		}
		if res.Box.Width != 50 || res.Box.Height != 20 {
			t.Fatalf("identity changed size: %+v", res.Box)
		}
		if res.Rotation != 0 || res.Perspective != nil {
			t.Fatalf("identity produced transform: %+v", res)
		}
	}
}

func TestPlace_IdentityReachesEdges(t *testing.T) {
	e := New(Options{})
	rng := newRand(2)
	req := Request{
		Glyph:  geometry.Size{Width: 8, Height: 8},
		Canvas: geometry.Size{Width: 10, Height: 10},
	}

	seen := map[int]bool{}
	for i := 0; i < 300; i++ {
		res, err := e.Place(rng, req)
		if err != nil {
			t.Fatalf("Place failed: %v", err)
		}
		seen[res.Box.X] = true
	}
	for x := 0; x <= 2; x++ {
		if !seen[x] {
			t.Errorf("x=%d never sampled", x)
		}
	}
}

func TestPlace_ContainedAndConsistent(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"rotation", Options{Rotation: true, RotationRange: Range{Min: -30, Max: 30}}},
		{"full rotation", Options{Rotation: true, RotationRange: Range{Min: 0, Max: 360}}},
		{"perspective", Options{Perspective: true, PerspectiveRatio: 0.2}},
		{"both", Options{Rotation: true, RotationRange: Range{Min: -15, Max: 15}, Perspective: true}},
	}

	canvas := geometry.Size{Width: 200, Height: 120}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.opts)
			rng := newRand(42)
			for i := 0; i < 200; i++ {
				glyph := geometry.Size{Width: 10 + rng.IntN(60), Height: 10 + rng.IntN(40)}
				res, err := e.Place(rng, Request{Glyph: glyph, Canvas: canvas})
				if err != nil {
					t.Fatalf("Place(%v) failed: %v", glyph, err)
				}
				if !geometry.Contains(canvas, res.Corners.Points()) {
					t.Fatalf("corners escape canvas: %v", res.Corners)
				}
				box, err := geometry.BoundingBox(res.Corners.Points())
				if err != nil {
					t.Fatalf("BoundingBox failed: %v", err)
				}
				if box != res.Box {
					t.Fatalf("box mismatch: recomputed %+v, returned %+v", box, res.Box)
				}
				if res.Rotation < 0 || res.Rotation >= 360 {
					t.Fatalf("rotation not normalized: %v", res.Rotation)
				}
				if tt.opts.Perspective {
					if res.Perspective == nil {
						t.Fatal("perspective missing")
					}
					if !geometry.IsSimpleQuad(*res.Perspective) {
						t.Fatalf("perspective not simple: %v", *res.Perspective)
					}
				}
			}
		})
	}
}

func TestPlace_GlyphTooLarge(t *testing.T) {
	e := New(Options{})
	_, err := e.Place(newRand(3), Request{
		Glyph:  geometry.Size{Width: 201, Height: 10},
		Canvas: geometry.Size{Width: 200, Height: 200},
	})

	var pe *PlacementError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PlacementError, got %v", err)
	}
	if !errors.Is(err, ErrGlyphTooLarge) {
		t.Errorf("expected ErrGlyphTooLarge, got %v", err)
	}
	if pe.Attempts != 0 {
		t.Errorf("attempts: got %d, want 0", pe.Attempts)
	}
}

func TestPlace_BudgetExhausted(t *testing.T) {
	// A full-canvas glyph rotated by 45 degrees never fits.
	e := New(Options{Rotation: true, RotationRange: Range{Min: 45, Max: 45}, MaxRetries: 7})
	_, err := e.Place(newRand(4), Request{
		Glyph:  geometry.Size{Width: 100, Height: 100},
		Canvas: geometry.Size{Width: 100, Height: 100},
	})

	var pe *PlacementError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PlacementError, got %v", err)
	}
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Errorf("expected ErrBudgetExhausted, got %v", err)
	}
	if pe.Budget != 7 || pe.Attempts != 7 {
		t.Errorf("budget: got %d/%d, want 7/7", pe.Attempts, pe.Budget)
	}
}

func TestPlace_AvoidsOccupied(t *testing.T) {
	e := New(Options{})
	occupied := []geometry.Box{{X: 0, Y: 0, Width: 100, Height: 100}}
	rng := newRand(5)

	for i := 0; i < 100; i++ {
		res, err := e.Place(rng, Request{
			Glyph:    geometry.Size{Width: 20, Height: 20},
			Canvas:   geometry.Size{Width: 200, Height: 200},
			Occupied: occupied,
		})
		if err != nil {
			t.Fatalf("Place failed: %v", err)
		}
		if res.Box.Overlaps(occupied[0]) {
			t.Fatalf("placement overlaps occupied box: %+v", res.Box)
		}
	}
}

func TestPlace_Reproducible(t *testing.T) {
	e := New(Options{Rotation: true, RotationRange: Range{Min: -10, Max: 10}, Perspective: true})
	req := Request{Glyph: geometry.Size{Width: 40, Height: 20}, Canvas: geometry.Size{Width: 200, Height: 200}}

	a, err := e.Place(newRand(9), req)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	b, err := e.Place(newRand(9), req)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if a.Corners != b.Corners || a.Box != b.Box || a.Rotation != b.Rotation {
		t.Errorf("same seed gave different results: %+v vs %+v", a, b)
	}
}

func TestPlace_DegenerateGlyph(t *testing.T) {
	e := New(Options{})
	_, err := e.Place(newRand(6), Request{
		Glyph:  geometry.Size{Width: 1, Height: 10},
		Canvas: geometry.Size{Width: 50, Height: 50},
	})
	var dge *geometry.DegenerateGeometryError
	if !errors.As(err, &dge) {
		t.Fatalf("expected DegenerateGeometryError, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	e := New(Options{Perspective: true, PerspectiveRatio: 0.9, RotationRange: Range{Min: 5, Max: -5}})
	opts := e.Options()
	if opts.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries: got %d, want %d", opts.MaxRetries, DefaultMaxRetries)
	}
	if opts.PerspectiveRatio != MaxPerspectiveRatio {
		t.Errorf("PerspectiveRatio: got %v, want %v", opts.PerspectiveRatio, MaxPerspectiveRatio)
	}
	if opts.RotationRange.Min != -5 || opts.RotationRange.Max != 5 {
		t.Errorf("RotationRange not ordered: %+v", opts.RotationRange)
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0}, {-2, 358}, {360, 0}, {725, 5}, {-360, 0},
	}
	for _, tt := range tests {
		if got := normalizeAngle(tt.in); got != tt.want {
			t.Errorf("normalizeAngle(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}
