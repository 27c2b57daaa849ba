package render

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func newTestRenderer(t *testing.T, size float64, pad int) *Renderer {
	t.Helper()
	r, err := New(goregular.TTF, Options{Size: size, Padding: pad, Color: color.NRGBA{255, 0, 0, 255}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRender_TightBounds(t *testing.T) {
	r := newTestRenderer(t, 32, 0)

	img, err := r.Render("Hello")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	b := img.Bounds()
	if b.Dx() < 40 || b.Dy() < 15 || b.Dy() > 40 {
		t.Fatalf("unexpected glyph size %dx%d", b.Dx(), b.Dy())
	}

	// Every edge row and column carries ink when there is no padding.
	inkRow := func(y int) bool {
		for x := 0; x < b.Dx(); x++ {
			if img.NRGBAAt(x, y).A > 0 {
				return true
			}
		}
		return false
	}
	inkCol := func(x int) bool {
		for y := 0; y < b.Dy(); y++ {
			if img.NRGBAAt(x, y).A > 0 {
				return true
			}
		}
		return false
	}
	if !inkRow(0) && !inkRow(1) {
		t.Error("top rows are empty")
	}
	if !inkCol(0) && !inkCol(1) {
		t.Error("left columns are empty")
	}
	if !inkRow(b.Dy()-1) && !inkRow(b.Dy()-2) {
		t.Error("bottom rows are empty")
	}
}

func TestRender_PaddingAndColor(t *testing.T) {
	tight := newTestRenderer(t, 24, 0)
	padded := newTestRenderer(t, 24, 3)

	a, err := tight.Render("Ag")
	if err != nil {
		t.Fatal(err)
	}
	b, err := padded.Render("Ag")
	if err != nil {
		t.Fatal(err)
	}
	if b.Bounds().Dx() != a.Bounds().Dx()+6 || b.Bounds().Dy() != a.Bounds().Dy()+6 {
		t.Errorf("padding: tight %v, padded %v", a.Bounds(), b.Bounds())
	}
	for x := 0; x < b.Bounds().Dx(); x++ {
		if b.NRGBAAt(x, 0).A != 0 || b.NRGBAAt(x, 2).A != 0 {
			t.Fatalf("ink inside padding at column %d", x)
		}
	}

	found := false
	for y := 0; y < a.Bounds().Dy() && !found; y++ {
		for x := 0; x < a.Bounds().Dx(); x++ {
			if c := a.NRGBAAt(x, y); c.A == 255 {
				if c.R != 255 || c.G != 0 || c.B != 0 {
					t.Fatalf("ink color: got %v, want red", c)
				}
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("no fully opaque pixel")
	}
}

func TestRender_Errors(t *testing.T) {
	r := newTestRenderer(t, 16, 2)

	if _, err := r.Render(""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("empty text: got %v", err)
	}
	if _, err := r.Render("   "); !errors.Is(err, ErrNoInk) {
		t.Errorf("spaces: got %v", err)
	}

	_, err := r.Render("a你")
	var mg *MissingGlyphError
	if !errors.As(err, &mg) {
		t.Fatalf("missing glyph: got %v", err)
	}
	if len(mg.Runes) != 1 || mg.Runes[0] != '你' {
		t.Errorf("missing runes: got %q", string(mg.Runes))
	}
}

func TestScaled(t *testing.T) {
	r := newTestRenderer(t, 40, 0)

	half, err := r.Scaled(0.5)
	if err != nil {
		t.Fatalf("Scaled failed: %v", err)
	}
	if got := half.(*Renderer).Size(); got != 20 {
		t.Errorf("Size: got %v, want 20", got)
	}

	big, _ := r.Render("W")
	small, err := half.Render("W")
	if err != nil {
		t.Fatal(err)
	}
	if small.Bounds().Dx() >= big.Bounds().Dx() {
		t.Errorf("scaled glyph not smaller: %v vs %v", small.Bounds(), big.Bounds())
	}

	if _, err := r.Scaled(0.01); err == nil {
		t.Error("Scaled below MinSize should fail")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "font.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(path, Options{Size: 12})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer r.Close()

	img, err := r.Render("x")
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Empty() {
		t.Error("rendered image is empty")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.ttf"), Options{Size: 12}); err == nil {
		t.Error("Load should fail for a missing file")
	}
	if _, err := New([]byte("not a font"), Options{Size: 12}); err == nil {
		t.Error("New should fail for garbage data")
	}
}

func TestRender_Concurrent(t *testing.T) {
	r := newTestRenderer(t, 20, 1)
	want, err := r.Render("concurrent")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Render("concurrent")
			if err != nil {
				t.Error(err)
				return
			}
			if got.Bounds() != want.Bounds() {
				t.Errorf("bounds differ: %v vs %v", got.Bounds(), want.Bounds())
			}
		}()
	}
	wg.Wait()
}

func TestRenderer_Check(t *testing.T) {
	r, err := New(goregular.TTF, Options{Size: 16})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if err := r.Check([]string{"abc", "hello world"}); err != nil {
		t.Errorf("Check on Latin texts: %v", err)
	}

	err = r.Check([]string{"abc", "a好", "啊"})
	var mg *MissingGlyphError
	if !errors.As(err, &mg) {
		t.Fatalf("Check: got %v, want *MissingGlyphError", err)
	}
	if mg.Text != "a好" || string(mg.Runes) != "好" {
		t.Errorf("Check: got %q missing %q", mg.Text, string(mg.Runes))
	}
}
