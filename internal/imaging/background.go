package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"sync"

	"github.com/anthonynsimon/bild/noise"
	"github.com/disintegration/imaging"
)

// BackgroundMode selects what Backgrounds produces when no background images
// are loaded.
type BackgroundMode string

const (
	// ModeSolid fills the canvas with the configured color.
	ModeSolid BackgroundMode = "solid"
	// ModeNoise fills the canvas with uniform random noise.
	ModeNoise BackgroundMode = "noise"
)

// Backgrounds supplies canvases for synthesis.
//
// Loaded background images take precedence: each call picks one at random
// and crops/resizes it to the requested size. Without loaded images the
// mode decides between a solid fill and random noise.
//
// Backgrounds is safe for concurrent use once loading has finished.
type Backgrounds struct {
	cache      *ImageCache
	paths      []string
	fill       color.NRGBA
	mode       BackgroundMode
	monochrome bool
}

// NewBackgrounds creates a provider that falls back to fill or noise.
func NewBackgrounds(fill color.NRGBA, mode BackgroundMode) *Backgrounds {
	if mode == "" {
		mode = ModeSolid
	}
	return &Backgrounds{
		cache: NewImageCache(),
		fill:  fill,
		mode:  mode,
	}
}

// SetMonochromeNoise makes ModeNoise produce gray noise instead of colored.
func (b *Backgrounds) SetMonochromeNoise(on bool) {
	b.monochrome = on
}

// LoadDirectory decodes every supported image in dir and adds it to the
// pool. It returns the number of images added.
//
// # Errors
//
//   - Returns error if dir cannot be read.
//   - Returns error if a supported file fails to decode; nothing from dir
//     is added in that case.
func (b *Backgrounds) LoadDirectory(dir string) (int, error) {
	paths, err := ListImages(dir)
	if err != nil {
		return 0, err
	}
	for _, p := range paths {
		if _, err := b.cache.Load(p); err != nil {
			for _, loaded := range paths {
				b.cache.Evict(loaded)
			}
			return 0, fmt.Errorf("failed to load background %s: %w", p, err)
		}
	}
	b.paths = append(b.paths, paths...)
	return len(paths), nil
}

// Len returns the number of loaded background images.
func (b *Backgrounds) Len() int {
	return len(b.paths)
}

// Background returns a width x height canvas.
//
// The rng drives the choice of background image, or seeds the noise when
// ModeNoise is active. The returned image is always a fresh copy that the
// caller may draw on.
func (b *Backgrounds) Background(rng *rand.Rand, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid background size %dx%d", width, height)
	}

	if len(b.paths) > 0 {
		path := b.paths[rng.IntN(len(b.paths))]
		img, err := b.cache.Load(path)
		if err != nil {
			return nil, err
		}
		return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos), nil
	}

	switch b.mode {
	case ModeNoise:
		return b.noise(rng, width, height), nil
	case ModeSolid:
		return imaging.New(width, height, b.fill), nil
	default:
		return nil, fmt.Errorf("unknown background mode: %s", b.mode)
	}
}

// noise draws one value from rng to seed a private stream, so the caller's
// stream advances identically regardless of canvas size.
func (b *Backgrounds) noise(rng *rand.Rand, width, height int) image.Image {
	seed := rng.Uint64()
	src := rand.New(rand.NewPCG(seed, seed>>1|1))

	// bild may fill rows from several goroutines.
	var mu sync.Mutex
	fn := func() uint8 {
		mu.Lock()
		defer mu.Unlock()
		return uint8(src.IntN(256))
	}
	return noise.Generate(width, height, &noise.Options{NoiseFn: fn, Monochrome: b.monochrome})
}
