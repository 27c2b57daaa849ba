package imaging

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ParseColor parses a hex color such as "#1e90ff", "1E90FF" or "#fff" into
// an opaque color.NRGBA.
func ParseColor(hex string) (color.NRGBA, error) {
	s := strings.TrimSpace(hex)
	if s == "" {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}

	s = expandShortHex(s)
	if len(s) != 7 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want #rrggbb", hex)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// ColorHex formats c as "#rrggbb", ignoring alpha.
func ColorHex(c color.Color) string {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		// Fully transparent colors have no defined hue.
		return "#000000"
	}
	return cf.Hex()
}

// expandShortHex turns "#abc" into "#aabbcc". Other inputs pass through.
func expandShortHex(s string) string {
	if len(s) != 4 {
		return s
	}
	return string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
}
