package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/text-synth/internal/imaging"
)

// writeJSON encodes v with two-space indentation and without HTML
// escaping, then writes it to path atomically.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return imaging.WriteFileAtomic(path, buf.Bytes())
}
