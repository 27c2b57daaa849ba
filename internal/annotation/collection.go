package annotation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// DocumentName is the batch document written next to synthesized images.
const DocumentName = "annotations.json"

// Collection is an ordered, append-only sequence of records.
//
// Collection is safe for concurrent use.
type Collection struct {
	mu      sync.RWMutex
	records []Record
}

// NewCollection creates a collection holding copies of records.
func NewCollection(records ...Record) (*Collection, error) {
	c := &Collection{}
	if err := c.Append(records...); err != nil {
		return nil, err
	}
	return c, nil
}

// Append validates and appends records. Nothing is appended when any record
// is invalid.
func (c *Collection) Append(records ...Record) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("invalid record %d (%q): %w", i, r.Text, err)
		}
	}

	c.mu.Lock()
	for _, r := range records {
		c.records = append(c.records, r.clone())
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of records.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Records returns a copy of the records in insertion order.
func (c *Collection) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Record, len(c.records))
	for i, r := range c.records {
		out[i] = r.clone()
	}
	return out
}

// ImagePaths returns the distinct image paths in first-seen order.
func (c *Collection) ImagePaths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool)
	var paths []string
	for _, r := range c.records {
		if !seen[r.ImagePath] {
			seen[r.ImagePath] = true
			paths = append(paths, r.ImagePath)
		}
	}
	return paths
}

// Encode writes the batch document to w, indented for readability. Non
// ASCII text is written verbatim.
func (c *Collection) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	records := c.Records()
	if records == nil {
		records = []Record{}
	}
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode annotations: %w", err)
	}
	return nil
}

// Bytes returns the encoded batch document.
func (c *Collection) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a batch document from r.
func Decode(r io.Reader) (*Collection, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode annotations: %w", err)
	}
	return NewCollection(records...)
}

// LoadFile reads a batch document from path.
func LoadFile(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotations: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
