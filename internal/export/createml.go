package export

import (
	"path/filepath"

	"github.com/ironsheep/text-synth/internal/annotation"
)

type createMLImage struct {
	Image       string               `json:"image"`
	Annotations []createMLAnnotation `json:"annotations"`
}

type createMLAnnotation struct {
	Label       string               `json:"label"`
	Coordinates createMLCoordinates  `json:"coordinates"`
	Transform   annotation.Transform `json:"transform"`
}

// createMLCoordinates are absolute pixels with x, y at the box center.
type createMLCoordinates struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// createMLWriter writes <root>[/<split>]/annotations.json with the images
// next to it. The label of each box is its text.
type createMLWriter struct{}

func (createMLWriter) imageDir(split string) string { return split }

func (createMLWriter) nameKey(file string) string { return file }

func (createMLWriter) write(root string, subsets []*subset) error {
	for _, s := range subsets {
		doc := make([]createMLImage, 0, len(s.images))
		for _, img := range s.images {
			entry := createMLImage{Image: img.file, Annotations: make([]createMLAnnotation, 0, len(img.records))}
			for _, r := range img.records {
				entry.Annotations = append(entry.Annotations, createMLAnnotation{
					Label: r.Text,
					Coordinates: createMLCoordinates{
						X:      float64(r.Position.X) + float64(r.Size.Width)/2,
						Y:      float64(r.Position.Y) + float64(r.Size.Height)/2,
						Width:  r.Size.Width,
						Height: r.Size.Height,
					},
					Transform: r.Transform,
				})
			}
			doc = append(doc, entry)
		}
		if err := writeJSON(filepath.Join(root, s.name, AnnotationFile), doc); err != nil {
			return err
		}
	}
	return nil
}
