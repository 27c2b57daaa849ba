package export

import (
	"math"
	"path/filepath"

	"github.com/ironsheep/text-synth/internal/annotation"
)

// AnnotationFile is the annotation document name of the COCO and CreateML
// layouts.
const AnnotationFile = "annotations.json"

type cocoDataset struct {
	Info        cocoInfo         `json:"info"`
	Licenses    []cocoLicense    `json:"licenses"`
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

type cocoInfo struct {
	Description string `json:"description"`
	Version     string `json:"version"`
	Contributor string `json:"contributor"`
}

type cocoLicense struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type cocoImage struct {
	ID       int    `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileName string `json:"file_name"`
	License  int    `json:"license"`
}

type cocoAnnotation struct {
	ID           int            `json:"id"`
	ImageID      int            `json:"image_id"`
	CategoryID   int            `json:"category_id"`
	BBox         [4]int         `json:"bbox"`
	Area         int            `json:"area"`
	Segmentation [][]float64    `json:"segmentation"`
	IsCrowd      int            `json:"iscrowd"`
	Attributes   cocoAttributes `json:"attributes"`
}

type cocoAttributes struct {
	Text      string               `json:"text"`
	Transform annotation.Transform `json:"transform"`
}

type cocoCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

const textCategory = 1

// cocoWriter writes <root>[/<split>]/annotations.json with the images next
// to it. Image and annotation ids start at 1 in every file.
type cocoWriter struct{}

func (cocoWriter) imageDir(split string) string { return split }

func (cocoWriter) nameKey(file string) string { return file }

func (cocoWriter) write(root string, subsets []*subset) error {
	for _, s := range subsets {
		if err := writeJSON(filepath.Join(root, s.name, AnnotationFile), cocoDocument(s)); err != nil {
			return err
		}
	}
	return nil
}

func cocoDocument(s *subset) cocoDataset {
	doc := cocoDataset{
		Info: cocoInfo{
			Description: "Synthesized text dataset",
			Version:     "1.0",
			Contributor: "text-synth",
		},
		Licenses:    []cocoLicense{{ID: 1, Name: "Unknown", URL: ""}},
		Images:      []cocoImage{},
		Annotations: []cocoAnnotation{},
		Categories:  []cocoCategory{{ID: textCategory, Name: "text", Supercategory: "text"}},
	}

	annID := 1
	for i, img := range s.images {
		imageID := i + 1
		doc.Images = append(doc.Images, cocoImage{
			ID:       imageID,
			Width:    img.width,
			Height:   img.height,
			FileName: img.file,
			License:  1,
		})
		for _, r := range img.records {
			doc.Annotations = append(doc.Annotations, cocoAnnotation{
				ID:           annID,
				ImageID:      imageID,
				CategoryID:   textCategory,
				BBox:         [4]int{r.Position.X, r.Position.Y, r.Size.Width, r.Size.Height},
				Area:         r.Size.Width * r.Size.Height,
				Segmentation: [][]float64{segmentation(r)},
				Attributes:   cocoAttributes{Text: r.Text, Transform: r.Transform},
			})
			annID++
		}
	}
	return doc
}

// segmentation flattens the record's quadrilateral to x1,y1,...,x4,y4.
func segmentation(r annotation.Record) []float64 {
	q := r.Quad()
	out := make([]float64, 0, 8)
	for _, p := range q {
		out = append(out, round2(p.X), round2(p.Y))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
