package export

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/text-synth/internal/annotation"
	"github.com/ironsheep/text-synth/internal/imaging"
)

// DataFile is the YOLO dataset description.
const DataFile = "data.yaml"

type yoloData struct {
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	Test  string   `yaml:"test,omitempty"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// yoloWriter writes images/[<split>/]<name>, labels/[<split>/]<stem>.txt
// and data.yaml. Only the bounding box survives; transforms are dropped.
type yoloWriter struct{}

func (yoloWriter) imageDir(split string) string { return path.Join("images", split) }

// nameKey is the label stem: a.png and a.jpg would share labels/a.txt.
func (yoloWriter) nameKey(file string) string { return labelStem(file) }

func (yoloWriter) write(root string, subsets []*subset) error {
	data := yoloData{NC: 1, Names: []string{"text"}}
	for _, s := range subsets {
		labels := filepath.Join(root, "labels", s.name)
		if err := os.MkdirAll(labels, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		for _, img := range s.images {
			stem := labelStem(img.file)
			var b strings.Builder
			for _, r := range img.records {
				b.WriteString(yoloLine(r, img.width, img.height))
				b.WriteByte('\n')
			}
			if err := imaging.WriteFileAtomic(filepath.Join(labels, stem+".txt"), []byte(b.String())); err != nil {
				return err
			}
		}

		dir := "./" + path.Join("images", s.name)
		switch s.name {
		case SplitTrain:
			data.Train = dir
		case SplitVal:
			data.Val = dir
		case SplitTest:
			data.Test = dir
		default:
			data.Train, data.Val = dir, dir
		}
	}

	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", DataFile, err)
	}
	return imaging.WriteFileAtomic(filepath.Join(root, DataFile), out)
}

// yoloLine formats r as "0 cx cy w h", normalized by the image size.
func yoloLine(r annotation.Record, width, height int) string {
	w, h := float64(width), float64(height)
	cx := (float64(r.Position.X) + float64(r.Size.Width)/2) / w
	cy := (float64(r.Position.Y) + float64(r.Size.Height)/2) / h
	return fmt.Sprintf("0 %.6f %.6f %.6f %.6f", cx, cy, float64(r.Size.Width)/w, float64(r.Size.Height)/h)
}

func labelStem(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}
