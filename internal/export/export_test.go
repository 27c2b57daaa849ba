package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/text-synth/internal/annotation"
	"github.com/ironsheep/text-synth/internal/config"
	"github.com/ironsheep/text-synth/internal/imaging"
	"github.com/ironsheep/text-synth/internal/synth"
)

// writeSource writes a w x h PNG into dir.
func writeSource(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if err := imaging.WriteImage(img, filepath.Join(dir, name)); err != nil {
		t.Fatalf("failed to write source image: %v", err)
	}
}

func record(text, imagePath string, x, y, w, h int) annotation.Record {
	return annotation.Record{
		Text:      text,
		Position:  annotation.Position{X: x, Y: y},
		Size:      annotation.Size{Width: w, Height: h},
		ImagePath: imagePath,
	}
}

// sourceSet writes n canvases with one record each.
func sourceSet(t *testing.T, n int) (string, []annotation.Record) {
	t.Helper()
	dir := t.TempDir()
	records := make([]annotation.Record, n)
	for i := range records {
		name := fmt.Sprintf("%06d.png", i)
		writeSource(t, dir, name, 64, 32)
		records[i] = record(fmt.Sprintf("t%d", i), name, i%30, 4, 20, 10)
	}
	return dir, records
}

// readTree returns every file under root keyed by its slash path.
func readTree(t *testing.T, root string) map[string][]byte {
	t.Helper()
	files := map[string][]byte{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		t.Fatalf("failed to read tree: %v", err)
	}
	return files
}

func TestYOLOLine(t *testing.T) {
	got := yoloLine(record("x", "a.png", 10, 10, 50, 20), 200, 200)
	if want := "0 0.175000 0.100000 0.250000 0.100000"; got != want {
		t.Errorf("yoloLine: got %q, want %q", got, want)
	}
}

func TestSplitSizes(t *testing.T) {
	tests := []struct {
		n                int
		train, val       float64
		wantT, wantV, wT int
	}{
		{100, 0.7, 0.2, 70, 20, 10},
		{10, 0.7, 0.2, 7, 2, 1},
		{3, 0.7, 0.2, 2, 1, 0},
		{1, 0.7, 0.2, 1, 0, 0},
		{0, 0.7, 0.2, 0, 0, 0},
		{5, 0.5, 0.5, 3, 2, 0},
	}
	for _, tt := range tests {
		tr, v, te := splitSizes(tt.n, tt.train, tt.val)
		if tr != tt.wantT || v != tt.wantV || te != tt.wT {
			t.Errorf("splitSizes(%d, %v, %v): got %d/%d/%d, want %d/%d/%d",
				tt.n, tt.train, tt.val, tr, v, te, tt.wantT, tt.wantV, tt.wT)
		}
	}
}

func TestExport_SplitIsDisjointAndExhaustive(t *testing.T) {
	src, records := sourceSet(t, 100)
	out := t.TempDir()

	report, err := Export(records, Options{
		Dir:       out,
		SourceDir: src,
		Format:    FormatCOCO,
		Split:     Split{Enabled: true, Train: 0.7, Val: 0.2, Test: 0.1, Seed: 7},
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	want := map[string]int{SplitTrain: 70, SplitVal: 20, SplitTest: 10}
	for _, s := range report.Splits {
		if s.Images != want[s.Name] || s.Annotations != want[s.Name] {
			t.Errorf("split %s: got %d images / %d annotations, want %d", s.Name, s.Images, s.Annotations, want[s.Name])
		}
	}

	seen := map[string]string{}
	for _, r := range report.Written {
		split, name, _ := strings.Cut(r.ImagePath, "/")
		if prev, ok := seen[name]; ok {
			t.Fatalf("%s in both %s and %s", name, prev, split)
		}
		seen[name] = split
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(r.ImagePath))); err != nil {
			t.Errorf("exported image missing: %v", err)
		}
	}
	if len(seen) != 100 {
		t.Errorf("exported %d distinct images, want 100", len(seen))
	}

	for name, n := range want {
		var doc cocoDataset
		data, err := os.ReadFile(filepath.Join(out, name, AnnotationFile))
		if err != nil {
			t.Fatal(err)
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("split %s: %v", name, err)
		}
		if len(doc.Images) != n || len(doc.Annotations) != n {
			t.Errorf("split %s document: %d images, %d annotations, want %d", name, len(doc.Images), len(doc.Annotations), n)
		}
	}
}

func TestExport_ByteIdentical(t *testing.T) {
	src, records := sourceSet(t, 12)
	for _, format := range []Format{FormatCOCO, FormatYOLO, FormatCreateML} {
		t.Run(string(format), func(t *testing.T) {
			opts := Options{
				SourceDir: src,
				Format:    format,
				Split:     Split{Enabled: true, Train: 0.5, Val: 0.25, Test: 0.25, Seed: 3},
			}
			opts.Dir = t.TempDir()
			if _, err := Export(records, opts); err != nil {
				t.Fatalf("first export: %v", err)
			}
			first := readTree(t, opts.Dir)

			if _, err := Export(records, opts); err != nil {
				t.Fatalf("re-export: %v", err)
			}
			again := readTree(t, opts.Dir)

			opts.Dir = t.TempDir()
			if _, err := Export(records, opts); err != nil {
				t.Fatalf("fresh export: %v", err)
			}
			fresh := readTree(t, opts.Dir)

			for _, other := range []map[string][]byte{again, fresh} {
				if len(other) != len(first) {
					t.Fatalf("file count: %d vs %d", len(other), len(first))
				}
				for name, data := range first {
					if string(other[name]) != string(data) {
						t.Errorf("%s differs between exports", name)
					}
				}
			}
		})
	}
}

func TestExport_MissingImage(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "present.png", 50, 50)
	records := []annotation.Record{
		record("a", "present.png", 1, 1, 10, 10),
		record("b", "gone.png", 1, 1, 10, 10),
		record("c", "gone.png", 5, 5, 10, 10),
	}

	report, err := Export(records, Options{Dir: t.TempDir(), SourceDir: src, Format: FormatCreateML})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(report.Written) != 1 || report.Written[0].Text != "a" {
		t.Errorf("written: %+v", report.Written)
	}
	if len(report.Skipped) != 1 {
		t.Fatalf("skipped: got %d, want 1", len(report.Skipped))
	}
	skip := report.Skipped[0]
	if filepath.Base(skip.Path) != "gone.png" || skip.Records != 2 || !errors.Is(skip, os.ErrNotExist) {
		t.Errorf("skip entry: %v", skip)
	}
}

func TestExport_ConfigErrorsBeforeIO(t *testing.T) {
	_, records := sourceSet(t, 1)
	tests := []struct {
		name string
		opts Options
	}{
		{"format", Options{Format: "voc"}},
		{"ratios", Options{Format: FormatYOLO, Split: Split{Enabled: true, Train: 0.5, Val: 0.1, Test: 0.1}}},
		{"dir", Options{Format: FormatCOCO}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name != "dir" {
				tt.opts.Dir = filepath.Join(t.TempDir(), "out")
			}
			_, err := Export(records, tt.opts)
			var ce *config.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Export: got %v, want *config.ConfigError", err)
			}
			if tt.opts.Dir != "" {
				if _, err := os.Stat(tt.opts.Dir); !os.IsNotExist(err) {
					t.Error("output directory created despite invalid options")
				}
			}
		})
	}
}

func TestExport_CreateML(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "img.png", 100, 80)
	rec := record("你好", "img.png", 10, 20, 30, 11)
	rec.Transform.Rotation = 1.5

	out := t.TempDir()
	if _, err := Export([]annotation.Record{rec, record("x", "img.png", 50, 50, 4, 4)}, Options{Dir: out, SourceDir: src, Format: FormatCreateML}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var doc []createMLImage
	data, err := os.ReadFile(filepath.Join(out, AnnotationFile))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc) != 1 || doc[0].Image != "img.png" || len(doc[0].Annotations) != 2 {
		t.Fatalf("document: %+v", doc)
	}
	a := doc[0].Annotations[0]
	if a.Label != "你好" || a.Coordinates != (createMLCoordinates{X: 25, Y: 25.5, Width: 30, Height: 11}) {
		t.Errorf("annotation: %+v", a)
	}
	if a.Transform.Rotation != 1.5 {
		t.Errorf("transform lost: %+v", a.Transform)
	}
	if !strings.Contains(string(data), "你好") {
		t.Error("text was escaped in the document")
	}
}

func TestExport_YOLOLayout(t *testing.T) {
	src, records := sourceSet(t, 10)
	records = append(records, record("second", records[0].ImagePath, 30, 10, 20, 10))
	out := t.TempDir()

	if _, err := Export(records, Options{
		Dir:       out,
		SourceDir: src,
		Format:    FormatYOLO,
		Split:     Split{Enabled: true, Train: 0.7, Val: 0.2, Test: 0.1, Seed: 1},
	}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var data yoloData
	raw, err := os.ReadFile(filepath.Join(out, DataFile))
	if err != nil {
		t.Fatal(err)
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		t.Fatal(err)
	}
	if data.Train != "./images/train" || data.Val != "./images/val" || data.Test != "./images/test" || data.NC != 1 {
		t.Errorf("data.yaml: %+v", data)
	}

	total := 0
	for _, split := range []string{SplitTrain, SplitVal, SplitTest} {
		images, _ := os.ReadDir(filepath.Join(out, "images", split))
		labels, _ := os.ReadDir(filepath.Join(out, "labels", split))
		if len(images) != len(labels) {
			t.Errorf("%s: %d images, %d labels", split, len(images), len(labels))
		}
		total += len(images)
	}
	if total != 10 {
		t.Errorf("images exported: got %d, want 10", total)
	}

	// The image with two records carries two label lines.
	matches, _ := filepath.Glob(filepath.Join(out, "labels", "*", "000000.txt"))
	if len(matches) != 1 {
		t.Fatalf("label for 000000: %v", matches)
	}
	label, _ := os.ReadFile(matches[0])
	if lines := strings.Split(strings.TrimSpace(string(label)), "\n"); len(lines) != 2 {
		t.Errorf("label lines: %q", label)
	}
}

func TestExport_NameCollisionAndMove(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeSource(t, a, "same.png", 20, 20)
	writeSource(t, b, "same.png", 20, 20)
	records := []annotation.Record{
		record("a", filepath.Join(a, "same.png"), 0, 0, 5, 5),
		record("b", filepath.Join(b, "same.png"), 0, 0, 5, 5),
	}

	out := t.TempDir()
	report, err := Export(records, Options{Dir: out, Format: FormatCOCO, Move: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if report.Written[0].ImagePath != "same.png" || report.Written[1].ImagePath != "same_1.png" {
		t.Errorf("names: %q %q", report.Written[0].ImagePath, report.Written[1].ImagePath)
	}
	for _, dir := range []string{a, b} {
		if _, err := os.Stat(filepath.Join(dir, "same.png")); !os.IsNotExist(err) {
			t.Errorf("source in %s not moved", dir)
		}
	}
}

func TestExport_YOLOSharedStem(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "a.png", 50, 50)
	writeSource(t, src, "a.jpg", 50, 50)
	records := []annotation.Record{
		record("one", "a.png", 10, 10, 10, 10),
		record("two", "a.jpg", 20, 20, 10, 10),
	}

	out := t.TempDir()
	report, err := Export(records, Options{Dir: out, SourceDir: src, Format: FormatYOLO})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(report.Written) != 2 {
		t.Fatalf("written: got %d, want 2", len(report.Written))
	}
	if got := report.Written[1].ImagePath; got != "images/a_1.jpg" {
		t.Errorf("renamed image: got %q, want images/a_1.jpg", got)
	}

	tests := []struct {
		label string
		want  string
	}{
		{"a.txt", "0 0.300000 0.300000 0.200000 0.200000\n"},
		{"a_1.txt", "0 0.500000 0.500000 0.200000 0.200000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := os.ReadFile(filepath.Join(out, "labels", tt.label))
			if err != nil {
				t.Fatalf("label missing: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("label: got %q, want %q", got, tt.want)
			}
		})
	}

	labels, _ := os.ReadDir(filepath.Join(out, "labels"))
	images, _ := os.ReadDir(filepath.Join(out, "images"))
	if len(labels) != 2 || len(images) != 2 {
		t.Errorf("got %d labels for %d images, want 2 and 2", len(labels), len(images))
	}
}

type blockRenderer struct{}

func (blockRenderer) Render(string) (*image.NRGBA, error) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img, nil
}

func TestExport_BatchToCOCO(t *testing.T) {
	synthDir := t.TempDir()
	s, err := synth.New(synth.Options{Width: 64, Height: 64, Renderer: blockRenderer{}, Fill: color.NRGBA{A: 255}})
	if err != nil {
		t.Fatal(err)
	}
	records, err := s.Batch(context.Background(), []string{"你", "好"}, synthDir)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records: got %d, want 2", len(records))
	}

	out := t.TempDir()
	report, err := Export(records, Options{Dir: out, SourceDir: synthDir, Format: FormatCOCO})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(report.Written) != 2 {
		t.Errorf("written: got %d, want 2", len(report.Written))
	}

	var doc cocoDataset
	data, err := os.ReadFile(filepath.Join(out, AnnotationFile))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Annotations) != 2 || len(doc.Images) != 2 {
		t.Fatalf("COCO: %d images, %d annotations", len(doc.Images), len(doc.Annotations))
	}
	for i, a := range doc.Annotations {
		r := records[i]
		if a.ID != i+1 || a.ImageID != i+1 || a.CategoryID != 1 {
			t.Errorf("annotation %d ids: %+v", i, a)
		}
		if a.BBox != [4]int{r.Position.X, r.Position.Y, r.Size.Width, r.Size.Height} || a.Area != r.Size.Width*r.Size.Height {
			t.Errorf("annotation %d box: %+v vs %+v", i, a.BBox, r)
		}
		if a.Attributes.Text != r.Text || len(a.Segmentation) != 1 || len(a.Segmentation[0]) != 8 {
			t.Errorf("annotation %d attributes: %+v", i, a)
		}
	}
	if doc.Images[0].Width != 64 || doc.Images[0].FileName != "000000.png" {
		t.Errorf("image entry: %+v", doc.Images[0])
	}
	if len(doc.Categories) != 1 || doc.Categories[0].Name != "text" {
		t.Errorf("categories: %+v", doc.Categories)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("YOLO"); err != nil || f != FormatYOLO {
		t.Errorf("ParseFormat(YOLO): %v %v", f, err)
	}
	if _, err := ParseFormat("pascal"); err == nil {
		t.Error("ParseFormat should reject unknown formats")
	}
}
