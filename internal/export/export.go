// Package export turns an annotation collection into an on-disk training
// dataset.
//
// Export resolves every record's image, groups records by image in
// first-seen order, optionally splits the images into train/val/test,
// copies (or moves) each image into place and hands the result to one of
// three format writers: COCO, YOLO or CreateML. The writers are
// independent; each one consumes the shared annotation.Record directly.
//
// Output contains no timestamps. The same records, options and seed
// produce byte-identical files.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/text-synth/internal/annotation"
	"github.com/ironsheep/text-synth/internal/config"
	"github.com/ironsheep/text-synth/internal/imaging"
	"github.com/ironsheep/text-synth/internal/logging"
)

// Format names a dataset layout.
type Format string

const (
	FormatCOCO     Format = "coco"
	FormatYOLO     Format = "yolo"
	FormatCreateML Format = "createml"
)

// ParseFormat maps a case-insensitive format name to a Format.
func ParseFormat(name string) (Format, error) {
	if err := config.ValidateFormat(name); err != nil {
		return "", err
	}
	return Format(strings.ToLower(name)), nil
}

// Split configures the train/val/test partition of images.
type Split struct {
	Enabled bool
	Train   float64
	Val     float64
	Test    float64
	Seed    uint64
}

// Options configures Export.
type Options struct {
	// Dir is the dataset root.
	Dir string

	// SourceDir resolves relative record image paths. Empty means the
	// current directory.
	SourceDir string

	Format Format
	Split  Split

	// Move renames images into the dataset instead of copying them.
	Move bool

	Logger *slog.Logger
}

// MissingImageError reports an image that could not be resolved. Every
// record referencing it is left out of the dataset.
type MissingImageError struct {
	Path    string
	Records int
	Err     error
}

func (e *MissingImageError) Error() string {
	return fmt.Sprintf("image %s unavailable, skipped %d records: %v", e.Path, e.Records, e.Err)
}

func (e *MissingImageError) Unwrap() error { return e.Err }

// SplitStats counts what was written to one split. Name is empty when
// splitting is disabled.
type SplitStats struct {
	Name        string `json:"name"`
	Images      int    `json:"images"`
	Annotations int    `json:"annotations"`
}

// Report summarizes an export.
type Report struct {
	Format Format       `json:"format"`
	Splits []SplitStats `json:"splits"`

	// Written holds the exported records with image paths relative to
	// Options.Dir, in dataset order.
	Written []annotation.Record `json:"-"`

	Skipped []*MissingImageError `json:"-"`
}

// imageEntry is one distinct image and its records.
type imageEntry struct {
	source  string
	width   int
	height  int
	records []annotation.Record

	// file is the name inside the split's image directory, set on transfer.
	file string
}

// subset is one split's share of the images.
type subset struct {
	name   string
	images []*imageEntry
}

// writer is a dataset format.
type writer interface {
	// imageDir is the directory, relative to the dataset root, that holds
	// the images of split.
	imageDir(split string) string

	// nameKey maps an exported image file name to the key that must be
	// unique within one split.
	nameKey(file string) string

	// write serializes the annotation files for every subset.
	write(root string, subsets []*subset) error
}

func newWriter(f Format) (writer, error) {
	switch f {
	case FormatCOCO:
		return cocoWriter{}, nil
	case FormatYOLO:
		return yoloWriter{}, nil
	case FormatCreateML:
		return createMLWriter{}, nil
	}
	return nil, config.ValidateFormat(string(f))
}

// Export writes records as a dataset under opts.Dir.
//
// # Errors
//
//   - *config.ConfigError for an unknown format, bad split ratios or an
//     empty Dir. Nothing is read or written in that case.
//   - Missing images are not errors: they appear in Report.Skipped.
//   - Any failure to copy an image or write an annotation file.
func Export(records []annotation.Record, opts Options) (*Report, error) {
	format, err := ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	w, err := newWriter(format)
	if err != nil {
		return nil, err
	}
	if opts.Split.Enabled {
		if err := config.ValidateRatios(opts.Split.Train, opts.Split.Val, opts.Split.Test); err != nil {
			return nil, err
		}
	}
	if opts.Dir == "" {
		return nil, &config.ConfigError{Field: "export.dir", Reason: "must not be empty"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	entries, skipped := resolve(records, opts.SourceDir)
	for _, s := range skipped {
		logger.Warn("skipping missing image", "path", s.Path, "records", s.Records, "error", s.Err)
	}

	subsets := partition(entries, opts.Split)
	report := &Report{Format: format, Skipped: skipped}
	for _, s := range subsets {
		if err := transfer(opts.Dir, w.imageDir(s.name), s, opts.Move, w.nameKey); err != nil {
			return nil, err
		}
		stats := SplitStats{Name: s.name, Images: len(s.images)}
		for _, img := range s.images {
			stats.Annotations += len(img.records)
			report.Written = append(report.Written, img.records...)
		}
		report.Splits = append(report.Splits, stats)
	}

	if err := w.write(opts.Dir, subsets); err != nil {
		return nil, err
	}

	logger.Info("dataset exported",
		"format", string(format),
		"dir", opts.Dir,
		"records", len(report.Written),
		"skipped_images", len(skipped))
	return report, nil
}

// resolve groups records by image path in first-seen order and reads each
// image's size. Images that cannot be read are reported, not returned.
func resolve(records []annotation.Record, sourceDir string) ([]*imageEntry, []*MissingImageError) {
	var (
		entries []*imageEntry
		missing []*MissingImageError
		byKey   = map[string]*imageEntry{}
		bad     = map[string]*MissingImageError{}
	)

	for _, r := range records {
		if m, ok := bad[r.ImagePath]; ok {
			m.Records++
			continue
		}
		if e, ok := byKey[r.ImagePath]; ok {
			e.records = append(e.records, r)
			continue
		}

		source := r.ImagePath
		if !filepath.IsAbs(source) {
			source = filepath.Join(sourceDir, filepath.FromSlash(source))
		}
		width, height, err := imaging.ReadSize(source)
		if err != nil {
			m := &MissingImageError{Path: source, Records: 1, Err: err}
			bad[r.ImagePath] = m
			missing = append(missing, m)
			continue
		}
		e := &imageEntry{source: source, width: width, height: height, records: []annotation.Record{r}}
		byKey[r.ImagePath] = e
		entries = append(entries, e)
	}
	return entries, missing
}

// transfer places the images of s into root/dir and rewrites their records'
// image paths.
func transfer(root, dir string, s *subset, move bool, key func(string) string) error {
	target := filepath.Join(root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	taken := map[string]bool{}
	for _, img := range s.images {
		img.file = uniqueName(taken, filepath.Base(img.source), key)
		dst := filepath.Join(target, img.file)

		if !samePath(img.source, dst) {
			var err error
			if move {
				err = imaging.MoveFile(img.source, dst)
			} else {
				err = imaging.CopyFile(img.source, dst)
			}
			if err != nil {
				return fmt.Errorf("failed to export %s: %w", img.source, err)
			}
		}

		rel := filepath.ToSlash(filepath.Join(dir, img.file))
		for i, r := range img.records {
			img.records[i] = r.WithImagePath(rel)
		}
	}
	return nil
}

// uniqueName returns name, or name with a _N suffix before the extension
// when key(name) is already taken.
func uniqueName(taken map[string]bool, name string, key func(string) string) string {
	candidate := name
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; taken[key(candidate)]; n++ {
		candidate = stem + "_" + strconv.Itoa(n) + ext
	}
	taken[key(candidate)] = true
	return candidate
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
