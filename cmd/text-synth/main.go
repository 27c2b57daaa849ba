package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/ironsheep/text-synth/internal/annotation"
	"github.com/ironsheep/text-synth/internal/config"
	"github.com/ironsheep/text-synth/internal/corpus"
	"github.com/ironsheep/text-synth/internal/export"
	"github.com/ironsheep/text-synth/internal/imaging"
	"github.com/ironsheep/text-synth/internal/logging"
	"github.com/ironsheep/text-synth/internal/placement"
	"github.com/ironsheep/text-synth/internal/render"
	"github.com/ironsheep/text-synth/internal/synth"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("text-synth %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		usage()
		return
	case "generate":
		err = runGenerate(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "text-synth: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("text-synth - synthesize labeled text images and export datasets")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  text-synth generate [flags]   Render texts onto backgrounds, write images and annotations.json")
	fmt.Println("  text-synth export [flags]     Convert annotations.json into a COCO, YOLO or CreateML dataset")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Run 'text-synth <command> -h' for the flags of a command.")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  TEXT_SYNTH_LOG_LEVEL=debug    Enable debug logging")
	fmt.Println("  TEXT_SYNTH_FONT, TEXT_SYNTH_OUTPUT_DIR, TEXT_SYNTH_SEED, ...    Override config settings")
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")

	b := newBinder(fs)
	b.stringVar("font", "TrueType/OpenType font file (Go Regular if unset, Latin texts only)", func(c *config.Config) *string { return &c.Font.Path })
	b.floatVar("font-size", "font size in pixels per em", func(c *config.Config) *float64 { return &c.Font.Size })
	b.stringVar("text-color", "text color as #rrggbb", func(c *config.Config) *string { return &c.Font.Color })
	b.intVar("padding", "transparent margin around each glyph", func(c *config.Config) *int { return &c.Font.Padding })
	b.intVar("width", "canvas width", func(c *config.Config) *int { return &c.Background.Width })
	b.intVar("height", "canvas height", func(c *config.Config) *int { return &c.Background.Height })
	b.stringVar("background-color", "solid background color as #rrggbb", func(c *config.Config) *string { return &c.Background.Color })
	b.stringVar("background-dir", "directory of png/jpg/bmp backgrounds", func(c *config.Config) *string { return &c.Background.Dir })
	b.stringVar("background-mode", "solid or noise, used without background images", func(c *config.Config) *string { return &c.Background.Mode })
	b.boolVar("monochrome", "gray instead of colored noise backgrounds", func(c *config.Config) *bool { return &c.Background.Monochrome })
	b.intVar("chars", "number of common GB2312 characters to synthesize", func(c *config.Config) *int { return &c.Text.Chars })
	b.stringVar("text-file", "file with one text per line, replaces --chars", func(c *config.Config) *string { return &c.Text.File })
	b.intVar("instances", "texts per canvas", func(c *config.Config) *int { return &c.Synthesis.InstancesPerCanvas })
	b.boolVar("rotation", "enable random rotation", func(c *config.Config) *bool { return &c.Synthesis.Rotation.Enabled })
	b.floatVar("rotation-min", "minimum rotation in degrees", func(c *config.Config) *float64 { return &c.Synthesis.Rotation.Min })
	b.floatVar("rotation-max", "maximum rotation in degrees", func(c *config.Config) *float64 { return &c.Synthesis.Rotation.Max })
	b.boolVar("perspective", "enable random perspective warp", func(c *config.Config) *bool { return &c.Synthesis.Perspective.Enabled })
	b.floatVar("perspective-ratio", "max corner offset as a fraction of the glyph's short side", func(c *config.Config) *float64 { return &c.Synthesis.Perspective.Ratio })
	b.intVar("max-retries", "placement attempts per text", func(c *config.Config) *int { return &c.Synthesis.MaxRetries })
	b.uint64Var("seed", "random seed", func(c *config.Config) *uint64 { return &c.Synthesis.Seed })
	b.intVar("workers", "canvases synthesized in parallel", func(c *config.Config) *int { return &c.Synthesis.Workers })
	b.boolVar("collect-errors", "keep going after a failed text", func(c *config.Config) *bool { return &c.Synthesis.CollectErrors })
	b.stringVar("output-dir", "directory for images and annotations.json", func(c *config.Config) *string { return &c.Output.Dir })
	b.intVar("start-index", "number of the first image file", func(c *config.Config) *int { return &c.Output.StartIndex })
	b.stringVar("preview-dir", "write outlined copies of every canvas here", func(c *config.Config) *string { return &c.Output.PreviewDir })

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := b.resolve(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateGenerate(); err != nil {
		return err
	}
	logger := logging.FromEnv(*logLevel)
	logger.Debug("text-synth starting", "version", Version, "commit", GitCommit)

	texts, err := loadTexts(cfg)
	if err != nil {
		return err
	}
	renderer, err := newRenderer(cfg, logger)
	if err != nil {
		return err
	}
	defer renderer.Close()
	// Nothing is written until every text is known to render.
	if err := renderer.Check(texts); err != nil {
		return &config.ConfigError{Field: "font.path", Reason: err.Error()}
	}
	backgrounds, err := newBackgrounds(cfg, logger)
	if err != nil {
		return err
	}

	s := cfg.Synthesis
	synthesizer, err := synth.New(synth.Options{
		Width:       cfg.Background.Width,
		Height:      cfg.Background.Height,
		Backgrounds: backgrounds,
		Renderer:    renderer,
		Engine: placement.New(placement.Options{
			Rotation:         s.Rotation.Enabled,
			RotationRange:    placement.Range{Min: s.Rotation.Min, Max: s.Rotation.Max},
			Perspective:      s.Perspective.Enabled,
			PerspectiveRatio: s.Perspective.Ratio,
			MaxRetries:       s.MaxRetries,
			Logger:           logger,
		}),
		InstancesPerCanvas: s.InstancesPerCanvas,
		Seed:               s.Seed,
		Workers:            s.Workers,
		StartIndex:         cfg.Output.StartIndex,
		CollectErrors:      s.CollectErrors,
		ShrinkFactor:       s.ShrinkFactor,
		MinFontSize:        s.MinFontSize,
		PreviewDir:         cfg.Output.PreviewDir,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	records, batchErr := synthesizer.Batch(ctx, texts, cfg.Output.Dir)
	var partial *synth.BatchError
	if batchErr != nil && !errors.As(batchErr, &partial) {
		return batchErr
	}

	coll, err := annotation.NewCollection(records...)
	if err != nil {
		return err
	}
	doc, err := coll.Bytes()
	if err != nil {
		return err
	}
	docPath := filepath.Join(cfg.Output.Dir, annotation.DocumentName)
	if err := imaging.WriteFileAtomic(docPath, doc); err != nil {
		return err
	}

	fmt.Printf("Generated %d samples on %d images from %d texts\n", coll.Len(), len(coll.ImagePaths()), len(texts))
	fmt.Printf("Images:      %s\n", cfg.Output.Dir)
	fmt.Printf("Annotations: %s\n", docPath)
	return batchErr
}

func loadTexts(cfg *config.Config) ([]string, error) {
	var (
		texts []string
		err   error
	)
	if cfg.Text.File != "" {
		texts, err = corpus.LoadLines(cfg.Text.File, 0)
	} else {
		texts, err = corpus.CommonHanzi(cfg.Text.Chars)
	}
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, errors.New("no texts to synthesize")
	}
	return texts, nil
}

func newRenderer(cfg *config.Config, logger *slog.Logger) (*render.Renderer, error) {
	textColor, err := imaging.ParseColor(cfg.Font.Color)
	if err != nil {
		return nil, err
	}
	opts := render.Options{Size: cfg.Font.Size, Color: textColor, Padding: cfg.Font.Padding}
	if cfg.Font.Path == "" {
		logger.Warn("no font configured, using Go Regular (Latin only)")
		return render.New(goregular.TTF, opts)
	}
	r, err := render.Load(cfg.Font.Path, opts)
	if err != nil {
		return nil, &config.ConfigError{Field: "font.path", Reason: err.Error()}
	}
	return r, nil
}

func newBackgrounds(cfg *config.Config, logger *slog.Logger) (*imaging.Backgrounds, error) {
	fill, err := imaging.ParseColor(cfg.Background.Color)
	if err != nil {
		return nil, err
	}
	bg := imaging.NewBackgrounds(fill, imaging.BackgroundMode(cfg.Background.Mode))
	bg.SetMonochromeNoise(cfg.Background.Monochrome)
	logger.Debug("background fallback", "mode", cfg.Background.Mode, "color", imaging.ColorHex(fill))
	if cfg.Background.Dir == "" {
		return bg, nil
	}
	n, err := bg.LoadDirectory(cfg.Background.Dir)
	if err != nil {
		return nil, &config.ConfigError{Field: "background.dir", Reason: err.Error()}
	}
	if n == 0 {
		logger.Warn("no background images found, using fallback", "dir", cfg.Background.Dir, "mode", cfg.Background.Mode)
	}
	return bg, nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")

	b := newBinder(fs)
	b.stringVar("input-dir", "directory holding annotations.json and its images", func(c *config.Config) *string { return &c.Output.Dir })
	b.stringVar("format", "coco, yolo or createml", func(c *config.Config) *string { return &c.Export.Format })
	b.stringVar("export-dir", "dataset output directory", func(c *config.Config) *string { return &c.Export.Dir })
	b.boolVar("move", "move images instead of copying them", func(c *config.Config) *bool { return &c.Export.Move })
	b.boolVar("split", "split images into train/val/test", func(c *config.Config) *bool { return &c.Export.Split.Enabled })
	b.floatVar("train-ratio", "share of images in train", func(c *config.Config) *float64 { return &c.Export.Split.Train })
	b.floatVar("val-ratio", "share of images in val", func(c *config.Config) *float64 { return &c.Export.Split.Val })
	b.floatVar("test-ratio", "share of images in test", func(c *config.Config) *float64 { return &c.Export.Split.Test })
	b.uint64Var("seed", "split shuffle seed", func(c *config.Config) *uint64 { return &c.Export.Split.Seed })

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := b.resolve(*configPath)
	if err != nil {
		return err
	}
	logger := logging.FromEnv(*logLevel)

	coll, err := annotation.LoadFile(filepath.Join(cfg.Output.Dir, annotation.DocumentName))
	if err != nil {
		return err
	}

	sp := cfg.Export.Split
	report, err := export.Export(coll.Records(), export.Options{
		Dir:       cfg.Export.Dir,
		SourceDir: cfg.Output.Dir,
		Format:    export.Format(cfg.Export.Format),
		Split:     export.Split{Enabled: sp.Enabled, Train: sp.Train, Val: sp.Val, Test: sp.Test, Seed: sp.Seed},
		Move:      cfg.Export.Move,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d annotations as %s to %s\n", len(report.Written), report.Format, cfg.Export.Dir)
	for _, s := range report.Splits {
		name := s.Name
		if name == "" {
			name = "all"
		}
		fmt.Printf("  %-5s %d images, %d annotations\n", name, s.Images, s.Annotations)
	}
	for _, m := range report.Skipped {
		fmt.Printf("  skipped %s (%d annotations)\n", m.Path, m.Records)
	}
	return nil
}
