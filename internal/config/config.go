// Package config holds the text-synth configuration: defaults, an optional
// YAML file, TEXT_SYNTH_* environment overrides and validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/text-synth/internal/imaging"
)

// ExportFormats are the dataset formats the exporter writes.
var ExportFormats = []string{"coco", "yolo", "createml"}

// ConfigError reports an invalid setting. It is raised before any file is
// read or written.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Config is the full configuration of the generate and export commands.
type Config struct {
	Font       FontConfig       `yaml:"font"`
	Background BackgroundConfig `yaml:"background"`
	Text       TextConfig       `yaml:"text"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Output     OutputConfig     `yaml:"output"`
	Export     ExportConfig     `yaml:"export"`
}

type FontConfig struct {
	Path    string  `yaml:"path"`
	Size    float64 `yaml:"size"`
	Color   string  `yaml:"color"`
	Padding int     `yaml:"padding"`
}

type BackgroundConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Color  string `yaml:"color"`
	Dir    string `yaml:"dir"`
	Mode   string `yaml:"mode"`

	// Monochrome makes noise backgrounds gray.
	Monochrome bool `yaml:"monochrome"`
}

// TextConfig selects the texts to synthesize. File wins over Chars.
type TextConfig struct {
	Chars int    `yaml:"chars"`
	File  string `yaml:"file"`
}

type RotationConfig struct {
	Enabled bool    `yaml:"enabled"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
}

type PerspectiveConfig struct {
	Enabled bool    `yaml:"enabled"`
	Ratio   float64 `yaml:"ratio"`
}

type SynthesisConfig struct {
	InstancesPerCanvas int               `yaml:"instances_per_canvas"`
	Rotation           RotationConfig    `yaml:"rotation"`
	Perspective        PerspectiveConfig `yaml:"perspective"`
	MaxRetries         int               `yaml:"max_retries"`
	Seed               uint64            `yaml:"seed"`
	Workers            int               `yaml:"workers"`
	ShrinkFactor       float64           `yaml:"shrink_factor"`
	MinFontSize        float64           `yaml:"min_font_size"`
	CollectErrors      bool              `yaml:"collect_errors"`
}

type OutputConfig struct {
	Dir        string `yaml:"dir"`
	StartIndex int    `yaml:"start_index"`
	PreviewDir string `yaml:"preview_dir"`
}

type SplitConfig struct {
	Enabled bool    `yaml:"enabled"`
	Train   float64 `yaml:"train"`
	Val     float64 `yaml:"val"`
	Test    float64 `yaml:"test"`
	Seed    uint64  `yaml:"seed"`
}

type ExportConfig struct {
	Format string      `yaml:"format"`
	Dir    string      `yaml:"dir"`
	Move   bool        `yaml:"move"`
	Split  SplitConfig `yaml:"split"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Font: FontConfig{
			Size:    32,
			Color:   "#000000",
			Padding: 2,
		},
		Background: BackgroundConfig{
			Width:  200,
			Height: 200,
			Color:  "#ffffff",
			Mode:   string(imaging.ModeSolid),
		},
		Text: TextConfig{Chars: 50},
		Synthesis: SynthesisConfig{
			InstancesPerCanvas: 1,
			Rotation:           RotationConfig{Enabled: true, Min: -2, Max: 2},
			Perspective:        PerspectiveConfig{Ratio: 0.1},
			MaxRetries:         100,
			Seed:               1,
			Workers:            1,
			ShrinkFactor:       0.9,
			MinFontSize:        8,
		},
		Output: OutputConfig{Dir: "./output/images"},
		Export: ExportConfig{
			Format: "coco",
			Dir:    "./output/dataset",
			Split:  SplitConfig{Train: 0.7, Val: 0.2, Test: 0.1, Seed: 1},
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default value; unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from TEXT_SYNTH_* environment variables.
func (c *Config) ApplyEnv() error {
	c.Font.Path = getEnv("TEXT_SYNTH_FONT", c.Font.Path)
	c.Font.Color = getEnv("TEXT_SYNTH_TEXT_COLOR", c.Font.Color)
	c.Background.Dir = getEnv("TEXT_SYNTH_BACKGROUND_DIR", c.Background.Dir)
	c.Background.Color = getEnv("TEXT_SYNTH_BACKGROUND_COLOR", c.Background.Color)
	c.Background.Mode = getEnv("TEXT_SYNTH_BACKGROUND_MODE", c.Background.Mode)
	c.Output.Dir = getEnv("TEXT_SYNTH_OUTPUT_DIR", c.Output.Dir)
	c.Export.Format = getEnv("TEXT_SYNTH_EXPORT_FORMAT", c.Export.Format)
	c.Export.Dir = getEnv("TEXT_SYNTH_EXPORT_DIR", c.Export.Dir)

	if v := getEnv("TEXT_SYNTH_FONT_SIZE", ""); v != "" {
		size, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &ConfigError{Field: "TEXT_SYNTH_FONT_SIZE", Reason: err.Error()}
		}
		c.Font.Size = size
	}
	if v := getEnv("TEXT_SYNTH_SEED", ""); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &ConfigError{Field: "TEXT_SYNTH_SEED", Reason: err.Error()}
		}
		c.Synthesis.Seed = seed
		c.Export.Split.Seed = seed
	}
	if v := getEnv("TEXT_SYNTH_WORKERS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: "TEXT_SYNTH_WORKERS", Reason: err.Error()}
		}
		c.Synthesis.Workers = n
	}
	return nil
}

// Validate checks every setting and returns the first problem as a
// *ConfigError.
func (c *Config) Validate() error {
	if c.Font.Size <= 0 {
		return &ConfigError{Field: "font.size", Reason: "must be positive"}
	}
	if c.Font.Padding < 0 {
		return &ConfigError{Field: "font.padding", Reason: "must not be negative"}
	}
	if _, err := imaging.ParseColor(c.Font.Color); err != nil {
		return &ConfigError{Field: "font.color", Reason: err.Error()}
	}
	if c.Font.Path != "" {
		if err := checkPath(c.Font.Path, false); err != nil {
			return &ConfigError{Field: "font.path", Reason: err.Error()}
		}
	}

	if c.Background.Width <= 0 || c.Background.Height <= 0 {
		return &ConfigError{Field: "background", Reason: fmt.Sprintf("size %dx%d must be positive", c.Background.Width, c.Background.Height)}
	}
	if _, err := imaging.ParseColor(c.Background.Color); err != nil {
		return &ConfigError{Field: "background.color", Reason: err.Error()}
	}
	switch imaging.BackgroundMode(c.Background.Mode) {
	case imaging.ModeSolid, imaging.ModeNoise:
	default:
		return &ConfigError{Field: "background.mode", Reason: fmt.Sprintf("unknown mode %q, want solid or noise", c.Background.Mode)}
	}
	if c.Background.Dir != "" {
		if err := checkPath(c.Background.Dir, true); err != nil {
			return &ConfigError{Field: "background.dir", Reason: err.Error()}
		}
	}

	if c.Text.Chars < 0 {
		return &ConfigError{Field: "text.chars", Reason: "must not be negative"}
	}
	if c.Text.File != "" {
		if err := checkPath(c.Text.File, false); err != nil {
			return &ConfigError{Field: "text.file", Reason: err.Error()}
		}
	}

	s := c.Synthesis
	if s.InstancesPerCanvas < 1 {
		return &ConfigError{Field: "synthesis.instances_per_canvas", Reason: "must be at least 1"}
	}
	if s.Rotation.Min > s.Rotation.Max {
		return &ConfigError{Field: "synthesis.rotation", Reason: fmt.Sprintf("min %v exceeds max %v", s.Rotation.Min, s.Rotation.Max)}
	}
	if s.Perspective.Ratio < 0 || s.Perspective.Ratio > 0.25 {
		return &ConfigError{Field: "synthesis.perspective.ratio", Reason: "must be in [0, 0.25]"}
	}
	if s.MaxRetries < 0 {
		return &ConfigError{Field: "synthesis.max_retries", Reason: "must not be negative"}
	}
	if s.Workers < 0 {
		return &ConfigError{Field: "synthesis.workers", Reason: "must not be negative"}
	}
	if s.ShrinkFactor < 0 || s.ShrinkFactor >= 1 {
		return &ConfigError{Field: "synthesis.shrink_factor", Reason: "must be in [0, 1)"}
	}
	if c.Output.StartIndex < 0 {
		return &ConfigError{Field: "output.start_index", Reason: "must not be negative"}
	}

	if err := ValidateFormat(c.Export.Format); err != nil {
		return err
	}
	if c.Export.Split.Enabled {
		sp := c.Export.Split
		if err := ValidateRatios(sp.Train, sp.Val, sp.Test); err != nil {
			return err
		}
	}
	return nil
}

// ValidateGenerate runs Validate plus the checks that only matter when
// synthesizing: the built-in fallback font has no CJK glyphs, so the hanzi
// corpus needs an explicit font.
func (c *Config) ValidateGenerate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Font.Path == "" && c.Text.File == "" {
		return &ConfigError{Field: "font.path", Reason: "required for CJK text"}
	}
	return nil
}

// checkPath reports a missing path, or one of the wrong kind.
func checkPath(path string, wantDir bool) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s does not exist", path)
		}
		return err
	}
	switch {
	case wantDir && !info.IsDir():
		return fmt.Errorf("%s is not a directory", path)
	case !wantDir && info.IsDir():
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// ValidateFormat checks an export format name.
func ValidateFormat(format string) error {
	for _, f := range ExportFormats {
		if strings.EqualFold(format, f) {
			return nil
		}
	}
	return &ConfigError{
		Field:  "export.format",
		Reason: fmt.Sprintf("unknown format %q, want one of %s", format, strings.Join(ExportFormats, ", ")),
	}
}

// ValidateRatios checks split ratios: each non-negative and summing to 1
// within 0.01.
func ValidateRatios(train, val, test float64) error {
	if train < 0 || val < 0 || test < 0 {
		return &ConfigError{Field: "export.split", Reason: "ratios must not be negative"}
	}
	sum := train + val + test
	if sum <= 0.99 || sum >= 1.01 {
		return &ConfigError{Field: "export.split", Reason: fmt.Sprintf("ratios sum to %.3f, want 1", sum)}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
