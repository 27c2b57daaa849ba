package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironsheep/text-synth/internal/annotation"
	"github.com/ironsheep/text-synth/internal/imaging"
)

// ImageName returns the file name Batch uses for canvas index i.
func ImageName(i int) string {
	return fmt.Sprintf("%06d.png", i)
}

type job struct {
	index int
	base  int
	texts []string
}

type outcome struct {
	records []annotation.Record
	err     *SynthesisError
	done    bool
}

// Batch synthesizes texts in groups of InstancesPerCanvas, writes each
// canvas to outDir as %06d.png and returns the records in input order.
// Record image paths are relative to outDir.
//
// # Errors
//
//   - By default a failure stops the batch and the lowest-index failure is
//     returned as a *SynthesisError. Every canvas before it is attempted
//     and left on disk; later canvases may be skipped.
//   - With CollectErrors every canvas is attempted; the records of the
//     successful ones are returned together with a *BatchError.
//   - ctx.Err() if ctx is canceled before the batch completes.
func (s *Synthesizer) Batch(ctx context.Context, texts []string, outDir string) ([]annotation.Record, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if s.opts.PreviewDir != "" {
		if err := os.MkdirAll(s.opts.PreviewDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create preview directory: %w", err)
		}
	}

	jobs := s.jobs(texts)
	results := make([]outcome, len(jobs))
	start := time.Now()

	// failAt is the lowest failing job index. In fail-fast mode only jobs
	// above it are skipped, so every canvas below the reported failure is
	// attempted whatever the worker count.
	var failAt atomic.Int64
	failAt.Store(math.MaxInt64)

	queue := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < min(s.opts.Workers, max(len(jobs), 1)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				if ctx.Err() != nil || (!s.opts.CollectErrors && int64(j.index) > failAt.Load()) {
					continue
				}
				records, err := s.runJob(j, outDir)
				results[j.index] = outcome{records: records, err: err, done: true}
				if err != nil && !s.opts.CollectErrors {
					lowerFailAt(&failAt, int64(j.index))
				}
			}
		}()
	}

feed:
	for _, j := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case queue <- j:
		}
	}
	close(queue)
	wg.Wait()

	var (
		records  []annotation.Record
		failures []*SynthesisError
		pending  bool
	)
	for _, r := range results {
		switch {
		case !r.done:
			pending = true
		case r.err != nil:
			failures = append(failures, r.err)
		default:
			records = append(records, r.records...)
		}
	}

	if len(failures) > 0 && !s.opts.CollectErrors {
		return nil, failures[0]
	}
	if pending {
		return nil, ctx.Err()
	}

	s.logger.Info("batch synthesized",
		"canvases", len(jobs),
		"records", len(records),
		"failed", len(failures),
		"duration_ms", time.Since(start).Milliseconds())

	if len(failures) > 0 {
		return records, &BatchError{Failures: failures}
	}
	return records, nil
}

func lowerFailAt(failAt *atomic.Int64, index int64) {
	for {
		cur := failAt.Load()
		if index >= cur || failAt.CompareAndSwap(cur, index) {
			return
		}
	}
}

func (s *Synthesizer) jobs(texts []string) []job {
	per := s.opts.InstancesPerCanvas
	jobs := make([]job, 0, (len(texts)+per-1)/per)
	for base := 0; base < len(texts); base += per {
		end := min(base+per, len(texts))
		jobs = append(jobs, job{index: len(jobs), base: base, texts: texts[base:end]})
	}
	return jobs
}

// runJob synthesizes and persists one canvas.
func (s *Synthesizer) runJob(j job, outDir string) ([]annotation.Record, *SynthesisError) {
	rng := rand.New(rand.NewPCG(s.opts.Seed, uint64(j.index)))
	c, err := s.synthesize(rng, j.texts, j.base)
	if err != nil {
		var se *SynthesisError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, &SynthesisError{Text: j.texts[0], Index: j.base, Err: err}
	}

	name := ImageName(s.opts.StartIndex + j.index)
	if err := imaging.WriteImage(c.Image, filepath.Join(outDir, name)); err != nil {
		return nil, &SynthesisError{Text: j.texts[0], Index: j.base, Err: err}
	}
	if s.opts.PreviewDir != "" {
		if err := s.writePreview(c, filepath.Join(s.opts.PreviewDir, name)); err != nil {
			return nil, &SynthesisError{Text: j.texts[0], Index: j.base, Err: err}
		}
	}

	records := make([]annotation.Record, len(c.Records))
	for i, r := range c.Records {
		records[i] = r.WithImagePath(name)
	}
	s.logger.Debug("canvas written", "image", name, "instances", len(records))
	return records, nil
}

func (s *Synthesizer) writePreview(c *Canvas, path string) error {
	outlines := make([]imaging.Outline, len(c.Records))
	for i, r := range c.Records {
		outlines[i] = imaging.Outline{Quad: r.Quad(), Box: r.Box()}
	}
	if err := imaging.WriteImage(imaging.Preview(c.Image, outlines, imaging.DefaultPreviewColors), path); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	return nil
}
