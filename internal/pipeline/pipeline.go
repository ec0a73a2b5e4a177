// Package pipeline applies the post-render transform stages to each page
// and publishes static assets into the output tree.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nitrosh/nitro-cli/internal/metrics"
	"github.com/nitrosh/nitro-cli/internal/render"
)

// Page carries one rendered page through the transform stages.
type Page struct {
	// SourcePath is the project-root-relative source file, slash-separated.
	SourcePath string
	// OutputPath is the output-root-relative destination, slash-separated.
	OutputPath string
	Title      string
	Meta       render.Metadata
	HTML       []byte
	// OutputHash is filled by the write stage from the final bytes.
	OutputHash string
}

// Stage transforms a page in place. Stages run in registration order; a
// stage error aborts the remaining stages for that page only.
type Stage interface {
	Name() string
	Apply(ctx context.Context, page *Page) error
}

// Pipeline runs an ordered list of stages over pages.
type Pipeline struct {
	stages   []Stage
	recorder metrics.Recorder
	logger   *slog.Logger
}

// Option configures pipeline behavior.
type Option func(*Pipeline)

// WithRecorder attaches a metrics recorder for per-stage timings.
func WithRecorder(rec metrics.Recorder) Option {
	return func(p *Pipeline) {
		if rec != nil {
			p.recorder = rec
		}
	}
}

// WithLogger attaches a logger for stage-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a pipeline over the given stages.
func New(stages []Stage, options ...Option) *Pipeline {
	p := &Pipeline{
		stages:   stages,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// StageNames returns the configured stage order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run pushes one page through every stage. The returned error identifies
// the failing stage; the page's earlier transformations are kept but
// nothing further runs.
func (p *Pipeline) Run(ctx context.Context, page *Page) error {
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		err := stage.Apply(ctx, page)
		p.recorder.ObserveStageDuration(stage.Name(), time.Since(start))
		if err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		p.logger.Debug("stage applied",
			"stage", stage.Name(),
			"page", page.SourcePath,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return nil
}
