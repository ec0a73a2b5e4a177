package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nitrosh/nitro-cli/internal/cache"
	"github.com/nitrosh/nitro-cli/internal/config"
	"github.com/nitrosh/nitro-cli/internal/graph"
	"github.com/nitrosh/nitro-cli/internal/hooks"
	"github.com/nitrosh/nitro-cli/internal/images"
	"github.com/nitrosh/nitro-cli/internal/manifest"
	"github.com/nitrosh/nitro-cli/internal/metrics"
	"github.com/nitrosh/nitro-cli/internal/pipeline"
	"github.com/nitrosh/nitro-cli/internal/render"
)

// Options configures a Scheduler.
type Options struct {
	Config      *config.Config
	ProjectRoot string
	// OutputDir overrides the configured build directory when non-empty.
	OutputDir string
	Renderer  render.Renderer
	// Enumerator expands dynamic routes. Usually the same object as Renderer.
	Enumerator render.Enumerator
	Hooks      *hooks.Bus
	Recorder   metrics.Recorder
	Logger     *slog.Logger
	// Optimizer generates image variants; nil disables the concern entirely.
	Optimizer *images.Optimizer
	// Force rebuilds every unit regardless of cache state.
	Force bool
	// Production excludes drafts from the output tree.
	Production bool
	// Workers bounds the render pool; defaults to runtime.NumCPU().
	Workers int
	// PageTimeout bounds one unit's render+transform time; 0 disables it.
	PageTimeout time.Duration
	// ConfigFile is the project-relative configuration file name; defaults
	// to config.DefaultFile.
	ConfigFile string
}

// Scheduler coordinates one build invocation at a time.
type Scheduler struct {
	opts   Options
	logger *slog.Logger
	rec    metrics.Recorder
}

// New creates a scheduler, filling option defaults.
func New(opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Hooks == nil {
		opts.Hooks = hooks.NewBus()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = opts.Config.OutputDir(opts.ProjectRoot)
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = config.DefaultFile
	}
	return &Scheduler{opts: opts, logger: opts.Logger, rec: opts.Recorder}
}

// workItem pairs a stale unit with its dependency set and page metadata,
// captured once during classification.
type workItem struct {
	unit PageUnit
	deps map[string]string
	meta render.Metadata
}

type workResultItem struct {
	unit       PageUnit
	deps       map[string]string
	meta       render.Metadata
	outputHash string
	err        error
	duration   time.Duration
}

// Run executes one full build. Unit failures do not abort the run; fatal
// errors (unscannable source tree, held lock, asset publishing failure)
// do. On cancellation the cache is not committed and the previous cache
// file stays authoritative.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{BuildID: uuid.NewString()}
	logger := s.logger.With("build_id", res.BuildID)
	cfg := s.opts.Config
	root := s.opts.ProjectRoot
	outDir := s.opts.OutputDir

	lock, err := cache.AcquireLock(filepath.Join(root, ".nitro"))
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	if err := s.opts.Hooks.FirePreBuild(ctx, &hooks.PreBuildPayload{
		ProjectRoot: root,
		OutputDir:   outDir,
		Force:       s.opts.Force,
	}); err != nil {
		return nil, err
	}

	snap, err := graph.Scan(graph.ScanOptions{
		ProjectRoot:   root,
		PagesDir:      cfg.PagesDir(root),
		ComponentsDir: cfg.ComponentsDir(root),
		DataDir:       cfg.DataDir(root),
		ConfigPath:    filepath.Join(root, s.opts.ConfigFile),
	})
	if err != nil {
		return nil, err
	}

	cachePath := filepath.Join(root, filepath.FromSlash(cache.DefaultPath))
	c := cache.Load(cachePath)
	if s.opts.Force {
		logger.Info("Forced rebuild, ignoring cache")
		c.Reset()
	} else if cfgHash := snap.ConfigFingerprint(); cfgHash != c.ConfigHash() {
		logger.Info("Configuration changed, invalidating all pages")
		c.Reset()
	}
	c.SetConfigHash(snap.ConfigFingerprint())

	assets, err := pipeline.PublishAssets(ctx, pipeline.PublishOptions{
		PublicDir:   cfg.PublicDir(root),
		StylesDir:   cfg.StylesDir(root),
		OutputDir:   outDir,
		Fingerprint: cfg.Pipeline.FingerprintEnabled(),
		Minify:      cfg.Pipeline.MinifyEnabled(),
		Optimizer:   s.optimizerIfEnabled(),
		EmitRuntime: cfg.Pipeline.IslandsEnabled(),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	pipe := pipeline.New(pipeline.DefaultStages(
		assets, outDir,
		cfg.Pipeline.MinifyEnabled(),
		cfg.Pipeline.FingerprintEnabled(),
		cfg.Pipeline.OptimizeImagesEnabled(),
		cfg.Pipeline.IslandsEnabled(),
	), pipeline.WithRecorder(s.rec), pipeline.WithLogger(logger))

	pagesPrefix := filepath.ToSlash(filepath.Join(cfg.SourceDir, "pages")) + "/"
	units, failures := enumerateUnits(ctx, snap, root, pagesPrefix, s.opts.Enumerator)
	res.Pages = append(res.Pages, failures...)

	work, sitemapEntries := s.classify(units, snap, c, outDir, res, logger)

	s.rec.SetWorkerCount(s.opts.Workers)
	canceled := s.runWorkers(ctx, work, pipe, c, res, &sitemapEntries, logger)

	res.Duration = time.Since(start)
	s.tally(res)
	res.Canceled = canceled

	if canceled {
		logger.Warn("Build canceled, cache not committed",
			"built", res.Built, "failed", res.Failed)
		s.rec.IncBuildOutcome(res.Outcome())
		return res, ctx.Err()
	}

	s.pruneStaleOutputs(units, c, outDir, logger)

	if err := s.writeManifests(outDir, cfg.BaseURL, assets, sitemapEntries); err != nil {
		return res, err
	}

	if err := s.opts.Hooks.FirePostBuild(ctx, &hooks.PostBuildPayload{
		OutputDir: outDir,
		Built:     res.Built,
		Skipped:   res.Skipped,
		Failed:    res.Failed,
	}); err != nil {
		logger.Warn("Post-build hook failed", "error", err)
	}

	if err := c.Commit(cachePath); err != nil {
		return res, fmt.Errorf("commit build cache: %w", err)
	}

	s.rec.ObserveBuildDuration(res.Duration)
	s.rec.IncBuildOutcome(res.Outcome())
	logger.Info("Build finished",
		"outcome", res.Outcome(),
		"built", res.Built,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func (s *Scheduler) optimizerIfEnabled() *images.Optimizer {
	if !s.opts.Config.Pipeline.OptimizeImagesEnabled() {
		return nil
	}
	return s.opts.Optimizer
}

// classify splits units into cached skips and pending work. Drafts are cut
// here in production; their stale outputs and cache entries are removed so
// a page flipped to draft disappears from the tree.
func (s *Scheduler) classify(units []PageUnit, snap *graph.Snapshot, c *cache.Cache, outDir string, res *Result, logger *slog.Logger) ([]workItem, []manifest.PageEntry) {
	var work []workItem
	var entries []manifest.PageEntry
	seen := make(map[string]string, len(units))

	for _, unit := range units {
		if prev, dup := seen[unit.OutputPath]; dup {
			err := fmt.Errorf("output path already produced by %s", prev)
			res.Pages = append(res.Pages, PageResult{
				Unit:   unit,
				Status: StatusFailed,
				Err:    &UnitError{SourcePath: unit.SourcePath, OutputPath: unit.OutputPath, Err: err},
			})
			s.rec.IncPageResult(metrics.PageFailed)
			logger.Warn("Duplicate output path, keeping first unit",
				"output", unit.OutputPath, "kept", prev, "dropped", unit.SourcePath)
			continue
		}
		seen[unit.OutputPath] = unit.SourcePath

		abs := filepath.Join(s.opts.ProjectRoot, filepath.FromSlash(unit.SourcePath))
		meta, err := render.ReadMetadata(abs)
		if err != nil {
			res.Pages = append(res.Pages, PageResult{
				Unit:   unit,
				Status: StatusFailed,
				Err:    &UnitError{SourcePath: unit.SourcePath, OutputPath: unit.OutputPath, Err: err},
			})
			s.rec.IncPageResult(metrics.PageFailed)
			continue
		}

		if s.opts.Production && meta.Draft {
			_ = os.Remove(filepath.Join(outDir, filepath.FromSlash(unit.OutputPath)))
			c.Remove(unit.OutputPath)
			res.Pages = append(res.Pages, PageResult{Unit: unit, Status: StatusSkipped})
			s.rec.IncPageResult(metrics.PageSkipped)
			logger.Debug("Draft excluded", "page", unit.SourcePath)
			continue
		}

		deps := snap.DependencySet(unit.SourcePath)
		outputFile := filepath.Join(outDir, filepath.FromSlash(unit.OutputPath))
		_, statErr := os.Stat(outputFile)
		stale := c.IsStale(unit.OutputPath, deps) || statErr != nil

		if !stale {
			res.Pages = append(res.Pages, PageResult{Unit: unit, Status: StatusSkipped})
			s.rec.IncPageResult(metrics.PageSkipped)
			entries = append(entries, sitemapEntry(unit, meta))
			continue
		}
		work = append(work, workItem{unit: unit, deps: deps, meta: meta})
	}
	return work, entries
}

// runWorkers renders pending units on a bounded pool. Only this goroutine
// mutates the cache; workers send results over a channel. Returns true when
// the context was canceled before all work finished.
func (s *Scheduler) runWorkers(ctx context.Context, work []workItem, pipe *pipeline.Pipeline, c *cache.Cache, res *Result, entries *[]manifest.PageEntry, logger *slog.Logger) bool {
	if len(work) == 0 {
		return ctx.Err() != nil
	}

	jobs := make(chan workItem)
	results := make(chan workResultItem)

	var wg sync.WaitGroup
	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				results <- s.buildUnit(ctx, item, pipe)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(jobs)
		for _, item := range work {
			select {
			case jobs <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	for r := range results {
		switch {
		case r.err != nil:
			c.Remove(r.unit.OutputPath)
			res.Pages = append(res.Pages, PageResult{
				Unit: r.unit, Status: StatusFailed, Err: r.err, Duration: r.duration,
			})
			s.rec.IncPageResult(metrics.PageFailed)
			logger.Error("Page build failed", "page", r.unit.SourcePath, "error", r.err)
		default:
			c.Record(r.unit.OutputPath, r.deps, r.outputHash)
			res.Pages = append(res.Pages, PageResult{
				Unit: r.unit, Status: StatusBuilt, Duration: r.duration,
			})
			*entries = append(*entries, sitemapEntry(r.unit, r.meta))
			s.rec.IncPageResult(metrics.PageBuilt)
			logger.Debug("Page built", "page", r.unit.SourcePath,
				"output", r.unit.OutputPath, "duration_ms", r.duration.Milliseconds())
		}
	}
	// Any cancellation counts, even one arriving while the last unit was in
	// flight: the cache must not be committed for a partial run.
	return ctx.Err() != nil
}

// buildUnit renders one unit and pushes it through the transform pipeline.
// All errors are unit-scoped.
func (s *Scheduler) buildUnit(ctx context.Context, item workItem, pipe *pipeline.Pipeline) workResultItem {
	start := time.Now()
	out := workResultItem{unit: item.unit, deps: item.deps, meta: item.meta}

	unitCtx := ctx
	if s.opts.PageTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, s.opts.PageTimeout)
		defer cancel()
	}

	fail := func(err error) workResultItem {
		out.err = &UnitError{SourcePath: item.unit.SourcePath, OutputPath: item.unit.OutputPath, Err: err}
		out.duration = time.Since(start)
		return out
	}

	abs := filepath.Join(s.opts.ProjectRoot, filepath.FromSlash(item.unit.SourcePath))
	rendered, err := s.opts.Renderer.Render(unitCtx, abs, item.unit.Params)
	if err != nil {
		return fail(err)
	}

	html, err := s.opts.Hooks.FirePostRender(unitCtx, &hooks.PostRenderPayload{
		SourcePath: item.unit.SourcePath,
		OutputPath: item.unit.OutputPath,
		HTML:       rendered.HTML,
	})
	if err != nil {
		return fail(err)
	}

	page := &pipeline.Page{
		SourcePath: item.unit.SourcePath,
		OutputPath: item.unit.OutputPath,
		Title:      rendered.Title,
		Meta:       rendered.Meta,
		HTML:       html,
	}
	if err := pipe.Run(unitCtx, page); err != nil {
		return fail(err)
	}

	out.meta = rendered.Meta
	out.outputHash = page.OutputHash
	out.duration = time.Since(start)
	return out
}

// pruneStaleOutputs deletes output files whose cache entries no longer
// correspond to any enumerated unit (removed pages, renamed routes).
func (s *Scheduler) pruneStaleOutputs(units []PageUnit, c *cache.Cache, outDir string, logger *slog.Logger) {
	current := make(map[string]bool, len(units))
	for _, u := range units {
		current[u.OutputPath] = true
	}
	for _, outputPath := range c.OutputPaths() {
		if current[outputPath] {
			continue
		}
		if err := os.Remove(filepath.Join(outDir, filepath.FromSlash(outputPath))); err != nil && !os.IsNotExist(err) {
			logger.Warn("Could not remove stale output", "output", outputPath, "error", err)
		}
		c.Remove(outputPath)
		logger.Debug("Stale output removed", "output", outputPath)
	}
}

// writeManifests emits sitemap and robots first so the asset manifest's
// output scan covers them alongside the built pages.
func (s *Scheduler) writeManifests(outDir, baseURL string, assets *pipeline.AssetSet, entries []manifest.PageEntry) error {
	if err := manifest.WriteSitemap(outDir, baseURL, entries); err != nil {
		return err
	}
	if err := manifest.WriteRobots(outDir, baseURL); err != nil {
		return err
	}
	assetMap := make(map[string]manifest.Asset, len(assets.Entries))
	for _, a := range assets.Entries {
		assetMap[a.Source] = manifest.Asset{Output: a.Output, Hash: a.Hash, Size: a.Size}
	}
	return manifest.WriteAssetManifest(outDir, assetMap)
}

func (s *Scheduler) tally(res *Result) {
	sort.Slice(res.Pages, func(i, j int) bool {
		return res.Pages[i].Unit.OutputPath < res.Pages[j].Unit.OutputPath
	})
	res.Built, res.Skipped, res.Failed = 0, 0, 0
	for _, p := range res.Pages {
		switch p.Status {
		case StatusBuilt:
			res.Built++
		case StatusSkipped:
			res.Skipped++
		case StatusFailed:
			res.Failed++
		}
	}
}

func sitemapEntry(unit PageUnit, meta render.Metadata) manifest.PageEntry {
	return manifest.PageEntry{
		OutputPath: unit.OutputPath,
		Exclude:    meta.Draft || !meta.Sitemap,
		Priority:   meta.SitemapPriority,
		Changefreq: meta.SitemapChangefreq,
		LastMod:    meta.LastMod,
	}
}
