// Package hooks provides an explicit hook bus for build lifecycle
// extensions. Registration is explicit and typed per hook name; there is no
// runtime discovery of handler methods. Handlers run in priority order
// (ascending), ties broken by registration name.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// PreBuildPayload is passed to pre-build handlers before unit enumeration.
type PreBuildPayload struct {
	ProjectRoot string
	OutputDir   string
	Force       bool
}

// PostRenderPayload is passed to post-render handlers for each built page
// before the transform pipeline runs. Handlers may return replacement HTML.
type PostRenderPayload struct {
	SourcePath string
	OutputPath string
	HTML       []byte
}

// PostBuildPayload summarizes a completed run.
type PostBuildPayload struct {
	OutputDir string
	Built     int
	Skipped   int
	Failed    int
}

// PreBuildFunc runs before the build. An error aborts the run.
type PreBuildFunc func(ctx context.Context, p *PreBuildPayload) error

// PostRenderFunc may rewrite a page's HTML. Returning nil bytes keeps the
// input unchanged. An error is unit-scoped: it fails that page only.
type PostRenderFunc func(ctx context.Context, p *PostRenderPayload) ([]byte, error)

// PostBuildFunc runs after the build completes. Errors are logged by the
// caller but do not change the run's outcome.
type PostBuildFunc func(ctx context.Context, p *PostBuildPayload) error

type registration[F any] struct {
	name     string
	priority int
	fn       F
}

func sortRegistrations[F any](regs []registration[F]) {
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority < regs[j].priority
		}
		return regs[i].name < regs[j].name
	})
}

// Initializer is an optional lifecycle hook run once before the first
// invocation; Closer runs once at shutdown.
type Initializer interface{ Init() error }

// Closer releases handler resources at bus shutdown.
type Closer interface{ Close() error }

// Bus owns all registered handlers for one build process. It is created at
// process start and passed explicitly to the scheduler; there is no global
// registry.
type Bus struct {
	mu          sync.RWMutex
	preBuild    []registration[PreBuildFunc]
	postRender  []registration[PostRenderFunc]
	postBuild   []registration[PostBuildFunc]
	lifecycles  []any
	initialized bool
}

// NewBus creates an empty hook bus.
func NewBus() *Bus {
	return &Bus{}
}

// OnPreBuild registers a pre-build handler.
func (b *Bus) OnPreBuild(name string, priority int, fn PreBuildFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.preBuild = append(b.preBuild, registration[PreBuildFunc]{name, priority, fn})
	sortRegistrations(b.preBuild)
}

// OnPostRender registers a post-render handler.
func (b *Bus) OnPostRender(name string, priority int, fn PostRenderFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.postRender = append(b.postRender, registration[PostRenderFunc]{name, priority, fn})
	sortRegistrations(b.postRender)
}

// OnPostBuild registers a post-build handler.
func (b *Bus) OnPostBuild(name string, priority int, fn PostBuildFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.postBuild = append(b.postBuild, registration[PostBuildFunc]{name, priority, fn})
	sortRegistrations(b.postBuild)
}

// AddLifecycle registers an object whose Init/Close methods participate in
// the bus lifecycle.
func (b *Bus) AddLifecycle(obj any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lifecycles = append(b.lifecycles, obj)
}

// Init runs Init on every registered lifecycle object, once.
func (b *Bus) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	for _, obj := range b.lifecycles {
		if ini, ok := obj.(Initializer); ok {
			if err := ini.Init(); err != nil {
				return fmt.Errorf("hook init: %w", err)
			}
		}
	}
	b.initialized = true
	return nil
}

// Close runs Close on every registered lifecycle object.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for _, obj := range b.lifecycles {
		if cl, ok := obj.(Closer); ok {
			if err := cl.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// FirePreBuild invokes pre-build handlers in order, stopping at the first
// error.
func (b *Bus) FirePreBuild(ctx context.Context, p *PreBuildPayload) error {
	b.mu.RLock()
	regs := b.preBuild
	b.mu.RUnlock()
	for _, r := range regs {
		if err := r.fn(ctx, p); err != nil {
			return fmt.Errorf("pre-build hook %q: %w", r.name, err)
		}
	}
	return nil
}

// FirePostRender threads the HTML through each handler in order. The first
// error aborts the chain.
func (b *Bus) FirePostRender(ctx context.Context, p *PostRenderPayload) ([]byte, error) {
	b.mu.RLock()
	regs := b.postRender
	b.mu.RUnlock()
	html := p.HTML
	for _, r := range regs {
		p.HTML = html
		out, err := r.fn(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("post-render hook %q: %w", r.name, err)
		}
		if out != nil {
			html = out
		}
	}
	return html, nil
}

// FirePostBuild invokes post-build handlers in order; the first error is
// returned but later handlers still run.
func (b *Bus) FirePostBuild(ctx context.Context, p *PostBuildPayload) error {
	b.mu.RLock()
	regs := b.postBuild
	b.mu.RUnlock()
	var firstErr error
	for _, r := range regs {
		if err := r.fn(ctx, p); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("post-build hook %q: %w", r.name, err)
		}
	}
	return firstErr
}
