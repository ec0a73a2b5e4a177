// Package build schedules incremental site builds: it enumerates page
// units, classifies them against the cache, renders stale units on a
// bounded worker pool, and commits the cache only after a completed run.
package build

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/nitrosh/nitro-cli/internal/graph"
	"github.com/nitrosh/nitro-cli/internal/render"
)

// UnitKind distinguishes static pages from enumerated dynamic routes.
type UnitKind string

const (
	UnitStatic  UnitKind = "static"
	UnitDynamic UnitKind = "dynamic"
)

// PageUnit is one page to be produced: a source file plus, for dynamic
// routes, the route params of one enumerated instance.
type PageUnit struct {
	// SourcePath is project-root relative, slash-separated.
	SourcePath string
	// OutputPath is output-root relative, slash-separated.
	OutputPath string
	Params     render.RouteParams
	Kind       UnitKind
}

// UnitError wraps a unit-scoped failure with both paths for diagnostics.
type UnitError struct {
	SourcePath string
	OutputPath string
	Err        error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("page %s (output %s): %v", e.SourcePath, e.OutputPath, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// OutputPathFor maps a pages-dir-relative source path to its output
// location. Dynamic segments are substituted from params and slugified:
//
//	index.md           -> index.html
//	about.md           -> about/index.html
//	blog/[slug].md     -> blog/<slug>/index.html
func OutputPathFor(relSource string, params render.RouteParams) string {
	stem := strings.TrimSuffix(relSource, path.Ext(relSource))
	segs := strings.Split(stem, "/")
	for i, seg := range segs {
		if name, ok := paramSegment(seg); ok {
			segs[i] = render.Slugify(params.Get(name))
		}
	}
	stem = strings.Join(segs, "/")
	if path.Base(stem) == "index" {
		return path.Join(path.Dir(stem), "index.html")
	}
	return stem + "/index.html"
}

func paramSegment(seg string) (string, bool) {
	if strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]") && len(seg) > 2 {
		return seg[1 : len(seg)-1], true
	}
	return "", false
}

// enumerateUnits expands every page source into its build units. Static
// pages yield one unit. Dynamic pages ask the enumerator for their route
// instances; an enumeration failure fails the whole route family and is
// reported as a failed result for the source, not a fatal build error.
func enumerateUnits(ctx context.Context, snap *graph.Snapshot, projectRoot, pagesPrefix string, enum render.Enumerator) (units []PageUnit, failures []PageResult) {
	for _, src := range snap.SortedPageSources() {
		rel := strings.TrimPrefix(src, pagesPrefix)
		abs := filepath.Join(projectRoot, filepath.FromSlash(src))

		if _, dynamic := render.DynamicParamName(src); dynamic {
			paramSets, err := enum.Enumerate(ctx, abs)
			if err != nil {
				failures = append(failures, PageResult{
					Unit:   PageUnit{SourcePath: src, Kind: UnitDynamic},
					Status: StatusFailed,
					Err:    &UnitError{SourcePath: src, Err: fmt.Errorf("enumerate route: %w", err)},
				})
				continue
			}
			for _, params := range paramSets {
				units = append(units, PageUnit{
					SourcePath: src,
					OutputPath: OutputPathFor(rel, params),
					Params:     params,
					Kind:       UnitDynamic,
				})
			}
			continue
		}

		units = append(units, PageUnit{
			SourcePath: src,
			OutputPath: OutputPathFor(rel, nil),
			Kind:       UnitStatic,
		})
	}
	return units, failures
}
