// Package images produces responsive image variants for source images and
// tracks generated variants in a persistent index so unchanged images are
// not reprocessed across builds.
package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nitrosh/nitro-cli/internal/hashing"
)

// Variant is a single generated rendition of a source image.
type Variant struct {
	Width  int    `json:"width"`
	Format string `json:"format"`
	// Path is the output-root-relative location of the rendition.
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// VariantSet groups the renditions generated for one source image.
type VariantSet struct {
	// Source is the public-root-relative path of the original image.
	Source   string    `json:"source"`
	Hash     string    `json:"hash"`
	Variants []Variant `json:"variants"`
}

// ErrUnsupportedFormat signals an engine cannot produce the requested
// output format for the given source.
var ErrUnsupportedFormat = errors.New("images: unsupported format")

// Engine transforms raw image bytes into a rendition of the given width and
// format.
type Engine interface {
	Transform(ctx context.Context, src []byte, width int, format string) ([]byte, error)
}

// Optimizer generates variants through an Engine and caches results in a
// VariantIndex keyed by content hash.
type Optimizer struct {
	engine  Engine
	index   *VariantIndex
	outDir  string
	widths  []int
	formats []string
	logger  *slog.Logger
}

// NewOptimizer wires an engine and index to an output directory. widths and
// formats define the variant matrix; the literal format "orig" keeps the
// source's own format.
func NewOptimizer(engine Engine, index *VariantIndex, outDir string, widths []int, formats []string, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		engine:  engine,
		index:   index,
		outDir:  outDir,
		widths:  widths,
		formats: formats,
		logger:  logger,
	}
}

// Optimize generates (or reuses) the variant matrix for sourcePath. relPath
// is the public-root-relative path used to derive variant output paths.
// Cached variants are reused when the source hash matches and every output
// file still exists.
func (o *Optimizer) Optimize(ctx context.Context, sourcePath, relPath string) (VariantSet, error) {
	fp, err := hashing.HashFile(sourcePath)
	if err != nil {
		return VariantSet{}, fmt.Errorf("hash image %s: %w", relPath, err)
	}
	hash := fp.Short()

	if cached, ok, err := o.lookupCached(ctx, relPath, hash); err != nil {
		return VariantSet{}, err
	} else if ok {
		o.logger.Debug("image variants reused", "source", relPath, "count", len(cached.Variants))
		return cached, nil
	}

	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return VariantSet{}, fmt.Errorf("read image %s: %w", relPath, err)
	}

	set := VariantSet{Source: relPath, Hash: hash}
	for _, width := range o.widths {
		for _, format := range o.formats {
			if err := ctx.Err(); err != nil {
				return VariantSet{}, err
			}
			outFormat := format
			if format == "orig" || format == "original" {
				outFormat = strings.TrimPrefix(path.Ext(relPath), ".")
			}
			data, err := o.engine.Transform(ctx, src, width, outFormat)
			if errors.Is(err, ErrUnsupportedFormat) {
				o.logger.Debug("image format skipped", "source", relPath, "format", outFormat)
				continue
			}
			if err != nil {
				return VariantSet{}, fmt.Errorf("transform %s (w=%d %s): %w", relPath, width, outFormat, err)
			}

			variantRel := variantPath(relPath, hash, width, outFormat)
			outPath := filepath.Join(o.outDir, filepath.FromSlash(variantRel))
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return VariantSet{}, fmt.Errorf("create variant dir: %w", err)
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return VariantSet{}, fmt.Errorf("write variant %s: %w", variantRel, err)
			}
			set.Variants = append(set.Variants, Variant{
				Width:  width,
				Format: outFormat,
				Path:   variantRel,
				Size:   int64(len(data)),
			})
		}
	}

	if o.index != nil {
		if err := o.index.Put(ctx, set); err != nil {
			return VariantSet{}, fmt.Errorf("record variants: %w", err)
		}
	}
	o.logger.Debug("image variants generated", "source", relPath, "count", len(set.Variants))
	return set, nil
}

func (o *Optimizer) lookupCached(ctx context.Context, relPath, hash string) (VariantSet, bool, error) {
	if o.index == nil {
		return VariantSet{}, false, nil
	}
	cached, ok, err := o.index.Get(ctx, relPath)
	if err != nil {
		return VariantSet{}, false, fmt.Errorf("lookup variants: %w", err)
	}
	if !ok || cached.Hash != hash {
		return VariantSet{}, false, nil
	}
	for _, v := range cached.Variants {
		if _, err := os.Stat(filepath.Join(o.outDir, filepath.FromSlash(v.Path))); err != nil {
			return VariantSet{}, false, nil
		}
	}
	return cached, true, nil
}

// variantPath derives the output path for a rendition:
// img/photo.jpg -> img/photo.<hash>.w640.webp
func variantPath(relPath, hash string, width int, format string) string {
	ext := path.Ext(relPath)
	base := strings.TrimSuffix(relPath, ext)
	return fmt.Sprintf("%s.%s.w%d.%s", base, hash, width, format)
}
