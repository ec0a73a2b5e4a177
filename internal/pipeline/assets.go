package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nitrosh/nitro-cli/internal/hashing"
	"github.com/nitrosh/nitro-cli/internal/images"
	"github.com/nitrosh/nitro-cli/internal/islands"
)

// AssetEntry records one published asset for the manifest.
type AssetEntry struct {
	// Source is the site-absolute logical path, e.g. /styles/main.css.
	Source string
	// Output is the site-absolute published path, fingerprinted when enabled.
	Output string
	Hash   string
	Size   int64
}

// AssetSet is the result of publishing static assets: the rewrite table the
// fingerprint stage uses, generated image variants, and manifest entries.
type AssetSet struct {
	// Refs maps site-absolute source paths to their published paths.
	Refs map[string]string
	// Variants maps site-absolute image paths to their generated renditions.
	Variants map[string]images.VariantSet
	// RuntimeSrc is the site-absolute path of the island hydration runtime,
	// empty when islands are disabled.
	RuntimeSrc string
	Entries    []AssetEntry
}

// PublishOptions configures asset publishing.
type PublishOptions struct {
	PublicDir   string
	StylesDir   string
	OutputDir   string
	Fingerprint bool
	Minify      bool
	// Optimizer generates image variants; nil disables image optimization.
	Optimizer *images.Optimizer
	// EmitRuntime publishes the island hydration runtime script.
	EmitRuntime bool
	Logger      *slog.Logger
}

// PublishAssets copies public/ and styles/ into the output tree, applying
// fingerprinting, CSS minification and image variant generation as
// configured. Missing source directories are skipped.
func PublishAssets(ctx context.Context, opts PublishOptions) (*AssetSet, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	set := &AssetSet{
		Refs:     map[string]string{},
		Variants: map[string]images.VariantSet{},
	}

	publish := func(srcDir, prefix string) error {
		if _, err := os.Stat(srcDir); os.IsNotExist(err) {
			return nil
		}
		return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(srcDir, path)
			if err != nil {
				return err
			}
			logical := prefix + filepath.ToSlash(rel)
			return publishFile(ctx, opts, set, path, logical)
		})
	}

	if err := publish(opts.PublicDir, "/"); err != nil {
		return nil, fmt.Errorf("publish public assets: %w", err)
	}
	if err := publish(opts.StylesDir, "/styles/"); err != nil {
		return nil, fmt.Errorf("publish styles: %w", err)
	}

	if opts.EmitRuntime {
		if err := publishRuntime(opts, set); err != nil {
			return nil, fmt.Errorf("publish island runtime: %w", err)
		}
	}

	sort.Slice(set.Entries, func(i, j int) bool { return set.Entries[i].Source < set.Entries[j].Source })
	logger.Debug("assets published", "count", len(set.Entries))
	return set, nil
}

func publishFile(ctx context.Context, opts PublishOptions, set *AssetSet, srcPath, logical string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read asset %s: %w", logical, err)
	}
	if opts.Minify && strings.HasSuffix(logical, ".css") {
		data = MinifyCSS(data)
	}

	fp := hashing.HashBytes(data)
	output := logical
	if opts.Fingerprint {
		output = "/" + hashing.FingerprintName(strings.TrimPrefix(logical, "/"), fp)
	}

	if err := writeAsset(opts.OutputDir, output, data); err != nil {
		return err
	}
	set.Refs[logical] = output
	set.Entries = append(set.Entries, AssetEntry{
		Source: logical,
		Output: output,
		Hash:   fp.Short(),
		Size:   int64(len(data)),
	})

	if opts.Optimizer != nil && images.IsImagePath(logical) {
		variants, err := opts.Optimizer.Optimize(ctx, srcPath, strings.TrimPrefix(logical, "/"))
		if err != nil {
			return fmt.Errorf("optimize %s: %w", logical, err)
		}
		set.Variants[logical] = variants
	}
	return nil
}

func publishRuntime(opts PublishOptions, set *AssetSet) error {
	data := islands.RuntimeJS()
	fp := hashing.HashBytes(data)
	output := "/" + islands.RuntimeAssetPath
	if opts.Fingerprint {
		output = "/" + hashing.FingerprintName(islands.RuntimeAssetPath, fp)
	}
	if err := writeAsset(opts.OutputDir, output, data); err != nil {
		return err
	}
	set.RuntimeSrc = output
	set.Entries = append(set.Entries, AssetEntry{
		Source: "/" + islands.RuntimeAssetPath,
		Output: output,
		Hash:   fp.Short(),
		Size:   int64(len(data)),
	})
	return nil
}

func writeAsset(outputDir, sitePath string, data []byte) error {
	dest := filepath.Join(outputDir, filepath.FromSlash(strings.TrimPrefix(sitePath, "/")))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write asset %s: %w", sitePath, err)
	}
	return nil
}
