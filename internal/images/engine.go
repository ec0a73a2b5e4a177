package images

import (
	"context"
	"path"
	"strings"
)

// PassthroughEngine emits the source bytes unchanged for renditions in the
// source's own format and refuses format conversion. It keeps the variant
// pipeline functional where no native image codec is available; the variant
// matrix then degrades to hashed copies of the original.
type PassthroughEngine struct{}

// Transform returns src unchanged when format matches the source format,
// and ErrUnsupportedFormat otherwise.
func (PassthroughEngine) Transform(_ context.Context, src []byte, _ int, format string) ([]byte, error) {
	if !matchesSniffedFormat(src, format) {
		return nil, ErrUnsupportedFormat
	}
	return src, nil
}

// matchesSniffedFormat checks magic bytes for the common web image formats.
// Unknown payloads are accepted as-is since passthrough never rewrites them.
func matchesSniffedFormat(src []byte, format string) bool {
	sniffed := sniffFormat(src)
	if sniffed == "" {
		return true
	}
	format = strings.ToLower(format)
	if format == "jpg" {
		format = "jpeg"
	}
	return sniffed == format
}

func sniffFormat(src []byte) string {
	switch {
	case len(src) >= 8 && string(src[:8]) == "\x89PNG\r\n\x1a\n":
		return "png"
	case len(src) >= 3 && src[0] == 0xFF && src[1] == 0xD8 && src[2] == 0xFF:
		return "jpeg"
	case len(src) >= 6 && (string(src[:6]) == "GIF87a" || string(src[:6]) == "GIF89a"):
		return "gif"
	case len(src) >= 12 && string(src[:4]) == "RIFF" && string(src[8:12]) == "WEBP":
		return "webp"
	case len(src) >= 5 && (strings.HasPrefix(string(src), "<svg") || strings.HasPrefix(string(src), "<?xml")):
		return "svg"
	default:
		return ""
	}
}

// IsImagePath reports whether a public asset path looks like an image the
// optimizer should handle.
func IsImagePath(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	default:
		return false
	}
}
