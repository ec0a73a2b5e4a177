package render

import (
	"fmt"
	"os"
)

// ReadMetadata parses only the frontmatter of a page source, without
// rendering. The scheduler uses it to classify drafts and collect sitemap
// fields for pages whose cached output is being reused.
func ReadMetadata(sourcePath string) (Metadata, error) {
	content, err := os.ReadFile(sourcePath)
	if err != nil {
		return Metadata{}, fmt.Errorf("read page source: %w", err)
	}
	header, _, err := splitFrontMatter(content)
	if err != nil {
		return Metadata{}, err
	}
	fm, err := parseFrontMatter(header)
	if err != nil {
		return Metadata{}, err
	}
	return fm.metadata(), nil
}
