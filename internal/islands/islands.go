// Package islands detects interactive-island hydration markers in rendered
// HTML and injects the client hydration runtime once per page.
package islands

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// MarkerAttr is the attribute island wrappers carry in rendered HTML.
const MarkerAttr = "data-island"

// RuntimeAssetPath is the output-root-relative path of the hydration
// runtime script before fingerprinting.
const RuntimeAssetPath = "_islands/runtime.js"

// HasIslands reports whether the document contains at least one island
// marker. The document is parsed rather than substring-matched so markers
// inside comments or scripts do not count.
func HasIslands(doc []byte) (bool, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return false, fmt.Errorf("parse html: %w", err)
	}

	var found bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == MarkerAttr {
					found = true
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found, nil
}

// InjectRuntime inserts a module script tag referencing scriptSrc before the
// closing body tag. Documents already referencing the script are returned
// unchanged, keeping the injection idempotent.
func InjectRuntime(doc []byte, scriptSrc string) []byte {
	if bytes.Contains(doc, []byte(scriptSrc)) {
		return doc
	}

	tag := fmt.Sprintf("<script type=\"module\" src=%q></script>", scriptSrc)

	idx := lastIndexFold(doc, "</body>")
	if idx < 0 {
		out := make([]byte, 0, len(doc)+len(tag)+1)
		out = append(out, doc...)
		out = append(out, '\n')
		out = append(out, tag...)
		return out
	}

	out := make([]byte, 0, len(doc)+len(tag)+1)
	out = append(out, doc[:idx]...)
	out = append(out, tag...)
	out = append(out, '\n')
	out = append(out, doc[idx:]...)
	return out
}

func lastIndexFold(haystack []byte, needle string) int {
	lower := bytes.LastIndex(haystack, []byte(strings.ToLower(needle)))
	upper := bytes.LastIndex(haystack, []byte(strings.ToUpper(needle)))
	if lower > upper {
		return lower
	}
	return upper
}
