package pipeline

import (
	"bytes"
	"context"
	"regexp"
	"strings"
)

// MinifyStage collapses inter-tag whitespace in rendered HTML. Content of
// pre, textarea, script and style elements is left untouched.
type MinifyStage struct{}

func (MinifyStage) Name() string { return "minify" }

func (MinifyStage) Apply(_ context.Context, page *Page) error {
	page.HTML = MinifyHTML(page.HTML)
	return nil
}

var (
	preserveRe   = regexp.MustCompile(`(?is)<(pre|textarea|script|style)\b.*?</(pre|textarea|script|style)>`)
	htmlComment  = regexp.MustCompile(`<!--[^\[].*?-->`)
	interTagRe   = regexp.MustCompile(`>\s+<`)
	whitespaceRe = regexp.MustCompile(`[ \t]{2,}`)
)

// MinifyHTML performs conservative whitespace minification: comments are
// dropped, runs of blanks collapse, and whitespace between tags shrinks to
// nothing. Verbatim elements are carved out first and restored afterwards.
func MinifyHTML(doc []byte) []byte {
	var carved [][]byte
	work := preserveRe.ReplaceAllFunc(doc, func(m []byte) []byte {
		carved = append(carved, m)
		return []byte{0}
	})

	work = htmlComment.ReplaceAll(work, nil)
	work = interTagRe.ReplaceAll(work, []byte("><"))
	work = whitespaceRe.ReplaceAll(work, []byte(" "))
	work = bytes.TrimSpace(work)

	if len(carved) == 0 {
		return work
	}
	parts := bytes.Split(work, []byte{0})
	var out bytes.Buffer
	out.Grow(len(doc))
	for i, part := range parts {
		out.Write(part)
		if i < len(carved) {
			out.Write(carved[i])
		}
	}
	return out.Bytes()
}

var (
	cssComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	cssSpace   = regexp.MustCompile(`\s+`)
	cssAround  = regexp.MustCompile(`\s*([{}:;,>])\s*`)
)

// MinifyCSS strips comments and collapses whitespace around punctuation.
func MinifyCSS(css []byte) []byte {
	out := cssComment.ReplaceAll(css, nil)
	out = cssSpace.ReplaceAll(out, []byte(" "))
	out = cssAround.ReplaceAll(out, []byte("$1"))
	out = bytes.ReplaceAll(out, []byte(";}"), []byte("}"))
	return []byte(strings.TrimSpace(string(out)))
}
