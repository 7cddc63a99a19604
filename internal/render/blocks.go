package render

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var md = goldmark.New()

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a heading into a stable block key.
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// splitBlocks walks the markdown AST and cuts the source at every level-2
// heading. When no level-2 heading exists the whole document becomes a
// single "summary" block.
func splitBlocks(src []byte) []Block {
	doc := md.Parser().Parse(gmtext.NewReader(src))

	type cut struct {
		start int
		key   string
	}
	var cuts []cut
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 2 || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		start := seg.Start
		for start > 0 && src[start-1] != '\n' {
			start--
		}
		cuts = append(cuts, cut{start: start, key: slugify(string(src[seg.Start:seg.Stop]))})
	}

	if len(cuts) == 0 {
		return []Block{{Key: "summary", Markdown: strings.TrimSpace(string(src))}}
	}

	var blocks []Block
	for i, c := range cuts {
		end := len(src)
		if i+1 < len(cuts) {
			end = cuts[i+1].start
		}
		key := c.key
		if key == "" {
			key = "summary"
		}
		blocks = append(blocks, Block{
			Key:      key,
			Markdown: strings.TrimSpace(string(src[c.start:end])),
		})
	}
	return blocks
}
