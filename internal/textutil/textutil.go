// Package textutil holds the text-mining primitives shared by the field
// extractors: snippet windows, page resolution, whitespace normalization,
// confidence scoring and tender date parsing.
package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultSnippetWidth is the bounded snippet length used for trace links.
const DefaultSnippetWidth = 200

// shortDocThreshold is the length below which evidence is considered weak.
const shortDocThreshold = 1000

var spaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses runs of whitespace to single spaces and trims.
func Normalize(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Snippet extracts a window of at most width bytes centered on pos,
// trimmed and ellipsis-marked on truncated edges. Window edges land on rune
// boundaries so the snippet is always valid UTF-8. A width <= 0 uses
// DefaultSnippetWidth.
func Snippet(text string, pos, width int) string {
	if width <= 0 {
		width = DefaultSnippetWidth
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(text) {
		pos = len(text)
	}

	start := pos - width/2
	end := pos + width/2
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end > start && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}

	snippet := Normalize(text[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}

// PageForOffset resolves which page contains the given byte offset into the
// full text, assuming pages were joined with single newlines. Pages are
// 1-based; out-of-range offsets clamp to the nearest page. Returns 1 for
// empty input so trace links always point somewhere printable.
func PageForOffset(pageTexts []string, offset int) int {
	if len(pageTexts) == 0 {
		return 1
	}
	cum := 0
	for i, t := range pageTexts {
		cum += len(t) + 1 // joining newline
		if offset < cum {
			return i + 1
		}
	}
	return len(pageTexts)
}

// Confidence computes the shared extraction confidence heuristic:
// min(0.8, matches*0.2) + strongMatches*0.1, clamped to [0,1], with a 0.8
// weak-evidence multiplier for documents shorter than 1000 characters.
func Confidence(matches, strongMatches, textLen int) float64 {
	c := float64(matches) * 0.2
	if c > 0.8 {
		c = 0.8
	}
	c += float64(strongMatches) * 0.1
	if c > 1 {
		c = 1
	}
	if textLen < shortDocThreshold {
		c *= 0.8
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

// ChunkWords splits text into chunks of at most wordsPerChunk words.
// Used to synthesize pages when a document has no page boundaries.
func ChunkWords(text string, wordsPerChunk int) []string {
	if wordsPerChunk <= 0 {
		wordsPerChunk = 500
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var chunks []string
	for start := 0; start < len(words); start += wordsPerChunk {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
