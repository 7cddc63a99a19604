// Package extract implements the pattern-based field extractors. Each
// extractor scans tender document text with three pattern tiers (weak
// keywords, strong phrase-anchored expressions, structural patterns) and
// emits a typed value, a confidence score and the citations backing it.
//
// Extractors never fail: a document with no signal yields a zero-confidence
// result with no citations, which callers treat as "field not found".
package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/tenderd/internal/textutil"
)

// Field keys.
const (
	KeyScope               = "scope"
	KeyEligibility         = "eligibility"
	KeyEvaluationCriteria  = "evaluationCriteria"
	KeySubmissionMechanics = "submissionMechanics"
	KeyDeadlineSubmission  = "deadlineSubmission"
)

// AllKeys lists every known field key in canonical order.
var AllKeys = []string{
	KeyScope,
	KeyEligibility,
	KeyEvaluationCriteria,
	KeySubmissionMechanics,
	KeyDeadlineSubmission,
}

// Document is the extractor's read-only view of one parsed document.
type Document struct {
	ID    string
	Pages []string
}

// FullText joins the document's pages with newlines.
func (d Document) FullText() string {
	return strings.Join(d.Pages, "\n")
}

// Citation points an extracted fact back to its source page and snippet.
type Citation struct {
	DocumentID string
	Page       int
	Snippet    string
	Section    string
}

// Result is one field's extraction outcome. Value is a field-specific
// JSON-marshalable shape; Confidence is a [0,1] heuristic. A result with
// Confidence > 0 always carries at least one citation.
type Result struct {
	Key        string
	Value      any
	Confidence float64
	Citations  []Citation
}

// Extractor is the contract shared by all five field extractors.
type Extractor interface {
	Key() string
	Extract(doc Document, all []Document) Result
}

// maxCitations bounds how many trace links a single extraction emits.
const maxCitations = 10

// patternSet holds one extractor's three pattern tiers.
type patternSet struct {
	keywords   []string
	strong     []*regexp.Regexp
	structural []*regexp.Regexp
}

// scanHit is one pattern match located in the full text.
type scanHit struct {
	offset int
	strong bool
}

// scan runs all three tiers over the document and returns the located hits
// plus the citations they resolve to. Structural matches contribute
// citations but not confidence counts.
func (ps patternSet) scan(doc Document) (hits []scanHit, citations []Citation) {
	text := doc.FullText()
	lower := strings.ToLower(text)

	for _, kw := range ps.keywords {
		needle := strings.ToLower(kw)
		for from := 0; ; {
			i := strings.Index(lower[from:], needle)
			if i < 0 {
				break
			}
			hits = append(hits, scanHit{offset: from + i})
			from += i + len(needle)
		}
	}

	for _, re := range ps.strong {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, scanHit{offset: loc[0], strong: true})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].offset < hits[j].offset })

	structural := make([]int, 0)
	for _, re := range ps.structural {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			structural = append(structural, loc[0])
		}
	}

	seen := make(map[string]bool)
	cite := func(offset int) {
		if len(citations) >= maxCitations {
			return
		}
		snippet := textutil.Snippet(text, offset, textutil.DefaultSnippetWidth)
		if snippet == "" || seen[snippet] {
			return
		}
		seen[snippet] = true
		citations = append(citations, Citation{
			DocumentID: doc.ID,
			Page:       textutil.PageForOffset(doc.Pages, offset),
			Snippet:    snippet,
		})
	}

	for _, h := range hits {
		cite(h.offset)
	}
	for _, off := range structural {
		cite(off)
	}

	return hits, citations
}

// confidence applies the shared scoring rule to a scan's hits.
func (ps patternSet) confidence(doc Document, hits []scanHit) float64 {
	strong := 0
	for _, h := range hits {
		if h.strong {
			strong++
		}
	}
	return textutil.Confidence(len(hits), strong, len(doc.FullText()))
}

// splitSentences breaks text into rough sentences for per-sentence pattern
// work. Good enough for heuristic mining; not a linguistic segmenter.
var sentenceRe = regexp.MustCompile(`[^.!?\n]+[.!?]?`)

func splitSentences(text string) []string {
	raw := sentenceRe.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// structural line patterns shared by several extractors.
var (
	bulletLineRe  = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\(?\d+[.)]|\(?[a-z][.)])\s+\S`)
	headerLineRe  = regexp.MustCompile(`(?m)^\s*(?:\d+(?:\.\d+)*[.)]?\s+)?[A-Z][A-Z &/-]{3,}\s*$`)
	numberedSecRe = regexp.MustCompile(`(?m)^\s*\d+(?:\.\d+)*[.)]?\s+[A-Z]`)
)

// truncate caps s at n bytes without splitting a rune at the cut point.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n])
}

// ForKeys builds extractors for the requested keys, skipping unknown ones.
// An empty key list means all extractors.
func ForKeys(keys []string) []Extractor {
	if len(keys) == 0 {
		keys = AllKeys
	}
	var out []Extractor
	for _, k := range keys {
		switch k {
		case KeyScope:
			out = append(out, NewScopeExtractor())
		case KeyEligibility:
			out = append(out, NewEligibilityExtractor())
		case KeyEvaluationCriteria:
			out = append(out, NewEvaluationExtractor())
		case KeySubmissionMechanics:
			out = append(out, NewSubmissionExtractor())
		case KeyDeadlineSubmission:
			out = append(out, NewDeadlineExtractor())
		}
	}
	return out
}
