package extract

import (
	"regexp"
	"strings"
)

// ScopeValue is the structured result of the scope extractor.
type ScopeValue struct {
	Sections []ScopeSection `json:"sections"`
	Summary  string         `json:"summary,omitempty"`
}

// ScopeSection is one qualifying passage tagged by its structural shape.
type ScopeSection struct {
	Type string `json:"type"` // "section", "list" or "paragraph"
	Text string `json:"text"`
}

// ScopeExtractor mines scope-of-work language.
type ScopeExtractor struct {
	patterns patternSet
}

// NewScopeExtractor builds the scope extractor with its pattern tiers.
func NewScopeExtractor() *ScopeExtractor {
	return &ScopeExtractor{
		patterns: patternSet{
			keywords: []string{
				"scope of work", "scope of services", "statement of work",
				"work to be performed", "services required", "deliverables",
				"project description", "objectives",
			},
			strong: []*regexp.Regexp{
				regexp.MustCompile(`(?i)scope\s+of\s+(?:work|services)\s*:`),
				regexp.MustCompile(`(?i)statement\s+of\s+work\s*:`),
				regexp.MustCompile(`(?i)the\s+(?:contractor|supplier|vendor)\s+shall\b`),
			},
			structural: []*regexp.Regexp{headerLineRe, numberedSecRe},
		},
	}
}

func (e *ScopeExtractor) Key() string { return KeyScope }

// Extract scans for scope-indicating passages. The summary concatenates the
// first five qualifying sections, each capped at 200 characters.
func (e *ScopeExtractor) Extract(doc Document, _ []Document) Result {
	hits, citations := e.patterns.scan(doc)
	conf := e.patterns.confidence(doc, hits)

	value := ScopeValue{Sections: e.collectSections(doc.FullText())}

	var parts []string
	for i, s := range value.Sections {
		if i >= 5 {
			break
		}
		parts = append(parts, truncate(s.Text, 200))
	}
	value.Summary = strings.Join(parts, " ")

	if conf == 0 {
		citations = nil
	}
	return Result{Key: KeyScope, Value: value, Confidence: conf, Citations: citations}
}

var scopeIndicatorRe = regexp.MustCompile(`(?i)\b(scope|deliverable|objective|shall\s+(?:provide|perform|deliver)|work\s+to\s+be\s+performed|services?\s+required)\b`)

// collectSections walks paragraphs and list items, keeping those with
// scope-indicating language, tagged by structural shape.
func (e *ScopeExtractor) collectSections(text string) []ScopeSection {
	var sections []ScopeSection
	for _, para := range strings.Split(text, "\n") {
		para = strings.TrimSpace(para)
		if para == "" || !scopeIndicatorRe.MatchString(para) {
			continue
		}
		typ := "paragraph"
		switch {
		case headerLineRe.MatchString(para) || numberedSecRe.MatchString(para):
			typ = "section"
		case bulletLineRe.MatchString(para):
			typ = "list"
		}
		sections = append(sections, ScopeSection{Type: typ, Text: para})
	}
	return sections
}
