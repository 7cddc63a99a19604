package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// EligibilityValue is the structured result of the eligibility extractor.
type EligibilityValue struct {
	Requirements []Requirement  `json:"requirements"`
	Categories   map[string]int `json:"categories,omitempty"`
}

// Requirement is one eligibility requirement with optional numeric side-values.
type Requirement struct {
	Text   string  `json:"text"`
	Type   string  `json:"type"` // experience, financial, certification, general
	Years  int     `json:"years,omitempty"`
	Amount float64 `json:"amount,omitempty"`
}

// EligibilityExtractor mines bidder eligibility requirements.
type EligibilityExtractor struct {
	patterns patternSet
}

// NewEligibilityExtractor builds the eligibility extractor.
func NewEligibilityExtractor() *EligibilityExtractor {
	return &EligibilityExtractor{
		patterns: patternSet{
			keywords: []string{
				"eligibility", "eligible bidders", "qualification", "qualified",
				"minimum requirements", "pre-qualification", "must have",
				"years of experience", "certified", "registration",
			},
			strong: []*regexp.Regexp{
				regexp.MustCompile(`(?i)eligibility\s+(?:criteria|requirements)\s*:`),
				regexp.MustCompile(`(?i)(?:bidders?|applicants?|firms?)\s+must\b`),
				regexp.MustCompile(`(?i)minimum\s+(?:of\s+)?\d+\s+years?\b`),
			},
			structural: []*regexp.Regexp{bulletLineRe},
		},
	}
}

func (e *EligibilityExtractor) Key() string { return KeyEligibility }

var (
	eligibilityLineRe = regexp.MustCompile(`(?i)\b(must|shall|required?|minimum|at least|eligib|qualif|certif|licen[cs]e|registered|turnover|experience)\b`)
	yearsRe           = regexp.MustCompile(`(?i)\b(\d{1,2})\s*\+?\s*years?\b`)
	moneyRe           = regexp.MustCompile(`(?i)(?:USD|EUR|GBP|\$|€|£)\s*([\d][\d,]*(?:\.\d+)?)\s*(million|thousand|mn|m|k)?\b`)
)

// Extract collects requirement sentences, sniffs a type per requirement,
// pulls numeric side-values (years, normalized monetary amounts) and builds
// the six-way category breakdown.
func (e *EligibilityExtractor) Extract(doc Document, _ []Document) Result {
	hits, citations := e.patterns.scan(doc)
	conf := e.patterns.confidence(doc, hits)

	value := EligibilityValue{Categories: map[string]int{}}
	for _, sentence := range splitSentences(doc.FullText()) {
		if !eligibilityLineRe.MatchString(sentence) {
			continue
		}
		req := Requirement{Text: truncate(sentence, 300), Type: sniffRequirementType(sentence)}
		if m := yearsRe.FindStringSubmatch(sentence); m != nil {
			req.Years, _ = strconv.Atoi(m[1])
		}
		if amount, ok := parseMoney(sentence); ok {
			req.Amount = amount
		}
		value.Requirements = append(value.Requirements, req)
		value.Categories[categorize(sentence, req.Type)]++
	}

	if conf == 0 {
		citations = nil
	}
	return Result{Key: KeyEligibility, Value: value, Confidence: conf, Citations: citations}
}

// sniffRequirementType assigns one of the four requirement types by keyword.
func sniffRequirementType(s string) string {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "experience") || yearsRe.MatchString(s):
		return "experience"
	case strings.Contains(l, "turnover") || strings.Contains(l, "revenue") ||
		strings.Contains(l, "financial") || strings.Contains(l, "net worth"):
		return "financial"
	case strings.Contains(l, "certif") || strings.Contains(l, "iso ") ||
		strings.Contains(l, "license") || strings.Contains(l, "licence") ||
		strings.Contains(l, "accredit"):
		return "certification"
	default:
		return "general"
	}
}

// categorize refines the requirement type into the six summary categories.
func categorize(s, reqType string) string {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "registered") || strings.Contains(l, "tax") ||
		strings.Contains(l, "legal") || strings.Contains(l, "incorporat"):
		return "legal"
	case reqType == "general" && (strings.Contains(l, "technical") || strings.Contains(l, "equipment") ||
		strings.Contains(l, "personnel") || strings.Contains(l, "staff")):
		return "technical"
	default:
		return reqType
	}
}

// parseMoney extracts a monetary threshold and normalizes the unit suffix
// ("million"/"m" x1e6, "thousand"/"k" x1e3).
func parseMoney(s string) (float64, bool) {
	m := moneyRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	raw := strings.ReplaceAll(m[1], ",", "")
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "million", "mn", "m":
		amount *= 1e6
	case "thousand", "k":
		amount *= 1e3
	}
	return amount, true
}
