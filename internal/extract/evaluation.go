package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// EvaluationValue is the structured result of the evaluation criteria extractor.
type EvaluationValue struct {
	Criteria         []Criterion        `json:"criteria"`
	TotalPoints      float64            `json:"totalPoints,omitempty"`
	WeightByCategory map[string]float64 `json:"weightByCategory,omitempty"`
	ScoringMethod    string             `json:"scoringMethod,omitempty"`
	Stages           []string           `json:"stages,omitempty"`
}

// Criterion is one evaluation criterion with optional weight and points.
type Criterion struct {
	Text     string  `json:"text"`
	Weight   float64 `json:"weight,omitempty"` // percentage
	Points   float64 `json:"points,omitempty"`
	Category string  `json:"category"` // technical, commercial, experience, schedule, general
}

// scoringMethods is the fixed vocabulary matched against document text,
// in match-priority order.
var scoringMethods = []string{
	"lowest cost",
	"best value",
	"technically acceptable",
	"qualification based selection",
	"two-stage evaluation",
	"single stage",
	"multi-stage",
}

// EvaluationExtractor mines evaluation criteria, weights and methodology.
type EvaluationExtractor struct {
	patterns patternSet
}

// NewEvaluationExtractor builds the evaluation criteria extractor.
func NewEvaluationExtractor() *EvaluationExtractor {
	return &EvaluationExtractor{
		patterns: patternSet{
			keywords: []string{
				"evaluation criteria", "evaluation", "scoring", "weighted",
				"technical score", "award criteria", "selection criteria", "points",
			},
			strong: []*regexp.Regexp{
				regexp.MustCompile(`(?i)evaluation\s+criteria\s*:`),
				regexp.MustCompile(`(?i)award\s+criteria\s*:`),
				regexp.MustCompile(`(?i)\b\d{1,3}\s*(?:%|percent|points?)\b`),
			},
			structural: []*regexp.Regexp{bulletLineRe, numberedSecRe},
		},
	}
}

func (e *EvaluationExtractor) Key() string { return KeyEvaluationCriteria }

var (
	criterionLineRe = regexp.MustCompile(`(?i)\b(criteri|score|scoring|weight|points?|evaluat)\b`)
	weightRe        = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*(?:%|percent)`)
	pointsRe        = regexp.MustCompile(`(?i)(\d{1,4}(?:\.\d+)?)\s*points?\b`)
	stageRe         = regexp.MustCompile(`(?i)\b(?:stage|phase)\s+(?:\d+|one|two|three|four|I{1,3}V?)\b[^\n.]*`)
)

// Extract collects criteria with optional weight/points, aggregates scoring
// info (total points, weight distribution by category, scoring method) and
// the ordered methodology stage list.
func (e *EvaluationExtractor) Extract(doc Document, _ []Document) Result {
	hits, citations := e.patterns.scan(doc)
	conf := e.patterns.confidence(doc, hits)
	text := doc.FullText()

	value := EvaluationValue{WeightByCategory: map[string]float64{}}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !criterionLineRe.MatchString(line) {
			continue
		}
		c := Criterion{Text: truncate(line, 300), Category: criterionCategory(line)}
		if m := weightRe.FindStringSubmatch(line); m != nil {
			c.Weight, _ = strconv.ParseFloat(m[1], 64)
		}
		if m := pointsRe.FindStringSubmatch(line); m != nil {
			c.Points, _ = strconv.ParseFloat(m[1], 64)
		}
		value.Criteria = append(value.Criteria, c)
		value.TotalPoints += c.Points
		if c.Weight > 0 {
			value.WeightByCategory[c.Category] += c.Weight
		}
	}

	lower := strings.ToLower(text)
	for _, method := range scoringMethods {
		if strings.Contains(lower, method) {
			value.ScoringMethod = method
			break
		}
	}

	seen := make(map[string]bool)
	for _, m := range stageRe.FindAllString(text, -1) {
		stage := truncate(strings.TrimSpace(m), 160)
		key := strings.ToLower(stage)
		if !seen[key] {
			seen[key] = true
			value.Stages = append(value.Stages, stage)
		}
	}

	if len(value.WeightByCategory) == 0 {
		value.WeightByCategory = nil
	}
	if conf == 0 {
		citations = nil
	}
	return Result{Key: KeyEvaluationCriteria, Value: value, Confidence: conf, Citations: citations}
}

// criterionCategory buckets a criterion line by keyword.
func criterionCategory(s string) string {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "technic") || strings.Contains(l, "methodolog") || strings.Contains(l, "quality"):
		return "technical"
	case strings.Contains(l, "price") || strings.Contains(l, "cost") || strings.Contains(l, "commercial") || strings.Contains(l, "financial"):
		return "commercial"
	case strings.Contains(l, "experience") || strings.Contains(l, "past performance") || strings.Contains(l, "reference"):
		return "experience"
	case strings.Contains(l, "schedule") || strings.Contains(l, "timeline") || strings.Contains(l, "delivery time"):
		return "schedule"
	default:
		return "general"
	}
}
