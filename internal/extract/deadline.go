package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/kalambet/tenderd/internal/textutil"
)

// DeadlineValue is the structured result of the deadline extractor.
type DeadlineValue struct {
	Candidates []DeadlineCandidate `json:"candidates"`
	Primary    *DeadlineCandidate  `json:"primary,omitempty"`
}

// DeadlineCandidate is one deadline-like sentence with its parsed date.
type DeadlineCandidate struct {
	Sentence string     `json:"sentence"`
	Type     string     `json:"type"` // submission, due, closing, proposal, bid, general
	Date     *time.Time `json:"date,omitempty"`
	TimeText string     `json:"time,omitempty"`
	Valid    bool       `json:"valid"`
	Future   bool       `json:"future"`
	Bucket   string     `json:"bucket,omitempty"` // past, today, urgent, soon, later
}

// typePriority orders candidate types for primary-deadline selection.
var typePriority = []string{"submission", "due", "closing", "proposal", "bid"}

// deadlineSentenceRe matches sentences anchored on deadline vocabulary.
var deadlineSentenceRe = regexp.MustCompile(`(?i)[^.!?\n]*\b(?:deadline|due\s+date|closing\s+date|no\s+later\s+than|must\s+be\s+(?:received|submitted)|submission\s+date|bids?\s+close)\b[^.!?\n]*[.!?]?`)

var timeOfDayRe = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*(?:am|pm|hours|hrs)\b(?:\s*[A-Z]{2,4}\b)?`)

// DeadlineExtractor mines submission deadlines and selects a primary one.
// Now is injectable so validity bucketing is deterministic under test.
type DeadlineExtractor struct {
	patterns patternSet
	Now      func() time.Time
}

// NewDeadlineExtractor builds the deadline extractor.
func NewDeadlineExtractor() *DeadlineExtractor {
	return &DeadlineExtractor{
		patterns: patternSet{
			keywords: []string{
				"deadline", "due date", "closing date", "submission date",
				"no later than", "must be received", "must be submitted",
			},
			strong: []*regexp.Regexp{
				regexp.MustCompile(`(?i)(?:submission|proposal|bid)\s+deadline\s*:`),
				regexp.MustCompile(`(?i)closing\s+date\s*:`),
				regexp.MustCompile(`(?i)no\s+later\s+than\b`),
			},
			structural: []*regexp.Regexp{bulletLineRe},
		},
		Now: time.Now,
	}
}

func (e *DeadlineExtractor) Key() string { return KeyDeadlineSubmission }

// Extract pulls every deadline-like sentence, parses and validates each
// candidate date, and selects the primary deadline by type priority and
// earliest-future-date precedence. Confidence gets +0.2 when a valid future
// date exists and is halved when no candidate carries a valid date at all.
func (e *DeadlineExtractor) Extract(doc Document, _ []Document) Result {
	text := doc.FullText()
	hits, citations := e.patterns.scan(doc)
	conf := e.patterns.confidence(doc, hits)
	now := e.Now().UTC()

	var value DeadlineValue
	for _, loc := range deadlineSentenceRe.FindAllStringIndex(text, -1) {
		sentence := textutil.Normalize(text[loc[0]:loc[1]])
		if sentence == "" {
			continue
		}
		c := DeadlineCandidate{
			Sentence: truncate(sentence, 300),
			Type:     deadlineType(sentence),
		}
		if t := timeOfDayRe.FindString(sentence); t != "" {
			c.TimeText = strings.TrimSpace(t)
		}
		if date, ok := textutil.ParseTenderDate(sentence); ok {
			c.Date = &date
			c.Valid = true
			c.Future = date.After(now)
			c.Bucket = bucketFor(date, now)
		}
		value.Candidates = append(value.Candidates, c)
		// The matched sentence is evidence in its own right: vocabulary like
		// "bids close" has no keyword-tier counterpart, and a non-zero
		// confidence always carries at least one citation.
		citations = citeSentence(citations, doc, text, loc[0])
	}

	value.Primary = selectPrimary(value.Candidates)

	anyValid, anyFuture := false, false
	for _, c := range value.Candidates {
		if c.Valid {
			anyValid = true
			if c.Future {
				anyFuture = true
			}
		}
	}
	if anyFuture {
		conf += 0.2
		if conf > 1 {
			conf = 1
		}
	}
	if !anyValid {
		conf /= 2
	}

	if conf == 0 {
		citations = nil
	}
	return Result{Key: KeyDeadlineSubmission, Value: value, Confidence: conf, Citations: citations}
}

// citeSentence appends a citation for the sentence starting at offset,
// skipping duplicates of what the pattern scan already cited.
func citeSentence(citations []Citation, doc Document, text string, offset int) []Citation {
	if len(citations) >= maxCitations {
		return citations
	}
	snippet := textutil.Snippet(text, offset, textutil.DefaultSnippetWidth)
	if snippet == "" {
		return citations
	}
	for _, c := range citations {
		if c.Snippet == snippet {
			return citations
		}
	}
	return append(citations, Citation{
		DocumentID: doc.ID,
		Page:       textutil.PageForOffset(doc.Pages, offset),
		Snippet:    snippet,
	})
}

// deadlineType classifies a sentence by the first matching vocabulary group.
func deadlineType(s string) string {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "submission") || strings.Contains(l, "submit"):
		return "submission"
	case strings.Contains(l, "due"):
		return "due"
	case strings.Contains(l, "closing") || strings.Contains(l, "close"):
		return "closing"
	case strings.Contains(l, "proposal"):
		return "proposal"
	case strings.Contains(l, "bid"):
		return "bid"
	default:
		return "general"
	}
}

// bucketFor assigns the days-from-now bucket.
func bucketFor(date, now time.Time) string {
	days := int(date.Sub(now).Hours() / 24)
	switch {
	case date.Before(now) && !sameDay(date, now):
		return "past"
	case sameDay(date, now):
		return "today"
	case days <= 7:
		return "urgent"
	case days <= 30:
		return "soon"
	default:
		return "later"
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// selectPrimary applies the precedence rule:
//  1. among valid future dates, the first type in priority order that has
//     any candidate wins, taking its earliest date;
//  2. otherwise the earliest valid future date of any type;
//  3. otherwise the latest valid past date;
//  4. otherwise the first candidate found.
func selectPrimary(candidates []DeadlineCandidate) *DeadlineCandidate {
	if len(candidates) == 0 {
		return nil
	}

	var future, past []DeadlineCandidate
	for _, c := range candidates {
		if !c.Valid {
			continue
		}
		if c.Future {
			future = append(future, c)
		} else {
			past = append(past, c)
		}
	}

	for _, typ := range typePriority {
		var best *DeadlineCandidate
		for i := range future {
			c := future[i]
			if c.Type != typ {
				continue
			}
			if best == nil || c.Date.Before(*best.Date) {
				best = &c
			}
		}
		if best != nil {
			return best
		}
	}

	if len(future) > 0 {
		best := future[0]
		for _, c := range future[1:] {
			if c.Date.Before(*best.Date) {
				best = c
			}
		}
		return &best
	}

	if len(past) > 0 {
		best := past[0]
		for _, c := range past[1:] {
			if c.Date.After(*best.Date) {
				best = c
			}
		}
		return &best
	}

	first := candidates[0]
	return &first
}
