package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/tenderd/internal/extract"
)

// narrative turns one field's structured value into summary prose. Fields at
// or below the low-confidence threshold always render the placeholder; the
// renderer never fabricates content out of weak signal.
func narrative(f Field) string {
	if f.Confidence <= LowConfidenceThreshold {
		return Placeholder
	}

	switch v := f.Value.(type) {
	case extract.ScopeValue:
		return scopeNarrative(v)
	case extract.EligibilityValue:
		return eligibilityNarrative(v)
	case extract.EvaluationValue:
		return evaluationNarrative(v)
	case extract.SubmissionValue:
		return submissionNarrative(v)
	case extract.DeadlineValue:
		return deadlineNarrative(v)
	default:
		return Placeholder
	}
}

func scopeNarrative(v extract.ScopeValue) string {
	if v.Summary == "" {
		return Placeholder
	}
	return v.Summary
}

func eligibilityNarrative(v extract.EligibilityValue) string {
	if len(v.Requirements) == 0 {
		return Placeholder
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d eligibility requirements identified", len(v.Requirements))
	if len(v.Categories) > 0 {
		cats := make([]string, 0, len(v.Categories))
		for c, n := range v.Categories {
			cats = append(cats, fmt.Sprintf("%s: %d", c, n))
		}
		sort.Strings(cats)
		fmt.Fprintf(&b, " (%s)", strings.Join(cats, ", "))
	}
	b.WriteString(".\n")
	for i, req := range v.Requirements {
		if i >= 8 {
			fmt.Fprintf(&b, "- …and %d more\n", len(v.Requirements)-i)
			break
		}
		fmt.Fprintf(&b, "- %s\n", req.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func evaluationNarrative(v extract.EvaluationValue) string {
	if len(v.Criteria) == 0 && v.ScoringMethod == "" {
		return Placeholder
	}
	var b strings.Builder
	if v.ScoringMethod != "" {
		fmt.Fprintf(&b, "Scoring method: %s. ", v.ScoringMethod)
	}
	if len(v.Criteria) > 0 {
		fmt.Fprintf(&b, "%d evaluation criteria identified", len(v.Criteria))
		if v.TotalPoints > 0 {
			fmt.Fprintf(&b, " totalling %.0f points", v.TotalPoints)
		}
		b.WriteString(".\n")
		for i, c := range v.Criteria {
			if i >= 8 {
				fmt.Fprintf(&b, "- …and %d more\n", len(v.Criteria)-i)
				break
			}
			line := c.Text
			if c.Weight > 0 {
				line = fmt.Sprintf("%s (%.0f%%)", line, c.Weight)
			}
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	if len(v.Stages) > 0 {
		fmt.Fprintf(&b, "Methodology: %s.", strings.Join(v.Stages, " → "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func submissionNarrative(v extract.SubmissionValue) string {
	var parts []string
	if v.Delivery.Method != "" {
		parts = append(parts, fmt.Sprintf("Delivery method: %s", v.Delivery.Method))
	}
	if v.Delivery.Email != "" {
		parts = append(parts, fmt.Sprintf("email %s", v.Delivery.Email))
	}
	if v.Delivery.Portal != "" {
		parts = append(parts, fmt.Sprintf("portal %s", v.Delivery.Portal))
	}
	if v.Delivery.Address != "" {
		parts = append(parts, fmt.Sprintf("address: %s", v.Delivery.Address))
	}
	if v.Format.Copies > 0 {
		parts = append(parts, fmt.Sprintf("%d copies required", v.Format.Copies))
	}
	if v.Format.OriginalRequired {
		parts = append(parts, "original required")
	}
	if len(v.Format.FileFormats) > 0 {
		parts = append(parts, fmt.Sprintf("accepted formats: %s", strings.Join(v.Format.FileFormats, ", ")))
	}
	if len(parts) == 0 {
		return Placeholder
	}
	return strings.Join(parts, ". ") + "."
}

func deadlineNarrative(v extract.DeadlineValue) string {
	if v.Primary == nil {
		return Placeholder
	}
	p := v.Primary
	var b strings.Builder
	if p.Date != nil {
		fmt.Fprintf(&b, "Primary deadline (%s): %s", p.Type, p.Date.Format("January 2, 2006"))
		if p.TimeText != "" {
			fmt.Fprintf(&b, " at %s", p.TimeText)
		}
		if p.Bucket != "" {
			fmt.Fprintf(&b, " [%s]", p.Bucket)
		}
	} else {
		fmt.Fprintf(&b, "Deadline mentioned but no parseable date: %q", p.Sentence)
	}
	if extra := len(v.Candidates) - 1; extra > 0 {
		fmt.Fprintf(&b, ". %d further deadline mentions found", extra)
	}
	b.WriteString(".")
	return b.String()
}
