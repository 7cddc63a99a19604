// Package checklist evaluates declarative auto-check rules against
// extracted field values to produce compliance checklist items.
//
// Conditions are a closed set of operators interpreted by a switch, never
// dynamically evaluated expressions, so every rule is statically checkable.
package checklist

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kalambet/tenderd/internal/extract"
	"github.com/kalambet/tenderd/internal/textutil"
)

// Item statuses.
const (
	StatusPending       = "pending"
	StatusOK            = "ok"
	StatusMissing       = "missing"
	StatusNotApplicable = "not_applicable"
)

// Op is a condition operator.
type Op string

// The closed operator set.
const (
	OpContains   Op = "contains"
	OpEquals     Op = "equals"
	OpExists     Op = "exists"
	OpMatches    Op = "matches"
	OpDateAfter  Op = "date_after"
	OpDateBefore Op = "date_before"
)

// Rule is one auto-check condition bound to a target field.
type Rule struct {
	Field         string // extraction key the rule inspects
	Op            Op
	Arg           string // operator argument (substring, regex, date, …)
	CaseSensitive bool
	Required      bool // unmet required rules report missing, others pending
}

// TemplateItem is one checklist entry of a template.
type TemplateItem struct {
	Key   string
	Label string
}

// Template is a named, ordered checklist schema.
type Template struct {
	ID    string
	Items []TemplateItem
}

// Item is one evaluated checklist item.
type Item struct {
	Key       string
	Label     string
	Status    string
	Notes     string
	Citations []extract.Citation
}

// Evaluation is the outcome of evaluating a template.
type Evaluation struct {
	Items []Item
	// RequiresManualReview counts items left pending because no rule covers
	// them or because condition evaluation degraded.
	RequiresManualReview int
}

// Evaluate applies the rule table to the extracted fields for every item of
// the named template. Unknown template ids are a caller error; everything
// past that point is best-effort and never pipeline-fatal.
func Evaluate(templateID string, fields map[string]extract.Result) (Evaluation, error) {
	tpl, ok := templates[templateID]
	if !ok {
		return Evaluation{}, fmt.Errorf("unknown checklist template %q", templateID)
	}

	var ev Evaluation
	for _, entry := range tpl.Items {
		item := Item{Key: entry.Key, Label: entry.Label}

		rule, hasRule := rules[entry.Key]
		if !hasRule {
			item.Status = StatusPending
			item.Notes = "no auto-check rule; requires manual review"
			ev.RequiresManualReview++
			ev.Items = append(ev.Items, item)
			continue
		}

		field, present := fields[rule.Field]
		if !present {
			item.Status = StatusMissing
			item.Notes = fmt.Sprintf("field %q was not extracted", rule.Field)
			ev.Items = append(ev.Items, item)
			continue
		}

		matched, evalErr := safeApply(rule, field)
		switch {
		case evalErr != nil:
			// Auto-check is best-effort: evaluation trouble degrades to
			// pending instead of failing the pipeline.
			item.Status = StatusPending
			item.Notes = fmt.Sprintf("auto-check degraded: %v", evalErr)
			ev.RequiresManualReview++
		case matched:
			item.Status = StatusOK
			item.Citations = field.Citations
		case rule.Required:
			item.Status = StatusMissing
			item.Notes = fmt.Sprintf("required condition %s not met on %q", rule.Op, rule.Field)
		default:
			item.Status = StatusPending
			item.Notes = fmt.Sprintf("condition %s not met on %q", rule.Op, rule.Field)
		}
		ev.Items = append(ev.Items, item)
	}
	return ev, nil
}

// safeApply evaluates one condition with panic absorption.
func safeApply(rule Rule, field extract.Result) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = fmt.Errorf("condition panicked: %v", r)
		}
	}()
	return apply(rule, field)
}

func apply(rule Rule, field extract.Result) (bool, error) {
	switch rule.Op {
	case OpExists:
		return fieldText(field) != "" && field.Confidence > 0, nil

	case OpContains:
		haystack := fieldText(field)
		needle := rule.Arg
		if !rule.CaseSensitive {
			haystack = strings.ToLower(haystack)
			needle = strings.ToLower(needle)
		}
		return strings.Contains(haystack, needle), nil

	case OpEquals:
		a, b := textutil.Normalize(fieldText(field)), textutil.Normalize(rule.Arg)
		if !rule.CaseSensitive {
			a, b = strings.ToLower(a), strings.ToLower(b)
		}
		return a == b, nil

	case OpMatches:
		re, err := regexp.Compile(rule.Arg)
		if err != nil {
			return false, fmt.Errorf("invalid rule pattern: %w", err)
		}
		return re.MatchString(fieldText(field)), nil

	case OpDateAfter, OpDateBefore:
		date, ok := fieldDate(field)
		if !ok {
			return false, nil
		}
		ref, err := refDate(rule.Arg)
		if err != nil {
			return false, err
		}
		if rule.Op == OpDateAfter {
			return date.After(ref), nil
		}
		return date.Before(ref), nil

	default:
		return false, fmt.Errorf("unknown operator %q", rule.Op)
	}
}

// fieldText flattens a field value into searchable text.
func fieldText(field extract.Result) string {
	if field.Value == nil {
		return ""
	}
	b, err := json.Marshal(field.Value)
	if err != nil {
		return ""
	}
	s := string(b)
	if s == "{}" || s == "null" || s == "[]" {
		return ""
	}
	return s
}

// fieldDate pulls a comparable date out of a field value: the primary
// deadline when the field is a deadline extraction, otherwise the first
// plausible date in its text form.
func fieldDate(field extract.Result) (time.Time, bool) {
	if dv, ok := field.Value.(extract.DeadlineValue); ok {
		if dv.Primary != nil && dv.Primary.Date != nil {
			return *dv.Primary.Date, true
		}
		return time.Time{}, false
	}
	return textutil.ParseTenderDate(fieldText(field))
}

// refDate resolves a date-operator argument: "now" or RFC3339/tender forms.
func refDate(arg string) (time.Time, error) {
	if strings.EqualFold(strings.TrimSpace(arg), "now") {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, arg); err == nil {
		return t, nil
	}
	if t, ok := textutil.ParseTenderDate(arg); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable rule date %q", arg)
}

// IsComplete reports whether no item is pending or missing.
func IsComplete(items []Item) bool {
	statuses := make([]string, len(items))
	for i, it := range items {
		statuses[i] = it.Status
	}
	return StatusesComplete(statuses)
}

// CanApprove gates human approval eligibility. Recomputed from the current
// items on every call, never cached.
func CanApprove(items []Item) bool {
	return IsComplete(items)
}

// StatusesComplete is the raw predicate over item statuses, shared with
// callers that hold persisted items rather than evaluation output.
func StatusesComplete(statuses []string) bool {
	for _, s := range statuses {
		if s == StatusPending || s == StatusMissing {
			return false
		}
	}
	return true
}
