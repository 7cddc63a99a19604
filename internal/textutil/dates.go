package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Plausible tender dates fall strictly between these years; anything else is
// treated as noise (phone numbers, clause references) and silently discarded.
const (
	minPlausibleYear = 2020
	maxPlausibleYear = 2030
)

var (
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})\b`)
	isoDateRe     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthDayRe    = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\s*,?\s*(\d{4})\b`)
	dayMonthRe    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s*,?\s*(\d{4})\b`)
)

var monthsByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ParseTenderDate finds the first plausible date in s and returns it.
// Supported forms: DD/MM/YYYY and MM/DD/YYYY (ambiguity resolved by range
// validity, preferring the DD/MM reading when both are valid: a deliberate,
// non-locale-aware carryover), YYYY-MM-DD, "Month DD, YYYY" and
// "DD Month YYYY". Invalid or out-of-range candidates are discarded, never
// reported as errors.
func ParseTenderDate(s string) (time.Time, bool) {
	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if t, ok := makeDate(year, month, day); ok {
			return t, true
		}
	}

	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		month := monthsByName[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t, ok := makeDate(year, int(month), day); ok {
			return t, true
		}
	}

	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := monthsByName[strings.ToLower(m[2])]
		year, _ := strconv.Atoi(m[3])
		if t, ok := makeDate(year, int(month), day); ok {
			return t, true
		}
	}

	if m := numericDateRe.FindStringSubmatch(s); m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])

		// Prefer the DD/MM reading; fall back to MM/DD when only that is valid.
		if t, ok := makeDate(year, second, first); ok {
			return t, true
		}
		if t, ok := makeDate(year, first, second); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// makeDate validates components and builds a UTC date. Years outside the
// plausible tender window are rejected.
func makeDate(year, month, day int) (time.Time, bool) {
	if year <= minPlausibleYear || year >= maxPlausibleYear {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (e.g. Feb 30 -> Mar 2); reject those.
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return t, true
}
