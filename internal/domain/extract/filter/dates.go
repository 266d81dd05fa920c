package filter

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reISODay   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	reISOMonth = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	reISOYear  = regexp.MustCompile(`^(\d{4})$`)
	reQuarter  = regexp.MustCompile(`(?i)^(\d{4})-Q([1-4])$`)
	reDayName  = regexp.MustCompile(`^(\d{1,2})\s+([A-Za-z]{3,})\.?,?\s+(\d{4})$`)
	reDaySlash = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})[./](\d{4})$`)
)

// monthNames covers English and Italian month names and abbreviations; the
// source PDFs are sometimes localized.
var monthNames = map[string]time.Month{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
	"gen": 1, "gennaio": 1,
	"febbraio":  2,
	"marzo":     3,
	"aprile":    4,
	"maggio":    5,
	"giugno":    6,
	"luglio":    7,
	"agosto":    8,
	"settembre": 9,
	"ottobre":   10,
	"novembre":  11,
	"dicembre":  12,
}

func endOfMonth(y int, m time.Month) time.Time {
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

func validDay(y int, m time.Month, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > endOfMonth(y, m).Day() {
		return time.Time{}, false
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

// ParseFlexible parses a row's date value: ISO day, ISO month (resolved to its
// last day), bare year (resolved to 31 Dec), textual "23 Sep 2026" forms, and
// day-first "23/09/2026" or "23.09.2026". Trailing punctuation from PDF
// extraction is tolerated.
func ParseFlexible(s string) (time.Time, bool) {
	txt := strings.TrimRight(strings.TrimSpace(s), ".,;")
	if txt == "" {
		return time.Time{}, false
	}

	if m := reISODay.FindStringSubmatch(txt); m != nil {
		return validDay(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]))
	}
	if m := reISOMonth.FindStringSubmatch(txt); m != nil {
		mo := atoi(m[2])
		if mo < 1 || mo > 12 {
			return time.Time{}, false
		}
		return endOfMonth(atoi(m[1]), time.Month(mo)), true
	}
	if m := reISOYear.FindStringSubmatch(txt); m != nil {
		return time.Date(atoi(m[1]), 12, 31, 0, 0, 0, 0, time.UTC), true
	}
	if m := reDayName.FindStringSubmatch(txt); m != nil {
		name := strings.TrimRight(strings.ToLower(m[2]), ".")
		mo, ok := monthNames[name]
		if !ok {
			return time.Time{}, false
		}
		return validDay(atoi(m[3]), mo, atoi(m[1]))
	}
	if m := reDaySlash.FindStringSubmatch(txt); m != nil {
		return validDay(atoi(m[3]), time.Month(atoi(m[2])), atoi(m[1]))
	}
	return time.Time{}, false
}

// PeriodEnd resolves a structured filter value to its inclusive upper bound:
// YYYY, YYYY-Qn, YYYY-MM and YYYY-MM-DD map to the end of year, quarter,
// month and day respectively. There is no lower bound.
func PeriodEnd(filterValue string) (time.Time, bool) {
	txt := strings.TrimSpace(filterValue)
	if txt == "" {
		return time.Time{}, false
	}

	if m := reISOYear.FindStringSubmatch(txt); m != nil {
		return time.Date(atoi(m[1]), 12, 31, 0, 0, 0, 0, time.UTC), true
	}
	if m := reQuarter.FindStringSubmatch(txt); m != nil {
		return endOfMonth(atoi(m[1]), time.Month(atoi(m[2])*3)), true
	}
	if m := reISOMonth.FindStringSubmatch(txt); m != nil {
		mo := atoi(m[2])
		if mo < 1 || mo > 12 {
			return time.Time{}, false
		}
		return endOfMonth(atoi(m[1]), time.Month(mo)), true
	}
	if m := reISODay.FindStringSubmatch(txt); m != nil {
		return validDay(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]))
	}
	return time.Time{}, false
}

// MatchesFilter applies the inclusive upper-bound rule: a structured filter
// keeps rows whose date parses and is not after the period end, and excludes
// rows whose date fails to parse. A filter that is not a structured period
// degrades to a case-insensitive prefix test against the raw value, and an
// empty filter matches everything.
func MatchesFilter(value, filterValue string) bool {
	end, ok := PeriodEnd(filterValue)
	if !ok {
		return matchesPrefix(value, filterValue)
	}
	d, ok := ParseFlexible(value)
	if !ok {
		return false
	}
	return !d.After(end)
}

func matchesPrefix(value, prefix string) bool {
	pref := strings.TrimSpace(prefix)
	if pref == "" {
		return true
	}
	return strings.HasPrefix(
		strings.ToLower(strings.TrimSpace(value)),
		strings.ToLower(pref),
	)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
