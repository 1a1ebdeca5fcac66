package ingest

import (
	"regexp"
	"strconv"
	"time"
)

// DefaultCampaignLength is how far out the end date lands when none is found.
const DefaultCampaignLength = 30 * 24 * time.Hour

// DateResult is an extracted end date and the rule that produced it.
type DateResult struct {
	End  time.Time
	Rule string
}

type dateRule struct {
	name    string
	pattern *regexp.Regexp
	resolve func(m []string, now time.Time) (time.Time, bool)
}

// dateRules are evaluated in order. A match that is not a real calendar date
// falls through to the next rule.
var dateRules = []dateRule{
	{name: "year_month_day", pattern: regexp.MustCompile(`(\d{4})年\s*(\d{1,2})月\s*(\d{1,2})日`), resolve: resolveYearMonthDay},
	{name: "month_day", pattern: regexp.MustCompile(`(\d{1,2})月\s*(\d{1,2})日`), resolve: resolveMonthDay},
}

// ExtractEndDate returns the campaign end date found in text, in now's location.
// It never fails: unparseable text yields now + 30 days.
func ExtractEndDate(text string, now time.Time) time.Time {
	return ParseEndDate(text, now).End
}

// ParseEndDate is ExtractEndDate that also reports which rule fired.
func ParseEndDate(text string, now time.Time) DateResult {
	folded := foldText(text)
	for _, rule := range dateRules {
		m := rule.pattern.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		if t, ok := rule.resolve(m, now); ok {
			return DateResult{End: t, Rule: rule.name}
		}
	}
	return DateResult{End: now.Add(DefaultCampaignLength), Rule: "default"}
}

func resolveYearMonthDay(m []string, now time.Time) (time.Time, bool) {
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	return endOfDay(y, m[2], m[3], now.Location())
}

func resolveMonthDay(m []string, now time.Time) (time.Time, bool) {
	t, ok := endOfDay(now.Year(), m[1], m[2], now.Location())
	if !ok {
		return time.Time{}, false
	}
	if t.Before(now) {
		return endOfDay(now.Year()+1, m[1], m[2], now.Location())
	}
	return t, true
}

// endOfDay builds 23:59:59 on the given date, rejecting dates that time.Date
// would silently normalize (Feb 30, month 13).
func endOfDay(year int, month, day string, loc *time.Location) (time.Time, bool) {
	mo, err := strconv.Atoi(month)
	if err != nil || mo < 1 || mo > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(mo), d, 23, 59, 59, 0, loc)
	if t.Year() != year || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
