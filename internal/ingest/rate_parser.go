package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// DefaultReturnRate is returned when no rate rule matches.
const DefaultReturnRate = 5

// MaxReturnRate bounds a plausible rate. Larger numbers are not rates and
// the rule falls through.
const MaxReturnRate = 10000

// DefaultReferenceSpend is the spend a point count is measured against.
const DefaultReferenceSpend = 10000

// RateOptions carries the per-source knobs of rate extraction.
type RateOptions struct {
	Points         bool
	ReferenceSpend int
	MinPoints      int
}

// RateResult is an extracted rate and the rule that produced it.
type RateResult struct {
	Percent int
	Rule    string
}

type rateRule struct {
	name    string
	pattern *regexp.Regexp
	points  bool
	convert func(m []string, opts RateOptions) (int, bool)
}

// rateRules are evaluated in order and the first match wins. The results are
// heuristic: a "10倍" multiplier is read as 10 percent.
var rateRules = []rateRule{
	{name: "multiplier", pattern: regexp.MustCompile(`(\d+)倍`), convert: directPercent},
	{name: "percent", pattern: regexp.MustCompile(`(\d+)\s*%`), convert: directPercent},
	{name: "points", pattern: regexp.MustCompile(`(\d+(?:,\d{3})*)\s*ポイント`), points: true, convert: pointsPercent},
}

// ExtractReturnRate returns the integer percent reward rate found in text.
func ExtractReturnRate(text string, opts RateOptions) int {
	return ParseReturnRate(text, opts).Percent
}

// ParseReturnRate is ExtractReturnRate that also reports which rule fired.
func ParseReturnRate(text string, opts RateOptions) RateResult {
	folded := foldText(text)
	for _, rule := range rateRules {
		if rule.points && !opts.Points {
			continue
		}
		m := rule.pattern.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		if pct, ok := rule.convert(m, opts); ok {
			return RateResult{Percent: pct, Rule: rule.name}
		}
	}
	return RateResult{Percent: DefaultReturnRate, Rule: "default"}
}

func directPercent(m []string, _ RateOptions) (int, bool) {
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 || n > MaxReturnRate {
		return 0, false
	}
	return n, true
}

func pointsPercent(m []string, opts RateOptions) (int, bool) {
	points, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || points < opts.MinPoints {
		return 0, false
	}
	ref := opts.ReferenceSpend
	if ref <= 0 {
		ref = DefaultReferenceSpend
	}
	f := math.Round(float64(points) / float64(ref) * 100)
	if f > MaxReturnRate {
		return 0, false
	}
	pct := int(f)
	if pct < 1 {
		pct = 1
	}
	return pct, true
}

// foldText maps full-width digits and symbols to their ASCII forms.
func foldText(s string) string {
	return width.Fold.String(s)
}
