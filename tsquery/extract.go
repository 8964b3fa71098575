package tsquery

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Extract derives the full parameter set from a normalized question. No
// family can fail: each falls back to an empty or default value.
func Extract(normalized string, now time.Time) Parameters {
	return Parameters{
		TimeRange:        extractTimeRange(normalized, now),
		Regions:          unionMatches(normalized, regionRules),
		EnergySources:    unionMatches(normalized, sourceRules),
		MeasurementTypes: unionMatches(normalized, measurementRules),
		Aggregation:      extractAggregation(normalized),
		Filters:          extractFilters(normalized),
		Limit:            extractLimit(normalized),
		GroupBy:          extractGroupBy(normalized),
	}
}

func extractTimeRange(text string, now time.Time) TimeRange {
	for _, tr := range timeRules {
		m := tr.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if rng, ok := tr.resolve(m, now); ok {
			return rng
		}
	}

	var dates []time.Time
	for _, m := range isoDatePattern.FindAllStringSubmatch(text, -1) {
		d, err := time.ParseInLocation("2006-01-02", m[1], time.UTC)
		if err != nil {
			continue
		}
		dates = append(dates, d)
		if len(dates) == 2 {
			break
		}
	}
	switch len(dates) {
	case 1:
		return TimeRange{Start: dates[0], Stop: dates[0].Add(day)}
	case 2:
		start, stop := dates[0], dates[1]
		if stop.Before(start) {
			start, stop = stop, start
		}
		return TimeRange{Start: start, Stop: stop.Add(day)}
	}

	return TimeRange{Start: now.Add(-defaultLookback), Stop: now, Relative: true}
}

// unionMatches collects the payload of every matching rule, keeping the
// first occurrence of each value.
func unionMatches(text string, rules []rule[[]string]) []string {
	out := []string{}
	for _, rl := range rules {
		if rl.pattern.MatchString(text) {
			out = appendUnique(out, rl.value...)
		}
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, have := range dst {
			if have == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}

func extractAggregation(text string) string {
	for _, rl := range aggregationRules {
		if rl.pattern.MatchString(text) {
			return rl.value
		}
	}
	return defaultAggregation
}

func extractFilters(text string) map[string]any {
	filters := map[string]any{}
	for _, rl := range qualityRules {
		if rl.pattern.MatchString(text) {
			filters[FilterQualityFlag] = rl.value
			break
		}
	}
	if n, ok := minCapacity(text); ok {
		filters[FilterMinCapacity] = n
	}
	if m := minEfficiencyPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			filters[FilterMinEfficiency] = percentToFraction(n)
		}
	}
	return filters
}

// minCapacity reads a plant size threshold. A match that begins at
// "capacity factor" is a ratio threshold, so scanning resumes after it.
func minCapacity(text string) (int, bool) {
	for {
		m := minCapacityPattern.FindStringSubmatchIndex(text)
		if m == nil {
			return 0, false
		}
		if prefix := capacityFactorPrefix.FindStringIndex(text[m[0]:]); prefix != nil {
			text = text[m[0]+prefix[1]:]
			continue
		}
		n, err := strconv.Atoi(text[m[2]:m[3]])
		return n, err == nil
	}
}

// percentToFraction converts a whole-number percent to a fraction in [0,1].
func percentToFraction(pct int64) float64 {
	frac := decimal.NewFromInt(pct).Div(decimal.NewFromInt(100))
	if frac.GreaterThan(decimal.NewFromInt(1)) {
		frac = decimal.NewFromInt(1)
	}
	return frac.InexactFloat64()
}

func extractLimit(text string) *int {
	for _, p := range limitRules {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if n, ok := atoiPositive(m[1]); ok {
			return &n
		}
	}
	return nil
}

func extractGroupBy(text string) []string {
	out := []string{}
	for _, rl := range groupByRules {
		if rl.pattern.MatchString(text) {
			out = appendUnique(out, rl.value)
		}
	}
	return out
}

func atoiPositive(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// applyHints fills families the question left empty. In-text values are
// never overridden and values outside the vocabulary are dropped.
func applyHints(p *Parameters, hints Hints) {
	if len(hints) == 0 {
		return
	}
	if len(p.Regions) == 0 {
		p.Regions = hintedVocabulary(hints[ParamRegions], AllRegions)
	}
	if len(p.EnergySources) == 0 {
		p.EnergySources = hintedVocabulary(hints[ParamEnergySources], AllEnergySources)
	}
	if len(p.MeasurementTypes) == 0 {
		p.MeasurementTypes = hintedVocabulary(hints[ParamMeasurementTypes], AllMeasurementTypes)
	}
	if p.Limit == nil {
		if n, ok := hintedLimit(hints[ParamLimit]); ok {
			p.Limit = &n
		}
	}
}

func hintedVocabulary(v any, vocabulary []string) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = []string{t}
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}
	out := []string{}
	for _, s := range raw {
		s = strings.ToLower(strings.TrimSpace(s))
		for _, known := range vocabulary {
			if s == known {
				out = appendUnique(out, s)
				break
			}
		}
	}
	return out
}

func hintedLimit(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, t > 0
	case int64:
		if t > 0 && t <= math.MaxInt32 {
			return int(t), true
		}
	case float64:
		if t > 0 && t <= math.MaxInt32 && t == math.Trunc(t) {
			return int(t), true
		}
	}
	return 0, false
}
