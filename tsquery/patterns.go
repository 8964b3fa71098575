package tsquery

import (
	"math"
	"time"

	"github.com/grafana/regexp"
)

// Every table in this file is evaluated top to bottom and is never mutated
// after package initialization. Order is part of the behavior: first match
// wins for time, aggregation and limit; regions, sources, measurements and
// group-by take the union of all matches.

// Fixed vocabulary.
var (
	AllRegions          = []string{"north", "northeast", "south", "southeast", "midwest"}
	AllEnergySources    = []string{"hydro", "solar", "wind", "thermal", "nuclear"}
	AllMeasurementTypes = []string{"generation", "consumption", "transmission"}
	AllGroupByDims      = []string{"region", "energy_source", "hour", "day", "week", "month", "year"}
)

type rule[T any] struct {
	pattern *regexp.Regexp
	value   T
}

func rx[T any](expr string, value T) rule[T] {
	return rule[T]{pattern: regexp.MustCompile(expr), value: value}
}

type timeRule struct {
	pattern *regexp.Regexp
	resolve func(match []string, now time.Time) (TimeRange, bool)
}

const day = 24 * time.Hour

var unitDurations = map[string]time.Duration{
	"hour":  time.Hour,
	"day":   day,
	"week":  7 * day,
	"month": 30 * day,
	"year":  365 * day,
}

func lookback(d time.Duration) func([]string, time.Time) (TimeRange, bool) {
	return func(_ []string, now time.Time) (TimeRange, bool) {
		return TimeRange{Start: now.Add(-d), Stop: now, Relative: true}, true
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

var timeRules = []timeRule{
	{
		pattern: regexp.MustCompile(`\b(?:last|past) (\d+) (hour|day|week|month|year)s?\b`),
		resolve: func(m []string, now time.Time) (TimeRange, bool) {
			n, ok := atoiPositive(m[1])
			unit := unitDurations[m[2]]
			if !ok || int64(n) > math.MaxInt64/int64(unit) {
				return TimeRange{}, false
			}
			d := time.Duration(n) * unit
			return TimeRange{Start: now.Add(-d), Stop: now, Relative: true}, true
		},
	},
	{pattern: regexp.MustCompile(`\b(?:last|past) hour\b`), resolve: lookback(time.Hour)},
	{pattern: regexp.MustCompile(`\b(?:last|past) day\b`), resolve: lookback(day)},
	{pattern: regexp.MustCompile(`\b(?:last|past) week\b`), resolve: lookback(7 * day)},
	{pattern: regexp.MustCompile(`\b(?:last|past) month\b`), resolve: lookback(30 * day)},
	{pattern: regexp.MustCompile(`\b(?:last|past) year\b`), resolve: lookback(365 * day)},
	{
		pattern: regexp.MustCompile(`\btoday\b`),
		resolve: func(_ []string, now time.Time) (TimeRange, bool) {
			return TimeRange{Start: midnight(now), Stop: now, Relative: true}, true
		},
	},
	{
		pattern: regexp.MustCompile(`\byesterday\b`),
		resolve: func(_ []string, now time.Time) (TimeRange, bool) {
			today := midnight(now)
			return TimeRange{Start: today.Add(-day), Stop: today, Relative: true}, true
		},
	},
}

var isoDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

const defaultLookback = 30 * day

var regionRules = []rule[[]string]{
	rx(`\bnorth\b`, []string{"north"}),
	rx(`\bnortheast(?:ern)?\b`, []string{"northeast"}),
	rx(`\bsouth\b|\bsouthern\b`, []string{"south"}),
	rx(`\bsoutheast(?:ern)?\b`, []string{"southeast"}),
	rx(`\bmidwest(?:ern)?\b`, []string{"midwest"}),
	rx(`\ball regions\b|\bevery region\b|\bacross regions\b|\bnationwide\b|\bnational\b`, AllRegions),
}

var sourceRules = []rule[[]string]{
	rx(`\bhydro`, []string{"hydro"}),
	rx(`\bsolar\b`, []string{"solar"}),
	rx(`\bwind\b`, []string{"wind"}),
	rx(`\bthermal\b|\bgas\b|\bcoal\b`, []string{"thermal"}),
	rx(`\bnuclear\b`, []string{"nuclear"}),
	rx(`\brenewables?\b`, []string{"hydro", "solar", "wind"}),
	rx(`\bfossil\b`, []string{"thermal"}),
	rx(`\ball sources\b|\bevery source\b|\ball energy sources\b`, AllEnergySources),
}

var measurementRules = []rule[[]string]{
	rx(`\bgenerat(?:ion|ed|ing|ors?)\b`, []string{"generation"}),
	rx(`\bconsum(?:ption|ed|ing)\b|demand\b|\bload\b`, []string{"consumption"}),
	rx(`\btransmission\b|\bgrid\b`, []string{"transmission"}),
	rx(`\ball measurements\b|\ball metrics\b`, AllMeasurementTypes),
}

var aggregationRules = []rule[string]{
	rx(`\baverage\b|\bmean\b|\bavg\b`, "mean"),
	rx(`\bsum\b|\btotal\b`, "sum"),
	rx(`\bmax(?:imum)?\b|peak|\bhighest\b`, "max"),
	rx(`\bmin(?:imum)?\b|\blowest\b`, "min"),
	rx(`\bcount\b|\bhow many\b|\bnumber of\b`, "count"),
	rx(`\bmedian\b`, "median"),
	rx(`\bstddev\b|\bstandard deviation\b`, "stddev"),
}

const defaultAggregation = "mean"

var qualityRules = []rule[string]{
	rx(`\b(?:poor|bad|low)[ -]quality\b|\bquality (?:is )?(?:poor|bad|low)\b`, "poor"),
	rx(`\b(?:good|high)[ -]quality\b|\bquality (?:is )?(?:good|high)\b|\bquality[ -]checked\b`, "good"),
}

var (
	minCapacityPattern   = regexp.MustCompile(`\bcapacity\D*?(?:above|over|greater than|more than|exceeding|at least|>=?)\s*(\d+)`)
	capacityFactorPrefix = regexp.MustCompile(`^capacity factors?\b`)
	minEfficiencyPattern = regexp.MustCompile(`\befficiency\D*?(?:above|over|greater than|more than|exceeding|at least|>=?)\s*(\d+)`)
)

var limitRules = []*regexp.Regexp{
	regexp.MustCompile(`\btop (\d+)\b`),
	regexp.MustCompile(`\bfirst (\d+)\b`),
	regexp.MustCompile(`\blimit (\d+)\b`),
	regexp.MustCompile(`\b(\d+) results?\b`),
}

var groupByRules = []rule[string]{
	rx(`\b(?:by|per|each) region\b`, "region"),
	rx(`\b(?:by|per|each) (?:energy )?source\b`, "energy_source"),
	rx(`\bhourly\b|\b(?:by|per|each) hour\b`, "hour"),
	rx(`\bdaily\b|\b(?:by|per|each) day\b`, "day"),
	rx(`\bweekly\b|\b(?:by|per|each) week\b`, "week"),
	rx(`\bmonthly\b|\b(?:by|per|each) month\b`, "month"),
	rx(`\byearly\b|\bannual(?:ly)?\b|\b(?:by|per|each) year\b`, "year"),
}

// intentRules holds the generic scoring alternatives; each match adds one.
var intentRules = map[Intent][]*regexp.Regexp{
	IntentGenerationTrend: compileAll(
		`\bgenerat(?:ion|ed|ing|ors?)\b`,
		`\btrends?\b`,
		`\bover time\b`,
		`\bhistor(?:y|ical)\b`,
	),
	IntentConsumptionPeak: compileAll(
		`peak`,
		`\bmaximum\b|\bhighest\b`,
	),
	IntentTransmissionLosses: compileAll(
		`\btransmission\b`,
		`\bloss(?:es)?\b`,
		`\bgrid\b`,
		`\blines?\b`,
	),
	IntentCapacityFactor: compileAll(
		`\bcapacity factor\b`,
		`\butili[sz]ation\b`,
		`\bcapacity\b`,
	),
	IntentRegionalComparison: compileAll(
		`\bcompar(?:e|ed|ing|ison)\b`,
		`\bversus\b|\bvs\b`,
		`\bbetween\b.*\band\b`,
		`\bacross regions\b|\beach region\b|\ball regions\b`,
	),
	IntentSourceBreakdown: compileAll(
		`\bbreak ?down\b`,
		`\bmix\b`,
		`\bshare\b|\bproportion\b|\bpercentage\b`,
		`\b(?:by|per|each) (?:energy )?source\b`,
	),
	IntentEfficiencyAnalysis: compileAll(
		`\befficien(?:cy|t)\b`,
		`\bperformance\b`,
		`\bheat rate\b`,
	),
	IntentLoadProfile: compileAll(
		`\bload\b`,
		`\bconsum(?:ption|ed|ing)\b|demand\b`,
		`\bprofile\b`,
		`\bpatterns?\b`,
	),
	IntentEnergyBalance: compileAll(
		`\bbalance\b`,
		`\bsupply (?:and|vs|versus) demand\b`,
		`\bsurplus\b|\bdeficit\b`,
		`\bnet\b`,
	),
	IntentDemandForecast: compileAll(
		`\bforecast`,
		`\bpredict`,
		`\bproject(?:ion|ed)\b`,
		`\bnext (?:hour|day|week|month|year)\b`,
		`\bexpected\b`,
	),
}

// consumptionIndicators gate the precedence override in Classify.
var consumptionIndicators = compileAll(
	`\bconsum(?:ption|ed|ing)\b`,
	`demand\b`,
	`\bload\b`,
)

// consumptionRules are checked in order once an indicator matched.
var consumptionRules = []rule[Intent]{
	rx(`\bcompar(?:e|ed|ing|ison)\b.*\b(?:consumption|demand|load)\b|\b(?:consumption|demand|load) between\b`, IntentRegionalComparison),
	rx(`peak|\bmax(?:imum)?\b|\bhighest\b`, IntentConsumptionPeak),
	rx(`\btrends?\b|\bhistor(?:y|ical)\b|\bover time\b|\bprofile\b`, IntentLoadProfile),
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}
