package tsquery

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dialect renders parameter values into one language's syntax.
type dialect interface {
	timeLiteral(t time.Time) string
	// tagFilter renders an OR of equalities on a tag column, or "".
	tagFilter(column string, values []string) string
	measurementFilter(values []string) string
	aggregation(name string) string
	// extraFilters renders quality/capacity/efficiency predicates, or "".
	extraFilters(preds []predicate) string
	window(dim string) string
	groupTags(tags []string) string
	groupClause(tags []string, window string) string
	limitClause(limit *int) string
}

func dialectFor(lang Language) (dialect, error) {
	switch lang {
	case LanguageFlux:
		return fluxDialect{}, nil
	case LanguageInfluxQL:
		return influxQLDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownLanguage, int(lang))
	}
}

// predicate is a language-neutral comparison. value is pre-formatted
// so both languages embed the same text.
type predicate struct {
	column string
	op     string
	value  string
	quoted bool
}

// predicates flattens filters in a fixed key order.
func predicates(filters map[string]any) []predicate {
	var out []predicate
	if v, ok := filters[FilterQualityFlag].(string); ok && v != "" {
		out = append(out, predicate{column: "quality_flag", op: "==", value: v, quoted: true})
	}
	if v, ok := filters[FilterMinCapacity]; ok {
		if s, ok := formatNumber(v); ok {
			out = append(out, predicate{column: "capacity_mw", op: ">=", value: s})
		}
	}
	if v, ok := filters[FilterMinEfficiency]; ok {
		if s, ok := formatNumber(v); ok {
			out = append(out, predicate{column: "efficiency", op: ">=", value: s})
		}
	}
	return out
}

func formatNumber(v any) (string, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)).String(), true
	case int64:
		return decimal.NewFromInt(n).String(), true
	case float64:
		return decimal.NewFromFloat(n).String(), true
	default:
		return "", false
	}
}

var timeDims = map[string]bool{"hour": true, "day": true, "week": true, "month": true, "year": true}

// splitGroupBy separates tag dimensions from the first time dimension.
func splitGroupBy(dims []string) (tags []string, timeDim string) {
	for _, d := range dims {
		switch {
		case timeDims[d]:
			if timeDim == "" {
				timeDim = d
			}
		case d == "region" || d == "energy_source":
			tags = append(tags, d)
		}
	}
	return tags, timeDim
}

func buildFragments(p Parameters, d dialect) map[string]string {
	tags, timeDim := splitGroupBy(p.GroupBy)
	window := ""
	if timeDim != "" {
		window = d.window(timeDim)
	}
	return map[string]string{
		fragStart:             d.timeLiteral(p.TimeRange.Start),
		fragStop:              d.timeLiteral(p.TimeRange.Stop),
		fragRegionFilter:      d.tagFilter("region", p.Regions),
		fragSourceFilter:      d.tagFilter("energy_source", p.EnergySources),
		fragMeasurementFilter: d.measurementFilter(p.MeasurementTypes),
		fragAggregation:       d.aggregation(p.Aggregation),
		fragExtraFilters:      d.extraFilters(predicates(p.Filters)),
		fragWindow:            windowOrDefault(window, d),
		fragGroupTags:         d.groupTags(tags),
		fragGroupClause:       d.groupClause(tags, window),
		fragLimitClause:       d.limitClause(p.Limit),
	}
}

func windowOrDefault(window string, d dialect) string {
	if window != "" {
		return window
	}
	return d.window("hour")
}

// Render fills tpl for lang. Lines left blank by empty fragments are
// dropped.
func Render(tpl Template, p Parameters, lang Language) (string, error) {
	d, err := dialectFor(lang)
	if err != nil {
		return "", err
	}
	text, err := tpl.Text(lang)
	if err != nil {
		return "", err
	}
	frags := buildFragments(p, d)

	var renderErr error
	out := placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := m[2 : len(m)-2]
		v, ok := frags[name]
		if !ok && renderErr == nil {
			renderErr = &TemplateRenderError{Intent: tpl.Intent, Language: lang, Name: name}
		}
		return v
	})
	if renderErr != nil {
		return "", renderErr
	}
	return dropBlankLines(out), nil
}

func dropBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, strings.TrimRight(l, " "))
		}
	}
	return strings.Join(kept, "\n")
}

const rfc3339Seconds = "2006-01-02T15:04:05Z07:00"

type fluxDialect struct{}

func (fluxDialect) timeLiteral(t time.Time) string {
	return t.UTC().Format(rfc3339Seconds)
}

func (fluxDialect) tagFilter(column string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("r.%s == %s", column, strconv.Quote(v))
	}
	return "  |> filter(fn: (r) => " + strings.Join(parts, " or ") + ")"
}

func (d fluxDialect) measurementFilter(values []string) string {
	return d.tagFilter("_measurement", values)
}

func (fluxDialect) aggregation(name string) string { return strings.ToLower(name) }

func (fluxDialect) extraFilters(preds []predicate) string {
	if len(preds) == 0 {
		return ""
	}
	parts := make([]string, len(preds))
	for i, p := range preds {
		v := p.value
		if p.quoted {
			v = strconv.Quote(v)
		}
		parts[i] = fmt.Sprintf("r.%s %s %s", p.column, p.op, v)
	}
	return "  |> filter(fn: (r) => " + strings.Join(parts, " and ") + ")"
}

var fluxWindows = map[string]string{"hour": "1h", "day": "1d", "week": "1w", "month": "1mo", "year": "1y"}

func (fluxDialect) window(dim string) string { return fluxWindows[dim] }

func (fluxDialect) groupTags(tags []string) string {
	var b strings.Builder
	for _, t := range tags {
		b.WriteString(", ")
		b.WriteString(strconv.Quote(t))
	}
	return b.String()
}

func (fluxDialect) groupClause(tags []string, window string) string {
	var lines []string
	if len(tags) > 0 {
		quoted := make([]string, len(tags))
		for i, t := range tags {
			quoted[i] = strconv.Quote(t)
		}
		lines = append(lines, "  |> group(columns: ["+strings.Join(quoted, ", ")+"])")
	}
	if window != "" {
		lines = append(lines, "  |> window(every: "+window+")")
	}
	return strings.Join(lines, "\n")
}

func (fluxDialect) limitClause(limit *int) string {
	if limit == nil {
		return ""
	}
	return fmt.Sprintf("  |> limit(n: %d)", *limit)
}

type influxQLDialect struct{}

func influxQLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, `'`, `\'`) + "'"
}

func influxQLIdent(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func (influxQLDialect) timeLiteral(t time.Time) string {
	return influxQLString(t.UTC().Format(rfc3339Seconds))
}

func (influxQLDialect) tagFilter(column string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = influxQLIdent(column) + " = " + influxQLString(v)
	}
	return " AND (" + strings.Join(parts, " OR ") + ")"
}

// measurementFilter renders the FROM list: InfluxQL selects measurements in
// FROM, not in WHERE.
func (influxQLDialect) measurementFilter(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = influxQLIdent(v)
	}
	return strings.Join(parts, ", ")
}

func (influxQLDialect) aggregation(name string) string { return strings.ToUpper(name) }

func (influxQLDialect) extraFilters(preds []predicate) string {
	var b strings.Builder
	for _, p := range preds {
		v := p.value
		if p.quoted {
			v = influxQLString(v)
		}
		op := p.op
		if op == "==" {
			op = "="
		}
		fmt.Fprintf(&b, " AND %s %s %s", influxQLIdent(p.column), op, v)
	}
	return b.String()
}

// InfluxQL durations stop at weeks.
var influxQLWindows = map[string]string{"hour": "1h", "day": "1d", "week": "1w", "month": "30d", "year": "365d"}

func (influxQLDialect) window(dim string) string { return influxQLWindows[dim] }

func (influxQLDialect) groupTags(tags []string) string {
	var b strings.Builder
	for _, t := range tags {
		b.WriteString(", ")
		b.WriteString(influxQLIdent(t))
	}
	return b.String()
}

func (influxQLDialect) groupClause(tags []string, window string) string {
	var parts []string
	if window != "" {
		parts = append(parts, "time("+window+")")
	}
	for _, t := range tags {
		parts = append(parts, influxQLIdent(t))
	}
	if len(parts) == 0 {
		return ""
	}
	return "GROUP BY " + strings.Join(parts, ", ")
}

func (influxQLDialect) limitClause(limit *int) string {
	if limit == nil {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", *limit)
}
