package tsquery

import (
	"fmt"

	"github.com/grafana/regexp"
)

// Fragment names a template may reference as {{name}}. The renderer
// produces a value, possibly empty, for every one of them.
const (
	fragStart             = "start"
	fragStop              = "stop"
	fragRegionFilter      = "region_filter"
	fragSourceFilter      = "source_filter"
	fragMeasurementFilter = "measurement_filter"
	fragAggregation       = "aggregation"
	fragExtraFilters      = "extra_filters"
	fragWindow            = "window"
	fragGroupTags         = "group_tags"
	fragGroupClause       = "group_clause"
	fragLimitClause       = "limit_clause"
)

var knownFragments = map[string]bool{
	fragStart: true, fragStop: true,
	fragRegionFilter: true, fragSourceFilter: true, fragMeasurementFilter: true,
	fragAggregation: true, fragExtraFilters: true,
	fragWindow: true, fragGroupTags: true, fragGroupClause: true,
	fragLimitClause: true,
}

var knownParams = map[string]bool{
	ParamTimeRange: true, ParamRegions: true, ParamEnergySources: true,
	ParamMeasurementTypes: true, ParamAggregation: true, ParamFilters: true,
	ParamLimit: true, ParamGroupBy: true,
}

var placeholderPattern = regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

// Registry maps every intent to its template. It is read-only once built.
type Registry struct {
	byIntent map[Intent]Template
}

// NewRegistry builds the registry from the built-in templates and checks
// that every intent is covered and every placeholder is a known fragment.
func NewRegistry() (*Registry, error) {
	return newRegistry(builtinTemplates())
}

func newRegistry(templates []Template) (*Registry, error) {
	reg := &Registry{byIntent: make(map[Intent]Template, len(templates))}
	for _, tpl := range templates {
		if !tpl.Intent.valid() {
			return nil, fmt.Errorf("tsquery: template for invalid intent %d", int(tpl.Intent))
		}
		if _, dup := reg.byIntent[tpl.Intent]; dup {
			return nil, fmt.Errorf("tsquery: duplicate template for %s", tpl.Intent)
		}
		if err := checkTemplate(tpl); err != nil {
			return nil, err
		}
		reg.byIntent[tpl.Intent] = tpl.clone()
	}
	for _, intent := range Intents() {
		if _, ok := reg.byIntent[intent]; !ok {
			return nil, fmt.Errorf("tsquery: no template for %s", intent)
		}
	}
	return reg, nil
}

func checkTemplate(tpl Template) error {
	for _, lang := range []Language{LanguageFlux, LanguageInfluxQL} {
		text, err := tpl.Text(lang)
		if err != nil {
			return err
		}
		if text == "" {
			return fmt.Errorf("tsquery: empty %s template for %s", lang, tpl.Intent)
		}
		for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			if !knownFragments[m[1]] {
				return &TemplateRenderError{Intent: tpl.Intent, Language: lang, Name: m[1]}
			}
		}
	}
	for _, names := range [][]string{tpl.Required, tpl.Optional} {
		for _, name := range names {
			if !knownParams[name] {
				return fmt.Errorf("tsquery: %s template declares unknown parameter %q", tpl.Intent, name)
			}
		}
	}
	return nil
}

// Lookup returns a copy of the template for intent.
func (r *Registry) Lookup(intent Intent) (Template, bool) {
	tpl, ok := r.byIntent[intent]
	if !ok {
		return Template{}, false
	}
	return tpl.clone(), true
}

// Templates returns copies of all templates in intent order.
func (r *Registry) Templates() []Template {
	out := make([]Template, 0, len(r.byIntent))
	for _, intent := range Intents() {
		if tpl, ok := r.byIntent[intent]; ok {
			out = append(out, tpl.clone())
		}
	}
	return out
}

// Flux templates pivot fields into columns right after the tag filters so
// extra filters and aggregations address columns by name.
func builtinTemplates() []Template {
	common := []string{ParamAggregation, ParamFilters, ParamLimit, ParamGroupBy}
	return []Template{
		{
			Intent:      IntentGenerationTrend,
			Description: "Power generation over time, windowed and aggregated",
			Required:    []string{ParamTimeRange},
			Optional:    append([]string{ParamRegions, ParamEnergySources}, common...),
			Flux: `from(bucket: "energy_data")
  |> range(start: {{start}}, stop: {{stop}})
  |> filter(fn: (r) => r._measurement == "generation")
{{region_filter}}
{{source_filter}}
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
{{extra_filters}}
  |> group(columns: ["_measurement"{{group_tags}}])
  |> aggregateWindow(every: {{window}}, fn: {{aggregation}}, column: "power_mw", createEmpty: false)
{{limit_clause}}
  |> yield(name: "generation_trend")`,
			InfluxQL: `SELECT {{aggregation}}("power_mw") AS "power_mw"
FROM "generation"
WHERE time >= {{start}} AND time < {{stop}}{{region_filter}}{{source_filter}}{{extra_filters}}
GROUP BY time({{window}}){{group_tags}}
{{limit_clause}}`,
		},
		{
			Intent:      IntentConsumptionPeak,
			Description: "Peak electricity consumption in the period",
			Required:    []string{ParamTimeRange},
			Optional:    []string{ParamRegions, ParamFilters, ParamLimit, ParamGroupBy},
			Flux: `from(bucket: "energy_data")
  |> range(start: {{start}}, stop: {{stop}})
  |> filter(fn: (r) => r._measurement == "consumption")
{{region_filter}}
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
{{extra_filters}}
{{group_clause}}
  |> max(column: "power_mw")
  |> sort(columns: ["power_mw"], desc: true)
{{limit_clause}}
  |> yield(name: "consumption_peak")`,
			InfluxQL: `SELECT MAX("power_mw") AS "peak_mw"
FROM "consumption"
WHERE time >= {{start}} AND time < {{stop}}{{region_filter}}{{extra_filters}}
{{group_clause}}
{{limit_clause}}`,
		},
		{
			Intent:      IntentTransmissionLosses,
			Description: "Transmission losses over time",
			Required:    []string{ParamTimeRange},
			Optional:    append([]string{ParamRegions}, common...),
			Flux: `from(bucket: "energy_data")
  |> range(start: {{start}}, stop: {{stop}})
  |> filter(fn: (r) => r._measurement == "transmission")
{{region_filter}}
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
{{extra_filters}}
  |> group(columns: ["_measurement"{{group_tags}}])
  |> aggregateWindow(every: {{window}}, fn: {{aggregation}}, column: "loss_mw", createEmpty: false)
{{limit_clause}}
  |> yield(name: "transmission_losses")`,
			InfluxQL: `SELECT {{aggregation}}("loss_mw") AS "loss_mw"
FROM "transmission"
WHERE time >= {{start}} AND time < {{stop}}{{region_filter}}{{extra_filters}}
GROUP BY time({{window}}){{group_tags}}
{{limit_clause}}`,
		},
		{
			Intent:      IntentCapacityFactor,
			Description: "Capacity factor: generated power over installed capacity",
			Required:    []string{ParamTimeRange},
			Optional:    append([]string{ParamRegions, ParamEnergySources}, common...),
			Flux: `from(bucket: "energy_data")
  |> range(start: {{start}}, stop: {{stop}})
  |> filter(fn: (r) => r._measurement == "generation")
{{region_filter}}
{{source_filter}}
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
{{extra_filters}}
  |> map(fn: (r) => ({r with capacity_factor: r.power_mw / r.capacity_mw}))
{{group_clause}}
  |> {{aggregation}}(column: "capacity_factor")
{{limit_clause}}
  |> yield(name: "capacity_factor")`,
			InfluxQL: `SELECT {{aggregation}}("power_mw") / {{aggregation}}("capacity_mw") AS "capacity_factor"
FROM "generation"
WHERE time >= {{start}} AND time < {{stop}}{{region_filter}}{{source_filter}}{{extra_filters}}
{{group_clause}}
{{limit_clause}}`,
		},
		{
			Intent:      IntentRegionalComparison,
			Description: "Side-by-side comparison of regions",
			Required:    []string{ParamTimeRange, ParamRegions, ParamMeasurementTypes},
			Optional:    []string{ParamEnergySources, ParamAggregation, ParamFilters, ParamLimit},
			Flux: `from(bucket: "energy_data")
  |> range(start: {{start}}, stop: {{stop}})
{{measurement_filter}}
{{region_filter}}
{{source_filter}}
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
{{extra_filters}}
  |> group(columns: ["_measurement", "region"])
  |> {{aggregation}}(column: "power_mw")
  |> sort(columns: ["power_mw"], desc: true)
{{limit_clause}}
  |> yield(name: "regional_comparison")`,
			InfluxQL: `SELECT {{aggregation}}("power_mw") AS "power_mw"
FROM {{measurement_filter}}
WHERE time >= {{start}} AND time < {{stop}}{{region_filter}}{{source_filter}}{{extra_filters}}
GROUP BY "region"
{{limit_clause}}`,
		},
		{
			Intent:      IntentSourceBreakdown,
			Description: "Generation broken down by energy source",
			Required:    []string{ParamTimeRange},
			Optional:    []string{ParamRegions, ParamEnergySources, ParamAggregation, ParamFilters, ParamLimit},
			Flux: `from(bucket: "energy_data")
  |> range(start: {{start}}, stop: {{stop}})
  |> filter(fn: (r) => r._measurement == "generation")
{{region_filter}}
{{source_filter}}
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
{{extra_filters}}
  |> group(columns: ["energy_source"])
  |> {{aggregation}}(column: "power_mw")
  |> group()
  |> sort(columns: ["power_mw"], desc: true)
{{limit_clause}}
  |> yield(name: "source_breakdown")`,
			InfluxQL: `SELECT {{aggregation}}("power_mw") AS "power_mw"
FROM "generation"
WHERE time >= {{start}} AND time < {{stop}}{{region_filter}}{{source_filter}}{{extra_filters}}
GROUP BY "energy_source"
{{limit_clause}}`,
		},
		{
			Intent:      IntentEfficiencyAnalysis,
			Description: "Plant efficiency analysis",
			Required:    []string{ParamTimeRange},
			Optional:    append([]string{ParamRegions, ParamEnergySources}, common...),
			Flux: `from(bucket: "energy_data")
  |> range(start: {{start}}, stop: {{stop}})
  |> filter(fn: (r) => r._measurement == "generation")
{{region_filter}}
{{source_filter}}
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
{{extra_filters}}
{{group_clause}}
  |> {{aggregation}}(column: "efficiency")
  |> sort(columns: ["efficiency"], desc: true)
{{limit_clause}}
  |> yield(name: "efficiency_analysis")`,
			InfluxQL: `SELECT {{aggregation}}("efficiency") AS "efficiency"
FROM "generation"
WHERE time >= {{start}} AND time < {{stop}}{{region_filter}}{{source_filter}}{{extra_filters}}
{{group_clause}}
{{limit_clause}}`,
		},
		{
			Intent:      IntentLoadProfile,
			Description: "Consumption load profile over time",
			Required:    []string{ParamTimeRange},
			Optional:    append([]string{ParamRegions}, common...),
			Flux: `from(bucket: "energy_data")
  |> range(start: {{start}}, stop: {{stop}})
  |> filter(fn: (r) => r._measurement == "consumption")
{{region_filter}}
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
{{extra_filters}}
  |> group(columns: ["_measurement"{{group_tags}}])
  |> aggregateWindow(every: {{window}}, fn: {{aggregation}}, column: "power_mw", createEmpty: false)
{{limit_clause}}
  |> yield(name: "load_profile")`,
			InfluxQL: `SELECT {{aggregation}}("power_mw") AS "power_mw"
FROM "consumption"
WHERE time >= {{start}} AND time < {{stop}}{{region_filter}}{{extra_filters}}
GROUP BY time({{window}}){{group_tags}}
{{limit_clause}}`,
		},
		{
			Intent:      IntentEnergyBalance,
			Description: "Generation against consumption per window; the Flux query derives balance_mw, InfluxQL returns both series per window",
			Required:    []string{ParamTimeRange},
			Optional:    append([]string{ParamRegions}, common...),
			Flux: `from(bucket: "energy_data")
  |> range(start: {{start}}, stop: {{stop}})
  |> filter(fn: (r) => r._measurement == "generation" or r._measurement == "consumption")
{{region_filter}}
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
{{extra_filters}}
  |> group(columns: ["_measurement"{{group_tags}}])
  |> aggregateWindow(every: {{window}}, fn: {{aggregation}}, column: "power_mw", createEmpty: false)
  |> pivot(rowKey: ["_time"{{group_tags}}], columnKey: ["_measurement"], valueColumn: "power_mw")
  |> map(fn: (r) => ({r with balance_mw: r.generation - r.consumption}))
{{limit_clause}}
  |> yield(name: "energy_balance")`,
			InfluxQL: `SELECT {{aggregation}}("power_mw") AS "power_mw"
FROM "generation", "consumption"
WHERE time >= {{start}} AND time < {{stop}}{{region_filter}}{{extra_filters}}
GROUP BY time({{window}}){{group_tags}}
{{limit_clause}}`,
		},
		{
			Intent:      IntentDemandForecast,
			Description: "Consumption history smoothed with a moving average for demand forecasting",
			Required:    []string{ParamTimeRange},
			Optional:    append([]string{ParamRegions}, common...),
			Flux: `from(bucket: "energy_data")
  |> range(start: {{start}}, stop: {{stop}})
  |> filter(fn: (r) => r._measurement == "consumption")
{{region_filter}}
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
{{extra_filters}}
  |> group(columns: ["_measurement"{{group_tags}}])
  |> aggregateWindow(every: {{window}}, fn: {{aggregation}}, column: "power_mw", createEmpty: false)
  |> timedMovingAverage(every: {{window}}, period: 7d, column: "power_mw")
{{limit_clause}}
  |> yield(name: "demand_forecast")`,
			InfluxQL: `SELECT MOVING_AVERAGE({{aggregation}}("power_mw"), 7) AS "forecast_mw"
FROM "consumption"
WHERE time >= {{start}} AND time < {{stop}}{{region_filter}}{{extra_filters}}
GROUP BY time({{window}}){{group_tags}}
{{limit_clause}}`,
		},
	}
}
