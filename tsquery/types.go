package tsquery

import (
	"fmt"
	"time"
)

// Intent is the analytical goal inferred from a question.
// Declaration order doubles as the classifier's tie-break order.
type Intent int

const (
	IntentGenerationTrend Intent = iota
	IntentConsumptionPeak
	IntentTransmissionLosses
	IntentCapacityFactor
	IntentRegionalComparison
	IntentSourceBreakdown
	IntentEfficiencyAnalysis
	IntentLoadProfile
	IntentEnergyBalance
	IntentDemandForecast
)

var intentTags = [...]string{
	IntentGenerationTrend:    "generation_trend",
	IntentConsumptionPeak:    "consumption_peak",
	IntentTransmissionLosses: "transmission_losses",
	IntentCapacityFactor:     "capacity_factor",
	IntentRegionalComparison: "regional_comparison",
	IntentSourceBreakdown:    "source_breakdown",
	IntentEfficiencyAnalysis: "efficiency_analysis",
	IntentLoadProfile:        "load_profile",
	IntentEnergyBalance:      "energy_balance",
	IntentDemandForecast:     "demand_forecast",
}

// Intents returns every intent in declaration order.
func Intents() []Intent {
	out := make([]Intent, len(intentTags))
	for i := range intentTags {
		out[i] = Intent(i)
	}
	return out
}

func (i Intent) valid() bool { return i >= 0 && int(i) < len(intentTags) }

func (i Intent) String() string {
	if !i.valid() {
		return fmt.Sprintf("intent(%d)", int(i))
	}
	return intentTags[i]
}

// MarshalText encodes the intent as its snake_case tag.
func (i Intent) MarshalText() ([]byte, error) {
	if !i.valid() {
		return nil, fmt.Errorf("tsquery: invalid intent %d", int(i))
	}
	return []byte(intentTags[i]), nil
}

// UnmarshalText accepts only the tags listed by Intents.
func (i *Intent) UnmarshalText(b []byte) error {
	for n, tag := range intentTags {
		if tag == string(b) {
			*i = Intent(n)
			return nil
		}
	}
	return fmt.Errorf("tsquery: unknown intent %q", string(b))
}

// Language selects the output grammar.
type Language int

const (
	// LanguageFlux is the pipeline-style InfluxDB 2.x language.
	LanguageFlux Language = iota
	// LanguageInfluxQL is the SQL-style SELECT/WHERE/GROUP BY language.
	LanguageInfluxQL
)

func (l Language) String() string {
	switch l {
	case LanguageFlux:
		return "flux"
	case LanguageInfluxQL:
		return "influxql"
	default:
		return fmt.Sprintf("language(%d)", int(l))
	}
}

// ParseLanguage maps a tag ("flux", "influxql") to a Language.
// "sql" is accepted as an alias for influxql.
func ParseLanguage(tag string) (Language, error) {
	switch tag {
	case "flux":
		return LanguageFlux, nil
	case "influxql", "sql":
		return LanguageInfluxQL, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLanguage, tag)
	}
}

// MarshalText fails for values outside the declared languages.
func (l Language) MarshalText() ([]byte, error) {
	switch l {
	case LanguageFlux, LanguageInfluxQL:
		return []byte(l.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownLanguage, int(l))
	}
}

// UnmarshalText parses like ParseLanguage, aliases included.
func (l *Language) UnmarshalText(b []byte) error {
	parsed, err := ParseLanguage(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Parameter family names, as used in template declarations.
const (
	ParamTimeRange        = "time_range"
	ParamRegions          = "regions"
	ParamEnergySources    = "energy_sources"
	ParamMeasurementTypes = "measurement_types"
	ParamAggregation      = "aggregation"
	ParamFilters          = "filters"
	ParamLimit            = "limit"
	ParamGroupBy          = "group_by"
)

// Filter keys.
const (
	FilterQualityFlag   = "quality_flag"
	FilterMinCapacity   = "min_capacity"
	FilterMinEfficiency = "min_efficiency"
)

// TimeRange is a half-open [Start, Stop) interval.
type TimeRange struct {
	Start    time.Time `json:"start"`
	Stop     time.Time `json:"stop"`
	Relative bool      `json:"is_relative"`
}

// Parameters is everything the extractor pulled out of a question.
type Parameters struct {
	TimeRange        TimeRange      `json:"time_range"`
	Regions          []string       `json:"regions"`
	EnergySources    []string       `json:"energy_sources"`
	MeasurementTypes []string       `json:"measurement_types"`
	Aggregation      string         `json:"aggregation"`
	Filters          map[string]any `json:"filters"`
	Limit            *int           `json:"limit,omitempty"`
	GroupBy          []string       `json:"group_by"`
}

// Template pairs one render template per language with the parameter
// families it needs.
type Template struct {
	Intent      Intent   `json:"intent"`
	Flux        string   `json:"flux"`
	InfluxQL    string   `json:"influxql"`
	Required    []string `json:"required"`
	Optional    []string `json:"optional"`
	Description string   `json:"description"`
}

// Text returns the template body for lang.
func (t Template) Text(lang Language) (string, error) {
	switch lang {
	case LanguageFlux:
		return t.Flux, nil
	case LanguageInfluxQL:
		return t.InfluxQL, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownLanguage, int(lang))
	}
}

func (t Template) clone() Template {
	t.Required = append([]string(nil), t.Required...)
	t.Optional = append([]string(nil), t.Optional...)
	return t
}

// Result is the output of one translation.
//
// Confidence is a keyword heuristic in [0,1] meant for thresholding, not a
// probability.
type Result struct {
	Query       string     `json:"query"`
	Intent      Intent     `json:"intent"`
	Language    Language   `json:"language"`
	Parameters  Parameters `json:"parameters"`
	Confidence  float64    `json:"confidence"`
	Description string     `json:"description"`
}

// Hints are caller-supplied fallbacks. Recognized keys are "regions",
// "energy_sources", "measurement_types" (string or list of strings) and
// "limit" (number). A hint only fills a family the question left empty.
type Hints map[string]any
