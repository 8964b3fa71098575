package tsquery

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTranslator(t *testing.T) *Translator {
	t.Helper()
	tr, err := New(WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return tr
}

func TestTranslate(t *testing.T) {
	tr := newTestTranslator(t)

	t.Run("generation trend in the southeast", func(t *testing.T) {
		res, err := tr.Translate("show me generation trend in southeast for last week", LanguageFlux, nil)
		require.NoError(t, err)
		assert.Equal(t, IntentGenerationTrend, res.Intent)
		assert.Contains(t, res.Parameters.Regions, "southeast")
		assert.Contains(t, res.Query, "generation")
		assert.Contains(t, res.Query, `r.region == "southeast"`)
		assert.True(t, res.Parameters.TimeRange.Relative)
		assert.Equal(t, 7*day, res.Parameters.TimeRange.Stop.Sub(res.Parameters.TimeRange.Start))
		assert.Equal(t, LanguageFlux, res.Language)
		assert.InDelta(t, 0.85, res.Confidence, 1e-9)
		assert.NotEmpty(t, res.Description)
	})

	t.Run("peak consumption takes precedence over generation", func(t *testing.T) {
		res, err := tr.Translate("What is the peak consumption today?", LanguageInfluxQL, nil)
		require.NoError(t, err)
		assert.Equal(t, IntentConsumptionPeak, res.Intent)
		assert.Contains(t, res.Query, `FROM "consumption"`)
		assert.Contains(t, res.Query, "'2026-10-17T00:00:00Z'")
	})

	t.Run("empty questions", func(t *testing.T) {
		for _, q := range []string{"", "   "} {
			_, err := tr.Translate(q, LanguageFlux, nil)
			assert.ErrorIs(t, err, ErrEmptyQuestion)
		}
	})

	t.Run("unknown language", func(t *testing.T) {
		_, err := tr.Translate("show generation", Language(42), nil)
		assert.ErrorIs(t, err, ErrUnknownLanguage)
		assert.True(t, IsInputError(err))
	})

	t.Run("missing regions for a comparison", func(t *testing.T) {
		_, err := tr.Translate("compare consumption between regions", LanguageFlux, nil)
		var missing *MissingParametersError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, []string{ParamRegions}, missing.Names)
	})

	t.Run("hints fill the missing regions", func(t *testing.T) {
		hints := Hints{ParamRegions: []any{"north", "south", "atlantis"}}
		res, err := tr.Translate("compare consumption between regions", LanguageFlux, hints)
		require.NoError(t, err)
		assert.Equal(t, IntentRegionalComparison, res.Intent)
		assert.Equal(t, []string{"north", "south"}, res.Parameters.Regions)
		assert.Contains(t, res.Query, `r.region == "north" or r.region == "south"`)
	})
}

func TestTranslateConfidenceBounds(t *testing.T) {
	tr := newTestTranslator(t)
	questions := []string{
		"hello",
		"top 10 generators",
		"first 5 results",
		"plants with efficiency above 80",
		"average hydro generation by region, daily, last 3 months",
		"transmission grid losses yesterday",
		"solar share of the mix between 2026-01-01 and 2026-02-01",
		"forecast demand for next week in the midwest",
		"energy balance nationwide",
		"capacity factor of nuclear plants with capacity over 1000",
	}
	for _, lang := range []Language{LanguageFlux, LanguageInfluxQL} {
		for _, q := range questions {
			res, err := tr.Translate(q, lang, nil)
			if err != nil {
				assert.True(t, IsInputError(err), "question %q: %v", q, err)
				continue
			}
			assert.GreaterOrEqual(t, res.Confidence, 0.0, q)
			assert.LessOrEqual(t, res.Confidence, 1.0, q)
			assert.NotContains(t, res.Query, "{{", q)
		}
	}
}

func TestTranslateIdempotent(t *testing.T) {
	tr := newTestTranslator(t)
	const q = "top 3 daily solar generation in the north with efficiency above 40"
	first, err := tr.Translate(q, LanguageInfluxQL, nil)
	require.NoError(t, err)
	second, err := tr.Translate(q, LanguageInfluxQL, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTranslateOversizedLookback(t *testing.T) {
	tr := newTestTranslator(t)
	for _, q := range []string{"generation last 300 years", "generation last 999999999 years"} {
		t.Run(q, func(t *testing.T) {
			res, err := tr.Translate(q, LanguageInfluxQL, nil)
			require.NoError(t, err)
			rng := res.Parameters.TimeRange
			assert.True(t, rng.Start.Before(rng.Stop))
			assert.Zero(t, rng.Start.Nanosecond())
			assert.Contains(t, res.Query, "time >= '2026-09-17T15:30:00Z'")
		})
	}
}

func TestTranslateCrossLanguage(t *testing.T) {
	tr := newTestTranslator(t)
	const q = "good quality wind generation in the south last 2 days with efficiency above 90"
	flux, err := tr.Translate(q, LanguageFlux, nil)
	require.NoError(t, err)
	influxQL, err := tr.Translate(q, LanguageInfluxQL, nil)
	require.NoError(t, err)

	assert.Equal(t, flux.Parameters, influxQL.Parameters)
	for _, literal := range []string{"2026-10-15T15:30:00Z", "2026-10-17T15:30:00Z", "south", "wind", "good", "0.9"} {
		assert.Contains(t, flux.Query, literal)
		assert.Contains(t, influxQL.Query, literal)
	}
}

func TestTranslateConcurrent(t *testing.T) {
	tr := newTestTranslator(t)
	want, err := tr.Translate("monthly load profile in the northeast", LanguageFlux, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = tr.Translate("monthly load profile in the northeast", LanguageFlux, nil)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestResultJSON(t *testing.T) {
	tr := newTestTranslator(t)
	res, err := tr.Translate("top 5 hydro generation yesterday", LanguageInfluxQL, nil)
	require.NoError(t, err)

	raw, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "generation_trend", decoded["intent"])
	assert.Equal(t, "influxql", decoded["language"])

	params := decoded["parameters"].(map[string]any)
	assert.Equal(t, float64(5), params["limit"])
	assert.Equal(t, []any{"hydro"}, params["energy_sources"])
	timeRange := params["time_range"].(map[string]any)
	assert.Equal(t, "2026-10-16T00:00:00Z", timeRange["start"])
	assert.Equal(t, true, timeRange["is_relative"])

	var back Result
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, res.Intent, back.Intent)
	assert.Equal(t, res.Language, back.Language)
}

func TestParseLanguage(t *testing.T) {
	for tag, want := range map[string]Language{"flux": LanguageFlux, "influxql": LanguageInfluxQL, "sql": LanguageInfluxQL} {
		got, err := ParseLanguage(tag)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLanguage("promql")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}
