package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sourcegraph/zoekt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-nl-query/tsquery"
)

func newTestServer(t *testing.T, retriever *Retriever, answerer *Answerer) *NLQueryServer {
	t.Helper()
	translator, err := tsquery.New(tsquery.WithClock(func() time.Time { return askNow }))
	require.NoError(t, err)
	cfg := Config{DefaultLanguage: tsquery.LanguageFlux, BatchWorkers: 2, MaxDocs: 3}
	if answerer == nil {
		answerer = NewAnswerer(cfg)
	}
	return NewNLQueryServer(cfg, translator, retriever, answerer)
}

func do(t *testing.T, h http.Handler, method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHandleTranslate(t *testing.T) {
	h := newTestServer(t, nil, nil).Router()

	t.Run("GET with the default language", func(t *testing.T) {
		rec, body := do(t, h, http.MethodGet, "/api/translate?q=show+me+generation+trend+in+southeast+for+last+week", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "generation_trend", body["intent"])
		assert.Equal(t, "flux", body["language"])
		assert.Contains(t, body["query"], `r.region == "southeast"`)
		assert.NotEmpty(t, body["requestId"])
		assert.Equal(t, body["requestId"], rec.Header().Get("X-Request-ID"))
	})

	t.Run("GET with the sql alias", func(t *testing.T) {
		rec, body := do(t, h, http.MethodGet, "/api/translate?q=peak+consumption+today&lang=sql", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "influxql", body["language"])
		assert.Equal(t, "consumption_peak", body["intent"])
	})

	t.Run("POST with context hints", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/api/translate", map[string]any{
			"question": "compare consumption between regions",
			"language": "influxql",
			"context":  map[string]any{"regions": []string{"north", "midwest"}},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "regional_comparison", body["intent"])
		params := body["parameters"].(map[string]any)
		assert.Equal(t, []any{"north", "midwest"}, params["regions"])
	})

	t.Run("input errors are 400", func(t *testing.T) {
		for _, target := range []string{
			"/api/translate?q=",
			"/api/translate?q=+++",
			"/api/translate?q=show+generation&lang=promql",
			"/api/translate?q=compare+consumption+between+regions",
		} {
			rec, body := do(t, h, http.MethodGet, target, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, target)
			assert.Equal(t, false, body["success"], target)
			assert.NotEmpty(t, body["error"], target)
		}
	})

	t.Run("malformed JSON is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/translate", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("other methods are rejected", func(t *testing.T) {
		rec, _ := do(t, h, http.MethodDelete, "/api/translate", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(tsquery.ErrEmptyQuestion))
	assert.Equal(t, http.StatusBadRequest, statusFor(&tsquery.MissingParametersError{Names: []string{"regions"}}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&tsquery.TemplateRenderError{Name: "x"}))
}

func TestHandleBatch(t *testing.T) {
	h := newTestServer(t, nil, nil).Router()

	t.Run("should keep order and report each item", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/api/translate/batch", map[string]any{
			"questions": []string{
				"show generation",
				"",
				"compare consumption between regions",
				"top 5 solar generation yesterday",
			},
			"language": "influxql",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(2), body["succeeded"])
		assert.Equal(t, float64(2), body["failed"])

		results := body["results"].([]any)
		require.Len(t, results, 4)
		wantSuccess := []bool{true, false, false, true}
		for i, raw := range results {
			item := raw.(map[string]any)
			assert.Equal(t, wantSuccess[i], item["success"], "item %d", i)
		}
		last := results[3].(map[string]any)["result"].(map[string]any)
		assert.Contains(t, last["query"], "LIMIT 5")
		assert.Contains(t, results[1].(map[string]any)["error"], "empty question")
	})

	t.Run("should reject an empty batch", func(t *testing.T) {
		rec, _ := do(t, h, http.MethodPost, "/api/translate/batch", map[string]any{"questions": []string{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleAsk(t *testing.T) {
	const target = "/api/ask?q=what+was+the+peak+consumption+in+the+north+last+week"

	t.Run("should answer from retrieved documents", func(t *testing.T) {
		openRouter, rec := fakeOpenRouter(t, http.StatusOK, "The north peaked at 9.1 GW.")
		searcher := &fakeSearcher{result: &zoekt.SearchResult{Files: []zoekt.FileMatch{
			gridReport("north-2026-10.md", "North consumption peaked at 9.1 GW"),
		}}}
		h := newTestServer(t, NewRetriever(searcher, 3), testAnswerer(openRouter.URL)).Router()

		resp, body := do(t, h, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "The north peaked at 9.1 GW.", body["answer"])
		assert.Equal(t, "consumption_peak", body["intent"])
		assert.Equal(t, float64(1), body["documentsFound"])
		assert.Contains(t, rec.last().Messages[1].Content, "North consumption peaked at 9.1 GW")
		assert.Equal(t, 1, searcher.calls)
	})

	t.Run("should answer without an index", func(t *testing.T) {
		openRouter, rec := fakeOpenRouter(t, http.StatusOK, "No documents, but the query finds the peak.")
		h := newTestServer(t, nil, testAnswerer(openRouter.URL)).Router()

		resp, body := do(t, h, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []any{}, body["documents"])
		assert.Contains(t, rec.last().Messages[1].Content, "DOCUMENTS: none found.")
	})

	t.Run("should be unavailable without an answerer", func(t *testing.T) {
		h := newTestServer(t, nil, nil).Router()
		rec, body := do(t, h, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, ErrAnswererDisabled.Error(), body["error"])
	})

	t.Run("should reject empty questions before anything else", func(t *testing.T) {
		h := newTestServer(t, nil, nil).Router()
		rec, _ := do(t, h, http.MethodGet, "/api/ask?q=", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should report retrieval failures as bad gateway", func(t *testing.T) {
		openRouter, _ := fakeOpenRouter(t, http.StatusOK, "unused")
		searcher := &fakeSearcher{err: errors.New("shard corrupted")}
		h := newTestServer(t, NewRetriever(searcher, 3), testAnswerer(openRouter.URL)).Router()

		rec, body := do(t, h, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, body["error"], "shard corrupted")
	})

	t.Run("should report answer failures as bad gateway", func(t *testing.T) {
		openRouter, _ := fakeOpenRouter(t, http.StatusInternalServerError, "")
		h := newTestServer(t, nil, testAnswerer(openRouter.URL)).Router()

		rec, _ := do(t, h, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestHandleTemplatesAndHealth(t *testing.T) {
	h := newTestServer(t, nil, nil).Router()

	rec, body := do(t, h, http.MethodGet, "/api/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(len(tsquery.Intents())), body["count"])
	first := body["templates"].([]any)[0].(map[string]any)
	assert.Equal(t, "generation_trend", first["intent"])
	assert.Contains(t, first["influxql"], "{{aggregation}}")

	rec, body = do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["answerer"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, nil, nil).Router()
	do(t, h, http.MethodGet, "/api/translate?q=show+generation", nil)
	do(t, h, http.MethodGet, "/api/translate?q=", nil)

	rec, _ := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()
	assert.Contains(t, text, `nlq_translations_total{intent="generation_trend",language="flux",outcome="ok"} 1`)
	assert.Contains(t, text, `nlq_translations_total{intent="none",language="flux",outcome="input_error"} 1`)
	assert.Contains(t, text, "nlq_translation_confidence_count 1")
}
