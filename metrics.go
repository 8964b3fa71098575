package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	outcomeOK            = "ok"
	outcomeInputError    = "input_error"
	outcomeInternalError = "internal_error"
)

// Metrics holds the service collectors on their own registry.
type Metrics struct {
	registry     *prometheus.Registry
	translations *prometheus.CounterVec
	confidence   prometheus.Histogram
	askDuration  prometheus.Histogram
	retrieved    prometheus.Histogram
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nlq_translations_total",
			Help: "Translations by intent, output language and outcome.",
		}, []string{"intent", "language", "outcome"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nlq_translation_confidence",
			Help:    "Confidence of successful translations.",
			Buckets: prometheus.LinearBuckets(0.7, 0.05, 7),
		}),
		askDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nlq_ask_duration_seconds",
			Help:    "End-to-end latency of /api/ask.",
			Buckets: prometheus.DefBuckets,
		}),
		retrieved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nlq_retrieved_documents",
			Help:    "Documents retrieved per ask.",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
	}
	m.registry.MustRegister(m.translations, m.confidence, m.askDuration, m.retrieved)
	return m
}

// ObserveTranslation records one translate call. intent is "none" when the
// question never reached classification.
func (m *Metrics) ObserveTranslation(intent, language, outcome string, confidence float64) {
	if m == nil {
		return
	}
	m.translations.WithLabelValues(intent, language, outcome).Inc()
	if outcome == outcomeOK {
		m.confidence.Observe(confidence)
	}
}

func (m *Metrics) ObserveAsk(elapsed time.Duration, documents int) {
	if m == nil {
		return
	}
	m.askDuration.Observe(elapsed.Seconds())
	m.retrieved.Observe(float64(documents))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
