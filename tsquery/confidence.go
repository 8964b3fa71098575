package tsquery

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Confidence is a heuristic, not a probability: callers threshold it to
// decide whether a translation is trustworthy enough to run.
var (
	baseConfidence = decimal.RequireFromString("0.7")
	maxConfidence  = decimal.NewFromInt(1)
)

var confidenceKeywords = []struct {
	word string
	bump decimal.Decimal
}{
	{"generation", decimal.RequireFromString("0.1")},
	{"consumption", decimal.RequireFromString("0.1")},
	{"transmission", decimal.RequireFromString("0.1")},
	{"efficiency", decimal.RequireFromString("0.1")},
	{"region", decimal.RequireFromString("0.05")},
	{"source", decimal.RequireFromString("0.05")},
	{"trend", decimal.RequireFromString("0.05")},
	{"peak", decimal.RequireFromString("0.05")},
}

// Score rates a normalized question in [0.7, 1.0].
func Score(normalized string) float64 {
	score := baseConfidence
	for _, kw := range confidenceKeywords {
		if strings.Contains(normalized, kw.word) {
			score = score.Add(kw.bump)
		}
	}
	return decimal.Min(score, maxConfidence).InexactFloat64()
}
