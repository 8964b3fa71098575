package tsquery

import (
	"strings"
)

// synonyms are applied in order as literal substring replacements; a later
// entry sees the output of the earlier ones.
var synonyms = []struct{ from, to string }{
	{"power generation", "generation"},
	{"electricity generation", "generation"},
	{"energy generation", "generation"},
	{"power consumption", "consumption"},
	{"electricity consumption", "consumption"},
	{"energy consumption", "consumption"},
	{"peak demand", "peak_demand"},
	{"hydroelectric", "hydro"},
	{"hydropower", "hydro"},
	{"photovoltaic", "solar"},
	{"wind power", "wind"},
	{"eolic", "wind"},
	{"thermoelectric", "thermal"},
	{"north east", "northeast"},
	{"north-east", "northeast"},
	{"south east", "southeast"},
	{"south-east", "southeast"},
	{"mid-west", "midwest"},
	{"center-west", "midwest"},
	{"centre-west", "midwest"},
	{"central-west", "midwest"},
}

// Normalize lower-cases the question, collapses whitespace, strips trailing
// punctuation and applies the synonym table.
func Normalize(question string) (string, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return "", ErrEmptyQuestion
	}
	q = strings.ToLower(q)
	q = strings.Join(strings.Fields(q), " ")
	q = strings.TrimRight(q, "?!. ")
	if q == "" {
		return "", ErrEmptyQuestion
	}
	for _, s := range synonyms {
		q = strings.ReplaceAll(q, s.from, s.to)
	}
	return q, nil
}
