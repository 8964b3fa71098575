package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sourcegraph/zoekt"
	"github.com/sourcegraph/zoekt/query"

	"energy-nl-query/tsquery"
)

// documentSearcher is the subset of zoekt.Searcher the retriever needs.
type documentSearcher interface {
	Search(ctx context.Context, q query.Q, opts *zoekt.SearchOptions) (*zoekt.SearchResult, error)
}

// Snippet is a piece of an indexed document handed to the answerer.
type Snippet struct {
	FileName   string `json:"fileName"`
	Repository string `json:"repository"`
	Text       string `json:"text"`
}

// Retriever looks up energy documents (grid reports, plant notes, operator
// bulletins) in a zoekt index using the terms a translation extracted.
type Retriever struct {
	searcher documentSearcher
	maxDocs  int
}

// NewRetriever returns a retriever that keeps at most maxDocs documents per
// question.
func NewRetriever(searcher documentSearcher, maxDocs int) *Retriever {
	return &Retriever{searcher: searcher, maxDocs: maxDocs}
}

const (
	maxSnippetLines = 15
	contextLines    = 3
)

// Retrieve returns up to maxDocs snippets relevant to res.
func (r *Retriever) Retrieve(ctx context.Context, question string, res tsquery.Result) ([]Snippet, error) {
	terms := keyTerms(question, res)
	if len(terms) == 0 {
		return nil, nil
	}
	q, err := query.Parse(strings.Join(terms, " or "))
	if err != nil {
		return nil, fmt.Errorf("parse document query: %w", err)
	}

	opts := &zoekt.SearchOptions{
		MaxDocDisplayCount: r.maxDocs,
		NumContextLines:    contextLines,
	}
	result, err := r.searcher.Search(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	if result == nil {
		return nil, nil
	}

	var snippets []Snippet
	for _, file := range result.Files {
		if len(snippets) >= r.maxDocs {
			break
		}
		text := snippetFromFile(file)
		if strings.TrimSpace(text) == "" {
			continue
		}
		snippets = append(snippets, Snippet{
			FileName:   file.FileName,
			Repository: file.Repository,
			Text:       text,
		})
	}
	log.Printf("📚 Retrieved %d document(s) for terms %v", len(snippets), terms)
	return snippets, nil
}

var stopWords = map[string]bool{
	"how": true, "much": true, "many": true, "does": true, "do": true,
	"have": true, "has": true, "is": true, "are": true, "the": true,
	"a": true, "an": true, "what": true, "where": true, "when": true,
	"which": true, "who": true, "show": true, "list": true, "me": true,
	"get": true, "for": true, "in": true, "on": true, "was": true,
	"at": true, "to": true, "of": true, "and": true, "or": true,
	"last": true, "past": true, "with": true, "from": true, "by": true,
}

// keyTerms prefers the vocabulary values the translator extracted and the
// words of the intent tag. Plain question words are the fallback.
func keyTerms(question string, res tsquery.Result) []string {
	var terms []string
	seen := make(map[string]bool)
	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		terms = append(terms, t)
	}

	p := res.Parameters
	for _, group := range [][]string{p.Regions, p.EnergySources, p.MeasurementTypes} {
		for _, v := range group {
			add(v)
		}
	}
	if len(terms) > 0 {
		for _, w := range strings.Split(res.Intent.String(), "_") {
			add(w)
		}
		return terms
	}

	for _, word := range strings.Fields(strings.ToLower(question)) {
		word = strings.Trim(word, ".,!?;:()[]{}'\"")
		if stopWords[word] || len(word) < 3 {
			continue
		}
		add(word)
	}
	return terms
}

// snippetFromFile stitches the context around each line match, keeping at
// most maxSnippetLines lines and at most one blank line in a row.
func snippetFromFile(file zoekt.FileMatch) string {
	var lines [][]byte
	for _, m := range file.LineMatches {
		lines = append(lines, bytes.Split(m.Before, []byte{'\n'})...)
		lines = append(lines, m.Line)
		lines = append(lines, bytes.Split(m.After, []byte{'\n'})...)
	}

	var out []string
	blank := 0
	for _, l := range lines {
		line := strings.TrimRight(string(l), "\r\n ")
		if line == "" {
			blank++
			if blank > 1 || len(out) == 0 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) > maxSnippetLines {
		out = append(out[:maxSnippetLines], "... (truncated)")
	}
	return strings.Join(out, "\n")
}
