// Package tsquery translates natural-language questions about energy data
// into Flux or InfluxQL queries.
//
// The pipeline is normalize, classify, extract, validate, render, score.
// Every step is pure over immutable tables, so one Translator can serve any
// number of goroutines.
package tsquery

import (
	"fmt"
	"time"
)

// Option configures a Translator.
type Option func(*Translator)

// WithClock replaces the wall clock used for relative time ranges.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) {
		t.now = now
	}
}

// WithRegistry replaces the built-in template registry.
func WithRegistry(reg *Registry) Option {
	return func(t *Translator) {
		t.registry = reg
	}
}

// Translator turns questions into queries.
type Translator struct {
	registry *Registry
	now      func() time.Time
}

// New builds a Translator with the built-in registry unless overridden.
func New(opts ...Option) (*Translator, error) {
	t := &Translator{
		now: func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.registry == nil {
		reg, err := NewRegistry()
		if err != nil {
			return nil, err
		}
		t.registry = reg
	}
	return t, nil
}

// Registry exposes the templates in use.
func (t *Translator) Registry() *Registry { return t.registry }

// Translate runs the full pipeline. hints may be nil; see Hints for how
// they are used.
func (t *Translator) Translate(question string, lang Language, hints Hints) (Result, error) {
	normalized, err := Normalize(question)
	if err != nil {
		return Result{}, err
	}
	if _, err := dialectFor(lang); err != nil {
		return Result{}, err
	}

	intent := Classify(normalized)
	params := Extract(normalized, t.now().UTC())
	applyHints(&params, hints)

	tpl, ok := t.registry.Lookup(intent)
	if !ok {
		return Result{}, fmt.Errorf("tsquery: no template registered for %s", intent)
	}
	if err := Validate(tpl, params); err != nil {
		return Result{}, err
	}
	query, err := Render(tpl, params, lang)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Query:       query,
		Intent:      intent,
		Language:    lang,
		Parameters:  params,
		Confidence:  Score(normalized),
		Description: tpl.Description,
	}, nil
}
