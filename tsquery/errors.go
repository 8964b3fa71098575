package tsquery

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyQuestion is returned when the question is blank after trimming.
	ErrEmptyQuestion = errors.New("tsquery: empty question")
	// ErrUnknownLanguage is returned for a Language outside the two supported grammars.
	ErrUnknownLanguage = errors.New("tsquery: unknown output language")
)

// MissingParametersError lists every required parameter family the
// question did not supply.
type MissingParametersError struct {
	Intent Intent
	Names  []string
}

func (e *MissingParametersError) Error() string {
	return fmt.Sprintf("tsquery: %s requires %s", e.Intent, strings.Join(e.Names, ", "))
}

// TemplateRenderError means a template referenced a fragment the renderer
// does not produce. It is a programming error, never an input error.
type TemplateRenderError struct {
	Intent   Intent
	Language Language
	Name     string
}

func (e *TemplateRenderError) Error() string {
	return fmt.Sprintf("tsquery: %s template for %s references unknown fragment %q", e.Language, e.Intent, e.Name)
}

// IsInputError reports whether err was caused by the caller's question
// rather than by a defect in the translator.
func IsInputError(err error) bool {
	var missing *MissingParametersError
	return errors.Is(err, ErrEmptyQuestion) ||
		errors.Is(err, ErrUnknownLanguage) ||
		errors.As(err, &missing)
}
