package errors

import (
	"errors"
	"io/fs"
)

// Enricher enriches standard errors with actionable suggestions.
type Enricher interface {
	Enrich(err error, affectedPath string) error
	EnrichAs(err error, category ErrorCategory, affectedPath string) error
}

// NewEnricher creates a new Enricher with default pattern matcher and suggestion generator.
func NewEnricher() Enricher {
	return &enricher{
		matcher:   NewPatternMatcher(),
		generator: NewSuggestionGenerator(),
	}
}

// enricher is the concrete implementation of Enricher.
type enricher struct {
	matcher   PatternMatcher
	generator SuggestionGenerator
}

// Enrich takes an error and enriches it with a category and actionable suggestions.
// If the error is already an ActionableError, it is returned unchanged.
// If affectedPath is empty, the path of a wrapped *fs.PathError is used.
func (e *enricher) Enrich(err error, affectedPath string) error {
	if err == nil {
		return nil
	}

	var actionableErr ActionableError
	if errors.As(err, &actionableErr) {
		return actionableErr
	}

	return e.EnrichAs(err, e.matcher.Match(err), affectedPath)
}

// EnrichAs enriches err with a caller-chosen category.
func (e *enricher) EnrichAs(err error, category ErrorCategory, affectedPath string) error {
	if err == nil {
		return nil
	}

	if affectedPath == "" {
		affectedPath = extractPath(err)
	}

	return NewActionableError(err, category, e.generator.Generate(category, affectedPath), affectedPath)
}

// extractPath returns the path recorded in the error chain, if any.
func extractPath(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Path
	}

	return ""
}
