package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/kalambet/papermind/internal/completion"
	"github.com/kalambet/papermind/internal/deadline"
	"github.com/kalambet/papermind/internal/gemini"
	"github.com/kalambet/papermind/internal/retrieval"
)

// Error classes returned by Service. Callers match them with errors.Is.
var (
	ErrValidation         = errors.New("invalid request")
	ErrUnreadableContent  = errors.New("no readable text in document")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrNoRelevantContent  = errors.New("no relevant content found in document")
	ErrNotFound           = errors.New("not found")
	ErrProvider           = errors.New("provider request failed")
	ErrTimeout            = deadline.ErrTimeout
)

// classify maps a provider failure onto the error classes above.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, deadline.ErrTimeout), errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, gemini.ErrNotConfigured),
		errors.Is(err, retrieval.ErrNotConfigured),
		errors.Is(err, retrieval.ErrNotInitialized),
		errors.Is(err, completion.ErrUnavailable):
		return fmt.Errorf("%w: %s: %w", ErrServiceUnavailable, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrProvider, op, err)
	}
}

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
