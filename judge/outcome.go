// Package judge asks an AI provider to score a post and turns whatever
// comes back, including every failure mode, into an Outcome.
package judge

import (
	"context"

	"post-judge/model"
)

// Outcome is either Success or Failure.
type Outcome interface {
	outcome()
}

// Success carries bias-adjusted scores and the judge's comment.
type Success struct {
	Scores  model.Scores
	Comment string
}

// Failure carries the classified reason a judgment could not be produced.
type Failure struct {
	Code model.ErrorCode
	Err  error
}

func (Success) outcome() {}
func (Failure) outcome() {}

// Adapter judges a post body as one persona. Provider failures are
// reported as Failure outcomes; a non-nil error means the input itself
// was rejected.
type Adapter interface {
	Judge(ctx context.Context, body string, persona model.Persona) (Outcome, error)
}

// Factory builds a fresh Adapter for a persona.
type Factory func(persona model.Persona) (Adapter, error)
