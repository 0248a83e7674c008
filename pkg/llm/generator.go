// Package llm defines the language-model client used to turn an assembled
// prompt into a natural-language answer.
package llm

import (
	"context"
	"errors"
)

// ErrGeneration is wrapped by every provider failure: transport errors,
// non-success statuses, API error payloads and empty completions.
var ErrGeneration = errors.New("generation failed")

// Prompt is a single-turn instruction to the model.
type Prompt struct {
	// System carries the standing instructions (role, grounding rules).
	System string

	// User carries the question and any retrieved context.
	User string
}

// Generator produces a completion for a prompt.
// Implementations must be safe for concurrent use and must honor ctx.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)

	// Name identifies the provider and model, e.g. "openai/gpt-4o-mini".
	Name() string
}
