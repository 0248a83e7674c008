package rag

import (
	"fmt"
	"time"
)

// NoContextPolicy decides what happens when no neighbor clears the
// similarity threshold.
type NoContextPolicy string

const (
	// PolicyUngrounded asks the model for a general answer and marks the
	// response as not grounded in company records.
	PolicyUngrounded NoContextPolicy = "ungrounded"

	// PolicyDecline answers with DeclineAnswer without calling the model.
	PolicyDecline NoContextPolicy = "decline"
)

// DeclineAnswer is returned under PolicyDecline.
const DeclineAnswer = "I couldn't find any records relevant to that question."

// Retrieval and generation defaults.
const (
	DefaultTopK            = 5
	DefaultMinSimilarity   = float32(0.6)
	DefaultPromptBudget    = 4000
	DefaultSnippetRunes    = 500
	DefaultNoContextPolicy = PolicyUngrounded

	DefaultEmbedTimeout    = 10 * time.Second
	DefaultSearchTimeout   = 5 * time.Second
	DefaultGenerateTimeout = 60 * time.Second
)

// Options tunes the answerer. Zero fields take the defaults above.
type Options struct {
	// TopK is the number of neighbors requested from the vector store.
	TopK int

	// MinSimilarity discards neighbors scoring below it.
	MinSimilarity float32

	// PromptBudget caps, in runes, the retrieved-records section of the prompt.
	PromptBudget int

	// SnippetRunes caps each neighbor's snippet.
	SnippetRunes int

	NoContextPolicy NoContextPolicy

	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		TopK:            DefaultTopK,
		MinSimilarity:   DefaultMinSimilarity,
		PromptBudget:    DefaultPromptBudget,
		SnippetRunes:    DefaultSnippetRunes,
		NoContextPolicy: DefaultNoContextPolicy,
		EmbedTimeout:    DefaultEmbedTimeout,
		SearchTimeout:   DefaultSearchTimeout,
		GenerateTimeout: DefaultGenerateTimeout,
	}
}

func (o Options) withDefaults() (Options, error) {
	d := DefaultOptions()
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.MinSimilarity < 0 || o.MinSimilarity > 1 {
		return o, fmt.Errorf("min similarity %.2f outside [0, 1]", o.MinSimilarity)
	}
	if o.MinSimilarity == 0 {
		o.MinSimilarity = d.MinSimilarity
	}
	if o.PromptBudget <= 0 {
		o.PromptBudget = d.PromptBudget
	}
	if o.SnippetRunes <= 0 {
		o.SnippetRunes = d.SnippetRunes
	}
	switch o.NoContextPolicy {
	case "":
		o.NoContextPolicy = d.NoContextPolicy
	case PolicyUngrounded, PolicyDecline:
	default:
		return o, fmt.Errorf("unknown no-context policy %q", o.NoContextPolicy)
	}
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = d.EmbedTimeout
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = d.SearchTimeout
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = d.GenerateTimeout
	}
	return o, nil
}
