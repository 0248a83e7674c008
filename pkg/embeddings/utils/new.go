// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/papercomputeco/insurag/pkg/embeddings"
	"github.com/papercomputeco/insurag/pkg/embeddings/hashing"
	"github.com/papercomputeco/insurag/pkg/embeddings/ollama"
	"github.com/papercomputeco/insurag/pkg/embeddings/openai"
)

// Supported embedding providers.
const (
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   int

	// RateLimit caps embedding calls per second. Zero disables limiting.
	RateLimit float64
	Burst     int
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)

	switch o.ProviderType {
	case ProviderOllama:
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case ProviderOpenAI:
		e, err = openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:     o.APIKey,
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	case ProviderHashing:
		e = hashing.NewEmbedder(o.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if o.RateLimit > 0 {
		burst := o.Burst
		if burst <= 0 {
			burst = 1
		}
		e = embeddings.NewRateLimited(e, rate.NewLimiter(rate.Limit(o.RateLimit), burst))
	}
	return e, nil
}
