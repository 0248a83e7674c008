package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/insurag/pkg/vector"
)

// MockEmbedder is a test embedder that returns predictable embeddings
// and records how it was called.
type MockEmbedder struct {
	// Embeddings maps exact input text to the vector returned for it.
	Embeddings map[string][]float32

	// Default is returned for text missing from Embeddings.
	Default []float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// FailFirst fails the first N calls, whatever the input.
	FailFirst int

	// Delay blocks each call, returning early if the context ends.
	Delay time.Duration

	mu    sync.Mutex
	calls []string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Default:    []float32{0.1, 0.2, 0.3},
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	n := len(m.calls)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, ctx.Err())
		}
	}

	if n <= m.FailFirst {
		return nil, fmt.Errorf("%w: mock failure on call %d", vector.ErrEmbedding, n)
	}
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", vector.ErrEmbedding, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return append([]float32(nil), emb...), nil
	}
	return append([]float32(nil), m.Default...), nil
}

// Calls returns the number of Embed invocations.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Texts returns every input passed to Embed, in call order.
func (m *MockEmbedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockEmbedder) Close() error {
	return nil
}
