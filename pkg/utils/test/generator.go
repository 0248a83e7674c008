package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/insurag/pkg/llm"
)

// MockGenerator is a test llm.Generator.
type MockGenerator struct {
	// Response is returned from Generate. Defaults to a canned answer.
	Response string

	// Err, when set, is returned instead of a response.
	Err error

	// PanicWith makes Generate panic with the given value.
	PanicWith any

	// Delay blocks each call, returning early if the context ends.
	Delay time.Duration

	mu      sync.Mutex
	prompts []llm.Prompt
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Response: "mock answer"}
}

func (m *MockGenerator) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, p)
	m.mu.Unlock()

	if m.PanicWith != nil {
		panic(m.PanicWith)
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", llm.ErrGeneration, ctx.Err())
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockGenerator) Name() string {
	return "mock/generator"
}

// Calls returns the number of Generate invocations.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// LastPrompt returns the most recent prompt, or the zero Prompt.
func (m *MockGenerator) LastPrompt() llm.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return llm.Prompt{}
	}
	return m.prompts[len(m.prompts)-1]
}
