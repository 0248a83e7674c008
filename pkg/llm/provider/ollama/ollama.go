// Package ollama implements llm.Generator over Ollama's /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/papercomputeco/insurag/pkg/llm"
)

const (
	DefaultModel   = "llama3.2"
	DefaultBaseURL = "http://localhost:11434"
)

// Config configures the Ollama generator.
type Config struct {
	BaseURL     string
	Model       string
	Temperature *float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// Generator calls a local or remote Ollama server.
type Generator struct {
	cfg    Config
	client *http.Client
}

// New creates an Ollama generator, filling defaults for empty fields.
func New(cfg Config) *Generator {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Generator{cfg: cfg, client: client}
}

// Name returns "ollama/<model>".
func (g *Generator) Name() string {
	return "ollama/" + g.cfg.Model
}

// Generate sends a non-streaming chat request.
func (g *Generator) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	reqBody := chatRequest{
		Model:  g.cfg.Model,
		Stream: false,
	}
	if p.System != "" {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "system", Content: p.System})
	}
	reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "user", Content: p.User})
	if g.cfg.Temperature != nil || g.cfg.MaxTokens > 0 {
		reqBody.Options = &chatOptions{Temperature: g.cfg.Temperature, NumPredict: g.cfg.MaxTokens}
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", llm.ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", llm.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: ollama request: %w", llm.ErrGeneration, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", llm.ErrGeneration, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ollama API error (status %d): %s", llm.ErrGeneration, resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %w", llm.ErrGeneration, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("%w: ollama error: %s", llm.ErrGeneration, result.Error)
	}

	text := strings.TrimSpace(result.Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: ollama returned an empty completion", llm.ErrGeneration)
	}
	return text, nil
}

var _ llm.Generator = (*Generator)(nil)
