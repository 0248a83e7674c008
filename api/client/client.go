// Package client is an HTTP client for the insurag API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/indexing"
	"github.com/papercomputeco/insurag/pkg/rag"
	"github.com/papercomputeco/insurag/pkg/records"
)

// DefaultTimeout covers a full answer, generation included.
const DefaultTimeout = 90 * time.Second

// Client talks to one API server.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the server at target, e.g. http://localhost:8081.
func New(target string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(target, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL: %q", target)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ask sends a question to the entrypoint for scope. Failed answers come
// back as a QueryResponse with Success unset, not as an error; the error
// is reserved for transport failures.
func (c *Client) Ask(ctx context.Context, scope entity.Scope, req rag.QueryRequest) (rag.QueryResponse, error) {
	op, ok := rag.OperationFor(scope)
	if !ok {
		return rag.QueryResponse{}, fmt.Errorf("%w: %q", entity.ErrUnknownScope, scope)
	}

	var resp rag.QueryResponse
	status, err := c.do(ctx, http.MethodPost, "/v1/"+op, req, &resp)
	if err != nil {
		return rag.QueryResponse{}, err
	}
	if status != http.StatusOK && status != http.StatusBadRequest {
		return rag.QueryResponse{}, fmt.Errorf("query request failed (HTTP %d)", status)
	}
	resp.Scope = scope
	return resp, nil
}

// Health returns the server's health. An unhealthy server is not an error.
func (c *Client) Health(ctx context.Context) (rag.HealthStatus, error) {
	var h rag.HealthStatus
	status, err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	if err != nil {
		return h, err
	}
	if status != http.StatusOK && status != http.StatusServiceUnavailable {
		return h, fmt.Errorf("health request failed (HTTP %d)", status)
	}
	return h, nil
}

// IndexStatus returns per-collection index counts.
func (c *Client) IndexStatus(ctx context.Context) (map[entity.Collection]records.CollectionStatus, error) {
	out := map[entity.Collection]records.CollectionStatus{}
	if err := c.expectOK(ctx, http.MethodGet, "/v1/index/status", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sweep asks the server to enqueue every record needing an index.
func (c *Client) Sweep(ctx context.Context) (indexing.SweepReport, error) {
	var report indexing.SweepReport
	err := c.expectOK(ctx, http.MethodPost, "/v1/index/sweep", nil, &report)
	return report, err
}

// Reindex indexes one record now.
func (c *Client) Reindex(ctx context.Context, col entity.Collection, id string) (indexing.Result, error) {
	var res indexing.Result
	path := "/v1/entities/" + url.PathEscape(string(col)) + "/" + url.PathEscape(id) + "/reindex"
	err := c.expectOK(ctx, http.MethodPost, path, nil, &res)
	return res, err
}

func (c *Client) expectOK(ctx context.Context, method, path string, body, out any) error {
	status, err := c.do(ctx, method, path, body, out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s %s failed (HTTP %d)", method, path, status)
	}
	return nil
}

// do sends body as JSON and decodes the response into out. Error bodies of
// the form {"error": "..."} become Go errors.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to insurag API at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest && !isQueryResponse(data) {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return resp.StatusCode, fmt.Errorf("%s (HTTP %d)", e.Error, resp.StatusCode)
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// isQueryResponse reports whether data carries the success flag every
// query response has.
func isQueryResponse(data []byte) bool {
	var envelope map[string]json.RawMessage
	if json.Unmarshal(data, &envelope) != nil {
		return false
	}
	_, ok := envelope["success"]
	return ok
}
