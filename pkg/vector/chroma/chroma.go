// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/retry"
	"github.com/papercomputeco/insurag/pkg/vector"
)

const (
	// DefaultCollectionPrefix prefixes the Chroma collection of each entity collection.
	DefaultCollectionPrefix = "insurag"

	// DefaultMaxRetries is the number of attempts made to reach Chroma on startup.
	DefaultMaxRetries = 5

	// DefaultRetryDelay is the first backoff delay while Chroma starts.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the startup backoff.
	DefaultMaxRetryDelay = 5 * time.Second

	apiBase = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Driver implements vector.Driver using Chroma's REST API. Every entity
// collection maps to its own Chroma collection using cosine space, which
// keeps collections isolated even when ids collide.
type Driver struct {
	baseURL       string
	collectionIDs map[entity.Collection]string
	httpClient    *http.Client
	logger        *slog.Logger
}

var _ vector.Driver = (*Driver)(nil)

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionPrefix names the Chroma collections "<prefix>_<collection>".
	// Defaults to DefaultCollectionPrefix if empty.
	CollectionPrefix string

	// MaxRetries bounds the startup connection attempts.
	MaxRetries int

	// RetryDelay is the initial startup backoff.
	RetryDelay time.Duration

	// MaxRetryDelay caps the startup backoff.
	MaxRetryDelay time.Duration
}

// NewDriver creates a new Chroma vector driver. It retries with backoff
// while Chroma is still starting up.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	prefix := c.CollectionPrefix
	if prefix == "" {
		prefix = DefaultCollectionPrefix
	}
	opts := retry.Options{
		MaxAttempts: c.MaxRetries,
		InitialWait: c.RetryDelay,
		MaxWait:     c.MaxRetryDelay,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			logger.Warn("chroma not ready, retrying",
				"attempt", attempt,
				"wait", wait,
				"error", err,
			)
		},
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxRetries
	}
	if opts.InitialWait <= 0 {
		opts.InitialWait = DefaultRetryDelay
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxRetryDelay
	}

	d := &Driver{
		baseURL:       c.URL,
		collectionIDs: make(map[entity.Collection]string),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	err := retry.Do(context.Background(), opts, func(ctx context.Context) error {
		for _, col := range entity.Collections() {
			name := prefix + "_" + string(col)
			id, err := d.getOrCreateCollection(ctx, name)
			if err != nil {
				return fmt.Errorf("getting or creating collection %q: %w", name, err)
			}
			d.collectionIDs[col] = id
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	logger.Info("connected to Chroma",
		"url", c.URL,
		"prefix", prefix,
		"collections", len(d.collectionIDs),
	)

	return d, nil
}

// getOrCreateCollection gets an existing collection or creates a new one.
func (d *Driver) getOrCreateCollection(ctx context.Context, name string) (string, error) {
	var collection chromaCollection
	status, err := d.do(ctx, http.MethodGet, apiBase+"/"+name, nil, &collection)
	if err == nil && status == http.StatusOK {
		return collection.ID, nil
	}

	_, err = d.do(ctx, http.MethodPost, apiBase, chromaCreateCollectionRequest{
		Name:        name,
		Metadata:    map[string]any{"hnsw:space": "cosine"},
		GetOrCreate: true,
	}, &collection)
	if err != nil {
		return "", fmt.Errorf("creating collection: %w", err)
	}
	return collection.ID, nil
}

func (d *Driver) collectionPath(c entity.Collection, op string) (string, error) {
	id, ok := d.collectionIDs[c]
	if !ok {
		return "", fmt.Errorf("%w: %q", entity.ErrUnknownCollection, c)
	}
	return apiBase + "/" + id + "/" + op, nil
}

// Upsert stores documents with their embeddings, grouped per collection.
func (d *Driver) Upsert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	grouped := make(map[entity.Collection]*chromaUpsertRequest)
	order := make([]entity.Collection, 0)
	for _, doc := range docs {
		req, ok := grouped[doc.Collection]
		if !ok {
			req = &chromaUpsertRequest{}
			grouped[doc.Collection] = req
			order = append(order, doc.Collection)
		}
		req.IDs = append(req.IDs, doc.ID)
		req.Embeddings = append(req.Embeddings, doc.Embedding)
		req.Documents = append(req.Documents, doc.Content)
		req.Metadatas = append(req.Metadatas, map[string]any{"version": doc.Version})
	}

	for _, c := range order {
		path, err := d.collectionPath(c, "upsert")
		if err != nil {
			return err
		}
		if _, err := d.do(ctx, http.MethodPost, path, grouped[c], nil); err != nil {
			return fmt.Errorf("failed to upsert documents into %s: %w", c, err)
		}
	}

	d.logger.Debug("upserted documents to chroma", "count", len(docs))
	return nil
}

// Search queries each requested collection and merges the rankings.
func (d *Driver) Search(ctx context.Context, embedding []float32, topK int, collections ...entity.Collection) ([]vector.QueryResult, error) {
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	results := make([]vector.QueryResult, 0)
	for _, c := range vector.ResolveCollections(collections) {
		path, err := d.collectionPath(c, "query")
		if err != nil {
			return nil, err
		}

		var queryResp chromaQueryResponse
		_, err = d.do(ctx, http.MethodPost, path, chromaQueryRequest{
			QueryEmbeddings: [][]float32{embedding},
			NResults:        topK,
			Include:         []string{"metadatas", "distances", "documents"},
		}, &queryResp)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", c, err)
		}

		// one query embedding, so only the first group is populated
		if len(queryResp.IDs) == 0 {
			continue
		}
		for i, id := range queryResp.IDs[0] {
			r := vector.QueryResult{Document: vector.Document{Collection: c, ID: id}}
			if len(queryResp.Distances) > 0 && i < len(queryResp.Distances[0]) {
				r.Score = vector.FromCosineDistance(queryResp.Distances[0][i])
			}
			if len(queryResp.Metadatas) > 0 && i < len(queryResp.Metadatas[0]) {
				r.Version = metadataVersion(queryResp.Metadatas[0][i])
			}
			if len(queryResp.Documents) > 0 && i < len(queryResp.Documents[0]) && queryResp.Documents[0][i] != nil {
				r.Content = *queryResp.Documents[0][i]
			}
			results = append(results, r)
		}
	}

	results = vector.SortResults(results, topK)
	d.logger.Debug("queried chroma", "results", len(results))
	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, c entity.Collection, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	path, err := d.collectionPath(c, "get")
	if err != nil {
		return nil, err
	}

	var getResp chromaGetResponse
	_, err = d.do(ctx, http.MethodPost, path, chromaGetRequest{
		IDs:     ids,
		Include: []string{"metadatas", "documents", "embeddings"},
	}, &getResp)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}

	docs := make([]vector.Document, len(getResp.IDs))
	for i, id := range getResp.IDs {
		docs[i] = vector.Document{Collection: c, ID: id}
		if i < len(getResp.Metadatas) {
			docs[i].Version = metadataVersion(getResp.Metadatas[i])
		}
		if i < len(getResp.Documents) && getResp.Documents[i] != nil {
			docs[i].Content = *getResp.Documents[i]
		}
		if i < len(getResp.Embeddings) {
			docs[i].Embedding = getResp.Embeddings[i]
		}
	}
	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, c entity.Collection, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	path, err := d.collectionPath(c, "delete")
	if err != nil {
		return err
	}

	if _, err := d.do(ctx, http.MethodPost, path, chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma", "collection", c, "count", len(ids))
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// do sends a JSON request and decodes a JSON response into out when given.
// Non-2xx responses are errors.
func (d *Driver) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func metadataVersion(m map[string]any) int64 {
	switch v := m["version"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
