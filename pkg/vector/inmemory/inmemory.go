// Package inmemory provides a brute force vector.Driver held in memory.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/vector"
)

// Driver scores every stored vector against the query. Suitable for tests
// and small deployments.
type Driver struct {
	mu   sync.RWMutex
	docs map[entity.Collection]map[string]vector.Document
}

var _ vector.Driver = (*Driver)(nil)

// NewDriver creates an empty in-memory vector index.
func NewDriver() *Driver {
	return &Driver{docs: make(map[entity.Collection]map[string]vector.Document)}
}

// Upsert stores or replaces documents.
func (d *Driver) Upsert(_ context.Context, docs []vector.Document) error {
	for _, doc := range docs {
		if doc.Collection == "" || doc.ID == "" {
			return fmt.Errorf("document requires collection and id")
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		col, ok := d.docs[doc.Collection]
		if !ok {
			col = make(map[string]vector.Document)
			d.docs[doc.Collection] = col
		}
		doc.Embedding = append([]float32(nil), doc.Embedding...)
		col[doc.ID] = doc
	}
	return nil
}

// Search ranks every document of the requested collections by cosine similarity.
func (d *Driver) Search(ctx context.Context, embedding []float32, topK int, collections ...entity.Collection) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make([]vector.QueryResult, 0)
	for _, c := range vector.ResolveCollections(collections) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, doc := range d.docs[c] {
			results = append(results, vector.QueryResult{
				Document: doc,
				Score:    vector.Cosine(embedding, doc.Embedding),
			})
		}
	}
	return vector.SortResults(results, topK), nil
}

// Get retrieves documents by id. Missing ids are skipped.
func (d *Driver) Get(_ context.Context, c entity.Collection, ids []string) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := d.docs[c][id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Delete removes documents by id.
func (d *Driver) Delete(_ context.Context, c entity.Collection, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		delete(d.docs[c], id)
	}
	return nil
}

// Len returns the number of stored documents across collections.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, col := range d.docs {
		n += len(col)
	}
	return n
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
