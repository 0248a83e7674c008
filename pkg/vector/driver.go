// Package vector provides the vector index store: per-collection storage of
// entity embeddings and nearest neighbour search over them.
package vector

import (
	"context"

	"github.com/papercomputeco/insurag/pkg/entity"
)

// Document is the one current vector of an entity.
type Document struct {
	// Collection partitions the index. Searches never cross into
	// collections they were not asked for.
	Collection entity.Collection

	// ID is the owning entity's id, unique within its collection.
	ID string

	// Version is the entity version the vector was built from.
	Version int64

	// Content is the embedding text. It doubles as the snippet returned
	// with search results.
	Content string

	// Embedding is the vector representation of Content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is the cosine similarity clamped to [0, 1] (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of vector embeddings.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Upsert stores documents keyed by (Collection, ID). An existing
	// document with the same key is replaced, never duplicated.
	Upsert(ctx context.Context, docs []Document) error

	// Search returns at most topK documents ordered by descending score,
	// ties broken by collection then id ascending. With no collections
	// given every collection is searched.
	Search(ctx context.Context, embedding []float32, topK int, collections ...entity.Collection) ([]QueryResult, error)

	// Get retrieves documents of one collection by id.
	Get(ctx context.Context, c entity.Collection, ids []string) ([]Document, error)

	// Delete removes documents of one collection by id. Missing ids are ignored.
	Delete(ctx context.Context, c entity.Collection, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
