// Package storage defines the persistent document store insurag reads and
// writes insurance records through.
package storage

import (
	"context"

	"github.com/papercomputeco/insurag/pkg/entity"
)

// ListOptions narrows a List call.
type ListOptions struct {
	// Filter matches attribute values by dotted path, e.g. "address.city".
	// Values are compared as strings.
	Filter map[string]string

	// VectorIndexed, when set, only returns entities with that index state.
	VectorIndexed *bool

	// Limit caps the number of results. Zero means no limit.
	Limit int

	// Offset skips that many matching entities.
	Offset int
}

// Driver is the per-collection CRUD contract of the persistent store.
// Entities are keyed by (collection, id) and listed in ascending id order.
type Driver interface {
	// Create inserts e. An empty ID is assigned a new UUID. The stored
	// entity starts at version 1 and unindexed.
	Create(ctx context.Context, e *entity.Entity) (*entity.Entity, error)

	// Get returns the entity or a NotFoundError.
	Get(ctx context.Context, c entity.Collection, id string) (*entity.Entity, error)

	// List returns the entities of c matching opts.
	List(ctx context.Context, c entity.Collection, opts ListOptions) ([]*entity.Entity, error)

	// Update merges attrs into the stored attributes and bumps the version.
	Update(ctx context.Context, c entity.Collection, id string, attrs map[string]any) (*entity.Entity, error)

	// Delete removes the entity.
	Delete(ctx context.Context, c entity.Collection, id string) error

	// SetIndexStatus writes only the index status fields. It never changes
	// the version or attributes.
	SetIndexStatus(ctx context.Context, c entity.Collection, id string, status entity.IndexStatus) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}

// Matches reports whether attrs satisfies every filter entry.
func Matches(attrs map[string]any, filter map[string]string) bool {
	for path, want := range filter {
		if entity.StringAt(attrs, path) != want {
			return false
		}
	}
	return true
}

// Paginate applies the offset and limit of opts to an already filtered slice.
func Paginate[T any](items []T, opts ListOptions) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return items[:0]
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
