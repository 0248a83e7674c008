// Package inmemory provides a map-backed storage.Driver for tests and
// ephemeral runs.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/storage"
)

type key struct {
	collection entity.Collection
	id         string
}

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex guarding entities
	mu sync.RWMutex

	// entities maps (collection, id) to the stored record. Stored records
	// are never handed out directly, callers get clones.
	entities map[key]*entity.Entity

	now func() time.Time
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		entities: make(map[key]*entity.Entity),
		now:      time.Now,
	}
}

var _ storage.Driver = (*Driver)(nil)

// Create inserts a new entity at version 1.
func (d *Driver) Create(_ context.Context, e *entity.Entity) (*entity.Entity, error) {
	if e == nil {
		return nil, errors.New("cannot store nil entity")
	}

	stored := e.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Attributes == nil {
		stored.Attributes = map[string]any{}
	}
	now := d.now().UTC()
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.Index = entity.IndexStatus{}

	d.mu.Lock()
	defer d.mu.Unlock()

	k := key{stored.Collection, stored.ID}
	if _, ok := d.entities[k]; ok {
		return nil, storage.ErrAlreadyExists
	}
	d.entities[k] = stored
	return stored.Clone(), nil
}

// Get retrieves an entity by collection and id.
func (d *Driver) Get(_ context.Context, c entity.Collection, id string) (*entity.Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entities[key{c, id}]
	if !ok {
		return nil, storage.NotFoundError{Collection: string(c), ID: id}
	}
	return e.Clone(), nil
}

// List returns the entities of a collection in ascending id order.
func (d *Driver) List(_ context.Context, c entity.Collection, opts storage.ListOptions) ([]*entity.Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*entity.Entity, 0)
	for k, e := range d.entities {
		if k.collection != c {
			continue
		}
		if opts.VectorIndexed != nil && e.Index.VectorIndexed != *opts.VectorIndexed {
			continue
		}
		if !storage.Matches(e.Attributes, opts.Filter) {
			continue
		}
		result = append(result, e.Clone())
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return storage.Paginate(result, opts), nil
}

// Update merges attrs into the stored entity and bumps its version.
func (d *Driver) Update(_ context.Context, c entity.Collection, id string, attrs map[string]any) (*entity.Entity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entities[key{c, id}]
	if !ok {
		return nil, storage.NotFoundError{Collection: string(c), ID: id}
	}

	next := e.Clone()
	for k, v := range attrs {
		next.Attributes[k] = v
	}
	next.Version++
	next.UpdatedAt = d.now().UTC()
	d.entities[key{c, id}] = next
	return next.Clone(), nil
}

// Delete removes an entity.
func (d *Driver) Delete(_ context.Context, c entity.Collection, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := key{c, id}
	if _, ok := d.entities[k]; !ok {
		return storage.NotFoundError{Collection: string(c), ID: id}
	}
	delete(d.entities, k)
	return nil
}

// SetIndexStatus replaces the index status fields of an entity.
func (d *Driver) SetIndexStatus(_ context.Context, c entity.Collection, id string, status entity.IndexStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entities[key{c, id}]
	if !ok {
		return storage.NotFoundError{Collection: string(c), ID: id}
	}
	next := e.Clone()
	next.Index = status
	d.entities[key{c, id}] = next
	return nil
}

// Ping always succeeds.
func (d *Driver) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
