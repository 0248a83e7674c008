// Package records is the write path for insurance records. Every mutation
// is persisted first, then announced on the event stream and handed to the
// indexer; indexing never fails the write.
package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/eventstream"
	"github.com/papercomputeco/insurag/pkg/eventstream/nop"
	"github.com/papercomputeco/insurag/pkg/indexing"
	"github.com/papercomputeco/insurag/pkg/logger"
	"github.com/papercomputeco/insurag/pkg/storage"
)

// Indexer indexes and un-indexes single entities. *indexing.Pipeline
// implements it.
type Indexer interface {
	Index(ctx context.Context, c entity.Collection, e *entity.Entity) indexing.Result
	Remove(ctx context.Context, c entity.Collection, id string) error
}

// Config wires a Service.
type Config struct {
	Storage storage.Driver
	Indexer Indexer

	// Queue runs indexing in the background. When nil, writes index
	// inline before returning.
	Queue indexing.Enqueuer

	Publisher eventstream.Publisher
	Logger    *slog.Logger
}

// Service creates, updates and deletes records and keeps their vectors
// in step.
type Service struct {
	store     storage.Driver
	indexer   Indexer
	queue     indexing.Enqueuer
	publisher eventstream.Publisher
	logger    *slog.Logger
}

// New creates a Service.
func New(c Config) (*Service, error) {
	if c.Storage == nil || c.Indexer == nil {
		return nil, errors.New("records service requires storage and an indexer")
	}
	s := &Service{
		store:     c.Storage,
		indexer:   c.Indexer,
		queue:     c.Queue,
		publisher: c.Publisher,
		logger:    c.Logger,
	}
	if s.publisher == nil {
		s.publisher = nop.NewPublisher()
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s, nil
}

// Create stores a new record. An empty id is assigned. Reserved keys in
// attrs are ignored.
func (s *Service) Create(ctx context.Context, c entity.Collection, id string, attrs map[string]any) (*entity.Entity, error) {
	if err := validCollection(c); err != nil {
		return nil, err
	}
	e, err := s.store.Create(ctx, &entity.Entity{
		ID:         id,
		Collection: c,
		Attributes: entity.SanitizeAttributes(attrs),
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s record: %w", c, err)
	}

	s.changed(ctx, eventstream.ActionCreated, e)
	s.index(ctx, e)
	return e, nil
}

// Update merges attrs into a record and bumps its version.
func (s *Service) Update(ctx context.Context, c entity.Collection, id string, attrs map[string]any) (*entity.Entity, error) {
	if err := validCollection(c); err != nil {
		return nil, err
	}
	e, err := s.store.Update(ctx, c, id, entity.SanitizeAttributes(attrs))
	if err != nil {
		return nil, fmt.Errorf("updating %s/%s: %w", c, id, err)
	}

	s.changed(ctx, eventstream.ActionUpdated, e)
	s.index(ctx, e)
	return e, nil
}

// Delete removes a record and then its vector. A failure to remove the
// vector is logged; the record is gone either way.
func (s *Service) Delete(ctx context.Context, c entity.Collection, id string) error {
	if err := validCollection(c); err != nil {
		return err
	}
	existing, err := s.store.Get(ctx, c, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, c, id); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", c, id, err)
	}

	if err := s.indexer.Remove(context.WithoutCancel(ctx), c, id); err != nil {
		s.logger.Warn("removing vector failed", "collection", c, "id", id, "error", err)
	}
	s.changed(ctx, eventstream.ActionDeleted, existing)
	return nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, c entity.Collection, id string) (*entity.Entity, error) {
	if err := validCollection(c); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, c, id)
}

// List returns the records of c matching opts.
func (s *Service) List(ctx context.Context, c entity.Collection, opts storage.ListOptions) ([]*entity.Entity, error) {
	if err := validCollection(c); err != nil {
		return nil, err
	}
	return s.store.List(ctx, c, opts)
}

// Reindex indexes one record synchronously and returns the outcome.
func (s *Service) Reindex(ctx context.Context, c entity.Collection, id string) (indexing.Result, error) {
	e, err := s.Get(ctx, c, id)
	if err != nil {
		return indexing.Result{}, err
	}
	return s.indexer.Index(ctx, c, e), nil
}

// ReindexAll indexes every record of the given collections (all when none
// are given) synchronously. progress, when set, is called after each one.
func (s *Service) ReindexAll(ctx context.Context, progress func(indexing.Result), collections ...entity.Collection) (Summary, error) {
	if len(collections) == 0 {
		collections = entity.Collections()
	}
	sum := Summary{}
	for _, c := range collections {
		if err := validCollection(c); err != nil {
			return sum, err
		}
		list, err := s.store.List(ctx, c, storage.ListOptions{})
		if err != nil {
			return sum, fmt.Errorf("listing %s: %w", c, err)
		}
		for _, e := range list {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			res := s.indexer.Index(ctx, c, e)
			sum.add(res)
			if progress != nil {
				progress(res)
			}
		}
	}
	return sum, nil
}

// Count returns the number of records across the given collections.
func (s *Service) Count(ctx context.Context, collections ...entity.Collection) (int, error) {
	if len(collections) == 0 {
		collections = entity.Collections()
	}
	n := 0
	for _, c := range collections {
		list, err := s.store.List(ctx, c, storage.ListOptions{})
		if err != nil {
			return 0, fmt.Errorf("listing %s: %w", c, err)
		}
		n += len(list)
	}
	return n, nil
}

func (s *Service) index(ctx context.Context, e *entity.Entity) {
	if s.queue == nil {
		s.indexer.Index(context.WithoutCancel(ctx), e.Collection, e)
		return
	}
	if !s.queue.Enqueue(indexing.Job{Collection: e.Collection, Entity: e}) {
		s.logger.Warn("index queue full, leaving record for the sweeper",
			"collection", e.Collection,
			"id", e.ID,
			"version", e.Version,
		)
	}
}

func (s *Service) changed(ctx context.Context, action eventstream.Action, e *entity.Entity) {
	ev := eventstream.NewEvent(eventstream.EventTypeEntityChanged, action, e.Collection, e.ID, e.Version)
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("publishing change event failed",
			"collection", e.Collection,
			"id", e.ID,
			"action", action,
			"error", err,
		)
	}
}

func validCollection(c entity.Collection) error {
	parsed, err := entity.ParseCollection(string(c))
	if err != nil {
		return err
	}
	if parsed != c {
		return fmt.Errorf("%w: %q", entity.ErrUnknownCollection, c)
	}
	return nil
}
