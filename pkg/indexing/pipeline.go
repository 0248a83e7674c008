// Package indexing keeps the vector index in step with entity writes. It
// builds each entity's embedding text, embeds it, upserts the vector and
// records the outcome on the entity. Indexing is best-effort: failures are
// recorded on the entity and never returned to the writer.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/insurag/pkg/embeddings"
	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/eventstream"
	"github.com/papercomputeco/insurag/pkg/eventstream/nop"
	"github.com/papercomputeco/insurag/pkg/logger"
	"github.com/papercomputeco/insurag/pkg/retry"
	"github.com/papercomputeco/insurag/pkg/storage"
	"github.com/papercomputeco/insurag/pkg/vector"
)

const (
	DefaultEmbedTimeout   = 10 * time.Second
	DefaultStoreTimeout   = 5 * time.Second
	DefaultPublishTimeout = 2 * time.Second
)

// DefaultRetry retries a failed embedding or vector write once.
var DefaultRetry = retry.Options{
	MaxAttempts: 2,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     2 * time.Second,
	Jitter:      true,
}

// Config wires a Pipeline to its collaborators.
type Config struct {
	Storage  storage.Driver
	Vectors  vector.Driver
	Embedder embeddings.Embedder

	// Publisher receives an entity.indexed event per attempt. Optional.
	Publisher eventstream.Publisher

	Logger *slog.Logger

	EmbedTimeout time.Duration
	StoreTimeout time.Duration

	// Retry applies to embedding and vector writes. Zero value selects DefaultRetry.
	Retry retry.Options

	// Now overrides the clock used for vectorIndexedAt.
	Now func() time.Time
}

// Pipeline indexes entities.
type Pipeline struct {
	store     storage.Driver
	vectors   vector.Driver
	embedder  embeddings.Embedder
	publisher eventstream.Publisher
	logger    *slog.Logger
	locks     *keyLock

	embedTimeout time.Duration
	storeTimeout time.Duration
	retry        retry.Options
	now          func() time.Time
}

// NewPipeline validates c and fills defaults.
func NewPipeline(c Config) (*Pipeline, error) {
	if c.Storage == nil || c.Vectors == nil || c.Embedder == nil {
		return nil, errors.New("indexing pipeline requires storage, vector driver and embedder")
	}

	p := &Pipeline{
		store:        c.Storage,
		vectors:      c.Vectors,
		embedder:     c.Embedder,
		publisher:    c.Publisher,
		logger:       c.Logger,
		locks:        newKeyLock(),
		embedTimeout: c.EmbedTimeout,
		storeTimeout: c.StoreTimeout,
		retry:        c.Retry,
		now:          c.Now,
	}
	if p.publisher == nil {
		p.publisher = nop.NewPublisher()
	}
	if p.logger == nil {
		p.logger = logger.Nop()
	}
	if p.embedTimeout <= 0 {
		p.embedTimeout = DefaultEmbedTimeout
	}
	if p.storeTimeout <= 0 {
		p.storeTimeout = DefaultStoreTimeout
	}
	if p.retry.MaxAttempts == 0 {
		p.retry = DefaultRetry
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Index brings the vector of (c, e.ID) up to date with the stored entity.
//
// Calls for one entity are serialized. A job older than the stored version
// is skipped, as is a job for an entity that no longer exists (its vector is
// removed). The embedding text is always built from the freshly read
// entity, so indexing the same content twice yields the same state.
func (p *Pipeline) Index(ctx context.Context, c entity.Collection, e *entity.Entity) Result {
	if e == nil || e.ID == "" {
		return Result{Collection: c, Outcome: OutcomeSkipped, Reason: "missing entity id"}
	}

	unlock := p.locks.Lock(lockKey(c, e.ID))
	defer unlock()

	log := p.logger.With("collection", c, "id", e.ID, "version", e.Version)
	res := Result{Collection: c, ID: e.ID, Version: e.Version}

	current, err := p.get(ctx, c, e.ID)
	switch {
	case storage.IsNotFound(err):
		p.removeVector(ctx, c, e.ID, log)
		res.Outcome, res.Reason = OutcomeSkipped, ReasonDeleted
		log.Debug("entity deleted before indexing")
		return res
	case err != nil:
		res.Outcome, res.Reason = OutcomeFailed, fmt.Sprintf("reading entity: %v", err)
		log.Error("indexing aborted, entity unreadable", "error", err)
		return res
	case current.Version > e.Version:
		res.Outcome, res.Reason = OutcomeSkipped, ReasonStale
		log.Debug("stale indexing job skipped", "stored_version", current.Version)
		return res
	}
	res.Version = current.Version

	text := entity.BuildEmbeddingText(c, current.Attributes)
	if text == "" {
		p.removeVector(ctx, c, e.ID, log)
		return p.fail(ctx, res, fmt.Sprintf("no indexable text for %s", c), nil, log)
	}

	embedding, err := p.embed(ctx, text, log)
	if err != nil {
		return p.fail(ctx, res, fmt.Sprintf("embedding failed: %v", err), &text, log)
	}

	// The entity may have moved on while the embedding was computed.
	latest, err := p.get(ctx, c, e.ID)
	switch {
	case storage.IsNotFound(err):
		p.removeVector(ctx, c, e.ID, log)
		res.Outcome, res.Reason = OutcomeSkipped, ReasonDeleted
		return res
	case err == nil && latest.Version > current.Version:
		res.Outcome, res.Reason = OutcomeSkipped, ReasonStale
		log.Debug("entity changed during indexing, skipping write", "stored_version", latest.Version)
		return res
	}

	doc := vector.Document{
		Collection: c,
		ID:         e.ID,
		Version:    current.Version,
		Content:    text,
		Embedding:  embedding,
	}
	err = retry.Do(ctx, p.retry, func(ctx context.Context) error {
		sctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
		defer cancel()
		return p.vectors.Upsert(sctx, []vector.Document{doc})
	})
	if err != nil {
		return p.fail(ctx, res, fmt.Sprintf("vector store write failed: %v", err), &text, log)
	}

	status := entity.Succeeded(text, p.now())
	res.Outcome, res.Status = OutcomeIndexed, &status
	if err := p.setStatus(ctx, c, e.ID, status); err != nil {
		log.Error("vector written but index status not recorded", "error", err)
	}

	log.Info("entity indexed", "dimensions", len(embedding), "text_runes", len([]rune(text)))
	p.publish(ctx, res, log)
	return res
}

func (p *Pipeline) embed(ctx context.Context, text string, log *slog.Logger) ([]float32, error) {
	var embedding []float32
	opts := p.retry
	opts.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Warn("embedding attempt failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}

	err := retry.Do(ctx, opts, func(ctx context.Context) error {
		ectx, cancel := context.WithTimeout(ctx, p.embedTimeout)
		defer cancel()

		v, err := p.embedder.Embed(ectx, text)
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return fmt.Errorf("%w: empty embedding", vector.ErrEmbedding)
		}
		embedding = v
		return nil
	})
	return embedding, err
}

func (p *Pipeline) fail(ctx context.Context, res Result, reason string, text *string, log *slog.Logger) Result {
	status := entity.Failed(reason, text)
	res.Outcome, res.Reason, res.Status = OutcomeFailed, reason, &status

	if err := p.setStatus(ctx, res.Collection, res.ID, status); err != nil {
		log.Error("index failure not recorded", "reason", reason, "error", err)
	}
	log.Warn("entity indexing failed", "reason", reason)
	p.publish(ctx, res, log)
	return res
}

func (p *Pipeline) get(ctx context.Context, c entity.Collection, id string) (*entity.Entity, error) {
	sctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	return p.store.Get(sctx, c, id)
}

// setStatus outlives a cancelled job context so an interrupted attempt is
// still recorded.
func (p *Pipeline) setStatus(ctx context.Context, c entity.Collection, id string, status entity.IndexStatus) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.storeTimeout)
	defer cancel()
	return p.store.SetIndexStatus(sctx, c, id, status)
}

func (p *Pipeline) removeVector(ctx context.Context, c entity.Collection, id string, log *slog.Logger) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.storeTimeout)
	defer cancel()
	if err := p.vectors.Delete(sctx, c, []string{id}); err != nil {
		log.Warn("removing vector failed", "error", err)
	}
}

// Remove deletes the vector of an entity, serialized with indexing jobs.
func (p *Pipeline) Remove(ctx context.Context, c entity.Collection, id string) error {
	unlock := p.locks.Lock(lockKey(c, id))
	defer unlock()

	sctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	return p.vectors.Delete(sctx, c, []string{id})
}

func (p *Pipeline) publish(ctx context.Context, res Result, log *slog.Logger) {
	action := eventstream.ActionIndexed
	if res.Outcome == OutcomeFailed {
		action = eventstream.ActionIndexFailed
	}
	ev := eventstream.NewEvent(eventstream.EventTypeEntityIndexed, action, res.Collection, res.ID, res.Version)
	ev.Index = res.Status

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultPublishTimeout)
	defer cancel()
	if err := p.publisher.Publish(pctx, ev); err != nil {
		log.Warn("publishing index event failed", "error", err)
	}
}

func lockKey(c entity.Collection, id string) string {
	return string(c) + "/" + id
}
