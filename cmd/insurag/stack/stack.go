// Package stack assembles the storage, indexing and query components the
// insurag commands run on from a resolved configuration.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/insurag/cmd/insurag/sqlitepath"
	"github.com/papercomputeco/insurag/pkg/config"
	"github.com/papercomputeco/insurag/pkg/credentials"
	"github.com/papercomputeco/insurag/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/insurag/pkg/embeddings/utils"
	"github.com/papercomputeco/insurag/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/insurag/pkg/eventstream/utils"
	"github.com/papercomputeco/insurag/pkg/indexing"
	"github.com/papercomputeco/insurag/pkg/llm"
	"github.com/papercomputeco/insurag/pkg/llm/provider"
	"github.com/papercomputeco/insurag/pkg/logger"
	"github.com/papercomputeco/insurag/pkg/rag"
	"github.com/papercomputeco/insurag/pkg/records"
	"github.com/papercomputeco/insurag/pkg/storage"
	storageutils "github.com/papercomputeco/insurag/pkg/storage/utils"
	"github.com/papercomputeco/insurag/pkg/vector"
	vectorutils "github.com/papercomputeco/insurag/pkg/vector/utils"
)

// Options controls how much of the stack Build starts.
type Options struct {
	// ConfigDir overrides the .insurag/ directory.
	ConfigDir string

	// Background indexes through a worker pool and runs a sweeper. Without
	// it every write indexes inline before returning, which one-shot
	// commands such as seed rely on.
	Background bool

	Logger *slog.Logger
}

// Stack holds the wired components. Close releases them in reverse order.
type Stack struct {
	Config *config.Config

	Storage   storage.Driver
	Vectors   vector.Driver
	Embedder  embeddings.Embedder
	Generator llm.Generator
	Publisher eventstream.Publisher

	Pipeline *indexing.Pipeline
	Pool     *indexing.Pool
	Sweeper  *indexing.Sweeper

	Records  *records.Service
	Answerer *rag.Answerer
	Router   *rag.Router

	closers []func() error
}

// Build wires every component from cfg. On error anything already opened
// is closed.
func Build(ctx context.Context, cfg *config.Config, o Options) (_ *Stack, err error) {
	log := o.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Stack{Config: cfg}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	credMgr, err := credentials.NewManager(o.ConfigDir)
	if err != nil {
		log.Warn("credentials unavailable, using environment keys only", "error", err)
	}

	if s.Storage, err = newStorage(ctx, cfg, o.ConfigDir); err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.Storage.Close)
	log.Info("record store ready", "provider", cfg.Storage.Provider)

	if s.Vectors, err = newVectors(ctx, cfg, o.ConfigDir, log); err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.Vectors.Close)
	log.Info("vector store ready", "provider", cfg.VectorStore.Provider, "dimensions", cfg.Embedding.Dimensions)

	s.Embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       credentials.ResolveKey(credMgr, cfg.Embedding.Provider, ""),
		Dimensions:   int(cfg.Embedding.Dimensions),
		RateLimit:    cfg.Embedding.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	s.closers = append(s.closers, s.Embedder.Close)

	s.Generator, err = provider.NewGenerator(provider.Config{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.Target,
		MaxTokens: cfg.LLM.MaxTokens,
		CredMgr:   credMgr,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	s.Publisher, err = eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      splitList(cfg.Events.Brokers),
		Topic:        cfg.Events.Topic,
		NATSURL:      cfg.Events.NATSURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	s.closers = append(s.closers, s.Publisher.Close)

	s.Pipeline, err = indexing.NewPipeline(indexing.Config{
		Storage:   s.Storage,
		Vectors:   s.Vectors,
		Embedder:  s.Embedder,
		Publisher: s.Publisher,
		Logger:    log.With("component", "indexing"),
	})
	if err != nil {
		return nil, err
	}

	var queue indexing.Enqueuer
	if o.Background {
		s.Pool, err = indexing.NewPool(&indexing.PoolConfig{
			Indexer:    s.Pipeline,
			NumWorkers: cfg.Indexing.Workers,
			QueueSize:  cfg.Indexing.QueueSize,
			Logger:     log.With("component", "index-pool"),
		})
		if err != nil {
			return nil, fmt.Errorf("creating index pool: %w", err)
		}
		poolLog := log.With("component", "index-pool")
		s.closers = append(s.closers, func() error {
			poolLog.Info("draining index queue", "pending", s.Pool.Pending())
			s.Pool.Close()
			if dropped := s.Pool.Dropped(); dropped > 0 {
				poolLog.Warn("index jobs dropped on a full queue; the sweeper reindexes them", "dropped", dropped)
			}
			return nil
		})
		queue = s.Pool

		s.Sweeper = indexing.NewSweeper(indexing.SweeperConfig{
			Storage:   s.Storage,
			Enqueuer:  s.Pool,
			Interval:  cfg.Indexing.SweepEvery(),
			BatchSize: cfg.Indexing.SweepBatch,
			Logger:    log.With("component", "sweeper"),
		})
	}

	s.Records, err = records.New(records.Config{
		Storage:   s.Storage,
		Indexer:   s.Pipeline,
		Queue:     queue,
		Publisher: s.Publisher,
		Logger:    log.With("component", "records"),
	})
	if err != nil {
		return nil, err
	}

	s.Answerer, err = rag.NewAnswerer(rag.AnswererConfig{
		Embedder:  s.Embedder,
		Vectors:   s.Vectors,
		Generator: s.Generator,
		Options:   RAGOptions(cfg.RAG),
		Logger:    log.With("component", "rag"),
	})
	if err != nil {
		return nil, err
	}

	s.Router, err = rag.NewRouter(rag.RouterConfig{
		Answerer: s.Answerer,
		Checks: map[string]rag.HealthCheck{
			"storage": s.Storage.Ping,
		},
		Logger: log.With("component", "router"),
	})
	if err != nil {
		return nil, err
	}

	log.Info("query stack ready",
		"embedder", cfg.Embedding.Provider,
		"generator", s.Generator.Name(),
		"events", cfg.Events.Provider,
		"background_indexing", o.Background,
	)
	return s, nil
}

// Close drains the index pool first so queued writes reach the stores,
// then closes the rest in reverse order of creation.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// RAGOptions converts the rag config section.
func RAGOptions(c config.RAGConfig) rag.Options {
	return rag.Options{
		TopK:            c.TopK,
		MinSimilarity:   float32(c.MinSimilarity),
		PromptBudget:    c.PromptBudget,
		SnippetRunes:    c.SnippetRunes,
		NoContextPolicy: rag.NoContextPolicy(c.NoContextPolicy),
	}
}

func newStorage(ctx context.Context, cfg *config.Config, configDir string) (storage.Driver, error) {
	opts := &storageutils.NewDriverOpts{
		ProviderType: cfg.Storage.Provider,
		PostgresDSN:  cfg.Storage.PostgresDSN,
	}
	if cfg.Storage.Provider == "sqlite" {
		path, err := sqlitepath.ResolveSQLitePath(cfg.Storage.SQLitePath, configDir, sqlitepath.RecordsDB)
		if err != nil {
			return nil, err
		}
		opts.SQLitePath = path
	}

	driver, err := storageutils.NewDriver(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating record store: %w", err)
	}
	return driver, nil
}

func newVectors(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (vector.Driver, error) {
	target := cfg.VectorStore.Target
	switch cfg.VectorStore.Provider {
	case "sqlite", "sqlitevec", "sqlite-vec":
		path, err := sqlitepath.ResolveSQLitePath(target, configDir, sqlitepath.VectorsDB)
		if err != nil {
			return nil, err
		}
		target = path
	}

	driver, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       target,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       log.With("component", "vector"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	return driver, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
