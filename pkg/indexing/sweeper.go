package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/logger"
	"github.com/papercomputeco/insurag/pkg/storage"
)

const (
	DefaultSweepInterval  = 5 * time.Minute
	DefaultSweepBatchSize = 100
	DefaultFullSweepEvery = 12
)

// Enqueuer accepts indexing jobs. *Pool implements it.
type Enqueuer interface {
	Enqueue(job Job) bool
}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	Storage  storage.Driver
	Enqueuer Enqueuer

	// Interval between sweeps. Defaults to DefaultSweepInterval.
	Interval time.Duration

	// BatchSize caps the jobs enqueued per collection per sweep.
	BatchSize int

	// FullSweepEvery runs a full scan every that many ticks; the other
	// ticks only look at unindexed entities. Defaults to DefaultFullSweepEvery.
	FullSweepEvery int

	Logger *slog.Logger
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Scanned  int                       `json:"scanned"`
	Enqueued map[entity.Collection]int `json:"enqueued"`
	Dropped  int                       `json:"dropped"`
}

// Total returns the number of jobs enqueued across collections.
func (r SweepReport) Total() int {
	n := 0
	for _, v := range r.Enqueued {
		n += v
	}
	return n
}

// Sweeper periodically re-enqueues entities whose vector is missing or
// older than their last write. It is how failed and dropped jobs recover.
type Sweeper struct {
	store     storage.Driver
	enqueuer  Enqueuer
	interval  time.Duration
	batchSize int
	fullEvery int
	logger    *slog.Logger
}

// NewSweeper fills defaults for c.
func NewSweeper(c SweeperConfig) *Sweeper {
	s := &Sweeper{
		store:     c.Storage,
		enqueuer:  c.Enqueuer,
		interval:  c.Interval,
		batchSize: c.BatchSize,
		fullEvery: c.FullSweepEvery,
		logger:    c.Logger,
	}
	if s.interval <= 0 {
		s.interval = DefaultSweepInterval
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultSweepBatchSize
	}
	if s.fullEvery <= 0 {
		s.fullEvery = DefaultFullSweepEvery
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s
}

// Run sweeps every interval until ctx ends. The first tick and every
// FullSweepEvery-th tick after it scan everything; the rest only scan
// unindexed entities.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("index sweeper started",
		"interval", s.interval,
		"batch_size", s.batchSize,
		"full_sweep_every", s.fullEvery,
	)
	for tick := 0; ; tick++ {
		select {
		case <-ctx.Done():
			s.logger.Info("index sweeper stopped")
			return
		case <-ticker.C:
			sweep := s.SweepUnindexed
			if tick%s.fullEvery == 0 {
				sweep = s.SweepOnce
			}
			report, err := sweep(ctx)
			if err != nil {
				s.logger.Error("index sweep failed", "error", err)
				continue
			}
			if report.Total() > 0 || report.Dropped > 0 {
				s.logger.Info("index sweep complete",
					"scanned", report.Scanned,
					"enqueued", report.Total(),
					"dropped", report.Dropped,
				)
			}
		}
	}
}

// SweepOnce scans every collection in id order and enqueues up to
// BatchSize entities per collection that need indexing. Unlike
// SweepUnindexed it also finds records edited after their last index.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	return s.sweep(ctx, nil)
}

// SweepUnindexed is SweepOnce restricted to entities that were never
// indexed or whose last attempt failed.
func (s *Sweeper) SweepUnindexed(ctx context.Context) (SweepReport, error) {
	unindexed := false
	return s.sweep(ctx, &unindexed)
}

func (s *Sweeper) sweep(ctx context.Context, indexed *bool) (SweepReport, error) {
	report := SweepReport{Enqueued: make(map[entity.Collection]int)}

	for _, c := range entity.Collections() {
		for offset := 0; report.Enqueued[c] < s.batchSize; offset += s.batchSize {
			page, err := s.store.List(ctx, c, storage.ListOptions{
				VectorIndexed: indexed,
				Limit:         s.batchSize,
				Offset:        offset,
			})
			if err != nil {
				return report, fmt.Errorf("listing %s: %w", c, err)
			}

			for _, e := range page {
				report.Scanned++
				if !NeedsIndex(e) {
					continue
				}
				if !s.enqueuer.Enqueue(Job{Collection: c, Entity: e}) {
					report.Dropped++
					// Queue is full: leave the rest for the next sweep.
					return report, nil
				}
				report.Enqueued[c]++
				if report.Enqueued[c] >= s.batchSize {
					break
				}
			}

			if len(page) < s.batchSize {
				break
			}
		}
	}
	return report, nil
}

// NeedsIndex reports whether e has no current vector: it was never indexed,
// its last attempt failed, or it changed after the last successful index.
func NeedsIndex(e *entity.Entity) bool {
	if !e.Index.VectorIndexed || e.Index.VectorIndexedAt == nil {
		return true
	}
	return e.Index.VectorIndexedAt.Before(e.UpdatedAt)
}
