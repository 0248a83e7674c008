package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/logger"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Indexer is the work a Pool runs per job. *Pipeline implements it.
type Indexer interface {
	Index(ctx context.Context, c entity.Collection, e *entity.Entity) Result
}

// Job is a unit of work for the worker pool.
type Job struct {
	Collection entity.Collection
	Entity     *entity.Entity
}

// PoolConfig is the configuration options for the worker pool.
type PoolConfig struct {
	Indexer Indexer

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// OnResult, when set, is called after every job.
	OnResult func(Result)

	Logger *slog.Logger
}

// Pool runs indexing jobs off the write path. Entity writes enqueue and
// return immediately; workers index in the background.
type Pool struct {
	config  *PoolConfig
	queue   chan Job
	wg      sync.WaitGroup
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Int64

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewPool creates a Pool and starts its workers.
func NewPool(c *PoolConfig) (*Pool, error) {
	if c.Indexer == nil {
		return nil, fmt.Errorf("worker pool requires an indexer")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
		ctx:    ctx,
		cancel: cancel,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job without blocking. It returns false when the queue
// is full or the pool is closed; the sweeper picks such entities up later.
func (p *Pool) Enqueue(job Job) bool {
	if job.Entity == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("indexing job queued",
			"collection", job.Collection,
			"id", job.Entity.ID,
			"version", job.Entity.Version,
		)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("indexing queue full, job dropped",
			"collection", job.Collection,
			"id", job.Entity.ID,
		)
		return false
	}
}

// Pending returns the number of queued jobs.
func (p *Pool) Pending() int {
	return len(p.queue)
}

// Dropped returns how many jobs were rejected because the queue was full.
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting jobs and waits for queued ones to drain.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		p.wg.Wait()
		p.cancel()
	})
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("indexing worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("indexing worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("indexing job panicked",
				"collection", job.Collection,
				"id", job.Entity.ID,
				"panic", r,
			)
		}
	}()

	res := p.config.Indexer.Index(p.ctx, job.Collection, job.Entity)
	if p.config.OnResult != nil {
		p.config.OnResult(res)
	}
}
