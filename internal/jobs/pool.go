// Package jobs runs transcode jobs on a bounded pool of workers.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vidplat/renditiond/internal/pipeline"
)

// Executor runs a single transcode job to completion.
type Executor interface {
	Run(ctx context.Context, job *pipeline.Job) error
}

// Pool manages a fixed set of workers pulling jobs from a bounded queue.
type Pool struct {
	mu sync.Mutex

	executor Executor
	logger   *slog.Logger

	workerCount int
	jobTimeout  time.Duration
	queue       chan *pipeline.Job
	inFlight    atomic.Int64

	// Running state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PoolConfig holds configuration for the pool.
type PoolConfig struct {
	// WorkerCount is the number of concurrent workers.
	// Default: 2
	WorkerCount int

	// QueueSize is the number of jobs that may wait for a worker.
	// Submit rejects jobs once the queue is full.
	// Default: 16
	QueueSize int

	// JobTimeout is the maximum duration for a single job execution.
	// Default: 2 hours
	JobTimeout time.Duration
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WorkerCount: 2,
		QueueSize:   16,
		JobTimeout:  2 * time.Hour,
	}
}

// NewPool creates a new job pool.
func NewPool(executor Executor) *Pool {
	config := DefaultPoolConfig()
	return &Pool{
		executor:    executor,
		logger:      slog.Default(),
		workerCount: config.WorkerCount,
		jobTimeout:  config.JobTimeout,
		queue:       make(chan *pipeline.Job, config.QueueSize),
	}
}

// WithLogger sets a custom logger.
func (p *Pool) WithLogger(logger *slog.Logger) *Pool {
	p.logger = logger
	return p
}

// WithConfig applies configuration to the pool. Must be called before Start.
func (p *Pool) WithConfig(config PoolConfig) *Pool {
	if config.WorkerCount > 0 {
		p.workerCount = config.WorkerCount
	}
	if config.QueueSize > 0 {
		p.queue = make(chan *pipeline.Job, config.QueueSize)
	}
	if config.JobTimeout > 0 {
		p.jobTimeout = config.JobTimeout
	}
	return p
}

// Start launches the configured number of workers.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		return fmt.Errorf("pool already started")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workerCount; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go p.worker(workerID)
	}

	p.logger.Info("job pool started",
		slog.Int("workers", p.workerCount),
		slog.Int("queue_size", cap(p.queue)),
		slog.Duration("job_timeout", p.jobTimeout))

	return nil
}

// Stop stops the pool and waits for in-flight jobs to finish.
// Jobs still waiting in the queue are discarded and their workspaces released.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()

	// Release workspaces of jobs that never reached a worker.
	for {
		select {
		case job := <-p.queue:
			p.logger.Warn("discarding queued job on shutdown",
				slog.String("video_id", job.VideoID.String()))
			if job.Workspace != nil {
				if err := job.Workspace.Release(false); err != nil {
					p.logger.Warn("failed to release workspace",
						slog.String("video_id", job.VideoID.String()),
						slog.String("error", err.Error()))
				}
			}
		default:
			p.mu.Lock()
			p.ctx = nil
			p.cancel = nil
			p.mu.Unlock()
			p.logger.Info("job pool stopped")
			return
		}
	}
}

// Submit enqueues a job for execution. It returns false when the queue
// is full or the pool is not running; the caller keeps ownership of the
// job's workspace in that case.
func (p *Pool) Submit(job *pipeline.Job) bool {
	p.mu.Lock()
	running := p.ctx != nil && p.ctx.Err() == nil
	p.mu.Unlock()

	if !running {
		return false
	}

	select {
	case p.queue <- job:
		return true
	default:
		return false
	}
}

// worker is the main worker loop.
func (p *Pool) worker(workerID string) {
	defer p.wg.Done()

	p.logger.Debug("worker started", slog.String("worker_id", workerID))

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("worker stopping", slog.String("worker_id", workerID))
			return
		case job := <-p.queue:
			p.process(workerID, job)
		}
	}
}

// process executes a single job under the pool's job timeout.
func (p *Pool) process(workerID string, job *pipeline.Job) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	log := p.logger.With(
		slog.String("worker_id", workerID),
		slog.String("video_id", job.VideoID.String()))

	// The job context is detached from the pool context so an in-flight
	// job can finish (or compensate) during shutdown. Stop waits for it.
	jobCtx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()

	start := time.Now()
	log.Info("job started", slog.String("resolution_source",
		fmt.Sprintf("%dx%d", job.Source.Width, job.Source.Height)))

	if err := p.executor.Run(jobCtx, job); err != nil {
		log.Error("job failed",
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return
	}

	log.Info("job finished", slog.Duration("elapsed", time.Since(start)))
}

// Status reports the current pool state.
func (p *Pool) Status() Status {
	p.mu.Lock()
	running := p.ctx != nil && p.ctx.Err() == nil
	p.mu.Unlock()

	return Status{
		Running:       running,
		WorkerCount:   p.workerCount,
		QueueDepth:    len(p.queue),
		QueueCapacity: cap(p.queue),
		InFlight:      p.inFlight.Load(),
	}
}

// Status represents the current state of the pool.
type Status struct {
	Running       bool  `json:"running"`
	WorkerCount   int   `json:"worker_count"`
	QueueDepth    int   `json:"queue_depth"`
	QueueCapacity int   `json:"queue_capacity"`
	InFlight      int64 `json:"in_flight"`
}
