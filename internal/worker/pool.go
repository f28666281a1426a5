// Package worker implements the buffered ledger writer. Resolved matches are
// queued by crawl workers and appended to the ledger in batches, decoupling
// fetch throughput from disk flushes:
// - batches are flushed when full or on a timer
// - every flushed batch is fsynced before it is counted
// - Stop drains the queue before returning
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/lolfu/winrate-engine/internal/models"
)

var (
	rowsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lolfu_ledger_rows_written_total",
		Help: "Total number of ledger rows durably written",
	})

	rowsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lolfu_ledger_rows_failed_total",
		Help: "Total number of ledger rows that could not be written",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lolfu_ledger_queue_depth",
		Help: "Current depth of the ledger queue",
	})

	flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lolfu_ledger_flush_duration_seconds",
		Help:    "Duration of ledger batch flushes",
		Buckets: prometheus.DefBuckets,
	})
)

// Job is one row waiting to be written.
type Job struct {
	Row       models.LedgerRow
	Timestamp time.Time
}

// Sink persists a batch of formatted ledger lines.
type Sink interface {
	WriteLines(lines []string) error
}

// PoolConfig configures the writer pool
type PoolConfig struct {
	WorkerCount   int
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	Sink          Sink
	Logger        *zap.Logger
}

// Pool batches ledger rows into a Sink.
type Pool struct {
	config   PoolConfig
	jobQueue chan Job
	wg       sync.WaitGroup
	mu       sync.RWMutex // guards closed against concurrent Enqueue
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	written  atomic.Uint64
	logger   *zap.SugaredLogger
}

// NewPool creates a new writer pool
func NewPool(cfg PoolConfig) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Pool{
		config:   cfg,
		jobQueue: make(chan Job, cfg.QueueSize),
		logger:   cfg.Logger.Sugar(),
	}
}

// Start launches the writer goroutines. Cancelling ctx stops only the queue
// depth reporter; queued rows are written until Stop.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	go p.reportQueueDepth()

	p.logger.Infow("Ledger writer started",
		"workers", p.config.WorkerCount,
		"queueSize", p.config.QueueSize,
		"batchSize", p.config.BatchSize,
	)
}

// Stop closes the queue and waits until every queued row is flushed.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobQueue)
	p.mu.Unlock()

	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
	p.logger.Infow("Ledger writer stopped", "rowsWritten", p.written.Load())
}

// Enqueue queues a row, blocking while the queue is full. It returns false
// once the pool is stopped.
func (p *Pool) Enqueue(row models.LedgerRow) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warnw("Ledger writer stopped, dropping row", "match_id", row.MatchID)
		return false
	}
	p.jobQueue <- Job{Row: row, Timestamp: time.Now()}
	return true
}

// QueueDepth returns current queue size
func (p *Pool) QueueDepth() int {
	return len(p.jobQueue)
}

// Written returns the number of rows durably written.
func (p *Pool) Written() uint64 {
	return p.written.Load()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	batch := make([]Job, 0, p.config.BatchSize)
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		start := time.Now()
		if err := p.processBatch(batch); err != nil {
			p.logger.Errorw("Ledger flush failed",
				"worker", id,
				"batchSize", len(batch),
				"error", err,
			)
			rowsFailed.Add(float64(len(batch)))
		} else {
			p.logger.Debugw("Ledger batch flushed", "worker", id, "batchSize", len(batch), "duration", time.Since(start))
			p.written.Add(uint64(len(batch)))
			rowsWritten.Add(float64(len(batch)))
		}
		flushDuration.Observe(time.Since(start).Seconds())

		batch = batch[:0]
	}

	for {
		select {
		case job, ok := <-p.jobQueue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, job)
			if len(batch) >= p.config.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

func (p *Pool) processBatch(batch []Job) error {
	lines := make([]string, len(batch))
	for i, job := range batch {
		lines[i] = job.Row.Format()
	}
	return p.config.Sink.WriteLines(lines)
}

func (p *Pool) reportQueueDepth() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			queueDepth.Set(float64(len(p.jobQueue)))
		case <-p.ctx.Done():
			return
		}
	}
}
