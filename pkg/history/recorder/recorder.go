package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/ruleflow/pkg/history"
	"mercator-hq/ruleflow/pkg/ruleengine"
)

// Config contains recorder settings.
type Config struct {
	// AsyncBuffer is the size of the write queue. A full queue drops
	// records instead of blocking the pass.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() Config {
	return Config{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder persists a history record for every pass it observes.
// It implements ruleengine.PassObserver.
type Recorder struct {
	storage    history.Storage
	config     Config
	recordChan chan *history.Record
	wg         sync.WaitGroup
	done       chan struct{}
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.RWMutex
	closed bool

	recorded atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

var _ ruleengine.PassObserver = (*Recorder)(nil)

// New starts a recorder writing to storage.
func New(storage history.Storage, cfg Config, logger *slog.Logger) *Recorder {
	def := DefaultConfig()
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = def.AsyncBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     cfg,
		recordChan: make(chan *history.Record, cfg.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "history.recorder"),
		now:        time.Now,
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("history recorder initialized",
		"async_buffer", cfg.AsyncBuffer,
		"write_timeout", cfg.WriteTimeout,
	)
	return r
}

// ObservePass enqueues a record for the pass. It never blocks.
func (r *Recorder) ObservePass(ctx context.Context, report *ruleengine.PassReport) {
	record := history.NewRecord(ctx, report, r.now().UTC())
	if record == nil {
		return
	}
	if err := r.Record(record); err != nil {
		r.logger.WarnContext(ctx, "dropping history record",
			"pass_id", record.PassID,
			"error", err,
		)
	}
}

// Record enqueues record for writing.
func (r *Recorder) Record(record *history.Record) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return history.ErrRecorderClosed
	}

	select {
	case r.recordChan <- record:
		return nil
	default:
		r.dropped.Add(1)
		return ErrQueueFull
	}
}

// Recorded returns the number of records written successfully.
func (r *Recorder) Recorded() int64 { return r.recorded.Load() }

// Dropped returns the number of records discarded before writing.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Failed returns the number of records the storage rejected.
func (r *Recorder) Failed() int64 { return r.failed.Load() }

// Close stops accepting records, writes everything queued and returns.
// The storage is not closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.logger.Info("shutting down history recorder")
	r.wg.Wait()
	r.logger.Info("history recorder shut down complete",
		"recorded", r.Recorded(),
		"dropped", r.Dropped(),
		"failed", r.Failed(),
	)
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			r.logger.Debug("draining history queue", "pending_count", len(r.recordChan))
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *history.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to store history record",
			"record_id", record.ID,
			"pass_id", record.PassID,
			"error", err,
		)
		return
	}
	r.recorded.Add(1)

	duration := time.Since(start)
	r.logger.Debug("history recorded",
		"record_id", record.ID,
		"pass_id", record.PassID,
		"valid", record.IsValid,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow history write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}
