package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Config tunes the local in-process dispatcher.
type Config struct {
	// QueueSize bounds the number of pending operations. Defaults to 256.
	QueueSize int

	// Workers is the number of concurrent operation workers. Defaults to 4.
	Workers int

	// RatePerSecond caps how many operations start per second across all
	// workers. Zero disables rate limiting.
	RatePerSecond float64

	// Burst is the rate limiter burst size. Defaults to Workers.
	Burst int

	// JobTypeFilter is a glob pattern; operations whose job type does not
	// match are rejected at enqueue time. Empty accepts everything.
	JobTypeFilter string

	// MaxAttempts is how many times a failing operation is delivered before
	// it is dropped. Defaults to 3.
	MaxAttempts int

	// RetryDelay is the pause before a failed operation is redelivered.
	// Defaults to 5 seconds.
	RetryDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Burst <= 0 {
		c.Burst = c.Workers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
}

type queued struct {
	req     OperationRequest
	attempt int
}

// LocalDispatcher runs operations on an in-process worker pool fed by a
// bounded queue. Failed operations are redelivered up to MaxAttempts times.
type LocalDispatcher struct {
	cfg     Config
	ops     Operations
	log     *zap.Logger
	queue   chan queued
	limiter *rate.Limiter
	group   *errgroup.Group
	cancel  context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewLocal creates a LocalDispatcher. Call Start before dispatching.
func NewLocal(cfg Config, ops Operations, log *zap.Logger) (*LocalDispatcher, error) {
	if ops == nil {
		return nil, fmt.Errorf("local dispatcher requires operations")
	}
	if cfg.JobTypeFilter != "" {
		if !doublestar.ValidatePattern(cfg.JobTypeFilter) {
			return nil, fmt.Errorf("invalid job type filter %q", cfg.JobTypeFilter)
		}
	}
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	return &LocalDispatcher{
		cfg:     cfg,
		ops:     ops,
		log:     log,
		queue:   make(chan queued, cfg.QueueSize),
		limiter: limiter,
	}, nil
}

// Start launches the worker pool. Workers run until Close is called or ctx
// is canceled.
func (d *LocalDispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("dispatcher already started")
	}
	if d.closed {
		return ErrClosed
	}
	d.started = true

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		worker := i
		d.group.Go(func() error {
			d.runWorker(ctx, worker)
			return nil
		})
	}
	d.log.Info("Dispatcher started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize),
		zap.String("job_type_filter", d.cfg.JobTypeFilter))
	return nil
}

// Dispatch validates and enqueues the request. It fails fast with
// ErrQueueFull rather than blocking the caller.
func (d *LocalDispatcher) Dispatch(ctx context.Context, req OperationRequest) error {
	switch req.Operation {
	case OpStartJob, OpCancelJob, OpRestartJob, OpDeleteJob, OpProcessNotification:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, req.Operation)
	}
	if _, err := decodePayload(req.Input); err != nil {
		return err
	}
	if !d.accepts(req.JobType) {
		return fmt.Errorf("%w: %q does not match %q", ErrFiltered, req.JobType, d.cfg.JobTypeFilter)
	}

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case d.queue <- queued{req: req, attempt: 1}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// accepts reports whether the job type passes the configured filter.
func (d *LocalDispatcher) accepts(jobType string) bool {
	if d.cfg.JobTypeFilter == "" || jobType == "" {
		return true
	}
	ok, err := doublestar.Match(d.cfg.JobTypeFilter, jobType)
	return err == nil && ok
}

// Close stops accepting new work and waits for in-flight operations.
func (d *LocalDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}
	d.cancel()
	return d.group.Wait()
}

func (d *LocalDispatcher) runWorker(ctx context.Context, worker int) {
	log := d.log.With(zap.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-d.queue:
			if d.limiter != nil {
				if err := d.limiter.Wait(ctx); err != nil {
					return
				}
			}
			d.execute(ctx, log, item)
		}
	}
}

func (d *LocalDispatcher) execute(ctx context.Context, log *zap.Logger, item queued) {
	payload, err := decodePayload(item.req.Input)
	if err != nil {
		log.Error("Dropping undecodable operation", zap.Error(err))
		return
	}

	log = log.With(
		zap.String("operation", item.req.Operation),
		zap.String("job_id", payload.JobID),
		zap.Int("attempt", item.attempt))
	if item.req.Tracker != nil {
		log = log.With(zap.String("tracker_id", item.req.Tracker.ID))
	}

	switch item.req.Operation {
	case OpStartJob:
		err = d.ops.StartExecution(ctx, payload.JobID)
	case OpCancelJob:
		err = d.ops.CancelExecution(ctx, payload.JobID)
	case OpRestartJob:
		err = d.ops.RestartJob(ctx, payload.JobID)
	case OpDeleteJob:
		err = d.ops.DeleteJob(ctx, payload.JobID)
	case OpProcessNotification:
		if item.req.Notification == nil {
			log.Error("Dropping notification operation without payload")
			return
		}
		err = d.ops.ProcessNotification(ctx, payload.JobID, payload.ExecutionID, *item.req.Notification)
	}
	if err == nil {
		log.Debug("Operation completed")
		return
	}

	if item.attempt >= d.cfg.MaxAttempts {
		log.Error("Operation failed, giving up", zap.Error(err))
		return
	}
	log.Warn("Operation failed, redelivering", zap.Error(err))

	item.attempt++
	select {
	case <-ctx.Done():
	case <-time.After(d.cfg.RetryDelay):
		select {
		case d.queue <- item:
		default:
			log.Error("Dropping redelivery, queue full")
		}
	}
}
