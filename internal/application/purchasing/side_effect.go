package purchasing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SideEffect is work that runs after an order has been committed. Its error is
// reported but never reaches the caller that created the order.
type SideEffect func(ctx context.Context) error

// SideEffectDispatcher runs post-commit side effects
type SideEffectDispatcher interface {
	Dispatch(ctx context.Context, name string, fn SideEffect)
}

// DispatcherOption configures a dispatcher
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	logger  *zap.Logger
	timeout time.Duration
}

// WithDispatcherLogger sets the logger used for side-effect failures
func WithDispatcherLogger(logger *zap.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithJobTimeout bounds each side effect. Zero means no timeout.
func WithJobTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.timeout = d
	}
}

func buildDispatcherOptions(opts []DispatcherOption) dispatcherOptions {
	o := dispatcherOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// runSideEffect executes fn with the configured timeout and turns a panic
// into an error.
func runSideEffect(ctx context.Context, o dispatcherOptions, name string, fn SideEffect) (err error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("side effect %s panicked: %v", name, r)
		}
		if err != nil {
			o.logger.Warn("Side effect failed",
				zap.String("side_effect", name),
				zap.Error(err),
			)
		}
	}()

	return fn(ctx)
}

// InlineDispatcher runs side effects synchronously on the caller's goroutine
type InlineDispatcher struct {
	opts dispatcherOptions
}

// NewInlineDispatcher creates an InlineDispatcher
func NewInlineDispatcher(opts ...DispatcherOption) *InlineDispatcher {
	return &InlineDispatcher{opts: buildDispatcherOptions(opts)}
}

// Dispatch runs fn before returning. The caller's cancellation does not abort it.
func (d *InlineDispatcher) Dispatch(ctx context.Context, name string, fn SideEffect) {
	_ = runSideEffect(context.WithoutCancel(ctx), d.opts, name, fn)
}

type sideEffectJob struct {
	ctx  context.Context
	name string
	fn   SideEffect
}

// AsyncDispatcher runs side effects on a bounded pool of workers fed by a
// buffered queue. When the queue is full the job runs inline instead of
// being dropped.
type AsyncDispatcher struct {
	opts dispatcherOptions
	jobs chan sideEffectJob

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncDispatcher starts workers goroutines reading from a queue of queueSize
func NewAsyncDispatcher(workers, queueSize int, opts ...DispatcherOption) *AsyncDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	d := &AsyncDispatcher{
		opts: buildDispatcherOptions(opts),
		jobs: make(chan sideEffectJob, queueSize),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}

	d.opts.logger.Info("side effect dispatcher started",
		zap.Int("workers", workers),
		zap.Int("queue_size", queueSize),
	)
	return d
}

// Dispatch enqueues fn. The request context is detached so that the job
// outlives the request that created the order.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, name string, fn SideEffect) {
	job := sideEffectJob{ctx: context.WithoutCancel(ctx), name: name, fn: fn}

	d.mu.RLock()
	if !d.closed {
		select {
		case d.jobs <- job:
			d.mu.RUnlock()
			return
		default:
		}
	}
	d.mu.RUnlock()

	d.opts.logger.Warn("Side effect queue unavailable, running inline",
		zap.String("side_effect", name),
	)
	_ = runSideEffect(job.ctx, d.opts, job.name, job.fn)
}

// Close stops accepting jobs and waits for queued jobs to finish or ctx to end
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.opts.logger.Info("side effect dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		_ = runSideEffect(job.ctx, d.opts, job.name, job.fn)
	}
}

var (
	_ SideEffectDispatcher = (*InlineDispatcher)(nil)
	_ SideEffectDispatcher = (*AsyncDispatcher)(nil)
)
