package purchasing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/atelier-erp/backend/internal/domain/shared"
	"github.com/atelier-erp/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReconcilerConfig holds configuration for the orphan header sweep
type ReconcilerConfig struct {
	Interval    time.Duration
	GracePeriod time.Duration
	BatchSize   int
	LockKey     string
	LockTTL     time.Duration
}

// DefaultReconcilerConfig returns default configuration
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval:    5 * time.Minute,
		GracePeriod: 10 * time.Minute,
		BatchSize:   100,
		LockKey:     "erp:lock:purchase-orphan-sweep",
		LockTTL:     time.Minute,
	}
}

// OrphanReconciler removes purchase order headers that were left without
// items because the rollback after a failed items write also failed.
type OrphanReconciler struct {
	store          purchasing.OrphanHeaderStore
	locker         shared.DistributedLocker
	eventPublisher shared.EventPublisher
	metrics        *telemetry.PurchasingMetrics
	config         ReconcilerConfig
	logger         *zap.Logger
	now            func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrphanReconciler creates a new OrphanReconciler. locker may be nil on a
// single replica deployment.
func NewOrphanReconciler(
	store purchasing.OrphanHeaderStore,
	locker shared.DistributedLocker,
	config ReconcilerConfig,
	logger *zap.Logger,
) *OrphanReconciler {
	defaults := DefaultReconcilerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = defaults.GracePeriod
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.LockKey == "" {
		config.LockKey = defaults.LockKey
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OrphanReconciler{
		store:  store,
		locker: locker,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (r *OrphanReconciler) SetEventPublisher(publisher shared.EventPublisher) {
	r.eventPublisher = publisher
}

// SetMetrics sets the purchasing metrics collector
func (r *OrphanReconciler) SetMetrics(metrics *telemetry.PurchasingMetrics) {
	r.metrics = metrics
}

// Sweep runs one pass and returns how many headers it removed. A pass is
// skipped without error when another replica holds the sweep lock.
func (r *OrphanReconciler) Sweep(ctx context.Context) (int, error) {
	if r.locker != nil {
		lock, err := r.locker.Obtain(ctx, r.config.LockKey, r.config.LockTTL)
		if errors.Is(err, shared.ErrLockNotObtained) {
			r.logger.Debug("orphan sweep skipped, lock held elsewhere")
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("obtain sweep lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	cutoff := r.now().Add(-r.config.GracePeriod)
	orphans, err := r.store.FindOrphanHeaders(ctx, cutoff, r.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("find orphan headers: %w", err)
	}

	var (
		swept int
		errs  []error
	)
	for _, orphan := range orphans {
		deleted, err := r.store.DeleteOrphanHeader(ctx, orphan.TenantID, orphan.ID)
		if err != nil {
			r.logger.Warn("failed to delete orphan purchase order header",
				zap.String("order_id", orphan.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("delete orphan %s: %w", orphan.ID, err))
			continue
		}
		if !deleted {
			// items arrived or another pass removed it
			continue
		}

		swept++
		r.logger.Info("orphan purchase order header removed",
			zap.String("tenant_id", orphan.TenantID.String()),
			zap.String("order_id", orphan.ID.String()),
			zap.String("document_number", orphan.DocumentNumber),
		)
		if r.eventPublisher != nil {
			if err := r.eventPublisher.Publish(ctx, purchasing.NewPurchaseOrphanReconciledEvent(orphan)); err != nil {
				r.logger.Error("failed to publish orphan reconciled event", zap.Error(err))
			}
		}
	}

	if r.metrics != nil {
		r.metrics.RecordOrphansSwept(ctx, swept)
	}
	return swept, errors.Join(errs...)
}

// Run sweeps on every interval until ctx is cancelled
func (r *OrphanReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("orphan sweep failed", zap.Error(err))
			}
		}
	}
}

// Start runs the sweep loop in the background
func (r *OrphanReconciler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Run(ctx)
	}()

	r.logger.Info("orphan reconciler started",
		zap.Duration("interval", r.config.Interval),
		zap.Duration("grace_period", r.config.GracePeriod),
		zap.Int("batch_size", r.config.BatchSize),
	)
	return nil
}

// Stop gracefully stops the sweep loop
func (r *OrphanReconciler) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("orphan reconciler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
