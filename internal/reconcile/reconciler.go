// Package reconcile periodically rebuilds every user's recorded storage usage
// from the live file sizes.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/S1riyS/drive-core/server/internal/service"
	"github.com/S1riyS/drive-core/server/pkg/logging"
	"github.com/S1riyS/drive-core/server/pkg/logging/slogext"
)

// Quota is the part of the drive service the reconciler drives.
type Quota interface {
	ReconcileAll(ctx context.Context) ([]service.QuotaCorrection, error)
}

type Config struct {
	// Interval between sweeps. Zero disables the background worker.
	Interval time.Duration
	// Timeout bounds a single sweep.
	Timeout time.Duration
}

type Reconciler struct {
	quota  Quota
	config Config
	logger *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func New(quota Quota, config Config, logger *slog.Logger) *Reconciler {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Minute
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{
		quota:  quota,
		config: config,
		logger: logger.With(slog.String("component", "reconciler")),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the background worker. It does nothing when the interval
// is zero. Only the first call has an effect.
func (r *Reconciler) Start() {
	r.startOnce.Do(func() {
		if r.config.Interval <= 0 {
			r.logger.Info("Quota reconciliation disabled")
			close(r.doneCh)
			return
		}

		r.logger.Info("Starting quota reconciler", slog.Duration("interval", r.config.Interval))
		go r.worker()
	})
}

// Stop signals the worker and waits for an in-flight sweep to finish or ctx
// to expire. Safe to call more than once.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stopCh) })

	select {
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		r.logger.Warn("Quota reconciler shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs one sweep synchronously.
func (r *Reconciler) RunNow(ctx context.Context) ([]service.QuotaCorrection, error) {
	ctx = logging.MakeContextWithLogger(ctx, r.logger)
	ctx = logging.MakeContextWithNewRequestID(ctx)
	return r.quota.ReconcileAll(ctx)
}

func (r *Reconciler) worker() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.config.Timeout)
			corrections, err := r.RunNow(ctx)
			cancel()

			if err != nil {
				r.logger.Error("Quota reconciliation failed", slogext.Err(err))
				continue
			}
			r.logger.Info("Quota reconciliation finished", slog.Int("corrected_users", len(corrections)))

		case <-r.stopCh:
			return
		}
	}
}
