package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/pkg/logging"
	"github.com/S1riyS/drive-core/server/pkg/logging/slogext"
)

func (s *driveService) Usage(ctx context.Context, actorID string) (usage models.Usage, err error) {
	const op = "service.driveService.Usage"
	defer func(started time.Time) { s.observe("usage", started, err) }(time.Now())

	usage, err = s.quota.Usage(ctx, actorID)
	if err != nil {
		return models.Usage{}, wrapUnexpected(op, err)
	}
	return usage, nil
}

// ReconcileQuota resets a user's recorded usage to the sum of their live file
// sizes and returns the correction applied.
func (s *driveService) ReconcileQuota(ctx context.Context, userID string) (drift int64, err error) {
	const op = "service.driveService.ReconcileQuota"
	defer func(started time.Time) { s.observe("reconcile_quota", started, err) }(time.Now())

	unlock := s.locks.Lock(userKey(userID))
	defer unlock()

	drift, err = s.quota.RecomputeFromScratch(ctx, userID)
	if err != nil {
		return 0, wrapUnexpected(op, err)
	}
	s.metrics.ObserveQuotaDrift(drift)
	return drift, nil
}

// ReconcileAll reconciles every known user. A failure for one user is logged
// and does not stop the sweep.
func (s *driveService) ReconcileAll(ctx context.Context) ([]QuotaCorrection, error) {
	const op = "service.driveService.ReconcileAll"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	users, err := s.quota.Users(ctx)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	var corrections []QuotaCorrection
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return corrections, err
		}

		drift, err := s.ReconcileQuota(ctx, userID)
		if err != nil {
			logger.Error("Failed to reconcile quota", slogext.Err(err), slog.String("user_id", userID))
			continue
		}
		if drift != 0 {
			corrections = append(corrections, QuotaCorrection{UserID: userID, Drift: drift})
		}
	}

	logger.Debug("Quota sweep finished",
		slog.Int("users", len(users)),
		slog.Int("corrected", len(corrections)))
	return corrections, nil
}
