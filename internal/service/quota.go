package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/S1riyS/drive-core/server/internal/repository"
	"github.com/S1riyS/drive-core/server/pkg/database"
	"github.com/S1riyS/drive-core/server/pkg/logging"
)

// QuotaLedger tracks storage used per user. The recorded value is a cached
// projection of the live file sizes; RecomputeFromScratch repairs drift.
type QuotaLedger interface {
	Adjust(ctx context.Context, userID string, delta int64) (models.Usage, error)
	WouldExceed(ctx context.Context, userID string, additional int64) (bool, error)
	Usage(ctx context.Context, userID string) (models.Usage, error)
	SetLimit(ctx context.Context, userID string, limit int64) error
	// RecomputeFromScratch returns actual minus recorded usage.
	RecomputeFromScratch(ctx context.Context, userID string) (int64, error)
	Users(ctx context.Context) ([]string, error)
}

type quotaLedger struct {
	tx     database.Transactor
	quotas repository.QuotaRepository
	files  repository.FileRepository
}

func NewQuotaLedger(tx database.Transactor, quotas repository.QuotaRepository, files repository.FileRepository) QuotaLedger {
	return &quotaLedger{tx: tx, quotas: quotas, files: files}
}

func (l *quotaLedger) Adjust(ctx context.Context, userID string, delta int64) (models.Usage, error) {
	const op = "service.quotaLedger.Adjust"

	usage, err := l.quotas.Adjust(ctx, userID, delta)
	if err != nil {
		return models.Usage{}, fmt.Errorf("%s: %w", op, err)
	}
	// Left negative on purpose so reconciliation can see and repair it.
	if usage.StorageUsed < 0 {
		logging.GetLoggerFromContextWithOp(ctx, op).Warn("Recorded usage went negative",
			slog.String("user_id", userID),
			slog.Int64("delta", delta),
			slog.Int64("storage_used", usage.StorageUsed),
		)
	}
	return usage, nil
}

func (l *quotaLedger) WouldExceed(ctx context.Context, userID string, additional int64) (bool, error) {
	const op = "service.quotaLedger.WouldExceed"

	usage, err := l.quotas.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return usage.StorageUsed+max(additional, 0) > usage.StorageLimit, nil
}

func (l *quotaLedger) Usage(ctx context.Context, userID string) (models.Usage, error) {
	const op = "service.quotaLedger.Usage"

	usage, err := l.quotas.Get(ctx, userID)
	if err != nil {
		return models.Usage{}, fmt.Errorf("%s: %w", op, err)
	}
	return usage, nil
}

func (l *quotaLedger) SetLimit(ctx context.Context, userID string, limit int64) error {
	const op = "service.quotaLedger.SetLimit"

	if limit < 0 {
		return newError(errkind.InvalidInput, "limit must not be negative")
	}
	if err := l.quotas.SetLimit(ctx, userID, limit); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (l *quotaLedger) RecomputeFromScratch(ctx context.Context, userID string) (int64, error) {
	const op = "service.quotaLedger.RecomputeFromScratch"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	var drift int64
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Lock the quota row first so uploads cannot slip in between the sum
		// and the write.
		usage, err := l.quotas.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		actual, err := l.files.SumFileSizes(ctx, userID)
		if err != nil {
			return err
		}

		drift = actual - usage.StorageUsed
		if drift == 0 {
			return nil
		}
		return l.quotas.SetUsed(ctx, userID, actual)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if drift != 0 {
		logger.Warn("Quota drift corrected", slog.String("user_id", userID), slog.Int64("drift", drift))
	}
	return drift, nil
}

// Users lists everyone with a quota record or at least one file.
func (l *quotaLedger) Users(ctx context.Context) ([]string, error) {
	const op = "service.quotaLedger.Users"

	withQuota, err := l.quotas.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	withFiles, err := l.files.ListOwnerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	seen := make(map[string]struct{}, len(withQuota)+len(withFiles))
	users := make([]string, 0, len(withQuota)+len(withFiles))
	for _, id := range append(withQuota, withFiles...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		users = append(users, id)
	}
	return users, nil
}
