package service

import (
	"context"
	"log/slog"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/S1riyS/drive-core/server/pkg/logging"
)

// runBatch applies fn to every distinct id independently. One failure never
// stops or undoes the others.
func (s *driveService) runBatch(ctx context.Context, op string, ids []string, fn func(id string) error) (models.BatchResult, error) {
	if len(ids) == 0 {
		return models.BatchResult{}, newError(errkind.InvalidInput, "no ids given")
	}

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	result := models.BatchResult{
		Succeeded: make([]string, 0, len(ids)),
		Failed:    make([]models.BatchFailure, 0),
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if err := fn(id); err != nil {
			result.Failed = append(result.Failed, models.BatchFailure{
				ID:      id,
				Reason:  KindOf(err).String(),
				Message: err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	logger.Debug("Batch finished",
		slog.Int("succeeded", len(result.Succeeded)),
		slog.Int("failed", len(result.Failed)))
	return result, nil
}

func (s *driveService) BatchMove(ctx context.Context, actorID string, ids []string, parentID *string) (models.BatchResult, error) {
	return s.runBatch(ctx, "service.driveService.BatchMove", ids, func(id string) error {
		_, err := s.Move(ctx, actorID, id, parentID)
		return err
	})
}

func (s *driveService) BatchTrash(ctx context.Context, actorID string, ids []string) (models.BatchResult, error) {
	return s.runBatch(ctx, "service.driveService.BatchTrash", ids, func(id string) error {
		_, err := s.Trash(ctx, actorID, id)
		return err
	})
}

func (s *driveService) BatchRestore(ctx context.Context, actorID string, ids []string) (models.BatchResult, error) {
	return s.runBatch(ctx, "service.driveService.BatchRestore", ids, func(id string) error {
		_, err := s.Restore(ctx, actorID, id)
		return err
	})
}

func (s *driveService) BatchDelete(ctx context.Context, actorID string, ids []string) (models.BatchResult, error) {
	return s.runBatch(ctx, "service.driveService.BatchDelete", ids, func(id string) error {
		return s.PermanentlyDelete(ctx, actorID, id)
	})
}

func (s *driveService) BatchSetStarred(ctx context.Context, actorID string, ids []string, starred bool) (models.BatchResult, error) {
	return s.runBatch(ctx, "service.driveService.BatchSetStarred", ids, func(id string) error {
		_, err := s.SetStarred(ctx, actorID, id, starred)
		return err
	})
}
