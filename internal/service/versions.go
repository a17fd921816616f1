package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/S1riyS/drive-core/server/internal/repository"
	"github.com/S1riyS/drive-core/server/pkg/logging"
)

// VersionLedger keeps the gap-free history of a file's content.
type VersionLedger interface {
	// LatestVersionNumber returns 0 when the file has no history yet.
	LatestVersionNumber(ctx context.Context, fileID string) (int, error)
	// RecordVersion accepts only latest+1.
	RecordVersion(ctx context.Context, version models.Version) (*models.Version, error)
	FindVersion(ctx context.Context, fileID string, number int) (*models.Version, error)
	ListVersions(ctx context.Context, fileID string) ([]models.Version, error)
	// ReferencesHandle reports whether any version of the file points at handle.
	ReferencesHandle(ctx context.Context, fileID string, handle string) (bool, error)
	// Purge drops the whole history and returns it so blobs can be released.
	Purge(ctx context.Context, fileID string) ([]models.Version, error)
}

type versionLedger struct {
	versions repository.VersionRepository
}

func NewVersionLedger(versions repository.VersionRepository) VersionLedger {
	return &versionLedger{versions: versions}
}

func (l *versionLedger) LatestVersionNumber(ctx context.Context, fileID string) (int, error) {
	const op = "service.versionLedger.LatestVersionNumber"

	n, err := l.versions.LatestNumber(ctx, fileID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (l *versionLedger) RecordVersion(ctx context.Context, version models.Version) (*models.Version, error) {
	const op = "service.versionLedger.RecordVersion"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if version.VersionNumber <= 0 {
		return nil, newError(errkind.InvalidInput, "version number must be positive")
	}

	latest, err := l.versions.LatestNumber(ctx, version.FileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if version.VersionNumber != latest+1 {
		logger.Debug("Rejecting out of sequence version",
			slog.String("file_id", version.FileID),
			slog.Int("version", version.VersionNumber),
			slog.Int("latest", latest))
		return nil, newError(errkind.Conflict, "version %d is out of sequence, next is %d", version.VersionNumber, latest+1)
	}

	if err := l.versions.Create(ctx, &version); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(errkind.Conflict, "version %d already exists", version.VersionNumber)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &version, nil
}

func (l *versionLedger) FindVersion(ctx context.Context, fileID string, number int) (*models.Version, error) {
	const op = "service.versionLedger.FindVersion"

	if number <= 0 {
		return nil, newError(errkind.InvalidInput, "version number must be positive")
	}

	v, err := l.versions.Find(ctx, fileID, number)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if v == nil {
		return nil, newError(errkind.NotFound, "version %d not found", number)
	}
	return v, nil
}

func (l *versionLedger) ListVersions(ctx context.Context, fileID string) ([]models.Version, error) {
	const op = "service.versionLedger.ListVersions"

	versions, err := l.versions.List(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return versions, nil
}

func (l *versionLedger) ReferencesHandle(ctx context.Context, fileID string, handle string) (bool, error) {
	const op = "service.versionLedger.ReferencesHandle"

	ok, err := l.versions.ReferencesHandle(ctx, fileID, handle)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

func (l *versionLedger) Purge(ctx context.Context, fileID string) ([]models.Version, error) {
	const op = "service.versionLedger.Purge"

	removed, err := l.versions.DeleteByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return removed, nil
}
