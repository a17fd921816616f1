package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/S1riyS/drive-core/server/internal/audit"
	"github.com/S1riyS/drive-core/server/internal/blobstore"
	"github.com/S1riyS/drive-core/server/internal/metrics"
	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/S1riyS/drive-core/server/internal/pkg/locker"
	"github.com/S1riyS/drive-core/server/internal/repository"
	"github.com/S1riyS/drive-core/server/pkg/database"
	"github.com/S1riyS/drive-core/server/pkg/logging"
	"github.com/S1riyS/drive-core/server/pkg/logging/slogext"
)

// UploadInput describes new content. Size is the declared length of Content;
// the stream must deliver exactly that many bytes.
type UploadInput struct {
	Name        string
	ContentType *string
	Size        int64
	ParentID    *string
	Content     io.Reader
}

type ContentInput struct {
	ContentType *string
	Size        int64
	Content     io.Reader
}

type QuotaCorrection struct {
	UserID string `json:"user_id"`
	Drift  int64  `json:"drift"`
}

// DriveService is the lifecycle orchestrator. actorID is the user on whose
// behalf the call is made.
type DriveService interface {
	CreateFolder(ctx context.Context, actorID string, name string, parentID *string) (*models.FileNode, error)
	Upload(ctx context.Context, actorID string, in UploadInput) (*models.FileNode, error)
	Get(ctx context.Context, actorID string, id string) (*models.FileNode, error)
	Download(ctx context.Context, actorID string, id string) (*models.FileNode, []byte, error)
	List(ctx context.Context, actorID string, filter models.ListFilter) ([]models.FileNode, error)
	Rename(ctx context.Context, actorID string, id string, name string) (*models.FileNode, error)
	Move(ctx context.Context, actorID string, id string, parentID *string) (*models.FileNode, error)
	SetStarred(ctx context.Context, actorID string, id string, starred bool) (*models.FileNode, error)
	ResolveAncestryPath(ctx context.Context, actorID string, id string) ([]models.PathEntry, error)

	Trash(ctx context.Context, actorID string, id string) (*models.FileNode, error)
	Restore(ctx context.Context, actorID string, id string) (*models.FileNode, error)
	PermanentlyDelete(ctx context.Context, actorID string, id string) error

	ReplaceContent(ctx context.Context, actorID string, id string, in ContentInput) (*models.FileNode, error)
	ListVersions(ctx context.Context, actorID string, id string) ([]models.Version, error)
	DownloadVersion(ctx context.Context, actorID string, id string, number int) (*models.Version, []byte, error)
	RestoreVersion(ctx context.Context, actorID string, id string, number int) (*models.FileNode, error)

	Share(ctx context.Context, actorID string, id string, granteeUserID string, permission models.Permission) (*models.ShareGrant, error)
	UpdateSharePermission(ctx context.Context, actorID string, grantID string, permission models.Permission) (*models.ShareGrant, error)
	RevokeShare(ctx context.Context, actorID string, grantID string) error
	GenerateLink(ctx context.Context, actorID string, id string, permission models.Permission) (*models.ShareGrant, error)
	ListShares(ctx context.Context, actorID string, id string) ([]models.ShareGrant, error)
	SharedWithMe(ctx context.Context, actorID string) ([]models.SharedItem, error)
	ResolveLink(ctx context.Context, token string) (*models.ShareGrant, *models.FileNode, error)
	DownloadByLink(ctx context.Context, token string) (*models.FileNode, []byte, error)

	AddComment(ctx context.Context, actorID string, id string, body string) (*models.Comment, error)
	ListComments(ctx context.Context, actorID string, id string) ([]models.Comment, error)
	ListActivity(ctx context.Context, actorID string, id string, limit int) ([]models.Activity, error)

	BatchMove(ctx context.Context, actorID string, ids []string, parentID *string) (models.BatchResult, error)
	BatchTrash(ctx context.Context, actorID string, ids []string) (models.BatchResult, error)
	BatchRestore(ctx context.Context, actorID string, ids []string) (models.BatchResult, error)
	BatchDelete(ctx context.Context, actorID string, ids []string) (models.BatchResult, error)
	BatchSetStarred(ctx context.Context, actorID string, ids []string, starred bool) (models.BatchResult, error)

	Usage(ctx context.Context, actorID string) (models.Usage, error)
	ReconcileQuota(ctx context.Context, userID string) (int64, error)
	ReconcileAll(ctx context.Context) ([]QuotaCorrection, error)
}

type Deps struct {
	Transactor database.Transactor
	Blobs      blobstore.Store
	Directory  Directory
	Versions   VersionLedger
	Quota      QuotaLedger
	Shares     ShareRegistry
	Comments   repository.CommentRepository
	Activities repository.ActivityRepository
	Audit      audit.Sink
	Metrics    *metrics.Metrics
	Locker     *locker.Locker
}

type Options struct {
	// CascadeTrash makes trash, restore and permanent delete of a folder
	// apply to its whole subtree.
	CascadeTrash bool
	// MaxUploadBytes caps a single upload. Zero means no cap.
	MaxUploadBytes int64
	Now            func() time.Time
}

type driveService struct {
	tx         database.Transactor
	blobs      blobstore.Store
	directory  Directory
	versions   VersionLedger
	quota      QuotaLedger
	shares     ShareRegistry
	comments   repository.CommentRepository
	activities repository.ActivityRepository
	audit      audit.Sink
	metrics    *metrics.Metrics
	locks      *locker.Locker
	opts       Options
}

func NewDriveService(deps Deps, opts Options) DriveService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop()
	}
	if deps.Locker == nil {
		deps.Locker = locker.New()
	}

	return &driveService{
		tx:         deps.Transactor,
		blobs:      deps.Blobs,
		directory:  deps.Directory,
		versions:   deps.Versions,
		quota:      deps.Quota,
		shares:     deps.Shares,
		comments:   deps.Comments,
		activities: deps.Activities,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		locks:      deps.Locker,
		opts:       opts,
	}
}

func nodeKey(id string) string {
	return "node:" + id
}

func userKey(id string) string {
	return "user:" + id
}

// withNode serialises work on one node. The node is re-read inside the
// transaction and handed to fn. With lockOwner the owner's quota key is held
// too.
func (s *driveService) withNode(ctx context.Context, id string, lockOwner bool, fn func(ctx context.Context, node *models.FileNode) error) error {
	node, err := s.directory.Get(ctx, id)
	if err != nil {
		return err
	}

	keys := []string{nodeKey(id)}
	if lockOwner {
		keys = append(keys, userKey(node.OwnerID))
	}
	unlock := s.locks.LockMany(keys...)
	defer unlock()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		node, err := s.directory.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		return fn(ctx, node)
	})
}

func (s *driveService) authorize(ctx context.Context, node *models.FileNode, actorID string, required models.Permission) error {
	p, err := s.shares.PermissionFor(ctx, node, actorID)
	if err != nil {
		return err
	}
	if !p.AtLeast(required) {
		return newError(errkind.AccessDenied, "%s access required", required)
	}
	return nil
}

// emit records audit events after commit. A failing sink never fails the
// operation that already happened.
func (s *driveService) emit(ctx context.Context, events ...audit.Event) {
	logger := logging.GetLoggerFromContext(ctx)
	for _, e := range events {
		if e.At.IsZero() {
			e.At = s.opts.Now()
		}
		if err := s.audit.Record(ctx, e); err != nil {
			logger.Warn("Failed to record audit event", slogext.Err(err), slog.String("verb", e.Verb))
		}
	}
}

func (s *driveService) observe(operation string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = KindOf(err).String()
	}
	s.metrics.ObserveOperation(operation, status, started)
}

// releaseBlobs deletes blobs no longer referenced by committed metadata.
// Failures only leave orphans behind, so they are logged and skipped.
func (s *driveService) releaseBlobs(ctx context.Context, handles ...string) {
	logger := logging.GetLoggerFromContext(ctx)
	for _, h := range handles {
		if h == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, h); err != nil {
			logger.Warn("Failed to release blob", slogext.Err(err), slog.String("handle", h))
		}
	}
}

func (s *driveService) readBlob(ctx context.Context, node *models.FileNode) ([]byte, error) {
	if node.ContentHandle == nil {
		return nil, newError(errkind.ContentMissing, "file has no content")
	}
	data, err := s.blobs.Get(ctx, *node.ContentHandle)
	if err != nil {
		return nil, blobError(err, "failed to read content")
	}
	return data, nil
}

// readContent reads exactly size bytes from r. A shorter or longer stream
// is rejected.
func (s *driveService) readContent(r io.Reader, size int64) ([]byte, error) {
	if size < 0 {
		return nil, newError(errkind.InvalidInput, "size must not be negative")
	}
	if s.opts.MaxUploadBytes > 0 && size > s.opts.MaxUploadBytes {
		return nil, newError(errkind.InvalidInput, "file exceeds the %d byte upload limit", s.opts.MaxUploadBytes)
	}
	if r == nil {
		r = eofReader{}
	}

	data, err := io.ReadAll(io.LimitReader(r, size+1))
	if err != nil {
		return nil, &ServiceError{Kind: errkind.InvalidInput, Message: "failed to read content", Err: err}
	}
	if int64(len(data)) != size {
		return nil, newError(errkind.InvalidInput, "content length does not match declared size %d", size)
	}
	return data, nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) {
	return 0, io.EOF
}

// wrapUnexpected adds op context to anything that is not already a service
// error.
func wrapUnexpected(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
