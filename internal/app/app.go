// Package app assembles the drive service from configuration and runs its
// HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/S1riyS/drive-core/server/internal/audit"
	"github.com/S1riyS/drive-core/server/internal/blobstore"
	blobbadger "github.com/S1riyS/drive-core/server/internal/blobstore/badger"
	blobfs "github.com/S1riyS/drive-core/server/internal/blobstore/fs"
	blobmem "github.com/S1riyS/drive-core/server/internal/blobstore/memory"
	blobpg "github.com/S1riyS/drive-core/server/internal/blobstore/postgres"
	blobs3 "github.com/S1riyS/drive-core/server/internal/blobstore/s3"
	"github.com/S1riyS/drive-core/server/internal/config"
	"github.com/S1riyS/drive-core/server/internal/handler"
	"github.com/S1riyS/drive-core/server/internal/metrics"
	"github.com/S1riyS/drive-core/server/internal/middleware"
	"github.com/S1riyS/drive-core/server/internal/reconcile"
	"github.com/S1riyS/drive-core/server/internal/repository"
	"github.com/S1riyS/drive-core/server/internal/repository/memory"
	"github.com/S1riyS/drive-core/server/internal/service"
	"github.com/S1riyS/drive-core/server/pkg/database"
	"github.com/S1riyS/drive-core/server/pkg/database/postgresql"
	"github.com/S1riyS/drive-core/server/pkg/logging"
	"github.com/S1riyS/drive-core/server/pkg/logging/slogext"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool      *pgxpool.Pool
	blobs     blobstore.Store
	auditFile io.Closer

	service    service.DriveService
	reconciler *reconcile.Reconciler
	auth       *middleware.Authenticator
	handler    http.Handler
	server     *http.Server
}

// metadata bundles the repositories of one metadata backend.
type metadata struct {
	tx         database.Transactor
	files      repository.FileRepository
	versions   repository.VersionRepository
	shares     repository.ShareRepository
	quotas     repository.QuotaRepository
	comments   repository.CommentRepository
	activities repository.ActivityRepository
}

// New opens every backend named by cfg. On error anything already opened is
// closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	const op = "app.New"

	ctx = logging.MakeContextWithLogger(ctx, logger)
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	meta, err := a.openMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		registry *prometheus.Registry
		m        *metrics.Metrics
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(registry)
	}

	blobs, err := a.openBlobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.blobs = blobs
	if m != nil {
		blobs = blobstore.Instrument(blobs, m)
	}

	auditLog, err := a.openAuditLog()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.service = service.NewDriveService(service.Deps{
		Transactor: meta.tx,
		Blobs:      blobs,
		Directory:  service.NewDirectory(meta.files, time.Now),
		Versions:   service.NewVersionLedger(meta.versions),
		Quota:      service.NewQuotaLedger(meta.tx, meta.quotas, meta.files),
		Shares:     service.NewShareRegistry(meta.shares, meta.files, time.Now),
		Comments:   meta.comments,
		Activities: meta.activities,
		Audit: audit.Multi(
			audit.NewZerologSink(auditLog),
			audit.NewRepositorySink(meta.activities),
		),
		Metrics: m,
	}, service.Options{
		CascadeTrash:   cfg.Trash.Cascade,
		MaxUploadBytes: cfg.App.MaxUploadBytes,
	})

	a.reconciler = reconcile.New(a.service, reconcile.Config{Interval: cfg.Quota.ReconcileInterval}, logger)
	a.auth = middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	mux := http.NewServeMux()
	handler.NewHandler(a.service).RegisterRoutes(mux, a.auth)
	if registry != nil {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	a.handler = middleware.RequestIDMiddleware(middleware.Logging(logger)(mux))

	a.server = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.App.DefaultTimeout,
		IdleTimeout:       2 * cfg.App.DefaultTimeout,
	}

	return a, nil
}

func (a *App) openMetadata(ctx context.Context) (*metadata, error) {
	switch a.cfg.Metadata.Backend {
	case config.MetadataBackendMemory:
		a.logger.Warn("Using in-memory metadata, nothing survives a restart")
		store := memory.NewStore(a.cfg.Quota.DefaultLimit)
		return &metadata{
			tx:         store,
			files:      store.Files(),
			versions:   store.Versions(),
			shares:     store.Shares(),
			quotas:     store.Quotas(),
			comments:   store.Comments(),
			activities: store.Activities(),
		}, nil

	case config.MetadataBackendPostgres:
		pool, err := postgresql.NewClient(ctx, a.cfg.Database)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		return &metadata{
			tx:         postgresql.NewTransactor(pool),
			files:      repository.NewFileRepository(pool),
			versions:   repository.NewVersionRepository(pool),
			shares:     repository.NewShareRepository(pool),
			quotas:     repository.NewQuotaRepository(pool, a.cfg.Quota.DefaultLimit),
			comments:   repository.NewCommentRepository(pool),
			activities: repository.NewActivityRepository(pool),
		}, nil

	default:
		return nil, fmt.Errorf("unknown metadata backend %q", a.cfg.Metadata.Backend)
	}
}

func (a *App) openBlobs(ctx context.Context) (blobstore.Store, error) {
	cfg := a.cfg.Blob
	a.logger.Info("Opening blob store", slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BlobBackendMemory:
		return blobmem.New(), nil

	case config.BlobBackendFS:
		return blobfs.New(cfg.FS.Root)

	case config.BlobBackendBadger:
		return blobbadger.New(blobbadger.Config{Path: cfg.Badger.Path, InMemory: cfg.Badger.InMemory})

	case config.BlobBackendS3:
		client, err := blobs3.NewClient(ctx, blobs3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			KeyPrefix:       cfg.S3.KeyPrefix,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return blobs3.New(ctx, client, cfg.S3.Bucket, cfg.S3.KeyPrefix)

	case config.BlobBackendPostgres:
		if a.pool == nil {
			return nil, errors.New("postgres blob backend requires postgres metadata")
		}
		return blobpg.New(a.pool), nil

	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}

// openAuditLog returns the zerolog stream audit events are written to.
func (a *App) openAuditLog() (zerolog.Logger, error) {
	var out io.Writer = os.Stdout
	if path := a.cfg.Logging.AuditFile; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("open audit log: %w", err)
		}
		a.auditFile = f
		out = f
	}
	return zerolog.New(out).With().Timestamp().Str("stream", "audit").Logger(), nil
}

func (a *App) Service() service.DriveService {
	return a.service
}

func (a *App) Reconciler() *reconcile.Reconciler {
	return a.reconciler
}

func (a *App) Authenticator() *middleware.Authenticator {
	return a.auth
}

// Handler is the fully wrapped HTTP handler the server serves.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP and the background reconciler until ctx is done, then
// shuts both down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	const op = "app.Run"

	a.reconciler.Start()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case err := <-errCh:
		a.logger.Error("HTTP server failed", slogext.Err(err))
		runErr = fmt.Errorf("%s: %w", op, err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", slogext.Err(err))
	}
	if err := a.reconciler.Stop(shutdownCtx); err != nil {
		a.logger.Error("Reconciler shutdown error", slogext.Err(err))
	}

	a.logger.Info("Server stopped")
	return runErr
}

// Close releases every backend. It is safe on a partially built App.
func (a *App) Close() error {
	var errs []error
	if a.blobs != nil {
		errs = append(errs, a.blobs.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.auditFile != nil {
		errs = append(errs, a.auditFile.Close())
	}
	return errors.Join(errs...)
}
