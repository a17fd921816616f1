package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/S1riyS/drive-core/server/internal/middleware"
	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/S1riyS/drive-core/server/internal/service"
	"github.com/S1riyS/drive-core/server/pkg/httpjson"
	"github.com/S1riyS/drive-core/server/pkg/logging"
	"github.com/S1riyS/drive-core/server/pkg/logging/slogext"
)

type Handler struct {
	service service.DriveService
}

func NewHandler(service service.DriveService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	_ = httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok", "service": "drive-core"})
}

// actor returns the authenticated caller. Routes behind Authenticate always
// have one.
func actor(r *http.Request) string {
	id, _ := middleware.UserIDFromContext(r.Context())
	return id
}

func statusFor(kind errkind.Kind) int {
	switch kind {
	case errkind.NotFound:
		return http.StatusNotFound
	case errkind.AccessDenied:
		return http.StatusForbidden
	case errkind.InvalidInput:
		return http.StatusBadRequest
	case errkind.QuotaExceeded:
		return http.StatusInsufficientStorage
	case errkind.Conflict:
		return http.StatusConflict
	case errkind.ContentMissing:
		return http.StatusGone
	case errkind.StorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := service.KindOf(err)

	msg := "internal error"
	var se *service.ServiceError
	if errors.As(err, &se) {
		msg = se.Message
	}

	logger := logging.GetLoggerFromContextWithOp(r.Context(), op)
	if kind == errkind.Internal || kind == errkind.StorageUnavailable {
		logger.Error("Request failed", slogext.Err(err))
	} else {
		logger.Debug("Request rejected", slogext.Err(err), slog.String("kind", kind.String()))
	}

	_ = httpjson.Error(w, statusFor(kind), kind.String(), msg)
}

func badRequest(w http.ResponseWriter, msg string) {
	_ = httpjson.Error(w, http.StatusBadRequest, errkind.InvalidInput.String(), msg)
}

func lengthRequired(w http.ResponseWriter) {
	_ = httpjson.Error(w, http.StatusLengthRequired, errkind.InvalidInput.String(), "Content-Length is required")
}

// writeContent streams a file's bytes as an attachment.
func writeContent(w http.ResponseWriter, node *models.FileNode, data []byte) {
	contentType := "application/octet-stream"
	if node.ContentType != nil && *node.ContentType != "" {
		contentType = *node.ContentType
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": node.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
