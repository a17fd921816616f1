package handler

import (
	"net/http"

	"github.com/S1riyS/drive-core/server/internal/middleware"
)

func (h *Handler) RegisterRoutes(mux *http.ServeMux, auth *middleware.Authenticator) {
	authed := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth.Authenticate(fn))
	}

	// System endpoints
	mux.HandleFunc("GET /health", h.HandleHealthCheck)

	// Public links
	mux.HandleFunc("GET /api/links/{token}", h.HandleResolveLink)
	mux.HandleFunc("GET /api/links/{token}/content", h.HandleDownloadByLink)

	// Files and folders
	authed("POST /api/folders", h.HandleCreateFolder)
	authed("POST /api/files", h.HandleUpload)
	authed("GET /api/files", h.HandleList)
	authed("GET /api/files/{id}", h.HandleGet)
	authed("DELETE /api/files/{id}", h.HandlePermanentlyDelete)
	authed("GET /api/files/{id}/content", h.HandleDownload)
	authed("PUT /api/files/{id}/content", h.HandleReplaceContent)
	authed("GET /api/files/{id}/path", h.HandlePath)
	authed("POST /api/files/{id}/rename", h.HandleRename)
	authed("POST /api/files/{id}/move", h.HandleMove)
	authed("POST /api/files/{id}/star", h.HandleStar)
	authed("DELETE /api/files/{id}/star", h.HandleUnstar)
	authed("POST /api/files/{id}/trash", h.HandleTrash)
	authed("POST /api/files/{id}/restore", h.HandleRestore)

	// Versions
	authed("GET /api/files/{id}/versions", h.HandleListVersions)
	authed("GET /api/files/{id}/versions/{n}/content", h.HandleDownloadVersion)
	authed("POST /api/files/{id}/versions/{n}/restore", h.HandleRestoreVersion)

	// Sharing
	authed("GET /api/files/{id}/shares", h.HandleListShares)
	authed("POST /api/files/{id}/shares", h.HandleShare)
	authed("POST /api/files/{id}/link", h.HandleGenerateLink)
	authed("PATCH /api/shares/{grantID}", h.HandleUpdateShare)
	authed("DELETE /api/shares/{grantID}", h.HandleRevokeShare)
	authed("GET /api/shared-with-me", h.HandleSharedWithMe)

	// Comments and activity
	authed("GET /api/files/{id}/comments", h.HandleListComments)
	authed("POST /api/files/{id}/comments", h.HandleAddComment)
	authed("GET /api/files/{id}/activity", h.HandleListActivity)

	// Batches and quota
	authed("POST /api/batch/{action}", h.HandleBatch)
	authed("GET /api/usage", h.HandleUsage)
}
