package handler

import (
	"net/http"
	"strconv"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/S1riyS/drive-core/server/internal/service"
	"github.com/S1riyS/drive-core/server/pkg/httpjson"
)

type shareRequest struct {
	GranteeUserID string            `json:"grantee_user_id"`
	Permission    models.Permission `json:"permission"`
}

type permissionRequest struct {
	Permission models.Permission `json:"permission"`
}

type commentRequest struct {
	Body string `json:"body"`
}

type batchRequest struct {
	IDs      []string `json:"ids"`
	ParentID *string  `json:"parent_id"`
}

type linkResponse struct {
	Grant *models.ShareGrant `json:"grant"`
	Node  *models.FileNode   `json:"node"`
}

func (h *Handler) HandleReplaceContent(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleReplaceContent"

	if r.ContentLength < 0 {
		lengthRequired(w)
		return
	}

	in := service.ContentInput{
		ContentType: contentTypeOf(r),
		Size:        r.ContentLength,
		Content:     r.Body,
	}
	node, err := h.service.ReplaceContent(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, node)
}

func (h *Handler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleListVersions"

	versions, err := h.service.ListVersions(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if versions == nil {
		versions = []models.Version{}
	}
	_ = httpjson.Write(w, http.StatusOK, versions)
}

func (h *Handler) HandleDownloadVersion(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleDownloadVersion"

	number, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		badRequest(w, "version number must be an integer")
		return
	}

	id := r.PathValue("id")
	version, data, err := h.service.DownloadVersion(r.Context(), actor(r), id, number)
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	node, err := h.service.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	node.Size = version.Size
	writeContent(w, node, data)
}

func (h *Handler) HandleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleRestoreVersion"

	number, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		badRequest(w, "version number must be an integer")
		return
	}

	node, err := h.service.RestoreVersion(r.Context(), actor(r), r.PathValue("id"), number)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, node)
}

func (h *Handler) HandleShare(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleShare"

	var req shareRequest
	if err := httpjson.Decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	grant, err := h.service.Share(r.Context(), actor(r), r.PathValue("id"), req.GranteeUserID, req.Permission)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusCreated, grant)
}

func (h *Handler) HandleGenerateLink(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleGenerateLink"

	var req permissionRequest
	if err := httpjson.Decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	grant, err := h.service.GenerateLink(r.Context(), actor(r), r.PathValue("id"), req.Permission)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, grant)
}

func (h *Handler) HandleListShares(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleListShares"

	grants, err := h.service.ListShares(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if grants == nil {
		grants = []models.ShareGrant{}
	}
	_ = httpjson.Write(w, http.StatusOK, grants)
}

func (h *Handler) HandleUpdateShare(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleUpdateShare"

	var req permissionRequest
	if err := httpjson.Decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	grant, err := h.service.UpdateSharePermission(r.Context(), actor(r), r.PathValue("grantID"), req.Permission)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, grant)
}

func (h *Handler) HandleRevokeShare(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleRevokeShare"

	if err := h.service.RevokeShare(r.Context(), actor(r), r.PathValue("grantID")); err != nil {
		writeError(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSharedWithMe(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleSharedWithMe"

	items, err := h.service.SharedWithMe(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if items == nil {
		items = []models.SharedItem{}
	}
	_ = httpjson.Write(w, http.StatusOK, items)
}

func (h *Handler) HandleResolveLink(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleResolveLink"

	grant, node, err := h.service.ResolveLink(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, linkResponse{Grant: grant, Node: node})
}

func (h *Handler) HandleDownloadByLink(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleDownloadByLink"

	node, data, err := h.service.DownloadByLink(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeContent(w, node, data)
}

func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleAddComment"

	var req commentRequest
	if err := httpjson.Decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	comment, err := h.service.AddComment(r.Context(), actor(r), r.PathValue("id"), req.Body)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusCreated, comment)
}

func (h *Handler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleListComments"

	comments, err := h.service.ListComments(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	_ = httpjson.Write(w, http.StatusOK, comments)
}

func (h *Handler) HandleListActivity(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleListActivity"

	limit, err := parseInt(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	activity, err := h.service.ListActivity(r.Context(), actor(r), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if activity == nil {
		activity = []models.Activity{}
	}
	_ = httpjson.Write(w, http.StatusOK, activity)
}

// HandleBatch applies one action to many nodes and always answers 200 with
// the per-item report, unless the request itself is malformed.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleBatch"

	var req batchRequest
	if err := httpjson.Decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	ctx, userID := r.Context(), actor(r)

	var (
		result models.BatchResult
		err    error
	)
	switch r.PathValue("action") {
	case "move":
		result, err = h.service.BatchMove(ctx, userID, req.IDs, req.ParentID)
	case "trash":
		result, err = h.service.BatchTrash(ctx, userID, req.IDs)
	case "restore":
		result, err = h.service.BatchRestore(ctx, userID, req.IDs)
	case "delete":
		result, err = h.service.BatchDelete(ctx, userID, req.IDs)
	case "star":
		result, err = h.service.BatchSetStarred(ctx, userID, req.IDs, true)
	case "unstar":
		result, err = h.service.BatchSetStarred(ctx, userID, req.IDs, false)
	default:
		_ = httpjson.Error(w, http.StatusNotFound, errkind.NotFound.String(), "unknown batch action")
		return
	}
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	if result.Succeeded == nil {
		result.Succeeded = []string{}
	}
	if result.Failed == nil {
		result.Failed = []models.BatchFailure{}
	}
	_ = httpjson.Write(w, http.StatusOK, result)
}
