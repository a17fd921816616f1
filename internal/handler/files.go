package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/service"
	"github.com/S1riyS/drive-core/server/pkg/httpjson"
)

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type moveRequest struct {
	// ParentID nil moves the node to the root.
	ParentID *string `json:"parent_id"`
}

func (h *Handler) HandleCreateFolder(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleCreateFolder"

	var req createFolderRequest
	if err := httpjson.Decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	node, err := h.service.CreateFolder(r.Context(), actor(r), req.Name, req.ParentID)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusCreated, node)
}

// HandleUpload takes the raw body as the file content. The name comes from
// the "name" query parameter and the size from Content-Length.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleUpload"

	query := r.URL.Query()
	if r.ContentLength < 0 {
		lengthRequired(w)
		return
	}

	in := service.UploadInput{
		Name:        query.Get("name"),
		ContentType: contentTypeOf(r),
		Size:        r.ContentLength,
		ParentID:    optionalQuery(query.Get("parent_id")),
		Content:     r.Body,
	}

	node, err := h.service.Upload(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusCreated, node)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleGet"

	node, err := h.service.Get(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, node)
}

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleDownload"

	node, data, err := h.service.Download(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeContent(w, node, data)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleList"

	filter, err := parseListFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	nodes, err := h.service.List(r.Context(), actor(r), filter)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if nodes == nil {
		nodes = []models.FileNode{}
	}
	_ = httpjson.Write(w, http.StatusOK, nodes)
}

func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleRename"

	var req renameRequest
	if err := httpjson.Decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	node, err := h.service.Rename(r.Context(), actor(r), r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, node)
}

func (h *Handler) HandleMove(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleMove"

	var req moveRequest
	if err := httpjson.Decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	node, err := h.service.Move(r.Context(), actor(r), r.PathValue("id"), req.ParentID)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, node)
}

func (h *Handler) HandleStar(w http.ResponseWriter, r *http.Request) {
	h.setStarred(w, r, true)
}

func (h *Handler) HandleUnstar(w http.ResponseWriter, r *http.Request) {
	h.setStarred(w, r, false)
}

func (h *Handler) setStarred(w http.ResponseWriter, r *http.Request, starred bool) {
	const op = "handler.setStarred"

	node, err := h.service.SetStarred(r.Context(), actor(r), r.PathValue("id"), starred)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, node)
}

func (h *Handler) HandlePath(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandlePath"

	path, err := h.service.ResolveAncestryPath(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, path)
}

func (h *Handler) HandleTrash(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleTrash"

	node, err := h.service.Trash(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, node)
}

func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleRestore"

	node, err := h.service.Restore(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, node)
}

func (h *Handler) HandlePermanentlyDelete(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandlePermanentlyDelete"

	if err := h.service.PermanentlyDelete(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	const op = "handler.HandleUsage"

	usage, err := h.service.Usage(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	_ = httpjson.Write(w, http.StatusOK, usage)
}

func contentTypeOf(r *http.Request) *string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return nil
	}
	return &ct
}

func optionalQuery(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func parseListFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()
	filter := models.ListFilter{
		ParentID:    optionalQuery(q.Get("parent_id")),
		NameQuery:   q.Get("q"),
		ContentType: q.Get("content_type"),
		SortBy:      models.SortField(q.Get("sort")),
		SortOrder:   models.SortOrder(strings.ToLower(q.Get("order"))),
	}

	var err error
	if filter.RootOnly, err = parseBool(q.Get("root_only"), "root_only"); err != nil {
		return filter, err
	}
	if filter.Trashed, err = parseBool(q.Get("trashed"), "trashed"); err != nil {
		return filter, err
	}
	if v := q.Get("starred"); v != "" {
		starred, err := strconv.ParseBool(v)
		if err != nil {
			return filter, paramError("starred")
		}
		filter.Starred = &starred
	}

	switch q.Get("type") {
	case "":
	case "file":
		t := models.NodeTypeFile
		filter.Type = &t
	case "folder":
		t := models.NodeTypeFolder
		filter.Type = &t
	default:
		return filter, paramError("type")
	}

	times := []struct {
		name string
		dst  **time.Time
	}{
		{"created_after", &filter.CreatedAfter},
		{"created_before", &filter.CreatedBefore},
		{"modified_after", &filter.ModifiedAfter},
		{"modified_before", &filter.ModifiedBefore},
	}
	for _, p := range times {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, paramError(p.name)
		}
		*p.dst = &t
	}

	sizes := []struct {
		name string
		dst  **int64
	}{
		{"min_size", &filter.MinSize},
		{"max_size", &filter.MaxSize},
	}
	for _, p := range sizes {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, paramError(p.name)
		}
		*p.dst = &n
	}

	if filter.Limit, err = parseInt(q.Get("limit"), "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseInt(q.Get("offset"), "offset"); err != nil {
		return filter, err
	}

	return filter, nil
}

type paramError string

func (e paramError) Error() string {
	return "invalid query parameter " + strconv.Quote(string(e))
}

func parseBool(v string, name string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, paramError(name)
	}
	return b, nil
}

func parseInt(v string, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, paramError(name)
	}
	return n, nil
}
