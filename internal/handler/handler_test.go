package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/S1riyS/drive-core/server/internal/audit"
	blobmem "github.com/S1riyS/drive-core/server/internal/blobstore/memory"
	"github.com/S1riyS/drive-core/server/internal/middleware"
	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/repository/memory"
	"github.com/S1riyS/drive-core/server/internal/service"
	"github.com/S1riyS/drive-core/server/pkg/httpjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "alice"
	bob   = "bob"
)

type testServer struct {
	t      *testing.T
	server *httptest.Server
	auth   *middleware.Authenticator
}

func newTestServer(t *testing.T, limit int64) *testServer {
	t.Helper()

	store := memory.NewStore(limit)
	svc := service.NewDriveService(service.Deps{
		Transactor: store,
		Blobs:      blobmem.New(),
		Directory:  service.NewDirectory(store.Files(), time.Now),
		Versions:   service.NewVersionLedger(store.Versions()),
		Quota:      service.NewQuotaLedger(store, store.Quotas(), store.Files()),
		Shares:     service.NewShareRegistry(store.Shares(), store.Files(), time.Now),
		Comments:   store.Comments(),
		Activities: store.Activities(),
		Audit:      audit.NewRepositorySink(store.Activities()),
	}, service.Options{CascadeTrash: true})

	auth := middleware.NewAuthenticator("test-secret", "drive-core")
	mux := http.NewServeMux()
	NewHandler(svc).RegisterRoutes(mux, auth)

	server := httptest.NewServer(middleware.RequestIDMiddleware(mux))
	t.Cleanup(server.Close)

	return &testServer{t: t, server: server, auth: auth}
}

func (s *testServer) do(user, method, path string, body io.Reader, contentType string) *http.Response {
	s.t.Helper()

	req, err := http.NewRequest(method, s.server.URL+path, body)
	require.NoError(s.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		token, err := s.auth.IssueToken(user, time.Minute)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *testServer) doJSON(user, method, path string, v any) *http.Response {
	s.t.Helper()

	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(s.t, err)
		body = bytes.NewReader(b)
	}
	return s.do(user, method, path, body, "application/json")
}

func (s *testServer) upload(user, name string, content string) models.FileNode {
	s.t.Helper()

	resp := s.do(user, http.MethodPost, "/api/files?name="+name, strings.NewReader(content), "text/plain")
	require.Equal(s.t, http.StatusCreated, resp.StatusCode)
	return decode[models.FileNode](s.t, resp)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, 1000)

	resp := s.do("", http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
}

func TestRequiresAuthentication(t *testing.T) {
	s := newTestServer(t, 1000)

	resp := s.do("", http.MethodGet, "/api/files", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[httpjson.ErrorBody](t, resp)
	assert.Equal(t, "unauthenticated", body.Kind)
}

func TestUploadDownloadAndReplace(t *testing.T) {
	s := newTestServer(t, 1000)

	node := s.upload(alice, "notes.txt", "hello")
	assert.Equal(t, int64(5), node.Size)
	assert.Equal(t, "notes.txt", node.Name)

	resp := s.do(alice, http.MethodGet, "/api/files/"+node.ID+"/content", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "hello", readAll(t, resp))

	resp = s.do(alice, http.MethodPut, "/api/files/"+node.ID+"/content", strings.NewReader("hello world"), "text/plain")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.FileNode](t, resp)
	assert.Equal(t, int64(11), updated.Size)

	resp = s.do(alice, http.MethodGet, "/api/files/"+node.ID+"/versions", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	versions := decode[[]models.Version](t, resp)
	require.Len(t, versions, 2)

	resp = s.do(alice, http.MethodGet, "/api/files/"+node.ID+"/versions/1/content", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", readAll(t, resp))

	resp = s.do(alice, http.MethodGet, "/api/files/"+node.ID+"/versions/abc/content", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(alice, http.MethodGet, "/api/usage", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	usage := decode[models.Usage](t, resp)
	assert.Equal(t, int64(11), usage.StorageUsed)
}

func TestQuotaExceededStatus(t *testing.T) {
	s := newTestServer(t, 4)

	resp := s.do(alice, http.MethodPost, "/api/files?name=big.bin", strings.NewReader("hello"), "")
	require.Equal(t, http.StatusInsufficientStorage, resp.StatusCode)
	body := decode[httpjson.ErrorBody](t, resp)
	assert.Equal(t, "quota_exceeded", body.Kind)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t, 1000)
	node := s.upload(alice, "a.txt", "abc")

	tests := []struct {
		name   string
		user   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown node", alice, http.MethodGet, "/api/files/missing", nil, http.StatusNotFound},
		{"foreign node", bob, http.MethodGet, "/api/files/" + node.ID, nil, http.StatusForbidden},
		{"invalid name", alice, http.MethodPost, "/api/folders", map[string]any{"name": "a/b"}, http.StatusBadRequest},
		{"delete without trash", alice, http.MethodDelete, "/api/files/" + node.ID, nil, http.StatusConflict},
		{"bad list parameter", alice, http.MethodGet, "/api/files?min_size=x", nil, http.StatusBadRequest},
		{"unknown batch action", alice, http.MethodPost, "/api/batch/explode", map[string]any{"ids": []string{node.ID}}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.doJSON(tt.user, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestFolderTreeOperations(t *testing.T) {
	s := newTestServer(t, 1000)

	resp := s.doJSON(alice, http.MethodPost, "/api/folders", map[string]any{"name": "docs"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	folder := decode[models.FileNode](t, resp)

	file := s.upload(alice, "a.txt", "abc")

	resp = s.doJSON(alice, http.MethodPost, "/api/files/"+file.ID+"/move", map[string]any{"parent_id": folder.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(alice, http.MethodGet, "/api/files/"+file.ID+"/path", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	path := decode[[]models.PathEntry](t, resp)
	require.Len(t, path, 2)
	assert.Equal(t, "docs", path[0].Name)

	resp = s.doJSON(alice, http.MethodPost, "/api/files/"+file.ID+"/rename", map[string]any{"name": "b.txt"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "b.txt", decode[models.FileNode](t, resp).Name)

	resp = s.do(alice, http.MethodPost, "/api/files/"+file.ID+"/star", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(alice, http.MethodGet, "/api/files?starred=true", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	starred := decode[[]models.FileNode](t, resp)
	require.Len(t, starred, 1)
	assert.Equal(t, file.ID, starred[0].ID)

	resp = s.do(alice, http.MethodPost, "/api/files/"+folder.ID+"/trash", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(alice, http.MethodGet, "/api/files?trashed=true", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.FileNode](t, resp), 2)

	resp = s.do(alice, http.MethodDelete, "/api/files/"+folder.ID, nil, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(alice, http.MethodGet, "/api/files/"+file.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSharingAndLinks(t *testing.T) {
	s := newTestServer(t, 1000)
	file := s.upload(alice, "shared.txt", "data")

	resp := s.doJSON(alice, http.MethodPost, "/api/files/"+file.ID+"/shares",
		map[string]any{"grantee_user_id": bob, "permission": "commenter"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	grant := decode[models.ShareGrant](t, resp)
	assert.Equal(t, models.PermissionCommenter, grant.Permission)

	resp = s.do(bob, http.MethodGet, "/api/shared-with-me", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[[]models.SharedItem](t, resp)
	require.Len(t, items, 1)
	assert.Equal(t, file.ID, items[0].Node.ID)

	resp = s.doJSON(bob, http.MethodPost, "/api/files/"+file.ID+"/comments", map[string]any{"body": "nice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = s.do(bob, http.MethodPut, "/api/files/"+file.ID+"/content", strings.NewReader("edit"), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.doJSON(alice, http.MethodPatch, "/api/shares/"+grant.ID, map[string]any{"permission": "editor"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(bob, http.MethodPut, "/api/files/"+file.ID+"/content", strings.NewReader("edit"), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.doJSON(alice, http.MethodPost, "/api/files/"+file.ID+"/link", map[string]any{"permission": "viewer"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	link := decode[models.ShareGrant](t, resp)
	require.NotNil(t, link.LinkToken)

	resp = s.do("", http.MethodGet, "/api/links/"+*link.LinkToken+"/content", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "edit", readAll(t, resp))

	resp = s.do(alice, http.MethodDelete, "/api/shares/"+grant.ID, nil, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(bob, http.MethodGet, "/api/files/"+file.ID, nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(alice, http.MethodGet, "/api/files/"+file.ID+"/activity", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[[]models.Activity](t, resp))

	resp = s.do("", http.MethodGet, "/api/links/not-a-token", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBatchReportsPartialSuccess(t *testing.T) {
	s := newTestServer(t, 1000)
	a := s.upload(alice, "a.txt", "a")
	b := s.upload(alice, "b.txt", "b")

	resp := s.doJSON(alice, http.MethodPost, "/api/batch/trash", map[string]any{"ids": []string{a.ID, "missing", b.ID}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[models.BatchResult](t, resp)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "missing", result.Failed[0].ID)
	assert.Equal(t, "not_found", result.Failed[0].Reason)

	resp = s.doJSON(alice, http.MethodPost, "/api/batch/trash", map[string]any{"ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
