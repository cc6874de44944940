package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/api"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/auth"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/config"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/observability"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/storage"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/vault"
)

const (
	adminEmail = "admin@example.com"
	userEmail  = "user@example.com"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.Open(t.Context(), "", dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	local, err := blob.NewLocalStore(filepath.Join(dir, "blobs"), "http://localhost:8080")
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}

	log := observability.NewLogger(observability.ErrorLevel, io.Discard)
	svc := vault.NewService(store, local, config.NewProvider(config.BackendConfig{}), log, "http://localhost:8080", time.Hour)
	resolver := auth.NewResolver("test-admin-key", []string{adminEmail})

	server, err := api.NewServer(svc, resolver, log, nil, api.Options{AllowedOrigins: []string{"*"}})
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, email string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if email != "" {
		req.Header.Set("X-User-Email", email)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp, data
}

func decodeInto(t *testing.T, data []byte, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to decode response %s: %v", data, err)
	}
}

func errorKindOf(t *testing.T, data []byte) string {
	t.Helper()
	var e struct {
		Kind string `json:"kind"`
	}
	decodeInto(t, data, &e)
	return e.Kind
}

// uploadFile drives the full two-phase upload over HTTP and returns the
// published version id.
func uploadFile(t *testing.T, ts *httptest.Server, folder, basename, contentType string) string {
	t.Helper()
	resp, data := doJSON(t, ts, "POST", "/api/uploads/start", userEmail, map[string]string{
		"folderPath":  folder,
		"basename":    basename,
		"filename":    basename,
		"contentType": contentType,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start upload = %d: %s", resp.StatusCode, data)
	}
	var start struct {
		IntentID  string `json:"intentId"`
		UploadURL string `json:"uploadUrl"`
	}
	decodeInto(t, data, &start)

	token := start.UploadURL[strings.LastIndexByte(start.UploadURL, '/')+1:]
	body := strings.NewReader("payload for " + basename)
	req, err := http.NewRequest("POST", ts.URL+"/api/storage/upload/"+token, body)
	if err != nil {
		t.Fatalf("failed to build upload request: %v", err)
	}
	uploadHTTP, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("local upload failed: %v", err)
	}
	data, err = io.ReadAll(uploadHTTP.Body)
	uploadHTTP.Body.Close()
	if err != nil || uploadHTTP.StatusCode != http.StatusOK {
		t.Fatalf("local upload = %d: %s", uploadHTTP.StatusCode, data)
	}
	var uploadResp struct {
		StorageID string `json:"storageId"`
	}
	decodeInto(t, data, &uploadResp)

	resp, data = doJSON(t, ts, "POST", "/api/uploads/finish", userEmail, map[string]interface{}{
		"intentId":       start.IntentID,
		"uploadResponse": map[string]string{"storageId": uploadResp.StorageID},
		"size":           body.Size(),
		"contentType":    contentType,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finish upload = %d: %s", resp.StatusCode, data)
	}
	var finish struct {
		VersionID string `json:"versionId"`
	}
	decodeInto(t, data, &finish)
	return finish.VersionID
}

func TestAuthStatusMapping(t *testing.T) {
	ts := newTestServer(t)

	resp, data := doJSON(t, ts, "GET", "/api/folders", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous list = %d, want 401", resp.StatusCode)
	}
	if kind := errorKindOf(t, data); kind != "Unauthorized" {
		t.Errorf("kind = %q", kind)
	}

	resp, data = doJSON(t, ts, "GET", "/api/folders", userEmail, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-admin list = %d, want 403", resp.StatusCode)
	}
	if kind := errorKindOf(t, data); kind != "Forbidden" {
		t.Errorf("kind = %q", kind)
	}

	resp, _ = doJSON(t, ts, "GET", "/api/folders", adminEmail, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("admin list = %d, want 200", resp.StatusCode)
	}
}

func TestAdminBearerToken(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest("GET", ts.URL+"/api/folders", nil)
	req.Header.Set("Authorization", "Bearer test-admin-key")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("service token list = %d, want 200", resp.StatusCode)
	}
}

func TestFolderConflict(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{"parentPath": "", "name": "images"}
	resp, _ := doJSON(t, ts, "POST", "/api/folders", adminEmail, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create folder = %d, want 201", resp.StatusCode)
	}
	resp, data := doJSON(t, ts, "POST", "/api/folders", adminEmail, body)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate folder = %d, want 409", resp.StatusCode)
	}
	if kind := errorKindOf(t, data); kind != "FolderExists" {
		t.Errorf("kind = %q", kind)
	}

	// Creating by path is idempotent and must not conflict.
	resp, _ = doJSON(t, ts, "POST", "/api/folders/path", adminEmail, map[string]string{"path": "images"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("idempotent create by path = %d, want 200", resp.StatusCode)
	}
}

func TestUploadAndStableServing(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, "POST", "/api/folders/path", adminEmail, map[string]string{"path": "images"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create folder = %d", resp.StatusCode)
	}
	versionID := uploadFile(t, ts, "images", "logo.txt", "text/plain")

	resp, data := doJSON(t, ts, "GET", "/assets/images/logo.txt", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stable serve = %d: %s", resp.StatusCode, data)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=60, must-revalidate" {
		t.Errorf("stable Cache-Control = %q", cc)
	}
	wantETag := `"` + versionID + `"`
	if etag := resp.Header.Get("ETag"); etag != wantETag {
		t.Errorf("ETag = %q, want %q", etag, wantETag)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q", ct)
	}

	req, _ := http.NewRequest("GET", ts.URL+"/assets/images/logo.txt", nil)
	req.Header.Set("If-None-Match", wantETag)
	cond, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional request failed: %v", err)
	}
	cond.Body.Close()
	if cond.StatusCode != http.StatusNotModified {
		t.Errorf("If-None-Match = %d, want 304", cond.StatusCode)
	}
}

func TestImmutableVersionServing(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, ts, "POST", "/api/folders/path", adminEmail, map[string]string{"path": "docs"})
	versionID := uploadFile(t, ts, "docs", "readme.md", "text/markdown")

	for _, path := range []string{
		"/assets/v/" + versionID,
		"/am/file/v/" + versionID + "/readme.md",
	} {
		resp, data := doJSON(t, ts, "GET", path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s = %d: %s", path, resp.StatusCode, data)
		}
		if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=31536000, immutable" {
			t.Errorf("%s Cache-Control = %q", path, cc)
		}
	}

	req, _ := http.NewRequest("HEAD", ts.URL+"/assets/v/"+versionID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("HEAD failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("HEAD = %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "text/markdown" {
		t.Errorf("HEAD Content-Type = %q", resp.Header.Get("Content-Type"))
	}
}

func TestServeUnknownVersion(t *testing.T) {
	ts := newTestServer(t)

	resp, data := doJSON(t, ts, "GET", "/assets/v/ver_deadbeef", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown version = %d, want 404", resp.StatusCode)
	}
	if kind := errorKindOf(t, data); kind != "VersionNotFound" {
		t.Errorf("kind = %q", kind)
	}

	resp, data = doJSON(t, ts, "GET", "/assets/nope/missing.png", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown stable path = %d, want 404: %s", resp.StatusCode, data)
	}
}

func TestServingCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/assets/v/ver_x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", resp.StatusCode)
	}
	if methods := resp.Header.Get("Access-Control-Allow-Methods"); methods != "GET, HEAD" {
		t.Errorf("Allow-Methods = %q", methods)
	}
}

func TestDuplicateFinishConflicts(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, ts, "POST", "/api/folders/path", adminEmail, map[string]string{"path": "images"})

	resp, data := doJSON(t, ts, "POST", "/api/uploads/start", userEmail, map[string]string{
		"folderPath": "images",
		"basename":   "a.txt",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start = %d: %s", resp.StatusCode, data)
	}
	var start struct {
		IntentID  string `json:"intentId"`
		UploadURL string `json:"uploadUrl"`
	}
	decodeInto(t, data, &start)

	token := start.UploadURL[strings.LastIndexByte(start.UploadURL, '/')+1:]
	resp, data = doJSON(t, ts, "POST", "/api/storage/upload/"+token, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload = %d", resp.StatusCode)
	}
	var uploadResp struct {
		StorageID string `json:"storageId"`
	}
	decodeInto(t, data, &uploadResp)

	finishBody := map[string]interface{}{
		"intentId":       start.IntentID,
		"uploadResponse": map[string]string{"storageId": uploadResp.StorageID},
	}
	resp, _ = doJSON(t, ts, "POST", "/api/uploads/finish", userEmail, finishBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first finish = %d", resp.StatusCode)
	}
	resp, data = doJSON(t, ts, "POST", "/api/uploads/finish", userEmail, finishBody)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second finish = %d, want 409", resp.StatusCode)
	}
	if kind := errorKindOf(t, data); kind != "IntentConsumed" {
		t.Errorf("kind = %q", kind)
	}
}

func TestLocalUploadUnknownToken(t *testing.T) {
	ts := newTestServer(t)

	resp, data := doJSON(t, ts, "POST", "/api/storage/upload/upl_bogus", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("bogus token = %d, want 404: %s", resp.StatusCode, data)
	}
}

func TestChangelogEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, "GET", "/api/changes", userEmail, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-admin changes = %d, want 403", resp.StatusCode)
	}

	doJSON(t, ts, "POST", "/api/folders/path", adminEmail, map[string]string{"path": "images/icons"})
	uploadFile(t, ts, "images/icons", "star.txt", "text/plain")

	resp, data := doJSON(t, ts, "GET", "/api/changes?limit=50", adminEmail, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("changes = %d: %s", resp.StatusCode, data)
	}
	var page struct {
		Changes []struct {
			Kind string `json:"kind"`
		} `json:"changes"`
		NextCursor struct {
			CreatedAt int64  `json:"createdAt"`
			ID        string `json:"id"`
		} `json:"nextCursor"`
	}
	decodeInto(t, data, &page)
	if len(page.Changes) < 5 {
		t.Errorf("expected folder, asset and version entries, got %d", len(page.Changes))
	}
	if page.NextCursor.ID == "" {
		t.Errorf("non-empty page must advance the cursor")
	}

	// Resuming from the tail cursor yields an empty page with the same cursor.
	q := "/api/changes?createdAt=" + itoa64(page.NextCursor.CreatedAt) + "&id=" + page.NextCursor.ID
	resp, data = doJSON(t, ts, "GET", q, adminEmail, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resume = %d", resp.StatusCode)
	}
	var tail struct {
		Changes    []json.RawMessage `json:"changes"`
		NextCursor struct {
			ID string `json:"id"`
		} `json:"nextCursor"`
	}
	decodeInto(t, data, &tail)
	if len(tail.Changes) != 0 {
		t.Errorf("expected empty tail, got %d entries", len(tail.Changes))
	}
	if tail.NextCursor.ID != page.NextCursor.ID {
		t.Errorf("empty page must keep the cursor")
	}
}

func TestVersionsAndRestore(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, ts, "POST", "/api/folders/path", adminEmail, map[string]string{"path": "docs"})
	v1 := uploadFile(t, ts, "docs", "spec.txt", "text/plain")
	uploadFile(t, ts, "docs", "spec.txt", "text/plain")

	resp, data := doJSON(t, ts, "GET", "/api/versions?folder=docs&basename=spec.txt", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("versions = %d: %s", resp.StatusCode, data)
	}
	var versions []struct {
		ID      string `json:"id"`
		Version int    `json:"version"`
		State   string `json:"state"`
	}
	decodeInto(t, data, &versions)
	if len(versions) != 2 || versions[0].Version != 2 || versions[0].State != "published" {
		t.Fatalf("unexpected history: %+v", versions)
	}

	resp, data = doJSON(t, ts, "POST", "/api/versions/restore", userEmail, map[string]string{"versionId": v1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore = %d: %s", resp.StatusCode, data)
	}
	var restored struct {
		Version int `json:"version"`
	}
	decodeInto(t, data, &restored)
	if restored.Version != 3 {
		t.Errorf("restore ordinal = %d, want 3", restored.Version)
	}
}

func itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}
