package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestClient(baseURL string) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Client{
		BaseURL: baseURL,
		Key:     "admin-key",
		Email:   "ops@example.com",
		http:    http.DefaultClient,
		log:     logger,
	}
}

func TestClientSendsAuthHeaders(t *testing.T) {
	var gotAuth, gotEmail string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotEmail = r.Header.Get("X-User-Email")
		json.NewEncoder(w).Encode([]folderInfo{})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	var folders []folderInfo
	if err := c.Get("/api/folders", url.Values{"parent": {""}}, &folders); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotAuth != "Bearer admin-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotEmail != "ops@example.com" {
		t.Errorf("X-User-Email = %q", gotEmail)
	}
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "folder already exists: images",
			"kind":  "FolderExists",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.Post("/api/folders/path", map[string]string{"path": "images"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "FolderExists") {
		t.Errorf("error should carry the kind: %v", err)
	}
}

func TestClientPostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if body["path"] != "images/icons" {
			t.Errorf("unexpected body: %v", body)
		}
		json.NewEncoder(w).Encode(folderInfo{Path: "images/icons", Name: "icons"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	var folder folderInfo
	if err := c.Post("/api/folders/path", map[string]string{"path": "images/icons"}, &folder); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if folder.Name != "icons" {
		t.Errorf("unexpected response: %+v", folder)
	}
}

func TestUploadBytesRejectsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.UploadBytes(srv.URL+"/bucket/key", http.MethodPut, "text/plain", strings.NewReader("data"))
	if err == nil {
		t.Fatal("expected error for 403 upload response")
	}
}
