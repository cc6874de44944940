package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestParseJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"folderPath":"images","basename":"a.png"}`))
	var body struct {
		FolderPath string `json:"folderPath"`
		Basename   string `json:"basename"`
	}
	if err := ParseJSON(req, &body); err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if body.FolderPath != "images" || body.Basename != "a.png" {
		t.Errorf("unexpected body: %+v", body)
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader(`not json`))
	if err := ParseJSON(req, &body); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestParseJSONOrError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{broken`))
	var dest map[string]string
	if ParseJSONOrError(rec, req, &dest) {
		t.Error("expected false for malformed JSON")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestParsePathString(t *testing.T) {
	router := mux.NewRouter()
	var got string
	var gotErr error
	router.HandleFunc("/v/{versionId}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = ParsePathString(r, "versionId")
	})
	req := httptest.NewRequest("GET", "/v/ver_123", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	if gotErr != nil || got != "ver_123" {
		t.Errorf("ParsePathString = %q, %v", got, gotErr)
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=25", nil)
	if v, err := ParseQueryInt(req, "limit", 100); err != nil || v != 25 {
		t.Errorf("ParseQueryInt = %d, %v", v, err)
	}
	req = httptest.NewRequest("GET", "/", nil)
	if v, err := ParseQueryInt(req, "limit", 100); err != nil || v != 100 {
		t.Errorf("default ParseQueryInt = %d, %v", v, err)
	}
	req = httptest.NewRequest("GET", "/?limit=abc", nil)
	if _, err := ParseQueryInt(req, "limit", 100); err == nil {
		t.Error("expected error for non-integer")
	}
}

func TestParseQueryInt64(t *testing.T) {
	req := httptest.NewRequest("GET", "/?createdAt=1700000000000", nil)
	if v, err := ParseQueryInt64(req, "createdAt", 0); err != nil || v != 1700000000000 {
		t.Errorf("ParseQueryInt64 = %d, %v", v, err)
	}
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest("GET", "/?cursor=abc", nil)
	if v := ParseQueryString(req, "cursor", ""); v != "abc" {
		t.Errorf("ParseQueryString = %q", v)
	}
	if v := ParseQueryString(req, "missing", "fallback"); v != "fallback" {
		t.Errorf("default ParseQueryString = %q", v)
	}
}
