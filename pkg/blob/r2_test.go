package blob

import (
	"strings"
	"testing"
)

func newTestR2Client(t *testing.T, prefix string) *R2Client {
	t.Helper()
	c, err := NewR2Client(R2Config{
		Bucket:          "assets",
		Endpoint:        "https://acct.r2.cloudflarestorage.com",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		PublicBaseURL:   "https://cdn.example.com",
		KeyPrefix:       prefix,
	})
	if err != nil {
		t.Fatalf("NewR2Client failed: %v", err)
	}
	return c
}

func TestNewR2ClientValidation(t *testing.T) {
	if _, err := NewR2Client(R2Config{Bucket: "assets"}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if _, err := NewR2Client(R2Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestR2Keys(t *testing.T) {
	c := newTestR2Client(t, "")

	if got := c.PendingKey("ast_1", "int_9", "logo.png"); got != "ast_1/pending-int_9/logo.png" {
		t.Errorf("PendingKey = %q", got)
	}
	if got := c.FinalKey("ast_1", 3, "logo.png"); got != "ast_1/3/logo.png" {
		t.Errorf("FinalKey = %q", got)
	}

	prefixed := newTestR2Client(t, "tenant-a")
	if got := prefixed.FinalKey("ast_1", 3, "logo.png"); got != "tenant-a/ast_1/3/logo.png" {
		t.Errorf("prefixed FinalKey = %q", got)
	}
	if got := prefixed.PendingKey("ast_1", "int_9", "logo.png"); !strings.HasPrefix(got, "tenant-a/") {
		t.Errorf("prefixed PendingKey = %q", got)
	}
}

func TestR2ResolvePublicURL(t *testing.T) {
	c := newTestR2Client(t, "")

	t.Run("locator base URL wins", func(t *testing.T) {
		url, err := c.ResolvePublicURL(Locator{
			R2Key:       "ast_1/3/logo.png",
			R2PublicURL: "https://old-cdn.example.com/",
		})
		if err != nil {
			t.Fatalf("ResolvePublicURL failed: %v", err)
		}
		if url != "https://old-cdn.example.com/ast_1/3/logo.png" {
			t.Errorf("url = %q", url)
		}
	})

	t.Run("falls back to configured base", func(t *testing.T) {
		url, err := c.ResolvePublicURL(Locator{R2Key: "ast_1/3/logo.png"})
		if err != nil {
			t.Fatalf("ResolvePublicURL failed: %v", err)
		}
		if url != "https://cdn.example.com/ast_1/3/logo.png" {
			t.Errorf("url = %q", url)
		}
	})

	t.Run("key segments are escaped", func(t *testing.T) {
		url, err := c.ResolvePublicURL(Locator{R2Key: "ast_1/3/logo final.png"})
		if err != nil {
			t.Fatalf("ResolvePublicURL failed: %v", err)
		}
		if url != "https://cdn.example.com/ast_1/3/logo%20final.png" {
			t.Errorf("url = %q", url)
		}
	})

	t.Run("missing key rejected", func(t *testing.T) {
		if _, err := c.ResolvePublicURL(Locator{}); err == nil {
			t.Fatal("expected error for missing key")
		}
	})
}

func TestEscapeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/b/c.png", "a/b/c.png"},
		{"a/with space/c.png", "a/with%20space/c.png"},
		{"a/q?x/c", "a/q%3Fx/c"},
	}
	for _, tt := range tests {
		if got := escapeKey(tt.in); got != tt.want {
			t.Errorf("escapeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocatorPrefersR2(t *testing.T) {
	loc := Locator{Backend: KindConvex, StorageID: "blob_x"}
	if loc.HasR2() {
		t.Error("locator without a key should not report r2")
	}
	loc.R2Key = "ast_1/1/f.png"
	if !loc.HasR2() {
		t.Error("locator with a key should report r2")
	}
}
