package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
)

// LocalStore is the in-platform blob store. Blobs live under a content
// directory named by their opaque storageId; uploads POST to a server route
// carrying a one-time token and the response body yields the storageId.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the content directory if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Kind implements Backend.
func (s *LocalStore) Kind() Kind { return KindConvex }

// KeyPrefix implements Backend; the local store is not key-addressed.
func (s *LocalStore) KeyPrefix() string { return "" }

// IssueUpload implements Backend. The returned POST URL targets the server's
// own upload route; the route validates the token against the pending intent.
func (s *LocalStore) IssueUpload(_ context.Context, req UploadRequest) (*UploadTicket, error) {
	if req.Token == "" {
		return nil, failure(KindConvex, "issue upload", fmt.Errorf("missing upload token"))
	}
	return &UploadTicket{
		URL:    s.baseURL + "/api/storage/upload/" + req.Token,
		Method: "POST",
	}, nil
}

// Save stores the body under a fresh storageId and returns it with the size.
// A temp file plus rename keeps partially written blobs invisible.
func (s *LocalStore) Save(_ context.Context, body io.Reader) (storageID string, size int64, err error) {
	storageID = ids.NewStorageID()
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", 0, failure(KindConvex, "save", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	size, err = io.Copy(tmp, body)
	if err != nil {
		return "", 0, failure(KindConvex, "save", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", 0, failure(KindConvex, "save", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, failure(KindConvex, "save", err)
	}
	if err := os.Rename(tmp.Name(), s.path(storageID)); err != nil {
		return "", 0, failure(KindConvex, "save", err)
	}
	return storageID, size, nil
}

// ResolvePublicURL implements Backend. Local blobs have no direct public
// URL; the serving layer streams them, so this returns "".
func (s *LocalStore) ResolvePublicURL(Locator) (string, error) { return "", nil }

// SignedReadURL implements Backend. The local store has no signer; reads go
// through the immutable version route, which is already access-checked.
func (s *LocalStore) SignedReadURL(_ context.Context, loc Locator, _ time.Duration) (string, error) {
	if loc.StorageID == "" {
		return "", failure(KindConvex, "sign", fmt.Errorf("missing storageId"))
	}
	return "", nil
}

// ReadBytes implements Backend.
func (s *LocalStore) ReadBytes(_ context.Context, loc Locator) (io.ReadCloser, error) {
	if loc.StorageID == "" {
		return nil, failure(KindConvex, "read", fmt.Errorf("missing storageId"))
	}
	f, err := os.Open(s.path(loc.StorageID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, failure(KindConvex, "read", fmt.Errorf("blob %s not found", loc.StorageID))
		}
		return nil, failure(KindConvex, "read", err)
	}
	return f, nil
}

// Stat returns the size of a stored blob.
func (s *LocalStore) Stat(storageID string) (int64, error) {
	fi, err := os.Stat(s.path(storageID))
	if err != nil {
		return 0, failure(KindConvex, "stat", err)
	}
	return fi.Size(), nil
}

func (s *LocalStore) path(storageID string) string {
	// storageIds are generated server-side, but never trust them as paths.
	return filepath.Join(s.dir, filepath.Base(storageID))
}
