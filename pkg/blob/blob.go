// Package blob implements the two byte-storage backends of the asset store:
// the local platform store ("convex"), addressed by an opaque storageId and
// streamed through the server, and an S3-compatible store ("r2"), uploaded
// to via presigned PUT and read either from a public CDN base URL or through
// short-lived signed URLs.
//
// The two backends form a closed sum over Kind; callers hold a Backend and
// never switch on the concrete type.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Kind names a byte-storage backend.
type Kind string

const (
	// KindConvex is the in-platform blob store addressed by storageId.
	KindConvex Kind = "convex"
	// KindR2 is the S3-compatible object store addressed by key.
	KindR2 Kind = "r2"
)

// ErrBackendFailure wraps any error returned by a storage backend so callers
// can classify it without inspecting backend-specific types.
var ErrBackendFailure = errors.New("storage backend failure")

// failure tags err with the backend identity.
func failure(kind Kind, op string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrBackendFailure, kind, op, err)
}

// Locator identifies a blob within whichever backend(s) hold it. During
// migration both the storageId and the r2 fields may be populated; readers
// prefer r2 when both are set.
type Locator struct {
	Backend     Kind
	StorageID   string
	R2Key       string
	R2PublicURL string
}

// HasR2 reports whether the locator carries an S3-compatible key.
func (l Locator) HasR2() bool { return l.R2Key != "" }

// UploadRequest carries what a backend needs to issue an upload URL.
type UploadRequest struct {
	// Key is the object key for key-addressed backends.
	Key string
	// Token is the one-time token embedded in local upload URLs.
	Token string
	// ContentType is a hint; backends may ignore it.
	ContentType string
}

// UploadTicket is handed back to the client from startUpload.
type UploadTicket struct {
	URL    string
	Method string // "POST" for the local store, "PUT" for r2
	Key    string // populated for key-addressed backends
}

// Backend is the capability set shared by both stores.
type Backend interface {
	Kind() Kind

	// IssueUpload returns a URL the client uploads bytes to.
	IssueUpload(ctx context.Context, req UploadRequest) (*UploadTicket, error)

	// ResolvePublicURL returns a stable public URL for the blob, or "" when
	// the backend has no direct public access (the server streams instead).
	ResolvePublicURL(loc Locator) (string, error)

	// SignedReadURL returns a short-lived read URL for private access.
	SignedReadURL(ctx context.Context, loc Locator, ttl time.Duration) (string, error)

	// ReadBytes opens the blob for server-side reading.
	ReadBytes(ctx context.Context, loc Locator) (io.ReadCloser, error)

	// KeyPrefix is the deterministic prefix applied to object keys; empty
	// for backends that are not key-addressed.
	KeyPrefix() string
}
