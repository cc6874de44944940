package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/httputil"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/vault"
)

const (
	// stableCacheControl lets CDNs cache stable URLs briefly; the ETag makes
	// revalidation cheap once a new version is published.
	stableCacheControl = "public, max-age=60, must-revalidate"
	// immutableCacheControl applies to version-addressed URLs, whose bytes
	// never change.
	immutableCacheControl = "public, max-age=31536000, immutable"
)

// handleServeStable serves /assets/{folderPath...}/{basename}: it resolves
// the published version of the addressed asset and serves its bytes. The
// response is cacheable for a minute and revalidates on the published
// version's id.
func (s *Server) handleServeStable(w http.ResponseWriter, r *http.Request) {
	assetPath, ok := httputil.ParsePathStringOrError(w, r, "assetPath")
	if !ok {
		return
	}
	folderPath, basename := ids.SplitPath(assetPath)

	pf, err := s.svc.GetPublishedFile(r.Context(), folderPath, basename)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	etag := `"` + pf.Version.ID.String() + `"`
	w.Header().Set("Cache-Control", stableCacheControl)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	s.serveVersionBytes(w, r, pf.Version)
}

// handleServeVersion serves the immutable version-addressed routes. A version
// id resolves to the same bytes forever, so responses are cacheable
// indefinitely and version metadata is held in an in-process LRU.
func (s *Server) handleServeVersion(w http.ResponseWriter, r *http.Request) {
	versionID, ok := httputil.ParsePathStringOrError(w, r, "versionId")
	if !ok {
		return
	}

	version, cached := s.versionCache.Get(versionID)
	if !cached {
		v, err := s.svc.GetVersion(r.Context(), ids.VersionID(versionID))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.versionCache.Add(versionID, v)
		version = v
	}

	w.Header().Set("Cache-Control", immutableCacheControl)
	w.Header().Set("ETag", `"`+version.ID.String()+`"`)
	s.serveVersionBytes(w, r, version)
}

// serveVersionBytes emits the version's content: a temporary redirect for
// object-store versions, a streamed body for platform versions. The stored
// content type is served verbatim; the bytes are never sniffed.
func (s *Server) serveVersionBytes(w http.ResponseWriter, r *http.Request, version *vault.AssetVersion) {
	if version.Locator().Backend == blob.KindR2 {
		target := version.R2PublicURL
		if target == "" {
			resolved, err := s.svc.GetVersionPreviewUrl(r.Context(), version.ID)
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			target = resolved
		}
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		return
	}

	contentType := version.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(version.Size, 10))
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	rc, err := s.svc.OpenVersion(r.Context(), version)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer rc.Close()
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log.WithError(err).Warn("interrupted while streaming version bytes")
	}
}
