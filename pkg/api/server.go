// Package api exposes the asset store over HTTP: a JSON operations API
// under /api consumed by the admin UI, and the public serving routes that
// resolve stable and immutable asset URLs to bytes or redirects.
package api

import (
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/auth"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/httputil"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/observability"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/vault"

	"github.com/gorilla/mux"
)

// maxUploadBytes bounds the local upload receiver's request body.
const maxUploadBytes = 512 << 20

// versionCacheSize bounds the immutable version metadata cache. Entries are
// keyed by version id; version rows never change shape after creation except
// for migration locators, which the serving path re-reads on miss only.
const versionCacheSize = 4096

// Server is the HTTP layer over the vault service.
type Server struct {
	svc          *vault.Service
	resolver     *auth.Resolver
	log          *observability.Logger
	metrics      *observability.Metrics
	router       *mux.Router
	versionCache *lru.Cache[string, *vault.AssetVersion]
}

// Options configures the HTTP layer.
type Options struct {
	AllowedOrigins []string
}

// NewServer builds the router with all routes registered.
func NewServer(svc *vault.Service, resolver *auth.Resolver, log *observability.Logger, metrics *observability.Metrics, opts Options) (*Server, error) {
	cache, err := lru.New[string, *vault.AssetVersion](versionCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Server{
		svc:          svc,
		resolver:     resolver,
		log:          log,
		metrics:      metrics,
		router:       mux.NewRouter(),
		versionCache: cache,
	}
	s.setupRoutes(opts)
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) setupRoutes(opts Options) {
	s.router.Use(httputil.RecoveryMiddleware)
	s.router.Use(s.actorMiddleware)
	if s.metrics != nil {
		s.router.Use(s.metricsMiddleware)
	}

	// Operations API.
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(httputil.CORSMiddleware(opts.AllowedOrigins, "GET, POST, OPTIONS"))

	api.HandleFunc("/folders", s.handleListFolders).Methods("GET")
	api.HandleFunc("/folders", s.handleCreateFolderByName).Methods("POST")
	api.HandleFunc("/folders/all", s.handleListAllFolders).Methods("GET")
	api.HandleFunc("/folders/path", s.handleCreateFolderByPath).Methods("POST")
	api.HandleFunc("/folder", s.handleGetFolder).Methods("GET")
	api.HandleFunc("/folder/update", s.handleUpdateFolder).Methods("POST")

	api.HandleFunc("/assets", s.handleListAssets).Methods("GET")
	api.HandleFunc("/assets", s.handleCreateAsset).Methods("POST")
	api.HandleFunc("/asset", s.handleGetAsset).Methods("GET")
	api.HandleFunc("/assets/rename", s.handleRenameAsset).Methods("POST")

	api.HandleFunc("/versions", s.handleGetAssetVersions).Methods("GET")
	api.HandleFunc("/versions/restore", s.handleRestoreVersion).Methods("POST")
	api.HandleFunc("/versions/{versionId}/preview-url", s.handleVersionPreviewURL).Methods("GET")
	api.HandleFunc("/versions/{versionId}/signed-url", s.handleVersionSignedURL).Methods("GET")
	api.HandleFunc("/versions/{versionId}/text", s.handleVersionText).Methods("GET")

	api.HandleFunc("/published", s.handleGetPublishedFile).Methods("GET")
	api.HandleFunc("/published/list", s.handleListPublishedFiles).Methods("GET")

	api.HandleFunc("/uploads/start", s.handleStartUpload).Methods("POST")
	api.HandleFunc("/uploads/finish", s.handleFinishUpload).Methods("POST")
	api.Handle("/storage/upload/{token}",
		httputil.MaxBytesMiddleware(maxUploadBytes)(http.HandlerFunc(s.handleLocalUpload))).Methods("POST")

	api.HandleFunc("/changes", s.handleWatchChangelog).Methods("GET")
	api.HandleFunc("/changes/folder", s.handleWatchFolderChanges).Methods("GET")

	api.HandleFunc("/migrate/version", s.handleMigrateVersion).Methods("POST")
	api.HandleFunc("/migrate/all", s.handleMigrateAll).Methods("POST")
	api.HandleFunc("/migrate/backfill-url", s.handleBackfillPublicURL).Methods("POST")
	api.HandleFunc("/migrate/cleanup", s.handleCleanupStorage).Methods("POST")

	// Public serving routes. Registration order matters: the immutable
	// version route must win over the stable catch-all.
	serve := httputil.CORSMiddleware(opts.AllowedOrigins, "GET, HEAD")
	s.router.Handle("/assets/v/{versionId}",
		serve(http.HandlerFunc(s.handleServeVersion))).Methods("GET", "HEAD", "OPTIONS")
	s.router.Handle("/am/file/v/{versionId}/{basename}",
		serve(http.HandlerFunc(s.handleServeVersion))).Methods("GET", "HEAD", "OPTIONS")
	s.router.Handle("/assets/{assetPath:.+}",
		serve(http.HandlerFunc(s.handleServeStable))).Methods("GET", "HEAD", "OPTIONS")
}

// actorMiddleware resolves the request's actor once and stores it on the
// context for the service's authorization checks.
func (s *Server) actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := s.resolver.FromRequest(r)
		next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	})
}

// metricsMiddleware records request counts and latency per route template.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		done := s.metrics.TimeHTTPRequest(r.Method, route)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		done(sw.status)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
