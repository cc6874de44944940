package api

import (
	"errors"
	"net/http"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/httputil"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/vault"
)

// errorKind maps a service error to the machine-readable kind clients switch
// on.
func errorKind(err error) string {
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, vault.ErrForbidden):
		return "Forbidden"
	case errors.Is(err, vault.ErrFolderNotFound):
		return "FolderNotFound"
	case errors.Is(err, vault.ErrAssetNotFound):
		return "AssetNotFound"
	case errors.Is(err, vault.ErrVersionNotFound):
		return "VersionNotFound"
	case errors.Is(err, vault.ErrIntentNotFound):
		return "IntentNotFound"
	case errors.Is(err, vault.ErrFolderExists):
		return "FolderExists"
	case errors.Is(err, vault.ErrAssetExists):
		return "AssetExists"
	case errors.Is(err, vault.ErrIntentConsumed):
		return "IntentConsumed"
	case errors.Is(err, vault.ErrBasenameTooLong):
		return "BasenameTooLong"
	case errors.Is(err, vault.ErrInvalidPath):
		return "InvalidPath"
	case errors.Is(err, vault.ErrInvalidBasename):
		return "InvalidBasename"
	case errors.Is(err, vault.ErrInvalidUploadResponse):
		return "InvalidUploadResponse"
	case errors.Is(err, vault.ErrBackendFailure):
		return "BackendFailure"
	default:
		return "Internal"
	}
}

// writeServiceError translates service sentinels to HTTP statuses. Unknown
// errors are logged by the caller and surfaced with a generic kind.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	kind := errorKind(err)
	switch kind {
	case "Unauthorized":
		httputil.WriteErrorKind(w, http.StatusUnauthorized, kind, err.Error())
	case "Forbidden":
		httputil.WriteErrorKind(w, http.StatusForbidden, kind, err.Error())
	case "FolderNotFound", "AssetNotFound", "VersionNotFound", "IntentNotFound":
		httputil.WriteErrorKind(w, http.StatusNotFound, kind, err.Error())
	case "FolderExists", "AssetExists", "IntentConsumed":
		httputil.WriteErrorKind(w, http.StatusConflict, kind, err.Error())
	case "InvalidPath", "InvalidBasename", "InvalidUploadResponse", "BasenameTooLong":
		httputil.WriteErrorKind(w, http.StatusBadRequest, kind, err.Error())
	case "BackendFailure":
		httputil.WriteErrorKind(w, http.StatusBadGateway, kind, err.Error())
	default:
		s.log.WithError(err).Error("unhandled service error")
		httputil.WriteErrorKind(w, http.StatusInternalServerError, kind, "internal error")
	}
}
