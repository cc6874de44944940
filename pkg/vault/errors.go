package vault

import (
	"errors"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
)

// Error kinds surfaced by the service. The HTTP layer maps these to status
// codes with errors.Is; the service never swallows authorization or
// validation errors.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrFolderNotFound  = errors.New("folder not found")
	ErrAssetNotFound   = errors.New("asset not found")
	ErrVersionNotFound = errors.New("version not found")
	ErrIntentNotFound  = errors.New("upload intent not found")

	ErrFolderExists   = errors.New("folder already exists")
	ErrAssetExists    = errors.New("asset already exists")
	ErrIntentConsumed = errors.New("upload intent already consumed")

	ErrInvalidUploadResponse = errors.New("invalid upload response")

	// ErrTxConflict is a transient serialization conflict; the service
	// retries it with bounded backoff before surfacing.
	ErrTxConflict = errors.New("transaction conflict")
)

// Validation error kinds are shared with the ids package so the repository
// and service report the same sentinels.
var (
	ErrInvalidPath     = ids.ErrInvalidPath
	ErrInvalidBasename = ids.ErrInvalidBasename
	ErrBasenameTooLong = ids.ErrBasenameTooLong
)

// ErrBackendFailure re-exports the blob sentinel; the backend identity is
// embedded in the wrapped message.
var ErrBackendFailure = blob.ErrBackendFailure

// IsNotFound reports whether err is any of the not-found kinds.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFolderNotFound) ||
		errors.Is(err, ErrAssetNotFound) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrIntentNotFound)
}

// IsConflict reports whether err is any of the conflict kinds.
func IsConflict(err error) bool {
	return errors.Is(err, ErrFolderExists) ||
		errors.Is(err, ErrAssetExists) ||
		errors.Is(err, ErrIntentConsumed)
}

// IsValidation reports whether err is any of the validation kinds.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrInvalidBasename) ||
		errors.Is(err, ErrBasenameTooLong) ||
		errors.Is(err, ErrInvalidUploadResponse)
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTxConflict)
}
