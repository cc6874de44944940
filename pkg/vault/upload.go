package vault

import (
	"context"
	"fmt"
	"io"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
)

// StartUploadRequest carries the client's intent to upload new bytes for the
// asset at (FolderPath, Basename).
type StartUploadRequest struct {
	FolderPath  string `json:"folderPath"`
	Basename    string `json:"basename"`
	Filename    string `json:"filename,omitempty"`
	Label       string `json:"label,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// FinishUploadRequest commits an upload started earlier. UploadResponse is
// the backend's response body relayed verbatim by the client; the platform
// backend carries the storageId there.
type FinishUploadRequest struct {
	IntentID       ids.IntentID    `json:"intentId"`
	UploadResponse *UploadResponse `json:"uploadResponse,omitempty"`
	Size           int64           `json:"size,omitempty"`
	ContentType    string          `json:"contentType,omitempty"`
}

// StartUpload opens the two-phase upload protocol: it validates the target,
// ensures the asset record exists, records an upload intent, and hands the
// client a backend upload URL. The version ordinal is not assigned here;
// that happens at finish.
func (s *Service) StartUpload(ctx context.Context, req StartUploadRequest) (*StartUploadResult, error) {
	if err := s.requireAuthed(ctx); err != nil {
		return nil, err
	}
	folderPath, err := ids.NormalizePath(req.FolderPath)
	if err != nil {
		return nil, err
	}
	if err := ids.ValidateBasename(req.Basename); err != nil {
		return nil, err
	}
	// Folders are never auto-created on upload; CreateFolderByPath is the
	// explicit way to build the tree.
	if folderPath != "" {
		if _, err := s.store.GetFolder(ctx, folderPath); err != nil {
			return nil, err
		}
	}

	asset, err := s.ensureAsset(ctx, folderPath, req.Basename)
	if err != nil {
		return nil, err
	}

	backend, err := s.activeBackend()
	if err != nil {
		return nil, err
	}

	now := s.now()
	intent := &UploadIntent{
		ID:               ids.NewIntentID(),
		AssetID:          asset.ID,
		FolderPath:       folderPath,
		Basename:         req.Basename,
		Backend:          backend.Kind(),
		Label:            req.Label,
		OriginalFilename: req.Filename,
		CreatedAt:        now,
		ExpiresAt:        now + s.intentTTL.Milliseconds(),
	}
	if intent.OriginalFilename == "" {
		intent.OriginalFilename = req.Basename
	}

	uploadReq := blob.UploadRequest{ContentType: req.ContentType}
	switch backend.Kind() {
	case blob.KindR2:
		// The pending key cannot collide with another intent for the same
		// asset; it is rewritten under the final ordinal at finish.
		r2, ok := backend.(*blob.R2Client)
		if !ok {
			return nil, fmt.Errorf("%w: r2 backend misconfigured", ErrBackendFailure)
		}
		intent.R2Key = r2.PendingKey(asset.ID.String(), intent.ID.String(), intent.OriginalFilename)
		uploadReq.Key = intent.R2Key
	default:
		intent.UploadToken = ids.NewUploadToken()
		uploadReq.Token = intent.UploadToken
	}

	ticket, err := backend.IssueUpload(ctx, uploadReq)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateIntent(ctx, intent); err != nil {
		return nil, err
	}

	return &StartUploadResult{
		IntentID:  intent.ID,
		Backend:   intent.Backend,
		UploadURL: ticket.URL,
		Method:    ticket.Method,
		R2Key:     intent.R2Key,
	}, nil
}

// FinishUpload consumes an intent and commits the new version as published.
// A backend failure leaves the intent alive so the client can retry with the
// same intentId.
func (s *Service) FinishUpload(ctx context.Context, req FinishUploadRequest) (*FinishUploadResult, error) {
	if err := s.requireAuthed(ctx); err != nil {
		return nil, err
	}

	intent, err := s.store.GetIntent(ctx, req.IntentID)
	if err != nil {
		return nil, err
	}
	if intent.ConsumedAt != nil {
		return nil, ErrIntentConsumed
	}
	if intent.Expired(s.now()) {
		return nil, ErrIntentNotFound
	}

	template := AssetVersion{
		Label:            intent.Label,
		Size:             req.Size,
		ContentType:      req.ContentType,
		OriginalFilename: intent.OriginalFilename,
		Backend:          intent.Backend,
	}

	switch intent.Backend {
	case blob.KindConvex:
		if req.UploadResponse == nil || req.UploadResponse.StorageID == "" {
			return nil, ErrInvalidUploadResponse
		}
		template.StorageID = req.UploadResponse.StorageID
		// The stored blob, not the client's declaration, is authoritative
		// for size: the serving layer emits Content-Length from it.
		size, err := s.local.Stat(template.StorageID)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown storageId %q", ErrInvalidUploadResponse, template.StorageID)
		}
		template.Size = size
	case blob.KindR2:
		// Locator fields are filled per attempt below, once the ordinal is
		// known.
	default:
		return nil, fmt.Errorf("%w: unknown intent backend %q", ErrBackendFailure, intent.Backend)
	}

	var version *AssetVersion
	err = s.withRetry(ctx, func() error {
		attempt := template
		if intent.Backend == blob.KindR2 {
			if err := s.finalizeR2Object(ctx, intent, &attempt); err != nil {
				return err
			}
		}
		v, err := s.store.PublishVersion(ctx, PublishRequest{
			AssetID:       intent.AssetID,
			Template:      attempt,
			ConsumeIntent: &intent.ID,
			Now:           s.now(),
		})
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hub.Notify(intent.FolderPath)
	return &FinishUploadResult{
		AssetID:   version.AssetID,
		VersionID: version.ID,
		Version:   version.Version,
	}, nil
}

// finalizeR2Object copies the pending object under its final key for the
// ordinal this attempt expects. On a publish conflict the retry recomputes
// the ordinal and copies again; the stray copy leaks like any abandoned
// upload.
func (s *Service) finalizeR2Object(ctx context.Context, intent *UploadIntent, template *AssetVersion) error {
	r2, err := s.r2For(s.cfg.Backend().R2)
	if err != nil {
		return err
	}
	asset, err := s.store.GetAssetByID(ctx, intent.AssetID)
	if err != nil {
		return err
	}
	finalKey := r2.FinalKey(asset.ID.String(), asset.VersionCounter+1, template.OriginalFilename)
	if err := r2.CopyObject(ctx, intent.R2Key, finalKey); err != nil {
		return err
	}
	template.R2Key = finalKey
	publicURL, err := r2.ResolvePublicURL(blob.Locator{Backend: blob.KindR2, R2Key: finalKey})
	if err != nil {
		return err
	}
	// The public URL is captured at finish so later base URL rotations do
	// not break old versions.
	template.R2PublicURL = publicURL
	return nil
}

// HandleLocalUpload receives the byte stream of a platform-backend upload.
// The one-time token identifies the intent; the returned response is what
// the client relays to FinishUpload.
func (s *Service) HandleLocalUpload(ctx context.Context, token string, body io.Reader) (*UploadResponse, error) {
	intent, err := s.store.GetIntentByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if intent.ConsumedAt != nil {
		return nil, ErrIntentConsumed
	}
	if intent.Expired(s.now()) {
		return nil, ErrIntentNotFound
	}
	storageID, size, err := s.local.Save(ctx, body)
	if err != nil {
		return nil, err
	}
	return &UploadResponse{StorageID: storageID, Size: size}, nil
}
