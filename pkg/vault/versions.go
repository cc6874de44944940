package vault

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
)

// maxTextPreviewBytes bounds GetTextContent reads.
const maxTextPreviewBytes = 1 << 20

// GetAssetVersions returns the full version history of an asset, newest
// ordinal first. Public.
func (s *Service) GetAssetVersions(ctx context.Context, folderPath, basename string) ([]*AssetVersion, error) {
	folderPath, err := ids.NormalizePath(folderPath)
	if err != nil {
		return nil, err
	}
	if err := ids.ValidateBasename(basename); err != nil {
		return nil, err
	}
	asset, err := s.store.GetAsset(ctx, folderPath, basename)
	if err != nil {
		return nil, err
	}
	return s.store.ListVersions(ctx, asset.ID)
}

// GetVersion loads a version by id. Public; version ids are unguessable.
func (s *Service) GetVersion(ctx context.Context, versionID ids.VersionID) (*AssetVersion, error) {
	return s.store.GetVersion(ctx, versionID)
}

// OpenVersion opens the version's bytes for server-side streaming. The caller
// owns the returned reader.
func (s *Service) OpenVersion(ctx context.Context, version *AssetVersion) (io.ReadCloser, error) {
	loc := version.Locator()
	backend, err := s.backendForLocator(loc)
	if err != nil {
		return nil, err
	}
	return backend.ReadBytes(ctx, loc)
}

// GetPublishedFile resolves a stable identity to its currently published
// version. Public.
func (s *Service) GetPublishedFile(ctx context.Context, folderPath, basename string) (*PublishedFile, error) {
	folderPath, err := ids.NormalizePath(folderPath)
	if err != nil {
		return nil, err
	}
	if err := ids.ValidateBasename(basename); err != nil {
		return nil, err
	}
	return s.store.GetPublishedFile(ctx, folderPath, basename)
}

// ListPublishedFilesInFolder resolves every published asset in a folder.
// Public.
func (s *Service) ListPublishedFilesInFolder(ctx context.Context, folderPath string) ([]*PublishedFile, error) {
	folderPath, err := ids.NormalizePath(folderPath)
	if err != nil {
		return nil, err
	}
	return s.store.ListPublishedInFolder(ctx, folderPath)
}

// RestoreVersion publishes a fresh copy of an archived version's metadata
// and locator; the bytes are not re-uploaded. The version counter advances,
// so restore is deliberately not idempotent.
func (s *Service) RestoreVersion(ctx context.Context, versionID ids.VersionID) (*FinishUploadResult, error) {
	if err := s.requireAuthed(ctx); err != nil {
		return nil, err
	}
	source, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	var version *AssetVersion
	err = s.withRetry(ctx, func() error {
		v, err := s.store.PublishVersion(ctx, PublishRequest{
			AssetID: source.AssetID,
			Template: AssetVersion{
				Label:            source.Label,
				Size:             source.Size,
				ContentType:      source.ContentType,
				OriginalFilename: source.OriginalFilename,
				Backend:          source.Backend,
				StorageID:        source.StorageID,
				R2Key:            source.R2Key,
				R2PublicURL:      source.R2PublicURL,
			},
			Now: s.now(),
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

	if asset, err := s.store.GetAssetByID(ctx, version.AssetID); err == nil {
		s.hub.Notify(asset.FolderPath)
	}
	return &FinishUploadResult{
		AssetID:   version.AssetID,
		VersionID: version.ID,
		Version:   version.Version,
	}, nil
}

// GetVersionPreviewUrl returns a URL at which the version's bytes can be
// fetched: the captured public URL for r2 versions, the server's immutable
// route otherwise. Public.
func (s *Service) GetVersionPreviewUrl(ctx context.Context, versionID ids.VersionID) (string, error) {
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return "", err
	}
	loc := version.Locator()
	if loc.Backend == blob.KindR2 {
		backend, err := s.backendForLocator(loc)
		if err != nil {
			return "", err
		}
		return backend.ResolvePublicURL(loc)
	}
	return s.publicBaseURL + "/assets/v/" + version.ID.String(), nil
}

// GetSignedUrl returns a short-lived read URL for private buckets; platform
// versions fall back to the server's immutable route, which needs no
// signature. Public.
func (s *Service) GetSignedUrl(ctx context.Context, versionID ids.VersionID, ttl time.Duration) (string, error) {
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return "", err
	}
	loc := version.Locator()
	if loc.Backend == blob.KindR2 {
		backend, err := s.backendForLocator(loc)
		if err != nil {
			return "", err
		}
		return backend.SignedReadURL(ctx, loc, ttl)
	}
	return s.publicBaseURL + "/assets/v/" + version.ID.String(), nil
}

// GetTextContent reads a version's bytes server-side for text preview,
// bounded at one MiB. Public.
func (s *Service) GetTextContent(ctx context.Context, versionID ids.VersionID) (string, error) {
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return "", err
	}
	if version.Size > maxTextPreviewBytes {
		return "", fmt.Errorf("content too large for text preview: %d bytes", version.Size)
	}
	loc := version.Locator()
	backend, err := s.backendForLocator(loc)
	if err != nil {
		return "", err
	}
	rc, err := backend.ReadBytes(ctx, loc)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxTextPreviewBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read version content: %w", err)
	}
	if len(data) > maxTextPreviewBytes {
		return "", fmt.Errorf("content too large for text preview")
	}
	return string(data), nil
}
