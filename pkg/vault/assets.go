package vault

import (
	"context"
	"errors"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
)

// ListAssets returns the assets of a folder, basename ascending.
func (s *Service) ListAssets(ctx context.Context, folderPath string) ([]*Asset, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	folderPath, err := ids.NormalizePath(folderPath)
	if err != nil {
		return nil, err
	}
	return s.store.ListAssets(ctx, folderPath)
}

// GetAsset returns one asset by its stable identity.
func (s *Service) GetAsset(ctx context.Context, folderPath, basename string) (*Asset, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	folderPath, err := ids.NormalizePath(folderPath)
	if err != nil {
		return nil, err
	}
	if err := ids.ValidateBasename(basename); err != nil {
		return nil, err
	}
	return s.store.GetAsset(ctx, folderPath, basename)
}

// CreateAsset creates an empty asset record under an existing folder.
func (s *Service) CreateAsset(ctx context.Context, folderPath, basename string) (*Asset, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	folderPath, err := ids.NormalizePath(folderPath)
	if err != nil {
		return nil, err
	}
	if err := ids.ValidateBasename(basename); err != nil {
		return nil, err
	}
	if folderPath != "" {
		if _, err := s.store.GetFolder(ctx, folderPath); err != nil {
			return nil, err
		}
	}
	asset := &Asset{
		ID:         ids.NewAssetID(),
		FolderPath: folderPath,
		Basename:   basename,
		UpdatedAt:  s.now(),
	}
	if err := s.store.CreateAsset(ctx, asset); err != nil {
		return nil, err
	}
	s.hub.Notify(folderPath)
	return asset, nil
}

// RenameAsset changes an asset's basename in place. The asset keeps its id,
// versions and published pointer; only the stable URL moves.
func (s *Service) RenameAsset(ctx context.Context, folderPath, basename, newBasename string) (*Asset, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	folderPath, err := ids.NormalizePath(folderPath)
	if err != nil {
		return nil, err
	}
	if err := ids.ValidateBasename(basename); err != nil {
		return nil, err
	}
	if err := ids.ValidateBasename(newBasename); err != nil {
		return nil, err
	}
	asset, err := s.store.RenameAsset(ctx, folderPath, basename, newBasename, s.now())
	if err != nil {
		return nil, err
	}
	s.hub.Notify(folderPath)
	return asset, nil
}

// ensureAsset returns the asset at (folderPath, basename), creating an empty
// record when absent. A concurrent creator winning the race is fine; the
// existing record is returned.
func (s *Service) ensureAsset(ctx context.Context, folderPath, basename string) (*Asset, error) {
	asset, err := s.store.GetAsset(ctx, folderPath, basename)
	if err == nil {
		return asset, nil
	}
	if !errors.Is(err, ErrAssetNotFound) {
		return nil, err
	}
	asset = &Asset{
		ID:         ids.NewAssetID(),
		FolderPath: folderPath,
		Basename:   basename,
		UpdatedAt:  s.now(),
	}
	err = s.store.CreateAsset(ctx, asset)
	if errors.Is(err, ErrAssetExists) {
		return s.store.GetAsset(ctx, folderPath, basename)
	}
	if err != nil {
		return nil, err
	}
	s.hub.Notify(folderPath)
	return asset, nil
}
