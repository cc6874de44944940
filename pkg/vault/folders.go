package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
)

// rootFolder is the implicit root of the hierarchy; it has no stored row.
func rootFolder() *Folder { return &Folder{Path: "", Name: "", ParentPath: ""} }

// GetFolder returns a folder by path. The root always exists.
func (s *Service) GetFolder(ctx context.Context, path string) (*Folder, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	path, err := ids.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return rootFolder(), nil
	}
	return s.store.GetFolder(ctx, path)
}

// ListFolders returns the direct children of a parent path, name ascending.
func (s *Service) ListFolders(ctx context.Context, parentPath string) ([]*Folder, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	parentPath, err := ids.NormalizePath(parentPath)
	if err != nil {
		return nil, err
	}
	return s.store.ListFolders(ctx, parentPath)
}

// ListAllFolders returns the whole tree, path ascending.
func (s *Service) ListAllFolders(ctx context.Context) ([]*Folder, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.store.ListAllFolders(ctx)
}

// CreateFolderByName creates one folder under an existing parent.
func (s *Service) CreateFolderByName(ctx context.Context, parentPath, name string) (*Folder, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	parentPath, err := ids.NormalizePath(parentPath)
	if err != nil {
		return nil, err
	}
	if err := ids.ValidateBasename(name); err != nil {
		return nil, err
	}
	if parentPath != "" {
		if _, err := s.store.GetFolder(ctx, parentPath); err != nil {
			return nil, err
		}
	}

	folder := &Folder{
		ID:         ids.NewFolderID(),
		Path:       ids.JoinPath(parentPath, name),
		Name:       name,
		ParentPath: parentPath,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}
	s.hub.Notify(folder.Path)
	return folder, nil
}

// CreateFolderByPath creates every missing folder along a normalized path
// and returns the leaf. Idempotent: existing folders are left untouched.
func (s *Service) CreateFolderByPath(ctx context.Context, path string) (*Folder, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	path, err := ids.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return rootFolder(), nil
	}

	for _, prefix := range append(ids.Ancestors(path), path) {
		parent, name := ids.SplitPath(prefix)
		folder := &Folder{
			ID:         ids.NewFolderID(),
			Path:       prefix,
			Name:       name,
			ParentPath: parent,
			CreatedAt:  s.now(),
		}
		err := s.store.CreateFolder(ctx, folder)
		if err == nil {
			s.hub.Notify(prefix)
			continue
		}
		if errors.Is(err, ErrFolderExists) {
			continue
		}
		return nil, err
	}
	return s.store.GetFolder(ctx, path)
}

// UpdateFolder exists for API symmetry but folder renames are reserved for a
// later revision, so any name change is rejected.
func (s *Service) UpdateFolder(ctx context.Context, path, newName string) (*Folder, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	path, err := ids.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: root folder cannot be updated", ErrInvalidPath)
	}
	folder, err := s.store.GetFolder(ctx, path)
	if err != nil {
		return nil, err
	}
	if newName != "" && newName != folder.Name {
		return nil, fmt.Errorf("%w: folder rename is not supported", ErrInvalidBasename)
	}
	return folder, nil
}
