package vault

import (
	"context"
	"time"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
)

// defaultChangeLimit caps one changelog page.
const defaultChangeLimit = 100

func clampLimit(limit int) int {
	if limit <= 0 || limit > defaultChangeLimit {
		return defaultChangeLimit
	}
	return limit
}

func pageOf(entries []*ChangeEntry, cursor Cursor) *ChangePage {
	page := &ChangePage{Changes: entries, NextCursor: cursor}
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		page.NextCursor = Cursor{CreatedAt: last.CreatedAt, ID: last.ID.String()}
	}
	if page.Changes == nil {
		page.Changes = []*ChangeEntry{}
	}
	return page
}

// WatchChangelog pages the global changelog past the cursor. When the page
// would be empty and wait is positive, the call blocks until a change lands
// or the wait elapses, then queries once more. Admin.
func (s *Service) WatchChangelog(ctx context.Context, cursor Cursor, limit int, wait time.Duration) (*ChangePage, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	entries, err := s.store.ListChangesSince(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 || wait <= 0 {
		return pageOf(entries, cursor), nil
	}

	wake, cancel := s.hub.SubscribeGlobal()
	defer cancel()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	case <-wake:
	}
	entries, err = s.store.ListChangesSince(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}
	return pageOf(entries, cursor), nil
}

// WatchFolderChanges is WatchChangelog scoped to one folder. Admin.
func (s *Service) WatchFolderChanges(ctx context.Context, folderPath string, cursor Cursor, limit int, wait time.Duration) (*ChangePage, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	folderPath, err := ids.NormalizePath(folderPath)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	entries, err := s.store.ListFolderChanges(ctx, folderPath, cursor, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 || wait <= 0 {
		return pageOf(entries, cursor), nil
	}

	wake, cancel := s.hub.SubscribeFolder(folderPath)
	defer cancel()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	case <-wake:
	}
	entries, err = s.store.ListFolderChanges(ctx, folderPath, cursor, limit)
	if err != nil {
		return nil, err
	}
	return pageOf(entries, cursor), nil
}
