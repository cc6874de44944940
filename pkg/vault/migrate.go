package vault

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
)

// migrationBatch bounds one ListVersionsForMigration page.
const migrationBatch = 100

// MigrateVersionToR2 copies a platform-backend version's bytes to r2 and
// dual-points the row: r2Key and r2PublicUrl are added while storageId stays
// until the cleanup pass. Already-migrated versions are a no-op. Admin.
func (s *Service) MigrateVersionToR2(ctx context.Context, versionID ids.VersionID) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	return s.migrateVersion(ctx, versionID)
}

func (s *Service) migrateVersion(ctx context.Context, versionID ids.VersionID) error {
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if version.R2Key != "" {
		return nil
	}
	if version.StorageID == "" {
		return fmt.Errorf("version %s has no platform locator to migrate", versionID)
	}

	r2, err := s.r2For(s.cfg.Backend().R2)
	if err != nil {
		return err
	}

	rc, err := s.local.ReadBytes(ctx, blob.Locator{Backend: blob.KindConvex, StorageID: version.StorageID})
	if err != nil {
		return err
	}
	defer rc.Close()

	key := r2.FinalKey(version.AssetID.String(), version.Version, version.OriginalFilename)
	if err := r2.PutObject(ctx, key, rc, version.Size, version.ContentType); err != nil {
		return err
	}
	publicURL, err := r2.ResolvePublicURL(blob.Locator{Backend: blob.KindR2, R2Key: key})
	if err != nil {
		return err
	}
	if err := s.store.SetVersionR2(ctx, versionID, key, publicURL); err != nil {
		return err
	}

	s.log.WithFields(map[string]interface{}{
		"versionId": versionID.String(),
		"r2Key":     key,
	}).Info("migrated version to r2")
	return nil
}

// MigrateAllToR2 migrates every platform-only version, boundedly parallel.
// It returns the number of versions migrated; the first failure stops the
// run but already-migrated versions stay migrated. Admin.
func (s *Service) MigrateAllToR2(ctx context.Context, concurrency int) (int, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return 0, err
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	var migrated atomic.Int64
	for {
		pending, err := s.store.ListVersionsForMigration(ctx, migrationBatch)
		if err != nil {
			return int(migrated.Load()), err
		}
		if len(pending) == 0 {
			return int(migrated.Load()), nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, v := range pending {
			v := v
			g.Go(func() error {
				if err := s.migrateVersion(gctx, v.ID); err != nil {
					return fmt.Errorf("failed to migrate version %s: %w", v.ID, err)
				}
				migrated.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return int(migrated.Load()), err
		}
	}
}

// SetVersionR2PublicURL backfills the captured public URL of an r2 version.
// Idempotent: versions without an r2 key or with a URL already captured are
// skipped. Admin.
func (s *Service) SetVersionR2PublicURL(ctx context.Context, versionID ids.VersionID) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if version.R2Key == "" || version.R2PublicURL != "" {
		return nil
	}
	r2, err := s.r2For(s.cfg.Backend().R2)
	if err != nil {
		return err
	}
	publicURL, err := r2.ResolvePublicURL(blob.Locator{Backend: blob.KindR2, R2Key: version.R2Key})
	if err != nil {
		return err
	}
	return s.store.SetVersionR2(ctx, versionID, version.R2Key, publicURL)
}

// CleanupVersionStorage drops a dual-pointed version's platform locator once
// the r2 object is confirmed present. Admin.
func (s *Service) CleanupVersionStorage(ctx context.Context, versionID ids.VersionID) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if version.R2Key == "" {
		return fmt.Errorf("version %s is not migrated", versionID)
	}
	if version.StorageID == "" {
		return nil
	}
	r2, err := s.r2For(s.cfg.Backend().R2)
	if err != nil {
		return err
	}
	exists, err := r2.Exists(ctx, version.R2Key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: r2 object %s missing, refusing to drop platform locator", ErrBackendFailure, version.R2Key)
	}
	return s.store.ClearVersionStorageID(ctx, versionID)
}
