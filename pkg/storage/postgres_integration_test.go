//go:build integration

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/vault"
)

// Exercises the same store against real postgres, where $N placeholders and
// unique-violation codes differ from sqlite.
func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("assetvault"),
		tcpostgres.WithUsername("assetvault"),
		tcpostgres.WithPassword("assetvault"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	s, err := Open(ctx, connStr, "")
	if err != nil {
		t.Fatalf("failed to open postgres store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	f := &vault.Folder{ID: ids.NewFolderID(), Path: "img", Name: "img", CreatedAt: 1}
	if err := s.CreateFolder(ctx, f); err != nil {
		t.Fatalf("failed to create folder: %v", err)
	}
	if err := s.CreateFolder(ctx, &vault.Folder{ID: ids.NewFolderID(), Path: "img", Name: "img", CreatedAt: 2}); !errors.Is(err, vault.ErrFolderExists) {
		t.Fatalf("expected ErrFolderExists from postgres unique violation, got %v", err)
	}

	a := &vault.Asset{ID: ids.NewAssetID(), FolderPath: "img", Basename: "logo.png", UpdatedAt: 3}
	if err := s.CreateAsset(ctx, a); err != nil {
		t.Fatalf("failed to create asset: %v", err)
	}

	v, err := s.PublishVersion(ctx, vault.PublishRequest{
		AssetID:  a.ID,
		Template: vault.AssetVersion{Backend: blob.KindConvex, StorageID: ids.NewStorageID()},
		Now:      4,
	})
	if err != nil {
		t.Fatalf("failed to publish version: %v", err)
	}

	pf, err := s.GetPublishedFile(ctx, "img", "logo.png")
	if err != nil {
		t.Fatalf("failed to resolve published file: %v", err)
	}
	if pf.Version.ID != v.ID {
		t.Fatalf("resolved %s, want %s", pf.Version.ID, v.ID)
	}

	changes, err := s.ListChangesSince(ctx, vault.Cursor{}, 10)
	if err != nil {
		t.Fatalf("failed to list changes: %v", err)
	}
	if len(changes) != 4 {
		t.Fatalf("expected 4 changelog entries, got %d", len(changes))
	}
}
