package vault

import (
	"context"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
)

// PublishRequest is the input to Store.PublishVersion: the metadata of the
// version to create, minus the fields the store assigns (ID, ordinal, state,
// createdAt). FinishUpload and RestoreVersion both go through it.
type PublishRequest struct {
	AssetID  ids.AssetID
	Template AssetVersion
	// ConsumeIntent, when set, marks the intent consumed inside the same
	// transaction; a concurrently consumed intent fails the whole publish.
	ConsumeIntent *ids.IntentID
	Now           int64
}

// Store is the transactional metadata repository. Every mutating call
// appends its changelog entries inside the same transaction as the data
// change; no entry exists without its mutation and vice versa.
//
// Methods return the sentinel error kinds of this package. PublishVersion
// and RenameAsset may return ErrTxConflict, which callers retry.
type Store interface {
	// Folders
	GetFolder(ctx context.Context, path string) (*Folder, error)
	ListFolders(ctx context.Context, parentPath string) ([]*Folder, error)
	ListAllFolders(ctx context.Context) ([]*Folder, error)
	CreateFolder(ctx context.Context, folder *Folder) error

	// Assets
	GetAsset(ctx context.Context, folderPath, basename string) (*Asset, error)
	GetAssetByID(ctx context.Context, id ids.AssetID) (*Asset, error)
	ListAssets(ctx context.Context, folderPath string) ([]*Asset, error)
	CreateAsset(ctx context.Context, asset *Asset) error
	RenameAsset(ctx context.Context, folderPath, basename, newBasename string, now int64) (*Asset, error)

	// Versions
	GetVersion(ctx context.Context, id ids.VersionID) (*AssetVersion, error)
	ListVersions(ctx context.Context, assetID ids.AssetID) ([]*AssetVersion, error)
	GetPublishedFile(ctx context.Context, folderPath, basename string) (*PublishedFile, error)
	ListPublishedInFolder(ctx context.Context, folderPath string) ([]*PublishedFile, error)
	PublishVersion(ctx context.Context, req PublishRequest) (*AssetVersion, error)

	// Upload intents
	CreateIntent(ctx context.Context, intent *UploadIntent) error
	GetIntent(ctx context.Context, id ids.IntentID) (*UploadIntent, error)
	GetIntentByToken(ctx context.Context, token string) (*UploadIntent, error)
	SweepIntents(ctx context.Context, now int64) (int, error)

	// Changelog
	ListChangesSince(ctx context.Context, cursor Cursor, limit int) ([]*ChangeEntry, error)
	ListFolderChanges(ctx context.Context, folderPath string, cursor Cursor, limit int) ([]*ChangeEntry, error)

	// Migration bookkeeping
	SetVersionR2(ctx context.Context, id ids.VersionID, r2Key, r2PublicURL string) error
	ClearVersionStorageID(ctx context.Context, id ids.VersionID) error
	ListVersionsForMigration(ctx context.Context, limit int) ([]*AssetVersion, error)
	ListVersionsMissingPublicURL(ctx context.Context, limit int) ([]*AssetVersion, error)

	HealthCheck(ctx context.Context) error
	Close() error
}
