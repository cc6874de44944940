// Package vault implements the versioned asset store: a folder tree of
// assets, each accumulating immutable versions with exactly one published at
// a time, a two-phase upload protocol, an append-only changelog with
// compound-cursor pagination, and migration between byte backends.
package vault

import (
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
)

// Folder is a node of the hierarchy. The root is the empty path and has no
// row; every stored folder has a non-empty normalized path.
type Folder struct {
	ID         ids.FolderID `json:"id"`
	Path       string       `json:"path"`
	Name       string       `json:"name"`
	ParentPath string       `json:"parentPath"`
	CreatedAt  int64        `json:"createdAt"`
}

// AssetStatus classifies an asset by its version bookkeeping.
type AssetStatus string

const (
	// AssetEmpty has never had a version.
	AssetEmpty AssetStatus = "empty"
	// AssetPublished has a published version.
	AssetPublished AssetStatus = "published"
	// AssetUnknown has versions but nothing published. Only reachable via a
	// future unpublish operation; inert but permitted.
	AssetUnknown AssetStatus = "unknown"
)

// Asset is the stable identity (folderPath, basename) under which versions
// accumulate.
type Asset struct {
	ID                 ids.AssetID    `json:"id"`
	FolderPath         string         `json:"folderPath"`
	Basename           string         `json:"basename"`
	VersionCounter     int            `json:"versionCounter"`
	PublishedVersionID *ids.VersionID `json:"publishedVersionId,omitempty"`
	UpdatedAt          int64          `json:"updatedAt"`
}

// Status derives the asset's lifecycle state.
func (a *Asset) Status() AssetStatus {
	switch {
	case a.PublishedVersionID != nil:
		return AssetPublished
	case a.VersionCounter > 0:
		return AssetUnknown
	default:
		return AssetEmpty
	}
}

// VersionState is the per-version state machine: published on creation,
// archived when superseded. Archived is terminal.
type VersionState string

const (
	StatePublished VersionState = "published"
	StateArchived  VersionState = "archived"
)

// AssetVersion is one immutable snapshot of bytes plus metadata. Exactly one
// of StorageID / R2Key is populated for its backend, except during migration
// when both may briefly be set.
type AssetVersion struct {
	ID               ids.VersionID `json:"id"`
	AssetID          ids.AssetID   `json:"assetId"`
	Version          int           `json:"version"`
	State            VersionState  `json:"state"`
	CreatedAt        int64         `json:"createdAt"`
	Label            string        `json:"label,omitempty"`
	Size             int64         `json:"size"`
	ContentType      string        `json:"contentType"`
	OriginalFilename string        `json:"originalFilename"`
	Backend          blob.Kind     `json:"backend"`
	StorageID        string        `json:"storageId,omitempty"`
	R2Key            string        `json:"r2Key,omitempty"`
	R2PublicURL      string        `json:"r2PublicUrl,omitempty"`
}

// Locator packages the version's backend pointers for the blob layer.
// When both locators are populated (mid-migration) r2 wins.
func (v *AssetVersion) Locator() blob.Locator {
	backend := v.Backend
	if v.R2Key != "" {
		backend = blob.KindR2
	}
	return blob.Locator{
		Backend:     backend,
		StorageID:   v.StorageID,
		R2Key:       v.R2Key,
		R2PublicURL: v.R2PublicURL,
	}
}

// UploadIntent couples a future finishUpload to a specific startUpload,
// ensuring exactly-once version creation. Consumed intents are kept (marked)
// until the sweeper removes them so a duplicate finish is distinguishable
// from an unknown intent.
type UploadIntent struct {
	ID               ids.IntentID   `json:"intentId"`
	AssetID          ids.AssetID    `json:"assetId"`
	FolderPath       string         `json:"folderPath"`
	Basename         string         `json:"basename"`
	Backend          blob.Kind      `json:"backend"`
	R2Key            string         `json:"r2Key,omitempty"`
	UploadToken      string         `json:"-"`
	Label            string         `json:"label,omitempty"`
	OriginalFilename string         `json:"originalFilename,omitempty"`
	CreatedAt        int64          `json:"createdAt"`
	ExpiresAt        int64          `json:"expiresAt"`
	ConsumedAt       *int64         `json:"-"`
	VersionID        *ids.VersionID `json:"-"`
}

// Expired reports whether the intent's TTL has elapsed at the given time.
func (i *UploadIntent) Expired(nowMillis int64) bool { return nowMillis >= i.ExpiresAt }

// ChangeKind enumerates changelog entry kinds.
type ChangeKind string

const (
	ChangeFolderCreated    ChangeKind = "folderCreated"
	ChangeFolderRenamed    ChangeKind = "folderRenamed"
	ChangeAssetCreated     ChangeKind = "assetCreated"
	ChangeAssetRenamed     ChangeKind = "assetRenamed"
	ChangeVersionCreated   ChangeKind = "versionCreated"
	ChangeVersionPublished ChangeKind = "versionPublished"
	ChangeVersionArchived  ChangeKind = "versionArchived"
)

// ChangeEntry is one append-only changelog row. (CreatedAt, ID) is the only
// total order exposed to readers; CreatedAt is milliseconds since epoch
// assigned at insert.
type ChangeEntry struct {
	ID         ids.ChangeID  `json:"id"`
	CreatedAt  int64         `json:"createdAt"`
	Kind       ChangeKind    `json:"kind"`
	FolderPath string        `json:"folderPath"`
	Basename   string        `json:"basename,omitempty"`
	AssetID    ids.AssetID   `json:"assetId,omitempty"`
	VersionID  ids.VersionID `json:"versionId,omitempty"`
}

// Cursor is the compound changelog position. The zero value ({0, ""}) is the
// beginning of time.
type Cursor struct {
	CreatedAt int64  `json:"createdAt"`
	ID        string `json:"id"`
}

// Less orders cursors lexicographically on (CreatedAt, ID).
func (c Cursor) Less(o Cursor) bool {
	if c.CreatedAt != o.CreatedAt {
		return c.CreatedAt < o.CreatedAt
	}
	return c.ID < o.ID
}

// Covers reports whether an entry lies strictly past the cursor, i.e. it
// would be returned by a listSince query at this cursor.
func (c Cursor) Covers(e *ChangeEntry) bool {
	if e.CreatedAt != c.CreatedAt {
		return e.CreatedAt > c.CreatedAt
	}
	return string(e.ID) > c.ID
}

// ChangePage is one page of changelog entries. NextCursor equals the input
// cursor when the page is empty, so clients can always resume from it.
type ChangePage struct {
	Changes    []*ChangeEntry `json:"changes"`
	NextCursor Cursor         `json:"nextCursor"`
}

// PublishedFile is the resolution of a stable (folderPath, basename) pair to
// its currently published version.
type PublishedFile struct {
	Asset   *Asset        `json:"asset"`
	Version *AssetVersion `json:"version"`
}

// StartUploadResult is returned by StartUpload.
type StartUploadResult struct {
	IntentID  ids.IntentID `json:"intentId"`
	Backend   blob.Kind    `json:"backend"`
	UploadURL string       `json:"uploadUrl"`
	Method    string       `json:"method"`
	R2Key     string       `json:"r2Key,omitempty"`
}

// FinishUploadResult is returned by FinishUpload and RestoreVersion.
type FinishUploadResult struct {
	AssetID   ids.AssetID   `json:"assetId"`
	VersionID ids.VersionID `json:"versionId"`
	Version   int           `json:"version"`
}

// UploadResponse is the backend response the client relays to FinishUpload.
// The platform backend's upload response carries the storageId.
type UploadResponse struct {
	StorageID string `json:"storageId,omitempty"`
	// Size is the byte count the store measured while receiving the blob.
	Size int64 `json:"size,omitempty"`
}
