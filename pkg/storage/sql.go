// Package storage implements the metadata repository on database/sql, with
// postgres for deployments and embedded sqlite for single-node use. All
// queries use $N placeholders, which both lib/pq and go-sqlite3 accept as
// long as each placeholder appears once, in ascending order.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/vault"
)

// SQLStore implements vault.Store over a relational database.
type SQLStore struct {
	db *sql.DB
}

// Open connects to postgres when databaseURL is set, otherwise to an
// embedded sqlite database under dataDir, and applies the schema.
func Open(ctx context.Context, databaseURL, dataDir string) (*SQLStore, error) {
	var (
		db  *sql.DB
		err error
	)
	if databaseURL != "" {
		db, err = sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn := filepath.Join(dataDir, "assetvault.db") + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// sqlite allows a single writer; one connection avoids lock errors.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	store := &SQLStore{db: db}
	if err := store.applySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an existing database handle and applies the schema.
// Tests use it with in-memory sqlite.
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	store := &SQLStore{db: db}
	if err := store.applySchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) applySchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// HealthCheck verifies database connectivity.
func (s *SQLStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }

// isUniqueViolation recognizes duplicate-key errors from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

// --- Folders ---

const folderCols = `id, path, name, parent_path, created_at`

func scanFolder(row rowScanner) (*vault.Folder, error) {
	var f vault.Folder
	var id string
	if err := row.Scan(&id, &f.Path, &f.Name, &f.ParentPath, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.ID = ids.FolderID(id)
	return &f, nil
}

// GetFolder retrieves a folder by its normalized path.
func (s *SQLStore) GetFolder(ctx context.Context, path string) (*vault.Folder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+folderCols+` FROM folders WHERE path = $1`, path)
	f, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return f, nil
}

// ListFolders retrieves the direct children of a parent path, ordered by name.
func (s *SQLStore) ListFolders(ctx context.Context, parentPath string) ([]*vault.Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+folderCols+` FROM folders WHERE parent_path = $1 ORDER BY name`, parentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()
	return collectFolders(rows)
}

// ListAllFolders retrieves every folder, ordered by path.
func (s *SQLStore) ListAllFolders(ctx context.Context) ([]*vault.Folder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+folderCols+` FROM folders ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()
	return collectFolders(rows)
}

func collectFolders(rows *sql.Rows) ([]*vault.Folder, error) {
	var out []*vault.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateFolder inserts a folder and its changelog entry in one transaction.
func (s *SQLStore) CreateFolder(ctx context.Context, folder *vault.Folder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO folders (id, path, name, parent_path, created_at) VALUES ($1, $2, $3, $4, $5)`,
		folder.ID.String(), folder.Path, folder.Name, folder.ParentPath, folder.CreatedAt)
	if isUniqueViolation(err) {
		return vault.ErrFolderExists
	}
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	if err := appendChange(ctx, tx, folder.CreatedAt, vault.ChangeFolderCreated, folder.Path, "", "", ""); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// --- Assets ---

const assetCols = `id, folder_path, basename, version_counter, published_version_id, updated_at`

func scanAsset(row rowScanner) (*vault.Asset, error) {
	var a vault.Asset
	var id string
	var published sql.NullString
	if err := row.Scan(&id, &a.FolderPath, &a.Basename, &a.VersionCounter, &published, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ID = ids.AssetID(id)
	if published.Valid {
		v := ids.VersionID(published.String)
		a.PublishedVersionID = &v
	}
	return &a, nil
}

// GetAsset retrieves an asset by its stable (folderPath, basename) identity.
func (s *SQLStore) GetAsset(ctx context.Context, folderPath, basename string) (*vault.Asset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assetCols+` FROM assets WHERE folder_path = $1 AND basename = $2`, folderPath, basename)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return a, nil
}

// GetAssetByID retrieves an asset by identifier.
func (s *SQLStore) GetAssetByID(ctx context.Context, id ids.AssetID) (*vault.Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetCols+` FROM assets WHERE id = $1`, id.String())
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return a, nil
}

// ListAssets retrieves all assets in a folder, ordered by basename.
func (s *SQLStore) ListAssets(ctx context.Context, folderPath string) ([]*vault.Asset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assetCols+` FROM assets WHERE folder_path = $1 ORDER BY basename`, folderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()
	var out []*vault.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateAsset inserts an asset and its changelog entry in one transaction.
func (s *SQLStore) CreateAsset(ctx context.Context, asset *vault.Asset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assets (id, folder_path, basename, version_counter, published_version_id, updated_at)
		 VALUES ($1, $2, $3, $4, NULL, $5)`,
		asset.ID.String(), asset.FolderPath, asset.Basename, asset.VersionCounter, asset.UpdatedAt)
	if isUniqueViolation(err) {
		return vault.ErrAssetExists
	}
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	if err := appendChange(ctx, tx, asset.UpdatedAt, vault.ChangeAssetCreated, asset.FolderPath, asset.Basename, asset.ID, ""); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RenameAsset changes an asset's basename within its folder. The asset keeps
// its identifier, versions and published pointer.
func (s *SQLStore) RenameAsset(ctx context.Context, folderPath, basename, newBasename string, now int64) (*vault.Asset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+assetCols+` FROM assets WHERE folder_path = $1 AND basename = $2`, folderPath, basename)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE assets SET basename = $1, updated_at = $2 WHERE id = $3`,
		newBasename, now, a.ID.String())
	if isUniqueViolation(err) {
		return nil, vault.ErrAssetExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rename asset: %w", err)
	}
	if err := appendChange(ctx, tx, now, vault.ChangeAssetRenamed, folderPath, newBasename, a.ID, ""); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	a.Basename = newBasename
	a.UpdatedAt = now
	return a, nil
}

// --- Versions ---

const versionCols = `id, asset_id, version, state, created_at, label, size, content_type, original_filename, backend, storage_id, r2_key, r2_public_url`

func scanVersion(row rowScanner) (*vault.AssetVersion, error) {
	var v vault.AssetVersion
	var id, assetID, state, backend string
	if err := row.Scan(&id, &assetID, &v.Version, &state, &v.CreatedAt, &v.Label, &v.Size,
		&v.ContentType, &v.OriginalFilename, &backend, &v.StorageID, &v.R2Key, &v.R2PublicURL); err != nil {
		return nil, err
	}
	v.ID = ids.VersionID(id)
	v.AssetID = ids.AssetID(assetID)
	v.State = vault.VersionState(state)
	v.Backend = blob.Kind(backend)
	return &v, nil
}

// GetVersion retrieves a version by identifier.
func (s *SQLStore) GetVersion(ctx context.Context, id ids.VersionID) (*vault.AssetVersion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+versionCols+` FROM asset_versions WHERE id = $1`, id.String())
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// ListVersions retrieves all versions of an asset, newest ordinal first.
func (s *SQLStore) ListVersions(ctx context.Context, assetID ids.AssetID) ([]*vault.AssetVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionCols+` FROM asset_versions WHERE asset_id = $1 ORDER BY version DESC`, assetID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()
	return collectVersions(rows)
}

func collectVersions(rows *sql.Rows) ([]*vault.AssetVersion, error) {
	var out []*vault.AssetVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetPublishedFile resolves a stable identity to its published version.
func (s *SQLStore) GetPublishedFile(ctx context.Context, folderPath, basename string) (*vault.PublishedFile, error) {
	a, err := s.GetAsset(ctx, folderPath, basename)
	if err != nil {
		return nil, err
	}
	if a.PublishedVersionID == nil {
		return nil, vault.ErrVersionNotFound
	}
	v, err := s.GetVersion(ctx, *a.PublishedVersionID)
	if err != nil {
		return nil, err
	}
	return &vault.PublishedFile{Asset: a, Version: v}, nil
}

// ListPublishedInFolder resolves every published asset in a folder, ordered
// by basename.
func (s *SQLStore) ListPublishedInFolder(ctx context.Context, folderPath string) ([]*vault.PublishedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.folder_path, a.basename, a.version_counter, a.published_version_id, a.updated_at,
		        v.id, v.asset_id, v.version, v.state, v.created_at, v.label, v.size, v.content_type,
		        v.original_filename, v.backend, v.storage_id, v.r2_key, v.r2_public_url
		 FROM assets a
		 JOIN asset_versions v ON v.id = a.published_version_id
		 WHERE a.folder_path = $1
		 ORDER BY a.basename`, folderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list published files: %w", err)
	}
	defer rows.Close()

	var out []*vault.PublishedFile
	for rows.Next() {
		var a vault.Asset
		var v vault.AssetVersion
		var aID, published, vID, vAssetID, vState, vBackend string
		if err := rows.Scan(&aID, &a.FolderPath, &a.Basename, &a.VersionCounter, &published, &a.UpdatedAt,
			&vID, &vAssetID, &v.Version, &vState, &v.CreatedAt, &v.Label, &v.Size, &v.ContentType,
			&v.OriginalFilename, &vBackend, &v.StorageID, &v.R2Key, &v.R2PublicURL); err != nil {
			return nil, fmt.Errorf("failed to scan published file: %w", err)
		}
		a.ID = ids.AssetID(aID)
		pub := ids.VersionID(published)
		a.PublishedVersionID = &pub
		v.ID = ids.VersionID(vID)
		v.AssetID = ids.AssetID(vAssetID)
		v.State = vault.VersionState(vState)
		v.Backend = blob.Kind(vBackend)
		out = append(out, &vault.PublishedFile{Asset: &a, Version: &v})
	}
	return out, rows.Err()
}

// PublishVersion creates the next version of an asset as published, archives
// the previously published version, optionally consumes an upload intent,
// and appends the changelog entries, all in one transaction. Concurrent
// publishes against the same asset are detected by the version counter guard
// and surface as ErrTxConflict.
func (s *SQLStore) PublishVersion(ctx context.Context, req vault.PublishRequest) (*vault.AssetVersion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+assetCols+` FROM assets WHERE id = $1`, req.AssetID.String())
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	newVersion := &vault.AssetVersion{
		ID:               ids.NewVersionID(),
		AssetID:          req.AssetID,
		Version:          asset.VersionCounter + 1,
		State:            vault.StatePublished,
		CreatedAt:        req.Now,
		Label:            req.Template.Label,
		Size:             req.Template.Size,
		ContentType:      req.Template.ContentType,
		OriginalFilename: req.Template.OriginalFilename,
		Backend:          req.Template.Backend,
		StorageID:        req.Template.StorageID,
		R2Key:            req.Template.R2Key,
		R2PublicURL:      req.Template.R2PublicURL,
	}

	if req.ConsumeIntent != nil {
		res, err := tx.ExecContext(ctx,
			`UPDATE upload_intents SET consumed_at = $1, version_id = $2 WHERE id = $3 AND consumed_at IS NULL`,
			req.Now, newVersion.ID.String(), req.ConsumeIntent.String())
		if err != nil {
			return nil, fmt.Errorf("failed to consume upload intent: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to consume upload intent: %w", err)
		}
		if n == 0 {
			var consumed sql.NullInt64
			err := tx.QueryRowContext(ctx,
				`SELECT consumed_at FROM upload_intents WHERE id = $1`, req.ConsumeIntent.String()).Scan(&consumed)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, vault.ErrIntentNotFound
			}
			if err != nil {
				return nil, fmt.Errorf("failed to get upload intent: %w", err)
			}
			return nil, vault.ErrIntentConsumed
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO asset_versions (id, asset_id, version, state, created_at, label, size, content_type,
		    original_filename, backend, storage_id, r2_key, r2_public_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		newVersion.ID.String(), newVersion.AssetID.String(), newVersion.Version, string(newVersion.State),
		newVersion.CreatedAt, newVersion.Label, newVersion.Size, newVersion.ContentType,
		newVersion.OriginalFilename, string(newVersion.Backend), newVersion.StorageID,
		newVersion.R2Key, newVersion.R2PublicURL)
	if isUniqueViolation(err) {
		// Another publish took this ordinal first.
		return nil, vault.ErrTxConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert version: %w", err)
	}

	if asset.PublishedVersionID != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE asset_versions SET state = $1 WHERE id = $2`,
			string(vault.StateArchived), asset.PublishedVersionID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to archive previous version: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE assets SET version_counter = $1, published_version_id = $2, updated_at = $3
		 WHERE id = $4 AND version_counter = $5`,
		newVersion.Version, newVersion.ID.String(), req.Now, req.AssetID.String(), asset.VersionCounter)
	if err != nil {
		return nil, fmt.Errorf("failed to update asset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update asset: %w", err)
	}
	if n == 0 {
		return nil, vault.ErrTxConflict
	}

	// The archive entry precedes the create/publish pair, mirroring the
	// order the states change in.
	if asset.PublishedVersionID != nil {
		if err := appendChange(ctx, tx, req.Now, vault.ChangeVersionArchived, asset.FolderPath, asset.Basename, asset.ID, *asset.PublishedVersionID); err != nil {
			return nil, err
		}
	}
	if err := appendChange(ctx, tx, req.Now, vault.ChangeVersionCreated, asset.FolderPath, asset.Basename, asset.ID, newVersion.ID); err != nil {
		return nil, err
	}
	if err := appendChange(ctx, tx, req.Now, vault.ChangeVersionPublished, asset.FolderPath, asset.Basename, asset.ID, newVersion.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return newVersion, nil
}

// --- Upload intents ---

const intentCols = `id, asset_id, folder_path, basename, backend, r2_key, upload_token, label, original_filename, created_at, expires_at, consumed_at, version_id`

func scanIntent(row rowScanner) (*vault.UploadIntent, error) {
	var i vault.UploadIntent
	var id, assetID, backend string
	var consumedAt sql.NullInt64
	var versionID sql.NullString
	if err := row.Scan(&id, &assetID, &i.FolderPath, &i.Basename, &backend, &i.R2Key, &i.UploadToken,
		&i.Label, &i.OriginalFilename, &i.CreatedAt, &i.ExpiresAt, &consumedAt, &versionID); err != nil {
		return nil, err
	}
	i.ID = ids.IntentID(id)
	i.AssetID = ids.AssetID(assetID)
	i.Backend = blob.Kind(backend)
	if consumedAt.Valid {
		v := consumedAt.Int64
		i.ConsumedAt = &v
	}
	if versionID.Valid {
		v := ids.VersionID(versionID.String)
		i.VersionID = &v
	}
	return &i, nil
}

// CreateIntent inserts an upload intent.
func (s *SQLStore) CreateIntent(ctx context.Context, intent *vault.UploadIntent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO upload_intents (id, asset_id, folder_path, basename, backend, r2_key, upload_token,
		    label, original_filename, created_at, expires_at, consumed_at, version_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL, NULL)`,
		intent.ID.String(), intent.AssetID.String(), intent.FolderPath, intent.Basename,
		string(intent.Backend), intent.R2Key, intent.UploadToken, intent.Label,
		intent.OriginalFilename, intent.CreatedAt, intent.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create upload intent: %w", err)
	}
	return nil
}

// GetIntent retrieves an upload intent by identifier.
func (s *SQLStore) GetIntent(ctx context.Context, id ids.IntentID) (*vault.UploadIntent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+intentCols+` FROM upload_intents WHERE id = $1`, id.String())
	i, err := scanIntent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload intent: %w", err)
	}
	return i, nil
}

// GetIntentByToken retrieves an upload intent by its one-time upload token.
func (s *SQLStore) GetIntentByToken(ctx context.Context, token string) (*vault.UploadIntent, error) {
	if token == "" {
		return nil, vault.ErrIntentNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+intentCols+` FROM upload_intents WHERE upload_token = $1`, token)
	i, err := scanIntent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload intent: %w", err)
	}
	return i, nil
}

// SweepIntents deletes intents whose TTL elapsed, consumed or not, and
// returns how many were removed.
func (s *SQLStore) SweepIntents(ctx context.Context, now int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM upload_intents WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep upload intents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to sweep upload intents: %w", err)
	}
	return int(n), nil
}

// --- Changelog ---

const changeCols = `id, created_at, kind, folder_path, basename, asset_id, version_id`

func appendChange(ctx context.Context, tx *sql.Tx, now int64, kind vault.ChangeKind, folderPath, basename string, assetID ids.AssetID, versionID ids.VersionID) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO changelog (id, created_at, kind, folder_path, basename, asset_id, version_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ids.NewChangeID().String(), now, string(kind), folderPath, basename, assetID.String(), versionID.String())
	if err != nil {
		return fmt.Errorf("failed to append changelog entry: %w", err)
	}
	return nil
}

func scanChange(row rowScanner) (*vault.ChangeEntry, error) {
	var e vault.ChangeEntry
	var id, kind, assetID, versionID string
	if err := row.Scan(&id, &e.CreatedAt, &kind, &e.FolderPath, &e.Basename, &assetID, &versionID); err != nil {
		return nil, err
	}
	e.ID = ids.ChangeID(id)
	e.Kind = vault.ChangeKind(kind)
	e.AssetID = ids.AssetID(assetID)
	e.VersionID = ids.VersionID(versionID)
	return &e, nil
}

// ListChangesSince pages the global changelog strictly past the compound
// (createdAt, id) cursor.
func (s *SQLStore) ListChangesSince(ctx context.Context, cursor vault.Cursor, limit int) ([]*vault.ChangeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+changeCols+` FROM changelog
		 WHERE created_at > $1 OR (created_at = $2 AND id > $3)
		 ORDER BY created_at, id
		 LIMIT $4`,
		cursor.CreatedAt, cursor.CreatedAt, cursor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	defer rows.Close()
	return collectChanges(rows)
}

// ListFolderChanges pages the changelog entries of one folder, same cursor
// contract as ListChangesSince.
func (s *SQLStore) ListFolderChanges(ctx context.Context, folderPath string, cursor vault.Cursor, limit int) ([]*vault.ChangeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+changeCols+` FROM changelog
		 WHERE folder_path = $1 AND (created_at > $2 OR (created_at = $3 AND id > $4))
		 ORDER BY created_at, id
		 LIMIT $5`,
		folderPath, cursor.CreatedAt, cursor.CreatedAt, cursor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder changes: %w", err)
	}
	defer rows.Close()
	return collectChanges(rows)
}

func collectChanges(rows *sql.Rows) ([]*vault.ChangeEntry, error) {
	var out []*vault.ChangeEntry
	for rows.Next() {
		e, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan changelog entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Migration bookkeeping ---

// SetVersionR2 points a version at its migrated r2 object. The platform
// storage id is kept until ClearVersionStorageID so reads never lose both
// locators.
func (s *SQLStore) SetVersionR2(ctx context.Context, id ids.VersionID, r2Key, r2PublicURL string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE asset_versions SET r2_key = $1, r2_public_url = $2, backend = $3 WHERE id = $4`,
		r2Key, r2PublicURL, string(blob.KindR2), id.String())
	if err != nil {
		return fmt.Errorf("failed to set r2 locator: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set r2 locator: %w", err)
	}
	if n == 0 {
		return vault.ErrVersionNotFound
	}
	return nil
}

// ClearVersionStorageID drops the platform locator after a verified
// migration.
func (s *SQLStore) ClearVersionStorageID(ctx context.Context, id ids.VersionID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE asset_versions SET storage_id = '' WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to clear storage id: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to clear storage id: %w", err)
	}
	if n == 0 {
		return vault.ErrVersionNotFound
	}
	return nil
}

// ListVersionsForMigration lists versions still stored only on the platform
// backend, oldest first.
func (s *SQLStore) ListVersionsForMigration(ctx context.Context, limit int) ([]*vault.AssetVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionCols+` FROM asset_versions
		 WHERE r2_key = '' AND storage_id <> ''
		 ORDER BY created_at, id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for migration: %w", err)
	}
	defer rows.Close()
	return collectVersions(rows)
}

// ListVersionsMissingPublicURL lists r2 versions without a captured public
// URL, for backfill.
func (s *SQLStore) ListVersionsMissingPublicURL(ctx context.Context, limit int) ([]*vault.AssetVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionCols+` FROM asset_versions
		 WHERE r2_key <> '' AND r2_public_url = ''
		 ORDER BY created_at, id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions missing public url: %w", err)
	}
	defer rows.Close()
	return collectVersions(rows)
}
