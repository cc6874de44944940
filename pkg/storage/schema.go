package storage

// The schema is written in the dialect intersection of postgres and sqlite:
// TEXT ids, BIGINT millisecond timestamps, and no dialect-specific column
// types. Each statement runs independently with IF NOT EXISTS so startup is
// idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS folders (
		id          TEXT PRIMARY KEY,
		path        TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		parent_path TEXT NOT NULL,
		created_at  BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS folders_by_parent_path ON folders (parent_path)`,

	`CREATE TABLE IF NOT EXISTS assets (
		id                   TEXT PRIMARY KEY,
		folder_path          TEXT NOT NULL,
		basename             TEXT NOT NULL,
		version_counter      INTEGER NOT NULL DEFAULT 0,
		published_version_id TEXT,
		updated_at           BIGINT NOT NULL,
		UNIQUE (folder_path, basename)
	)`,
	`CREATE INDEX IF NOT EXISTS assets_by_folder_path ON assets (folder_path)`,

	`CREATE TABLE IF NOT EXISTS asset_versions (
		id                TEXT PRIMARY KEY,
		asset_id          TEXT NOT NULL,
		version           INTEGER NOT NULL,
		state             TEXT NOT NULL,
		created_at        BIGINT NOT NULL,
		label             TEXT NOT NULL DEFAULT '',
		size              BIGINT NOT NULL DEFAULT 0,
		content_type      TEXT NOT NULL DEFAULT '',
		original_filename TEXT NOT NULL DEFAULT '',
		backend           TEXT NOT NULL,
		storage_id        TEXT NOT NULL DEFAULT '',
		r2_key            TEXT NOT NULL DEFAULT '',
		r2_public_url     TEXT NOT NULL DEFAULT '',
		UNIQUE (asset_id, version)
	)`,
	`CREATE INDEX IF NOT EXISTS asset_versions_by_asset_and_state ON asset_versions (asset_id, state)`,

	`CREATE TABLE IF NOT EXISTS upload_intents (
		id                TEXT PRIMARY KEY,
		asset_id          TEXT NOT NULL,
		folder_path       TEXT NOT NULL,
		basename          TEXT NOT NULL,
		backend           TEXT NOT NULL,
		r2_key            TEXT NOT NULL DEFAULT '',
		upload_token      TEXT NOT NULL DEFAULT '',
		label             TEXT NOT NULL DEFAULT '',
		original_filename TEXT NOT NULL DEFAULT '',
		created_at        BIGINT NOT NULL,
		expires_at        BIGINT NOT NULL,
		consumed_at       BIGINT,
		version_id        TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS upload_intents_by_token ON upload_intents (upload_token)`,
	`CREATE INDEX IF NOT EXISTS upload_intents_by_expires_at ON upload_intents (expires_at)`,

	`CREATE TABLE IF NOT EXISTS changelog (
		id          TEXT PRIMARY KEY,
		created_at  BIGINT NOT NULL,
		kind        TEXT NOT NULL,
		folder_path TEXT NOT NULL,
		basename    TEXT NOT NULL DEFAULT '',
		asset_id    TEXT NOT NULL DEFAULT '',
		version_id  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS changelog_by_cursor ON changelog (created_at, id)`,
	`CREATE INDEX IF NOT EXISTS changelog_by_folder ON changelog (folder_path, created_at, id)`,
}
