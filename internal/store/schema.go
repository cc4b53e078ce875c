package store

// schemaStatements is the idempotent DDL for every row family. Variable-shape
// fields (metadata, filters, event payloads, schemas) are JSONB; the
// per-(content, binding) completion state is a dedicated side table so that
// marking one binding done is a single-row upsert that cannot clobber
// another binding's marker.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS repositories (
		name     TEXT PRIMARY KEY,
		bindings JSONB NOT NULL DEFAULT '{}'::jsonb,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,

	`CREATE TABLE IF NOT EXISTS extractors (
		name          TEXT PRIMARY KEY,
		description   TEXT NOT NULL DEFAULT '',
		input_params  JSONB NOT NULL DEFAULT '{}'::jsonb,
		output_schema JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,

	`CREATE TABLE IF NOT EXISTS content (
		id            TEXT PRIMARY KEY,
		repository_id TEXT NOT NULL,
		payload       TEXT NOT NULL,
		payload_type  TEXT NOT NULL,
		content_type  TEXT NOT NULL,
		metadata      JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS content_repository_idx ON content (repository_id)`,

	`CREATE TABLE IF NOT EXISTS content_binding_state (
		content_id   TEXT NOT NULL,
		binding_id   TEXT NOT NULL,
		completed_at BIGINT NOT NULL,
		PRIMARY KEY (content_id, binding_id)
	)`,

	`CREATE TABLE IF NOT EXISTS extraction_events (
		id            TEXT PRIMARY KEY,
		repository_id TEXT NOT NULL,
		payload       JSONB NOT NULL,
		processed_at  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS extraction_events_unprocessed_idx
		ON extraction_events (created_at) WHERE processed_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS work (
		id               TEXT PRIMARY KEY,
		content_id       TEXT NOT NULL,
		repository_id    TEXT NOT NULL,
		extractor        TEXT NOT NULL,
		extractor_binding TEXT NOT NULL,
		extractor_params JSONB NOT NULL DEFAULT '{}'::jsonb,
		state            TEXT NOT NULL,
		executor_id      TEXT,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS work_unallocated_idx
		ON work (state) WHERE executor_id IS NULL`,
	`CREATE INDEX IF NOT EXISTS work_executor_idx ON work (executor_id)`,

	`CREATE TABLE IF NOT EXISTS indexes (
		name          TEXT PRIMARY KEY,
		repository_id TEXT NOT NULL,
		extractor     TEXT NOT NULL,
		storage_name  TEXT NOT NULL,
		index_type    TEXT NOT NULL,
		index_schema  JSONB NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS extracted_attributes (
		id            TEXT PRIMARY KEY,
		repository_id TEXT NOT NULL,
		index_name    TEXT NOT NULL,
		extractor     TEXT NOT NULL,
		content_id    TEXT NOT NULL,
		data          JSONB NOT NULL,
		created_at    BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS extracted_attributes_query_idx
		ON extracted_attributes (repository_id, index_name)`,

	`CREATE TABLE IF NOT EXISTS chunks (
		chunk_id   TEXT PRIMARY KEY,
		content_id TEXT NOT NULL,
		index_name TEXT NOT NULL,
		text       TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS timeline_events (
		id             TEXT PRIMARY KEY,
		repository_id  TEXT NOT NULL,
		message        TEXT NOT NULL,
		unix_timestamp BIGINT NOT NULL,
		metadata       JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,

	`CREATE TABLE IF NOT EXISTS executors (
		id             TEXT PRIMARY KEY,
		extractor      TEXT NOT NULL,
		addr           TEXT NOT NULL DEFAULT '',
		last_heartbeat TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		key_hash   TEXT NOT NULL UNIQUE,
		rate_limit INT NOT NULL DEFAULT 60,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ
	)`,
}
