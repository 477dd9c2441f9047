package database

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS upload_sessions (
    id             UUID PRIMARY KEY,
    filename       TEXT NOT NULL,
    declared_size  BIGINT NOT NULL DEFAULT 0,
    total_chunks   INTEGER NOT NULL DEFAULT 0,
    status         TEXT NOT NULL,
    assembled_path TEXT,
    preview        JSONB,
    failure        TEXT,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_upload_sessions_updated_at ON upload_sessions (updated_at);
`

// EnsureSchema creates the upload_sessions table when missing.
func (q *Queries) EnsureSchema(ctx context.Context) error {
	_, err := q.db.Exec(ctx, schemaSQL)
	return err
}
