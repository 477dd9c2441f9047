package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const upsertUploadSession = `-- name: UpsertUploadSession :exec
INSERT INTO upload_sessions (
    id, filename, declared_size, total_chunks, status,
    assembled_path, preview, failure, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    total_chunks   = EXCLUDED.total_chunks,
    status         = EXCLUDED.status,
    assembled_path = EXCLUDED.assembled_path,
    preview        = EXCLUDED.preview,
    failure        = EXCLUDED.failure,
    updated_at     = EXCLUDED.updated_at
`

type UpsertUploadSessionParams struct {
	ID            pgtype.UUID
	Filename      string
	DeclaredSize  int64
	TotalChunks   int32
	Status        string
	AssembledPath pgtype.Text
	Preview       []byte
	Failure       pgtype.Text
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

func (q *Queries) UpsertUploadSession(ctx context.Context, arg UpsertUploadSessionParams) error {
	_, err := q.db.Exec(ctx, upsertUploadSession,
		arg.ID,
		arg.Filename,
		arg.DeclaredSize,
		arg.TotalChunks,
		arg.Status,
		arg.AssembledPath,
		arg.Preview,
		arg.Failure,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const deleteUploadSession = `-- name: DeleteUploadSession :execrows
DELETE FROM upload_sessions WHERE id = $1
`

func (q *Queries) DeleteUploadSession(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteUploadSession, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listUploadSessions = `-- name: ListUploadSessions :many
SELECT id, filename, declared_size, total_chunks, status,
       assembled_path, preview, failure, created_at, updated_at
FROM upload_sessions
ORDER BY created_at
`

func (q *Queries) ListUploadSessions(ctx context.Context) ([]UploadSession, error) {
	rows, err := q.db.Query(ctx, listUploadSessions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UploadSession
	for rows.Next() {
		var i UploadSession
		if err := rows.Scan(
			&i.ID,
			&i.Filename,
			&i.DeclaredSize,
			&i.TotalChunks,
			&i.Status,
			&i.AssembledPath,
			&i.Preview,
			&i.Failure,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
