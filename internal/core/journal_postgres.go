package core

import (
	"context"
	"encoding/json"
	"fmt"

	db "github.com/JonMunkholm/csvpreview/internal/database"
	"github.com/JonMunkholm/csvpreview/internal/preview"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// PostgresJournal mirrors session records into the upload_sessions table.
type PostgresJournal struct {
	q *db.Queries
}

// NewPostgresJournal returns a journal over conn, which is usually a
// *pgxpool.Pool.
func NewPostgresJournal(conn db.DBTX) *PostgresJournal {
	return &PostgresJournal{q: db.New(conn)}
}

// EnsureSchema creates the backing table.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if err := j.q.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure upload_sessions schema: %w", err)
	}
	return nil
}

// Save upserts rec.
func (j *PostgresJournal) Save(ctx context.Context, rec Record) error {
	id, err := toPgUUID(rec.ID)
	if err != nil {
		return err
	}
	var previewJSON []byte
	if rec.Preview != nil {
		if previewJSON, err = json.Marshal(rec.Preview); err != nil {
			return fmt.Errorf("encode preview: %w", err)
		}
	}
	return j.q.UpsertUploadSession(ctx, db.UpsertUploadSessionParams{
		ID:            id,
		Filename:      rec.Filename,
		DeclaredSize:  rec.DeclaredSize,
		TotalChunks:   int32(rec.TotalChunks),
		Status:        string(rec.Status),
		AssembledPath: toPgText(rec.AssembledPath),
		Preview:       previewJSON,
		Failure:       toPgText(rec.Failure),
		CreatedAt:     pgtype.Timestamptz{Time: rec.CreatedAt, Valid: true},
		UpdatedAt:     pgtype.Timestamptz{Time: rec.UpdatedAt, Valid: true},
	})
}

// Delete removes the record for id. Deleting an absent record is not an error.
func (j *PostgresJournal) Delete(ctx context.Context, id string) error {
	pgID, err := toPgUUID(id)
	if err != nil {
		return err
	}
	_, err = j.q.DeleteUploadSession(ctx, pgID)
	return err
}

// List returns every stored record, oldest first.
func (j *PostgresJournal) List(ctx context.Context) ([]Record, error) {
	rows, err := j.q.ListUploadSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list upload sessions: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func recordFromRow(row db.UploadSession) (Record, error) {
	rec := Record{
		ID:            uuid.UUID(row.ID.Bytes).String(),
		Filename:      row.Filename,
		DeclaredSize:  row.DeclaredSize,
		TotalChunks:   int(row.TotalChunks),
		Status:        Status(row.Status),
		AssembledPath: row.AssembledPath.String,
		Failure:       row.Failure.String,
		CreatedAt:     row.CreatedAt.Time,
		UpdatedAt:     row.UpdatedAt.Time,
	}
	if len(row.Preview) > 0 {
		var res preview.Result
		if err := json.Unmarshal(row.Preview, &res); err != nil {
			return Record{}, fmt.Errorf("decode preview for %s: %w", rec.ID, err)
		}
		rec.Preview = &res
	}
	return rec, nil
}

func toPgUUID(id string) (pgtype.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("session id %q: %w", id, ErrInvalidArgument)
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
