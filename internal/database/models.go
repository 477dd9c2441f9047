package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// UploadSession is a row of upload_sessions.
type UploadSession struct {
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
