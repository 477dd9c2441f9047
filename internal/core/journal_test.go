package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/preview"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileJournal_SaveListDelete(t *testing.T) {
	root := t.TempDir()
	j := NewFileJournal(root)
	ctx := context.Background()

	res, err := preview.ParseString("a,b\n1,x", 10)
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	rec := Record{
		ID:           uuid.NewString(),
		Filename:     "a.csv",
		DeclaredSize: 7,
		TotalChunks:  1,
		Status:       StatusFinalized,
		Preview:      res,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, j.Save(ctx, rec))

	// Saving again replaces the manifest in place.
	rec.Failure = ""
	rec.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, j.Save(ctx, rec))

	got, err := j.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])

	require.NoError(t, j.Delete(ctx, rec.ID))
	require.NoError(t, j.Delete(ctx, rec.ID), "deleting twice is fine")

	got, err = j.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileJournal_ListSkipsCorruptManifest(t *testing.T) {
	root := t.TempDir()
	j := NewFileJournal(root)
	ctx := context.Background()

	good := Record{ID: uuid.NewString(), Status: StatusOpen}
	require.NoError(t, j.Save(ctx, good))

	bad := filepath.Join(root, uuid.NewString())
	require.NoError(t, os.MkdirAll(bad, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, manifestName), []byte("{not json"), 0o644))

	got, err := j.List(ctx)
	assert.Error(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, good.ID, got[0].ID)
}

func TestFileJournal_ListMissingRoot(t *testing.T) {
	j := NewFileJournal(filepath.Join(t.TempDir(), "absent"))
	got, err := j.List(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, got)
}
