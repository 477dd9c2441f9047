package core

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/preview"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostgresJournal(t *testing.T) *PostgresJournal {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	j := NewPostgresJournal(pool)
	require.NoError(t, j.EnsureSchema(ctx))
	return j
}

func TestPostgresJournal_RoundTrip(t *testing.T) {
	j := newTestPostgresJournal(t)
	ctx := context.Background()

	res, err := preview.ParseString("name,age\nAlice,30", 10)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := Record{
		ID:           uuid.NewString(),
		Filename:     "people.csv",
		DeclaredSize: 20,
		TotalChunks:  2,
		Status:       StatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, j.Save(ctx, rec))
	t.Cleanup(func() { _ = j.Delete(context.Background(), rec.ID) })

	rec.Status = StatusFinalized
	rec.Preview = res
	rec.AssembledPath = "/data/x/assembled.csv"
	rec.UpdatedAt = now.Add(time.Second)
	require.NoError(t, j.Save(ctx, rec))

	all, err := j.List(ctx)
	require.NoError(t, err)

	var found *Record
	for i := range all {
		if all[i].ID == rec.ID {
			found = &all[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, StatusFinalized, found.Status)
	assert.Equal(t, rec.AssembledPath, found.AssembledPath)
	assert.Equal(t, res, found.Preview)
	assert.True(t, rec.UpdatedAt.Equal(found.UpdatedAt))

	require.NoError(t, j.Delete(ctx, rec.ID))
	all, err = j.List(ctx)
	require.NoError(t, err)
	for _, r := range all {
		assert.NotEqual(t, rec.ID, r.ID)
	}
}

func TestPostgresJournal_RejectsBadID(t *testing.T) {
	j := NewPostgresJournal(nil)
	err := j.Save(context.Background(), Record{ID: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPostgresJournal_BacksSessionStore(t *testing.T) {
	j := newTestPostgresJournal(t)
	ctx := context.Background()
	dir := t.TempDir()

	st, err := NewSessionStore(dir, j, nil)
	require.NoError(t, err)
	s, err := st.Create(ctx, "pg.csv", 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Delete(context.Background(), s.ID) })

	again, err := NewSessionStore(dir, j, nil)
	require.NoError(t, err)
	_, err = again.Restore(ctx)
	require.NoError(t, err)

	got, err := again.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "pg.csv", got.Filename)
}
