package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreateAndGet(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	s, err := env.svc.Store.Create(ctx, "people.csv", 123)
	require.NoError(t, err)

	_, err = uuid.Parse(s.ID)
	assert.NoError(t, err, "session ids are UUIDs")

	got, err := env.svc.Store.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	info := got.Info()
	assert.Equal(t, "people.csv", info.Filename)
	assert.Equal(t, int64(123), info.DeclaredSize)
	assert.Equal(t, StatusOpen, info.Status)
	assert.Zero(t, info.TotalChunks)
	assert.Empty(t, info.ReceivedChunks)
	assert.Nil(t, got.Preview())

	assert.FileExists(t, filepath.Join(env.dir, "sessions", s.ID, manifestName))
}

func TestSessionStore_UniqueIDs(t *testing.T) {
	env := newTestEnv(t, nil)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := env.svc.CreateSession(context.Background(), "f.csv", 1)
		require.NoError(t, err)
		require.False(t, seen[id])
		seen[id] = true
	}
	assert.Equal(t, 50, env.svc.Store.Len())
}

func TestSessionStore_GetUnknown(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, id := range []string{"nope", uuid.NewString(), "../../etc"} {
		_, err := env.svc.Store.Get(id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestSessionStore_Delete(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id := env.upload(t, "a,b\n1,2", 1)
	dir := filepath.Join(env.dir, "sessions", id)
	require.DirExists(t, dir)

	require.NoError(t, env.svc.Store.Delete(ctx, id))

	_, err := env.svc.Store.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoDirExists(t, dir)

	assert.ErrorIs(t, env.svc.Store.Delete(ctx, id), ErrNotFound)
}

func TestSessionStore_DeletedSessionIsNotWrittenBack(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	st := env.svc.Store

	s, err := st.Create(ctx, "gone.csv", 4)
	require.NoError(t, err)
	require.NoError(t, st.Delete(ctx, s.ID))

	require.NoError(t, st.Persist(ctx, s))
	assert.NoDirExists(t, st.sessionDir(s.ID))

	_, err = s.admitChunk(0, 1, 10)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.commitChunk(0, time.Now(), func() error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.beginFinalize(time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = env.svc.Assembler.spool(ctx, s, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoDirExists(t, st.sessionDir(s.ID))
}

func TestSessionStore_Expire(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	st := env.svc.Store

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }
	oldID, err := env.svc.CreateSession(ctx, "old.csv", 1)
	require.NoError(t, err)

	st.now = func() time.Time { return base.Add(2 * time.Hour) }
	freshID, err := env.svc.CreateSession(ctx, "fresh.csv", 1)
	require.NoError(t, err)

	removed, err := st.Expire(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = st.Get(oldID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Get(freshID)
	assert.NoError(t, err)
}

func TestSessionStore_ChunkActivityDelaysExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	st := env.svc.Store

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }
	id, err := env.svc.CreateSession(ctx, "slow.csv", 1)
	require.NoError(t, err)

	st.now = func() time.Time { return base.Add(3 * time.Hour) }
	_, err = env.svc.PutChunk(ctx, id, 0, 2, strings.NewReader("a\n"))
	require.NoError(t, err)

	removed, err := st.Expire(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSessionStore_RestoreRebuildsState(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	partial := env.svc.Store
	openID, err := env.svc.CreateSession(ctx, "partial.csv", 10)
	require.NoError(t, err)
	_, err = env.svc.PutChunk(ctx, openID, 1, 3, strings.NewReader("x\n"))
	require.NoError(t, err)

	doneID := env.upload(t, "name,age\nAlice,30", 2)
	want, err := env.svc.Finalize(ctx, doneID)
	require.NoError(t, err)

	require.NoError(t, partial.Close(ctx))

	restored, err := NewSessionStore(env.dir, nil, nil)
	require.NoError(t, err)
	n, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	open, err := restored.Get(openID)
	require.NoError(t, err)
	info := open.Info()
	assert.Equal(t, StatusOpen, info.Status)
	assert.Equal(t, 3, info.TotalChunks)
	assert.Equal(t, []int{1}, info.ReceivedChunks)

	done, err := restored.Get(doneID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, done.Status())
	assert.Equal(t, want, done.Preview())
}

func TestSessionStore_RestoreFailsInterruptedFinalize(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := NewSessionStore(dir, nil, nil)
	require.NoError(t, err)
	s, err := st.Create(ctx, "x.csv", 1)
	require.NoError(t, err)

	rec := s.record()
	rec.Status = StatusFinalizing
	require.NoError(t, st.journal.Save(ctx, rec))

	again, err := NewSessionStore(dir, nil, nil)
	require.NoError(t, err)
	_, err = again.Restore(ctx)
	require.NoError(t, err)

	got, err := again.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status())
}

func TestSessionStore_RestoreDropsOrphanRecords(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	journal := NewFileJournal(filepath.Join(dir, "elsewhere"))
	st, err := NewSessionStore(dir, journal, nil)
	require.NoError(t, err)
	s, err := st.Create(ctx, "x.csv", 1)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(st.sessionDir(s.ID)))

	again, err := NewSessionStore(dir, journal, nil)
	require.NoError(t, err)
	n, err := again.Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	recs, err := journal.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
