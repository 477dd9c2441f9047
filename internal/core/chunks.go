package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/csvpreview/internal/logging"
)

// Chunk limits applied when the caller passes zero values.
const (
	DefaultMaxChunkSize   int64 = 8 << 20
	DefaultMaxTotalChunks       = 10000
)

// ChunkLimits bounds what a single chunk request may declare.
type ChunkLimits struct {
	MaxChunkSize   int64 // bytes per chunk body
	MaxTotalChunks int   // upper bound on totalChunks
}

// ChunkAssembler validates chunk writes and stores them in their
// session's chunk directory.
type ChunkAssembler struct {
	store   *SessionStore
	limits  ChunkLimits
	metrics *Metrics
}

// NewChunkAssembler returns an assembler writing into store.
func NewChunkAssembler(store *SessionStore, limits ChunkLimits, metrics *Metrics) *ChunkAssembler {
	if limits.MaxChunkSize <= 0 {
		limits.MaxChunkSize = DefaultMaxChunkSize
	}
	if limits.MaxTotalChunks <= 0 {
		limits.MaxTotalChunks = DefaultMaxTotalChunks
	}
	return &ChunkAssembler{store: store, limits: limits, metrics: metrics}
}

// PutChunk stores body as chunk index of a session declaring total
// chunks, replacing any earlier bytes for that index. It returns the
// number of distinct chunks received so far.
//
// Errors wrap ErrNotFound for an unknown session, ErrConflict when total
// disagrees with the recorded value or the session is no longer open,
// ErrInvalidArgument for an out-of-range index or total, and
// ErrChunkTooLarge when body exceeds the size limit.
func (a *ChunkAssembler) PutChunk(ctx context.Context, id string, index, total int, body io.Reader) (int, error) {
	s, err := a.store.Get(id)
	if err != nil {
		return 0, err
	}

	first, err := s.admitChunk(index, total, a.limits.MaxTotalChunks)
	if err != nil {
		return 0, err
	}
	if first {
		if err := a.store.Persist(ctx, s); err != nil {
			logging.WithSession(ctx, id).Warn("failed to persist chunk total", "error", err)
		}
	}

	tmp, n, err := a.spool(ctx, s, body)
	if err != nil {
		return 0, err
	}

	dst := a.store.chunkPath(id, index)
	count, err := s.commitChunk(index, a.store.now().UTC(), func() error {
		return os.Rename(tmp, dst)
	})
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("store chunk %d: %w", index, err)
	}

	a.metrics.ChunkStored(n)
	logging.WithSession(ctx, id).Debug("chunk stored",
		"chunk_index", index,
		"total_chunks", total,
		"bytes", n,
		"received", count,
	)
	return count, nil
}

// spool copies body into a temp file beside the chunk files. The temp
// file is renamed into place only after the whole body arrived, so a
// retry never leaves a half-written chunk behind.
//
// Only the chunk directory itself is created: a missing session directory
// means the session was deleted meanwhile.
func (a *ChunkAssembler) spool(ctx context.Context, s *Session, body io.Reader) (string, int64, error) {
	dir := a.store.chunkDir(s.ID)
	if err := os.Mkdir(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		if s.isRemoved() || errors.Is(err, fs.ErrNotExist) {
			return "", 0, fmt.Errorf("session %q: %w", s.ID, ErrNotFound)
		}
		return "", 0, fmt.Errorf("create chunk dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".chunk-*")
	if err != nil {
		return "", 0, fmt.Errorf("create chunk file: %w", err)
	}
	name := f.Name()

	cleanup := func(err error) (string, int64, error) {
		f.Close()
		os.Remove(name)
		return "", 0, err
	}

	n, err := io.Copy(f, io.LimitReader(body, a.limits.MaxChunkSize+1))
	if err != nil {
		return cleanup(fmt.Errorf("write chunk: %w", err))
	}
	if n > a.limits.MaxChunkSize {
		return cleanup(fmt.Errorf("chunk exceeds %d bytes: %w", a.limits.MaxChunkSize, ErrChunkTooLarge))
	}
	if err := ctx.Err(); err != nil {
		return cleanup(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", 0, fmt.Errorf("close chunk file: %w", err)
	}
	return filepath.Clean(name), n, nil
}
