package core

import (
	"context"
	"io"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/preview"
)

// ServiceConfig gathers the tunables of the upload pipeline.
type ServiceConfig struct {
	DataDir         string
	Chunks          ChunkLimits
	Finalize        FinalizerConfig
	MaxConcurrent   int
	MaxWait         time.Duration
	SessionTTL      time.Duration
	JanitorInterval time.Duration
}

// Service ties the session store, chunk assembler, finalizer and janitor
// together behind the operations the HTTP layer needs.
type Service struct {
	Store     *SessionStore
	Assembler *ChunkAssembler
	Finalizer *Finalizer
	Janitor   *Janitor
}

// NewService builds the pipeline. journal and archiver may be nil; a nil
// journal selects file manifests under cfg.DataDir.
func NewService(cfg ServiceConfig, journal Journal, archiver Archiver, metrics *Metrics) (*Service, error) {
	store, err := NewSessionStore(cfg.DataDir, journal, metrics)
	if err != nil {
		return nil, err
	}
	limiter := NewUploadLimiter(cfg.MaxConcurrent, cfg.MaxWait)
	return &Service{
		Store:     store,
		Assembler: NewChunkAssembler(store, cfg.Chunks, metrics),
		Finalizer: NewFinalizer(store, limiter, archiver, metrics, cfg.Finalize),
		Janitor:   NewJanitor(store, cfg.SessionTTL, cfg.JanitorInterval),
	}, nil
}

// CreateSession starts a new upload and returns its id.
func (s *Service) CreateSession(ctx context.Context, filename string, size int64) (string, error) {
	sess, err := s.Store.Create(ctx, filename, size)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// PutChunk stores one chunk. See ChunkAssembler.PutChunk.
func (s *Service) PutChunk(ctx context.Context, id string, index, total int, body io.Reader) (int, error) {
	return s.Assembler.PutChunk(ctx, id, index, total, body)
}

// Finalize assembles and parses a complete upload. See Finalizer.Finalize.
func (s *Service) Finalize(ctx context.Context, id string) (*preview.Result, error) {
	return s.Finalizer.Finalize(ctx, id)
}

// Preview returns the cached preview of a finalized upload.
func (s *Service) Preview(ctx context.Context, id string) (*preview.Result, error) {
	return s.Finalizer.Preview(ctx, id)
}

// Health summarizes pipeline load for health checks.
type Health struct {
	Sessions int                 `json:"sessions"`
	Limiter  UploadLimiterStatus `json:"finalize_slots"`
}

// Health returns the current load snapshot.
func (s *Service) Health() Health {
	return Health{
		Sessions: s.Store.Len(),
		Limiter:  s.Finalizer.Limiter().Status(),
	}
}

// Shutdown waits for running finalizations and archive uploads, then
// flushes session state to the journal.
func (s *Service) Shutdown(ctx context.Context) error {
	if err := s.Finalizer.Limiter().WaitForDrain(ctx); err != nil {
		return err
	}
	if err := s.Finalizer.WaitArchives(ctx); err != nil {
		return err
	}
	return s.Store.Close(ctx)
}
