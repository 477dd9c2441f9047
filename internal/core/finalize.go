package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/logging"
	"github.com/JonMunkholm/csvpreview/internal/preview"
	"golang.org/x/sync/singleflight"
)

// Archiver copies an assembled upload to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, sessionID, filename, path string) error
}

// Defaults for FinalizerConfig zero values.
const (
	DefaultFinalizeTimeout = 10 * time.Minute
	DefaultArchiveTimeout  = 2 * time.Minute
)

// FinalizerConfig tunes finalize.
type FinalizerConfig struct {
	PreviewRows int           // row cap for the cached preview
	Timeout     time.Duration // bound on assembly plus parse
}

// Finalizer assembles complete chunk sets, parses the result once and
// caches the preview on the session.
type Finalizer struct {
	store    *SessionStore
	limiter  *UploadLimiter
	archiver Archiver
	metrics  *Metrics
	cfg      FinalizerConfig

	group    singleflight.Group
	archives sync.WaitGroup
}

// NewFinalizer wires a finalizer. limiter bounds concurrent assemblies;
// archiver may be nil.
func NewFinalizer(store *SessionStore, limiter *UploadLimiter, archiver Archiver, metrics *Metrics, cfg FinalizerConfig) *Finalizer {
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = preview.DefaultMaxRows
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFinalizeTimeout
	}
	if limiter == nil {
		limiter = NewUploadLimiter(0, 0)
	}
	return &Finalizer{
		store:    store,
		limiter:  limiter,
		archiver: archiver,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Limiter returns the limiter bounding concurrent assemblies.
func (f *Finalizer) Limiter() *UploadLimiter {
	return f.limiter
}

// Finalize assembles and parses the session's chunks and returns the
// preview. Repeated calls return the cached preview. Concurrent calls for
// one session share a single assembly; a caller whose ctx ends stops
// waiting but does not cancel the shared work.
func (f *Finalizer) Finalize(ctx context.Context, id string) (*preview.Result, error) {
	s, err := f.store.Get(id)
	if err != nil {
		return nil, err
	}
	if res := s.Preview(); res != nil {
		return res, nil
	}

	work := context.WithoutCancel(ctx)
	ch := f.group.DoChan(id, func() (any, error) {
		return f.run(work, s)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*preview.Result), nil
	}
}

// Preview returns the cached preview of a finalized session. Sessions
// that are unknown or not finalized yet report ErrNotFound.
func (f *Finalizer) Preview(_ context.Context, id string) (*preview.Result, error) {
	s, err := f.store.Get(id)
	if err != nil {
		return nil, err
	}
	res := s.Preview()
	if res == nil {
		return nil, fmt.Errorf("session %q is %s: %w", id, s.Status(), ErrNotFound)
	}
	return res, nil
}

func (f *Finalizer) run(ctx context.Context, s *Session) (*preview.Result, error) {
	if res := s.Preview(); res != nil {
		return res, nil
	}
	if st := s.Status(); st == StatusFailed {
		return nil, fmt.Errorf("session %s: %w", s.ID, ErrSessionFailed)
	}
	if err := s.checkComplete(); err != nil {
		return nil, err
	}

	logger := logging.WithSession(ctx, s.ID)
	if !f.limiter.TryAcquire() {
		logger.Debug("waiting for finalize slot", "active", f.limiter.ActiveCount())
		if err := f.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	defer f.limiter.Release()

	cached, err := s.beginFinalize(f.store.now().UTC())
	if err != nil || cached != nil {
		return cached, err
	}

	if err := f.store.Persist(ctx, s); err != nil {
		logger.Warn("failed to persist finalizing state", "error", err)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	path, res, err := f.assembleAndParse(ctx, s)
	if err != nil {
		s.fail(err, f.store.now().UTC())
		if perr := f.store.Persist(ctx, s); perr != nil {
			logger.Warn("failed to persist failed state", "error", perr)
		}
		f.metrics.ObserveFinalize("failed", time.Since(start))
		if IsClientError(err) {
			logger.Warn("finalize rejected", "error", err)
		} else {
			logger.Error("finalize failed", "error", err)
		}
		return nil, err
	}

	s.finish(path, res, f.store.now().UTC())
	if err := f.store.Persist(ctx, s); err != nil {
		logger.Warn("failed to persist finalized state", "error", err)
	}
	if err := os.RemoveAll(f.store.chunkDir(s.ID)); err != nil {
		logger.Warn("failed to remove chunk files", "error", err)
	}
	f.metrics.ObserveFinalize("finalized", time.Since(start))
	logger.Info("upload finalized",
		"columns", len(res.Columns),
		"rows_sampled", len(res.Rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if f.archiver != nil {
		f.archives.Add(1)
		go func() {
			defer f.archives.Done()
			f.archive(ctx, s, path)
		}()
	}
	return res, nil
}

// assembleAndParse concatenates chunks 0..total-1 into the assembled
// file and parses it.
func (f *Finalizer) assembleAndParse(ctx context.Context, s *Session) (string, *preview.Result, error) {
	info := s.Info()
	path := f.store.assembledPath(s.ID)

	if err := f.assemble(ctx, s.ID, info.TotalChunks, path); err != nil {
		return "", nil, fmt.Errorf("assemble: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open assembled file: %w", err)
	}
	defer file.Close()

	counter := preview.NewCountingReader(file)
	res, err := preview.Parse(counter, f.cfg.PreviewRows)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
	}
	logging.WithSession(ctx, s.ID).Debug("assembled file parsed", "bytes", counter.BytesRead())
	return path, res, nil
}

func (f *Finalizer) assemble(ctx context.Context, id string, total int, dst string) error {
	out, err := os.CreateTemp(f.store.sessionDir(id), ".assembled-*")
	if err != nil {
		return err
	}
	tmp := out.Name()
	ok := false
	defer func() {
		if !ok {
			out.Close()
			os.Remove(tmp)
		}
	}()

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := appendFile(out, f.store.chunkPath(id, i)); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	if err := out.Sync(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return err
	}
	ok = true
	return nil
}

func appendFile(w io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(w, in)
	return err
}

// WaitArchives blocks until background archive uploads finish or ctx ends.
func (f *Finalizer) WaitArchives(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.archives.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// archive hands the assembled file to the archiver. Failures are logged
// and counted; the preview is already durable.
func (f *Finalizer) archive(ctx context.Context, s *Session, path string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultArchiveTimeout)
	defer cancel()

	logger := logging.WithSession(ctx, s.ID)
	if err := f.archiver.Archive(ctx, s.ID, s.Filename, path); err != nil {
		f.metrics.ObserveArchive("failed")
		logger.Warn("archive failed", "error", err)
		return
	}
	f.metrics.ObserveArchive("archived")
	logger.Info("upload archived")
}

// IsClientError reports whether err is caused by the request rather than
// by the server.
func IsClientError(err error) bool {
	for _, target := range []error{ErrBadRequest, ErrNotFound, ErrConflict, ErrInvalidArgument, ErrIncomplete, ErrSessionFailed, ErrInvalidCSV, ErrChunkTooLarge} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
