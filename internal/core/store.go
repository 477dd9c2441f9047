package core

// store.go owns every upload session in the process and the on-disk
// layout backing them:
//
//	<dataDir>/sessions/<id>/chunks/<index>.part   chunk bytes
//	<dataDir>/sessions/<id>/assembled.csv         finalized file
//	<dataDir>/sessions/<id>/session.json          manifest (FileJournal)
//
// Session metadata is mirrored to a Journal on every status change so a
// restart can restore sessions. Received chunk indices are not journaled;
// Restore rescans the chunk directory instead.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/logging"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	sessionsDirName = "sessions"
	chunksDirName   = "chunks"
	assembledName   = "assembled.csv"
	chunkExt        = ".part"
)

// SessionStore is the process-wide registry of upload sessions. Create
// one at startup, share it between the assembler and finalizer, and
// Close it at shutdown.
type SessionStore struct {
	root    string
	journal Journal
	metrics *Metrics
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore prepares dataDir and returns an empty store. A nil
// journal selects a FileJournal inside dataDir. Call Restore to load
// sessions left by a previous process.
func NewSessionStore(dataDir string, journal Journal, metrics *Metrics) (*SessionStore, error) {
	root := filepath.Join(dataDir, sessionsDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if journal == nil {
		journal = NewFileJournal(root)
	}
	return &SessionStore{
		root:     root,
		journal:  journal,
		metrics:  metrics,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}, nil
}

// Create registers a new open session and returns it.
func (st *SessionStore) Create(ctx context.Context, filename string, declaredSize int64) (*Session, error) {
	id := uuid.NewString()
	s := newSession(id, filename, declaredSize, st.now().UTC())

	if err := os.MkdirAll(st.chunkDir(id), 0o755); err != nil {
		return nil, fmt.Errorf("create session storage: %w", err)
	}
	if err := st.journal.Save(ctx, s.record()); err != nil {
		os.RemoveAll(st.sessionDir(id))
		return nil, fmt.Errorf("persist session: %w", err)
	}

	st.mu.Lock()
	st.sessions[id] = s
	n := len(st.sessions)
	st.mu.Unlock()

	st.metrics.SessionCreated(n)
	logging.WithSession(ctx, id).Info("upload session created",
		"filename", filename,
		"declared_size", declaredSize,
	)
	return s, nil
}

// Get returns the session with the given id.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return s, nil
}

// Len returns the number of tracked sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Delete forgets the session and removes its chunks, assembled file and
// journal record.
func (st *SessionStore) Delete(ctx context.Context, id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	n := len(st.sessions)
	st.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	st.metrics.SetActiveSessions(n)
	s.markRemoved()

	return st.purge(ctx, id)
}

func (st *SessionStore) purge(ctx context.Context, id string) error {
	return multierr.Combine(
		st.journal.Delete(ctx, id),
		os.RemoveAll(st.sessionDir(id)),
	)
}

// Expire deletes sessions idle since before cutoff. Sessions in the middle
// of finalize are skipped. It returns how many sessions were removed.
func (st *SessionStore) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	st.mu.RLock()
	var stale []string
	for id, s := range st.sessions {
		if s.Status() == StatusFinalizing {
			continue
		}
		if s.lastActivity().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	st.mu.RUnlock()

	var errs error
	removed := 0
	for _, id := range stale {
		if err := st.Delete(ctx, id); err != nil {
			if !errors.Is(err, ErrNotFound) {
				errs = multierr.Append(errs, err)
			}
			continue
		}
		removed++
	}
	st.metrics.SessionsExpired(removed)
	return removed, errs
}

// Restore loads sessions recorded by the journal. Records whose storage
// directory is gone are dropped, received chunks are rebuilt from the
// files present, and sessions interrupted mid-finalize are marked failed.
func (st *SessionStore) Restore(ctx context.Context) (int, error) {
	records, listErr := st.journal.List(ctx)
	logger := logging.FromContext(ctx)

	var errs error
	if listErr != nil {
		errs = multierr.Append(errs, listErr)
	}

	restored := 0
	for _, rec := range records {
		if _, err := uuid.Parse(rec.ID); err != nil {
			logger.Warn("skipping session record with invalid id", "session_id", rec.ID)
			continue
		}
		if _, err := os.Stat(st.sessionDir(rec.ID)); errors.Is(err, fs.ErrNotExist) {
			logger.Info("dropping session without storage", "session_id", rec.ID)
			errs = multierr.Append(errs, st.journal.Delete(ctx, rec.ID))
			continue
		}

		received, err := st.scanChunks(rec.ID, rec.TotalChunks)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		s := sessionFromRecord(rec, received)
		if rec.Status == StatusFinalizing {
			s.fail(errors.New("interrupted by restart"), st.now().UTC())
			errs = multierr.Append(errs, st.journal.Save(ctx, s.record()))
		}

		st.mu.Lock()
		st.sessions[rec.ID] = s
		st.mu.Unlock()
		restored++
	}

	st.metrics.SetActiveSessions(st.Len())
	if restored > 0 {
		logger.Info("restored upload sessions", "count", restored)
	}
	return restored, errs
}

// scanChunks lists chunk indices present on disk below total.
func (st *SessionStore) scanChunks(id string, total int) ([]int, error) {
	entries, err := os.ReadDir(st.chunkDir(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chunks for %s: %w", id, err)
	}
	var out []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, chunkExt) {
			continue
		}
		i, err := strconv.Atoi(strings.TrimSuffix(name, chunkExt))
		if err != nil || i < 0 || (total > 0 && i >= total) {
			continue
		}
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

// Persist writes the session's current state to the journal. Sessions
// already deleted from the store are skipped.
func (st *SessionStore) Persist(ctx context.Context, s *Session) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.isRemoved() {
		return nil
	}
	if err := st.journal.Save(ctx, s.record()); err != nil {
		return fmt.Errorf("persist session %s: %w", s.ID, err)
	}
	return nil
}

// Close flushes every session to the journal.
func (st *SessionStore) Close(ctx context.Context) error {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()

	var errs error
	for _, s := range sessions {
		errs = multierr.Append(errs, st.Persist(ctx, s))
	}
	return errs
}

func (st *SessionStore) sessionDir(id string) string {
	return filepath.Join(st.root, id)
}

func (st *SessionStore) chunkDir(id string) string {
	return filepath.Join(st.root, id, chunksDirName)
}

func (st *SessionStore) chunkPath(id string, index int) string {
	return filepath.Join(st.chunkDir(id), strconv.Itoa(index)+chunkExt)
}

func (st *SessionStore) assembledPath(id string) string {
	return filepath.Join(st.root, id, assembledName)
}
