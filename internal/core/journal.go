package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/preview"
	"go.uber.org/multierr"
)

// Record is the durable form of a session. Chunk indices are not part of
// it: the chunk files on disk are the source of truth and are rescanned
// on restore.
type Record struct {
	ID            string          `json:"id"`
	Filename      string          `json:"filename"`
	DeclaredSize  int64           `json:"declaredSize"`
	TotalChunks   int             `json:"totalChunks"`
	Status        Status          `json:"status"`
	AssembledPath string          `json:"assembledPath,omitempty"`
	Preview       *preview.Result `json:"preview,omitempty"`
	Failure       string          `json:"failure,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Journal persists session records so a restart can pick up where the
// previous process left off.
type Journal interface {
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Record, error)
}

func (s *Session) record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Record{
		ID:            s.ID,
		Filename:      s.Filename,
		DeclaredSize:  s.DeclaredSize,
		TotalChunks:   s.totalChunks,
		Status:        s.status,
		AssembledPath: s.assembled,
		Preview:       s.preview,
		Failure:       s.failure,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.updatedAt,
	}
}

func sessionFromRecord(rec Record, received []int) *Session {
	s := newSession(rec.ID, rec.Filename, rec.DeclaredSize, rec.CreatedAt)
	s.totalChunks = rec.TotalChunks
	s.status = rec.Status
	s.assembled = rec.AssembledPath
	s.preview = rec.Preview
	s.failure = rec.Failure
	s.updatedAt = rec.UpdatedAt
	for _, i := range received {
		s.received[i] = struct{}{}
	}
	return s
}

// manifestName is the per-session file written by FileJournal.
const manifestName = "session.json"

// FileJournal stores each record as JSON next to the session's chunks.
type FileJournal struct {
	root string
}

// NewFileJournal writes manifests under root/<id>/session.json. root is
// normally the store's sessions directory.
func NewFileJournal(root string) *FileJournal {
	return &FileJournal{root: root}
}

func (j *FileJournal) path(id string) string {
	return filepath.Join(j.root, id, manifestName)
}

// Save writes the record atomically through a temp file and rename.
func (j *FileJournal) Save(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", rec.ID, err)
	}
	dir := filepath.Join(j.root, rec.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return writeFileAtomic(j.path(rec.ID), data)
}

// Delete removes the manifest. A missing manifest is not an error.
func (j *FileJournal) Delete(_ context.Context, id string) error {
	if err := os.Remove(j.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete manifest %s: %w", id, err)
	}
	return nil
}

// List reads every manifest under root. Unreadable manifests are skipped
// and reported together in the returned error.
func (j *FileJournal) List(_ context.Context) ([]Record, error) {
	entries, err := os.ReadDir(j.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var (
		out  []Record
		errs error
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(j.path(e.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("decode manifest %s: %w", e.Name(), err))
			continue
		}
		out = append(out, rec)
	}
	return out, errs
}

// writeFileAtomic replaces path with data so readers see either the old
// or the new content, never a torn write.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
