package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/preview"
)

// Status is the lifecycle stage of an upload session. Transitions only
// move forward: open -> finalizing -> finalized, or finalizing -> failed.
type Status string

const (
	StatusOpen       Status = "open"
	StatusFinalizing Status = "finalizing"
	StatusFinalized  Status = "finalized"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusFinalized || s == StatusFailed
}

// Session is one upload tracked by a SessionStore. Identity fields are
// fixed at creation; everything else is guarded by mu.
type Session struct {
	ID           string
	Filename     string
	DeclaredSize int64
	CreatedAt    time.Time

	// persistMu orders journal writes against removal so a deleted
	// session is never written back.
	persistMu sync.Mutex

	mu          sync.Mutex
	removed     bool
	totalChunks int
	received    map[int]struct{}
	status      Status
	assembled   string
	preview     *preview.Result
	failure     string
	updatedAt   time.Time
}

func newSession(id, filename string, size int64, now time.Time) *Session {
	return &Session{
		ID:           id,
		Filename:     filename,
		DeclaredSize: size,
		CreatedAt:    now,
		received:     make(map[int]struct{}),
		status:       StatusOpen,
		updatedAt:    now,
	}
}

// SessionInfo is a consistent copy of a session's mutable state.
type SessionInfo struct {
	ID             string    `json:"sessionId"`
	Filename       string    `json:"filename"`
	DeclaredSize   int64     `json:"size"`
	TotalChunks    int       `json:"totalChunks"`
	ReceivedChunks []int     `json:"receivedChunks"`
	Status         Status    `json:"status"`
	AssembledPath  string    `json:"-"`
	Failure        string    `json:"failure,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := make([]int, 0, len(s.received))
	for i := range s.received {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	return SessionInfo{
		ID:             s.ID,
		Filename:       s.Filename,
		DeclaredSize:   s.DeclaredSize,
		TotalChunks:    s.totalChunks,
		ReceivedChunks: idx,
		Status:         s.status,
		AssembledPath:  s.assembled,
		Failure:        s.failure,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.updatedAt,
	}
}

// Status returns the current lifecycle stage.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Preview returns the cached preview, or nil before finalize succeeds.
func (s *Session) Preview() *preview.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// ReceivedCount returns the number of distinct chunk indices stored.
func (s *Session) ReceivedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

// admitChunk validates a chunk against recorded state and fixes the
// chunk total on first use. It reports whether the total was just set.
func (s *Session) admitChunk(index, total, maxTotal int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return false, fmt.Errorf("session %q: %w", s.ID, ErrNotFound)
	}
	if s.status != StatusOpen {
		return false, fmt.Errorf("session is %s: %w", s.status, ErrConflict)
	}
	if s.totalChunks != 0 && total != s.totalChunks {
		return false, fmt.Errorf("total chunks %d does not match recorded %d: %w", total, s.totalChunks, ErrConflict)
	}
	if total < 1 || (maxTotal > 0 && total > maxTotal) {
		return false, fmt.Errorf("total chunks %d out of range: %w", total, ErrInvalidArgument)
	}
	if index < 0 || index >= total {
		return false, fmt.Errorf("chunk index %d out of range [0,%d): %w", index, total, ErrInvalidArgument)
	}

	first := s.totalChunks == 0
	s.totalChunks = total
	return first, nil
}

// commitChunk runs publish while holding the session lock, then records
// the index. publish moves the chunk bytes into place; holding the lock
// keeps a rename from landing after finalize has started reading.
func (s *Session) commitChunk(index int, now time.Time, publish func() error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return 0, fmt.Errorf("session %q: %w", s.ID, ErrNotFound)
	}
	if s.status != StatusOpen {
		return 0, fmt.Errorf("session is %s: %w", s.status, ErrConflict)
	}
	if err := publish(); err != nil {
		return 0, err
	}
	s.received[index] = struct{}{}
	s.updatedAt = now
	return len(s.received), nil
}

// checkComplete reports ErrIncomplete unless every index 0..total-1 is present.
func (s *Session) checkComplete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeLocked()
}

func (s *Session) completeLocked() error {
	if s.totalChunks == 0 {
		return fmt.Errorf("no chunks received: %w", ErrIncomplete)
	}
	for i := 0; i < s.totalChunks; i++ {
		if _, ok := s.received[i]; !ok {
			return fmt.Errorf("missing chunk %d of %d: %w", i, s.totalChunks, ErrIncomplete)
		}
	}
	return nil
}

// beginFinalize moves an open, complete session to finalizing. When the
// session is already finalized the cached preview is returned instead.
func (s *Session) beginFinalize(now time.Time) (*preview.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return nil, fmt.Errorf("session %q: %w", s.ID, ErrNotFound)
	}
	switch s.status {
	case StatusFinalized:
		return s.preview, nil
	case StatusFailed:
		return nil, fmt.Errorf("%s: %w", s.failure, ErrSessionFailed)
	case StatusFinalizing:
		return nil, fmt.Errorf("finalize already running: %w", ErrConflict)
	}
	if err := s.completeLocked(); err != nil {
		return nil, err
	}
	s.status = StatusFinalizing
	s.updatedAt = now
	return nil, nil
}

func (s *Session) finish(path string, res *preview.Result, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFinalized
	s.assembled = path
	s.preview = res
	s.updatedAt = now
}

func (s *Session) fail(cause error, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.status = StatusFailed
	s.failure = cause.Error()
	s.updatedAt = now
}

// markRemoved flags the session as deleted from its store. It waits for
// an in-flight journal write to finish.
func (s *Session) markRemoved() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	s.removed = true
	s.mu.Unlock()
}

func (s *Session) isRemoved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}

func (s *Session) lastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
