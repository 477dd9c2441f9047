package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/preview"
	"github.com/cenkalti/backoff/v4"
)

// Defaults for NewUploader.
const (
	DefaultChunkSize     = 1 << 20
	DefaultChunkAttempts = 3
	DefaultRetryDelay    = time.Second
)

var (
	// ErrRunning is returned by Upload while another run is active.
	ErrRunning = errors.New("an upload is already running")

	// ErrCanceled is returned by Upload when the run was canceled.
	ErrCanceled = errors.New("upload canceled")
)

// File is the source of an upload.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Data        io.ReaderAt
}

// OpenFile opens path as an upload source. The caller closes the returned
// closer once the upload has finished.
func OpenFile(path string) (File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return File{}, nil, err
	}
	return File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        f,
	}, f, nil
}

// Options tunes an Uploader. Zero values select the defaults.
type Options struct {
	ChunkSize  int64
	Attempts   int
	RetryDelay time.Duration
}

// Uploader runs the upload protocol for one file at a time: init, every
// chunk in index order with bounded retry, then finalize. Progress is
// published as State transitions through OnChange.
type Uploader struct {
	api  API
	opts Options

	mu        sync.Mutex
	state     State
	current   *run
	result    *preview.Result
	listeners []func(State)
}

// run is one Start/Upload invocation.
type run struct {
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool // canceled or reset by the user
	done    chan struct{}
}

// NewUploader returns an idle Uploader.
func NewUploader(api API, opts Options) *Uploader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultChunkAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &Uploader{api: api, opts: opts, state: Idle{}}
}

// OnChange registers fn to receive every new state. fn runs on the
// goroutine that caused the transition and must not call back into the
// Uploader's mutating methods.
func (u *Uploader) OnChange(fn func(State)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.listeners = append(u.listeners, fn)
}

// State returns the current state.
func (u *Uploader) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Snapshot returns the flattened current state.
func (u *Uploader) Snapshot() Snapshot {
	return SnapshotOf(u.State())
}

// Result returns the preview of the last successful run.
func (u *Uploader) Result() *preview.Result {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.result
}

// Start begins uploading f in the background. It returns false and does
// nothing when a run is already active.
func (u *Uploader) Start(ctx context.Context, f File) bool {
	r := u.begin(ctx)
	if r == nil {
		return false
	}
	go u.execute(r, f)
	return true
}

// Upload runs the whole protocol for f and blocks until it ends. It
// returns the preview on success, ErrCanceled after Cancel or Reset, and
// the raw failure otherwise.
func (u *Uploader) Upload(ctx context.Context, f File) (*preview.Result, error) {
	r := u.begin(ctx)
	if r == nil {
		return nil, ErrRunning
	}
	u.execute(r, f)

	switch s := u.State().(type) {
	case Done:
		return u.Result(), nil
	case Failed:
		return nil, errors.New(s.Message)
	default:
		return nil, ErrCanceled
	}
}

// Wait blocks until the active run, if any, has ended.
func (u *Uploader) Wait() {
	u.mu.Lock()
	r := u.current
	u.mu.Unlock()
	if r != nil {
		<-r.done
	}
}

// Cancel aborts the active run and moves to Canceled. No later event from
// the aborted run changes the state.
func (u *Uploader) Cancel() {
	u.stop(Cancel{})
}

// Reset aborts the active run and returns to Idle.
func (u *Uploader) Reset() {
	u.stop(Reset{})
}

func (u *Uploader) stop(a Action) {
	u.mu.Lock()
	if r := u.current; r != nil {
		r.stopped = true
		r.cancel()
	}
	next := u.apply(a)
	listeners := u.listeners
	u.mu.Unlock()
	notify(listeners, next)
}

func (u *Uploader) begin(parent context.Context) *run {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.current != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(parent)
	r := &run{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	u.current = r
	u.result = nil
	return r
}

func (u *Uploader) end(r *run) {
	u.mu.Lock()
	var next State
	if !r.stopped && r.ctx.Err() != nil {
		// The caller's context ended the run rather than Cancel.
		next = u.apply(Cancel{})
	}
	u.current = nil
	listeners := u.listeners
	u.mu.Unlock()

	r.cancel()
	close(r.done)
	if next != nil {
		notify(listeners, next)
	}
}

// dispatch applies a for run r unless r has been aborted.
func (u *Uploader) dispatch(r *run, a Action) bool {
	u.mu.Lock()
	if r.ctx.Err() != nil {
		u.mu.Unlock()
		return false
	}
	next := u.apply(a)
	listeners := u.listeners
	u.mu.Unlock()
	notify(listeners, next)
	return true
}

func (u *Uploader) apply(a Action) State {
	u.state = Reduce(u.state, a)
	return u.state
}

func notify(listeners []func(State), s State) {
	for _, fn := range listeners {
		fn(s)
	}
}

func (u *Uploader) execute(r *run, f File) {
	defer u.end(r)

	res, err := u.send(r, f)
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		slog.Debug("upload failed", "file", f.Name, "error", err)
		u.dispatch(r, Fail{Message: err.Error()})
		return
	}

	u.mu.Lock()
	u.result = res
	u.mu.Unlock()
	u.dispatch(r, Finish{})
}

func (u *Uploader) send(r *run, f File) (*preview.Result, error) {
	ctx := r.ctx

	sessionID, err := u.api.Init(ctx, f.Name, f.Size)
	if err != nil {
		return nil, err
	}

	total := TotalChunks(f.Size, u.opts.ChunkSize)
	if !u.dispatch(r, StartUpload{SessionID: sessionID, TotalChunks: total}) {
		return nil, ctx.Err()
	}

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := readChunk(f, i, u.opts.ChunkSize)
		if err != nil {
			return nil, fmt.Errorf("read part %d of %d: %w", i+1, total, err)
		}
		if err := u.sendChunk(ctx, sessionID, i, total, data); err != nil {
			return nil, err
		}

		if !u.dispatch(r, ChunkOK{UploadedChunkCount: i + 1}) {
			return nil, ctx.Err()
		}
	}

	if !u.dispatch(r, StartFinalize{}) {
		return nil, ctx.Err()
	}
	return u.api.Finalize(ctx, sessionID)
}

// sendChunk sends one chunk, retrying transport failures and retryable
// statuses with a fixed delay. Other client errors fail at once.
func (u *Uploader) sendChunk(ctx context.Context, sessionID string, index, total int, data []byte) error {
	attempts := 0
	op := func() error {
		attempts++
		err := u.api.PutChunk(ctx, sessionID, index, total, data)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(u.opts.RetryDelay), uint64(u.opts.Attempts-1)),
		ctx,
	)
	err := backoff.Retry(op, b)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("part %d of %d failed after %d %s: %w", index+1, total, attempts, plural(attempts, "try", "tries"), err)
}

// TotalChunks is the number of chunks a file of size bytes is split into.
// An empty file still takes one (empty) chunk.
func TotalChunks(size, chunkSize int64) int {
	if size <= 0 {
		return 1
	}
	return int((size + chunkSize - 1) / chunkSize)
}

// readChunk returns a fresh buffer per chunk. The transport may still
// hold a request body after the call returns.
func readChunk(f File, index int, chunkSize int64) ([]byte, error) {
	off := int64(index) * chunkSize
	n := chunkSize
	if rest := f.Size - off; rest < n {
		n = rest
	}
	if n <= 0 {
		return []byte{}, nil
	}
	data := make([]byte, n)
	m, err := f.Data.ReadAt(data, off)
	if m == len(data) {
		return data, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
