package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/preview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI records chunks and can inject failures per chunk index.
type fakeAPI struct {
	mu       sync.Mutex
	chunks   map[int][]byte
	sent     map[int][]byte // the slices as passed in, not copied
	calls    map[int]int
	failures map[int][]error // errors returned on successive calls
	initErr  error
	finalErr error
	block    chan struct{} // when set, PutChunk waits for it or ctx
	total    int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{chunks: map[int][]byte{}, sent: map[int][]byte{}, calls: map[int]int{}, failures: map[int][]error{}}
}

func (f *fakeAPI) Init(ctx context.Context, filename string, size int64) (string, error) {
	if f.initErr != nil {
		return "", f.initErr
	}
	return "sess-1", nil
}

func (f *fakeAPI) PutChunk(ctx context.Context, sessionID string, index, total int, data []byte) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total = total
	f.calls[index]++
	if errs := f.failures[index]; len(errs) > 0 {
		f.failures[index] = errs[1:]
		return errs[0]
	}
	f.chunks[index] = bytes.Clone(data)
	f.sent[index] = data
	return nil
}

func (f *fakeAPI) Finalize(ctx context.Context, sessionID string) (*preview.Result, error) {
	if f.finalErr != nil {
		return nil, f.finalErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []byte
	for i := 0; i < f.total; i++ {
		all = append(all, f.chunks[i]...)
	}
	return preview.Parse(bytes.NewReader(all), preview.DefaultMaxRows)
}

func csvFile(content string) File {
	return File{Name: "people.csv", Size: int64(len(content)), ContentType: "text/csv", Data: strings.NewReader(content)}
}

func fastOptions(chunk int64) Options {
	return Options{ChunkSize: chunk, Attempts: 3, RetryDelay: time.Millisecond}
}

func recordPhases(u *Uploader) func() []Phase {
	var mu sync.Mutex
	var phases []Phase
	u.OnChange(func(s State) {
		mu.Lock()
		phases = append(phases, s.Phase())
		mu.Unlock()
	})
	return func() []Phase {
		mu.Lock()
		defer mu.Unlock()
		return append([]Phase(nil), phases...)
	}
}

func TestUpload_Success(t *testing.T) {
	api := newFakeAPI()
	u := NewUploader(api, fastOptions(8))
	phases := recordPhases(u)

	content := "name,age\nAlice,30\nBob,25"
	res, err := u.Upload(context.Background(), csvFile(content))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age"}, res.Columns)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, Done{SessionID: "sess-1"}, u.State())
	assert.Equal(t, res, u.Result())

	assert.Equal(t, TotalChunks(int64(len(content)), 8), len(api.chunks))
	assert.Equal(t, []Phase{
		PhaseUploading,
		PhaseUploading, PhaseUploading, PhaseUploading,
		PhaseFinalizing,
		PhaseDone,
	}, phases())
}

func TestUpload_RetriesTransientFailures(t *testing.T) {
	api := newFakeAPI()
	api.failures[0] = []error{
		&TransportError{Err: errors.New("connection reset by peer")},
		&StatusError{Op: "chunk 0", StatusCode: http.StatusServiceUnavailable},
	}
	u := NewUploader(api, fastOptions(1<<10))

	_, err := u.Upload(context.Background(), csvFile("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, api.calls[0])
}

func TestUpload_ChunkBuffersAreNotReused(t *testing.T) {
	api := newFakeAPI()
	u := NewUploader(api, fastOptions(4))

	content := "id,v\n1,aa\n2,bb\n3,cc\n"
	_, err := u.Upload(context.Background(), csvFile(content))
	require.NoError(t, err)

	parts := TotalChunks(int64(len(content)), 4)
	require.Len(t, api.sent, parts)
	for i := 0; i < parts; i++ {
		lo, hi := i*4, min((i+1)*4, len(content))
		assert.Equal(t, content[lo:hi], string(api.sent[i]), "chunk %d", i)
	}
}

func TestUpload_GivesUpAfterAttempts(t *testing.T) {
	api := newFakeAPI()
	fail := &StatusError{Op: "chunk 1", StatusCode: http.StatusInternalServerError}
	api.failures[1] = []error{fail, fail, fail, fail}
	u := NewUploader(api, fastOptions(4))

	_, err := u.Upload(context.Background(), csvFile("a,b\n1,2\n"))
	require.Error(t, err)

	failed, ok := u.State().(Failed)
	require.True(t, ok, "state = %#v", u.State())
	assert.Equal(t, "part 2 of 2 failed after 3 tries: chunk 1 failed (500)", failed.Message)
	assert.Equal(t, 3, api.calls[1])
	assert.Equal(t, "Part of the file didn't upload. You can try again.", UserMessage(failed.Message))
}

func TestUpload_ClientErrorIsNotRetried(t *testing.T) {
	api := newFakeAPI()
	api.failures[0] = []error{&StatusError{Op: "chunk 0", StatusCode: http.StatusConflict}}
	u := NewUploader(api, fastOptions(1<<10))

	_, err := u.Upload(context.Background(), csvFile("a\n1\n"))
	require.Error(t, err)
	assert.Equal(t, 1, api.calls[0])
	assert.Contains(t, err.Error(), "after 1 try:")
}

func TestUpload_InitAndFinalizeFailures(t *testing.T) {
	t.Run("init", func(t *testing.T) {
		api := newFakeAPI()
		api.initErr = &StatusError{Op: "init", StatusCode: http.StatusInternalServerError}
		u := NewUploader(api, fastOptions(1<<10))
		_, err := u.Upload(context.Background(), csvFile("a\n1\n"))
		require.EqualError(t, err, "init failed (500)")
		assert.Equal(t, Failed{Message: "init failed (500)"}, u.State())
	})

	t.Run("finalize", func(t *testing.T) {
		api := newFakeAPI()
		api.finalErr = &StatusError{Op: "finalize", StatusCode: http.StatusConflict}
		u := NewUploader(api, fastOptions(1<<10))
		_, err := u.Upload(context.Background(), csvFile("a\n1\n"))
		require.EqualError(t, err, "finalize failed (409)")
		assert.Equal(t, "Upload didn't finish saving. Please try again.", UserMessage(err.Error()))
	})
}

func TestStart_SecondStartIsNoop(t *testing.T) {
	api := newFakeAPI()
	api.block = make(chan struct{})
	u := NewUploader(api, fastOptions(1<<10))

	require.True(t, u.Start(context.Background(), csvFile("a\n1\n")))
	assert.False(t, u.Start(context.Background(), csvFile("b\n2\n")))

	_, err := u.Upload(context.Background(), csvFile("b\n2\n"))
	assert.ErrorIs(t, err, ErrRunning)

	close(api.block)
	u.Wait()
	assert.Equal(t, PhaseDone, u.State().Phase())
}

func TestCancel_SuppressesLaterEvents(t *testing.T) {
	api := newFakeAPI()
	api.block = make(chan struct{})
	u := NewUploader(api, fastOptions(1<<10))
	phases := recordPhases(u)

	require.True(t, u.Start(context.Background(), csvFile("a\n1\n")))
	require.Eventually(t, func() bool {
		return u.State().Phase() == PhaseUploading
	}, time.Second, time.Millisecond)

	u.Cancel()
	u.Wait()

	assert.Equal(t, Canceled{}, u.State())
	assert.Equal(t, []Phase{PhaseUploading, PhaseCanceled}, phases())
	assert.Empty(t, api.chunks)
}

func TestReset_ReturnsToIdle(t *testing.T) {
	api := newFakeAPI()
	api.block = make(chan struct{})
	u := NewUploader(api, fastOptions(1<<10))

	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background(), csvFile("a\n1\n"))
		done <- err
	}()
	require.Eventually(t, func() bool {
		return u.State().Phase() == PhaseUploading
	}, time.Second, time.Millisecond)

	u.Reset()
	assert.ErrorIs(t, <-done, ErrCanceled)
	assert.Equal(t, Idle{}, u.State())
}

func TestParentContextCancel(t *testing.T) {
	api := newFakeAPI()
	api.block = make(chan struct{})
	u := NewUploader(api, fastOptions(1<<10))

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, u.Start(ctx, csvFile("a\n1\n")))
	require.Eventually(t, func() bool {
		return u.State().Phase() == PhaseUploading
	}, time.Second, time.Millisecond)

	cancel()
	u.Wait()
	assert.Equal(t, Canceled{}, u.State())
}

func TestTotalChunks(t *testing.T) {
	assert.Equal(t, 1, TotalChunks(0, 10))
	assert.Equal(t, 1, TotalChunks(10, 10))
	assert.Equal(t, 2, TotalChunks(11, 10))
	assert.Equal(t, 3, TotalChunks(21, 10))
}
