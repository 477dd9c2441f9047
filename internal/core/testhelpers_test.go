package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir     string
	svc     *Service
	metrics *Metrics
}

func newTestEnv(t *testing.T, archiver Archiver) *testEnv {
	t.Helper()
	dir := t.TempDir()
	metrics := MustNewMetrics(prometheus.NewRegistry())
	svc, err := NewService(ServiceConfig{
		DataDir:       dir,
		Chunks:        ChunkLimits{MaxChunkSize: 1 << 10, MaxTotalChunks: 100},
		Finalize:      FinalizerConfig{PreviewRows: 50, Timeout: 5 * time.Second},
		MaxConcurrent: 2,
		MaxWait:       time.Second,
	}, nil, archiver, metrics)
	require.NoError(t, err)
	return &testEnv{dir: dir, svc: svc, metrics: metrics}
}

// upload creates a session and sends content split into n chunks.
func (e *testEnv) upload(t *testing.T, content string, n int) string {
	t.Helper()
	ctx := context.Background()
	id, err := e.svc.CreateSession(ctx, "test.csv", int64(len(content)))
	require.NoError(t, err)
	for i, part := range split(content, n) {
		_, err := e.svc.PutChunk(ctx, id, i, n, strings.NewReader(part))
		require.NoError(t, err)
	}
	return id
}

// split cuts s into n contiguous parts; the last may be shorter.
func split(s string, n int) []string {
	size := (len(s) + n - 1) / n
	if size == 0 {
		size = 1
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lo := i * size
		hi := lo + size
		if lo > len(s) {
			lo = len(s)
		}
		if hi > len(s) {
			hi = len(s)
		}
		parts = append(parts, s[lo:hi])
	}
	return parts
}
