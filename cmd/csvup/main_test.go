package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/config"
	"github.com/JonMunkholm/csvpreview/internal/core"
	"github.com/JonMunkholm/csvpreview/internal/preview"
	"github.com/JonMunkholm/csvpreview/internal/web"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestRenderPreview(t *testing.T) {
	res, err := preview.ParseString("id,name,notes,id\n1,Alice,,9\n2,Bob,,8\n", 50)
	require.NoError(t, err)

	var buf bytes.Buffer
	renderPreview(&buf, res, 1)
	out := buf.String()

	lines := strings.Split(out, "\n")
	assert.Contains(t, lines[0], "id")
	assert.Contains(t, lines[0], "notes")
	assert.Contains(t, lines[1], "number")
	assert.Contains(t, lines[2], "Alice")
	assert.NotContains(t, out, "Bob")
	assert.Contains(t, out, "... 1 more rows in preview")
	assert.Contains(t, out, "Things to check")
	assert.Contains(t, out, `Column "id" appears more than once`)
}

func TestRenderPreview_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderPreview(&buf, &preview.Result{}, 10)
	assert.Contains(t, buf.String(), "(empty file)")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "a b", truncate("a\nb", 10))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc, err := core.NewService(core.ServiceConfig{
		DataDir:       t.TempDir(),
		Chunks:        core.ChunkLimits{MaxChunkSize: 1 << 10, MaxTotalChunks: 1000},
		Finalize:      core.FinalizerConfig{PreviewRows: 50, Timeout: 5 * time.Second},
		MaxConcurrent: 1,
		MaxWait:       time.Second,
	}, nil, nil, nil)
	require.NoError(t, err)
	cfg := &config.Config{Upload: config.UploadConfig{MaxChunkSize: 1 << 10}}
	ts := httptest.NewServer(web.NewServer(cfg, svc, nil).Router())
	t.Cleanup(ts.Close)
	return ts
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUploadAndPreviewCommands(t *testing.T) {
	ts := newTestServer(t)

	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,age\nAlice,30\nBob,25\n"), 0o644))

	out, err := runCLI(t, "upload", path, "--server", ts.URL, "--chunk-size", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Uploading people.csv")
	assert.Contains(t, out, "Done.")
	assert.Contains(t, out, "Alice")

	var sessionID string
	for _, line := range strings.Split(out, "\n") {
		if i := strings.Index(line, "session "); i >= 0 {
			sessionID = strings.TrimSpace(line[i+len("session "):])
		}
	}
	require.NotEmpty(t, sessionID)

	out, err = runCLI(t, "preview", sessionID, "--server", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Bob")

	_, err = runCLI(t, "preview", "missing", "--server", ts.URL)
	assert.EqualError(t, err, "no finalized upload with id missing")
}

func TestUploadCommand_RejectsNonCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, err := runCLI(t, "upload", path, "--server", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please choose a CSV file")
}
