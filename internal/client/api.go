package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/csvpreview/internal/preview"
)

// API is the server surface the Uploader drives. HTTPClient implements it.
type API interface {
	Init(ctx context.Context, filename string, size int64) (string, error)
	PutChunk(ctx context.Context, sessionID string, index, total int, data []byte) error
	Finalize(ctx context.Context, sessionID string) (*preview.Result, error)
}

// StatusError is a non-2xx response. Its text ("init failed (500)",
// "chunk 3 failed (409)") is what UserMessage classifies.
type StatusError struct {
	Op         string // "init", "chunk 3", "finalize", "preview"
	StatusCode int
	Code       string // server error code, when the body carried one
	Detail     string // server error text, when the body carried one
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed (%d)", e.Op, e.StatusCode)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// TransportError is a request that never produced a response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPClient talks to the upload server over HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a client for the server at baseURL. A nil hc uses
// a client with a five minute timeout.
func NewHTTPClient(baseURL string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Init creates a session and returns its id.
func (c *HTTPClient) Init(ctx context.Context, filename string, size int64) (string, error) {
	body, err := json.Marshal(map[string]any{"filename": filename, "size": size})
	if err != nil {
		return "", err
	}
	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.do(ctx, "init", http.MethodPost, "/upload/init", "application/json", body, nil, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("init failed: response has no sessionId")
	}
	return out.SessionID, nil
}

// PutChunk sends one chunk.
func (c *HTTPClient) PutChunk(ctx context.Context, sessionID string, index, total int, data []byte) error {
	headers := http.Header{}
	headers.Set("x-session-id", sessionID)
	headers.Set("x-chunk-index", strconv.Itoa(index))
	headers.Set("x-total-chunks", strconv.Itoa(total))
	op := "chunk " + strconv.Itoa(index)
	return c.do(ctx, op, http.MethodPost, "/upload/chunk", "application/octet-stream", data, headers, nil)
}

// Finalize asks the server to assemble the upload and returns the preview.
func (c *HTTPClient) Finalize(ctx context.Context, sessionID string) (*preview.Result, error) {
	body, err := json.Marshal(map[string]string{"sessionId": sessionID})
	if err != nil {
		return nil, err
	}
	var out struct {
		Preview *preview.Result `json:"preview"`
	}
	if err := c.do(ctx, "finalize", http.MethodPost, "/upload/finalize", "application/json", body, nil, &out); err != nil {
		return nil, err
	}
	return out.Preview, nil
}

// Preview fetches the cached preview of a finalized session.
func (c *HTTPClient) Preview(ctx context.Context, sessionID string) (*preview.Result, error) {
	var out struct {
		Preview *preview.Result `json:"preview"`
	}
	path := "/upload/finalize?sessionId=" + url.QueryEscape(sessionID)
	if err := c.do(ctx, "preview", http.MethodGet, path, "", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Preview, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path, contentType string, body []byte, headers http.Header, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Op: op, StatusCode: resp.StatusCode}
		var env struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env) == nil {
			se.Code = env.Code
			se.Detail = env.Error
		}
		return se
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
