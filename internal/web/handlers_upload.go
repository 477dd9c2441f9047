package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvpreview/internal/core"
	"github.com/JonMunkholm/csvpreview/internal/preview"
)

// Chunk request headers.
const (
	headerSessionID   = "x-session-id"
	headerChunkIndex  = "x-chunk-index"
	headerTotalChunks = "x-total-chunks"
)

// maxJSONBody bounds init and finalize request bodies.
const maxJSONBody = 64 << 10

type initRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type initResponse struct {
	SessionID string `json:"sessionId"`
}

type chunkResponse struct {
	SessionID      string `json:"sessionId"`
	ChunkIndex     int    `json:"chunkIndex"`
	ReceivedChunks int    `json:"receivedChunks"`
}

type finalizeRequest struct {
	SessionID string `json:"sessionId"`
}

type previewResponse struct {
	SessionID string          `json:"sessionId"`
	Preview   *preview.Result `json:"preview"`
}

// handleInit creates an upload session.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.Filename = strings.TrimSpace(req.Filename)
	if req.Filename == "" {
		respondError(w, r, fmt.Errorf("%w: filename is required", core.ErrBadRequest))
		return
	}
	if req.Size < 0 {
		respondError(w, r, fmt.Errorf("%w: size must not be negative", core.ErrBadRequest))
		return
	}

	id, err := s.uploads.CreateSession(r.Context(), req.Filename, req.Size)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, initResponse{SessionID: id})
}

// handleChunk stores one chunk. The body is the raw chunk bytes; the
// session, index and total travel in headers.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get(headerSessionID))
	if id == "" {
		respondError(w, r, fmt.Errorf("%w: missing %s header", core.ErrBadRequest, headerSessionID))
		return
	}
	index, err := intHeader(r, headerChunkIndex)
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := intHeader(r, headerTotalChunks)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// One byte past the limit lets the assembler tell "exactly at the
	// limit" from "over it".
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxChunkSize+1)

	received, err := s.uploads.PutChunk(r.Context(), id, index, total, r.Body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chunkResponse{
		SessionID:      id,
		ChunkIndex:     index,
		ReceivedChunks: received,
	})
}

// handleFinalize assembles and parses a complete upload, or returns the
// cached preview when it already ran.
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		respondError(w, r, fmt.Errorf("%w: sessionId is required", core.ErrBadRequest))
		return
	}

	res, err := s.uploads.Finalize(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{SessionID: id, Preview: res})
}

// handleGetPreview returns the cached preview of a finalized session.
func (s *Server) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	if id == "" {
		respondError(w, r, fmt.Errorf("%w: sessionId query parameter is required", core.ErrBadRequest))
		return
	}

	res, err := s.uploads.Preview(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{SessionID: id, Preview: res})
}

// handleHealth reports session count and finalize slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.uploads.Health()
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		core.Health
	}{Status: "ok", Health: h})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return fmt.Errorf("%w: request body too large", core.ErrBadRequest)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", core.ErrBadRequest)
		}
		return fmt.Errorf("%w: invalid JSON: %v", core.ErrBadRequest, err)
	}
	return nil
}

// intHeader parses a required integer header.
func intHeader(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.Header.Get(name))
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s header", core.ErrBadRequest, name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s header %q is not an integer", core.ErrBadRequest, name, raw)
	}
	return n, nil
}
