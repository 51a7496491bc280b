package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/hyperjump/kioku/internal/index"
	"github.com/hyperjump/kioku/internal/ingest"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/retrieval"
	"github.com/hyperjump/kioku/internal/vector"
	"go.uber.org/zap"
)

// multipartOverhead is allowed on top of the upload limit for form boundaries
// and headers.
const multipartOverhead = 1 << 20

var errFileRequired = errors.New("multipart field \"file\" is required")

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "kioku retrieval context service"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUploadDoc(w http.ResponseWriter, r *http.Request) {
	limit := s.config.Ingest.MaxUploadBytes()
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondErr(w, fmt.Errorf("%w: file exceeds size limit of %d MB", ingest.ErrFileTooLarge, limit>>20))
			return
		}
		s.respondErr(w, fmt.Errorf("%w: %v", errFileRequired, err))
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	s.logger.Debug("upload request", zap.String("filename", filename), zap.Int64("size", header.Size))
	if !s.ingester.Allowed(filename) {
		s.respondErr(w, fmt.Errorf("%w: %q", ingest.ErrUnsupportedFileType, filepath.Ext(filename)))
		return
	}
	if err := s.ingester.CheckSize(filename, header.Size); err != nil {
		s.respondErr(w, err)
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondErr(w, fmt.Errorf("read upload: %w", err))
		return
	}
	report, err := s.ingester.IngestBytes(r.Context(), filename, content)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.UploadResponse{
		Status:      "success",
		ChunksAdded: report.ChunksAdded,
		TotalChunks: report.TotalChunks,
		DocumentID:  report.DocumentID,
		Evicted:     report.Evicted,
		Truncated:   report.Truncated,
	})
}

// handleTestPrompt reads the query from the "data" query parameter, or from a
// JSON body {"query": ...} when the parameter is absent.
func (s *Server) handleTestPrompt(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("data")
	if query == "" && r.Body != nil {
		var body models.PromptRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			query = body.Query
		}
	}
	req := models.PromptRequest{Query: query}
	if err := req.Validate(); err != nil {
		s.respondErr(w, err)
		return
	}
	p, _, err := s.svc.BuildPrompt(r.Context(), req.Query, 0)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.TestPromptResponse{Prompt: p})
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req models.PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Debug("prompt request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	p, hits, err := s.svc.BuildPrompt(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	resp := models.PromptResponse{Prompt: p, Context: make([]models.ContextChunk, 0, len(hits))}
	for _, h := range hits {
		resp.Context = append(resp.Context, models.ContextChunk{Index: h.Index, Distance: h.Distance, Text: h.Text})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddChunks(w http.ResponseWriter, r *http.Request) {
	var req models.ChunksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("add chunks request", zap.Int("chunks", len(req.Chunks)), zap.Int("embeddings", len(req.Embeddings)))
	var (
		res index.AddResult
		err error
	)
	if req.Embeddings == nil {
		res, err = s.svc.EmbedAndAdd(r.Context(), req.Chunks)
	} else {
		res, err = s.svc.AddChunks(r.Context(), req.Chunks, req.Embeddings)
	}
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, models.ChunksResponse{
		Added:     res.Added,
		Truncated: res.Truncated,
		Evicted:   res.Evicted,
		Total:     res.Total,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Stats()
	resp := models.StatusResponse{
		TotalChunks:       st.Total,
		Capacity:          st.Capacity,
		Dimensions:        st.Dimensions,
		IndexType:         st.IndexType,
		TotalAdded:        st.TotalAdded,
		TotalEvicted:      st.TotalEvicted,
		Rebuilds:          st.Rebuilds,
		EmbeddingProvider: s.config.Embedding.Provider,
		EmbeddingModel:    s.config.Embedding.Model,
		WatchDirectories:  []string{},
	}
	if s.watch != nil {
		resp.WatchDirectories = s.watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps caller-input errors to 4xx, embedding provider failures to
// 502 and everything else to 500.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, ingest.ErrFileTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, retrieval.ErrEmbedding):
		return http.StatusBadGateway
	case errors.Is(err, ingest.ErrUnsupportedFileType),
		errors.Is(err, ingest.ErrNoText),
		errors.Is(err, ingest.ErrUnreadable),
		errors.Is(err, index.ErrLengthMismatch),
		errors.Is(err, vector.ErrDimensionMismatch),
		errors.Is(err, models.ErrEmptyQuery),
		errors.Is(err, errFileRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message})
}
