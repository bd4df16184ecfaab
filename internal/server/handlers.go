package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type ingestResponse struct {
	Status         string            `json:"status"`
	ActiveDocument string            `json:"active_document"`
	ChunksIngested int               `json:"chunks_ingested"`
	NeedsOCR       bool              `json:"needs_ocr"`
	ReasonCode     models.ReasonCode `json:"reason_code"`
	Mode           string            `json:"mode"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngest replaces the active document with the uploaded file.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !parser.IsSupported(header.Filename) {
		writeError(w, http.StatusBadRequest, "Unsupported file type")
		return
	}

	path, err := s.saveUpload(header.Filename, file)
	if err != nil {
		log.Error().Err(err).Str("file", header.Filename).Msg("Failed to save upload")
		writeError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}

	result, err := s.ingester.Ingest(r.Context(), path, header.Filename)
	if err != nil {
		log.Error().Err(err).Str("file", header.Filename).Msg("Ingestion failed")
		writeError(w, statusFor(err), errorMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Status:         "success",
		ActiveDocument: result.Document.Name,
		ChunksIngested: result.ChunkCount,
		NeedsOCR:       result.PreOCR.NeedsOCR,
		ReasonCode:     result.PreOCR.Reason,
		Mode:           "overwrite",
	})
}

func (s *Server) saveUpload(filename string, src io.Reader) (string, error) {
	if err := helper.CreateFolder(s.uploadDir); err != nil {
		return "", err
	}
	id, err := helper.NewDocumentID(filename)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.uploadDir, id)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	return path, dst.Close()
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "Question cannot be empty")
		return
	}

	resp, err := s.answerer.Answer(r.Context(), req.Question)
	if err != nil {
		log.Error().Err(err).Msg("Query failed")
		writeError(w, statusFor(err), errorMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Question: req.Question, Answer: resp.Content})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUpstream):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage keeps upstream details out of responses.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, models.ErrUpstream):
		return "service unavailable"
	default:
		return "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
