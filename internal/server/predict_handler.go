// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/schriftgut/internal/classify"
	"github.com/schriftgut/internal/extractor"
)

// maxUploadBytes caps document uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// PredictRequest is the JSON payload for text-mode classification.
type PredictRequest struct {
	Text string `json:"text"`
}

// PredictResponse wraps one prediction with its input provenance.
type PredictResponse struct {
	Mode     string              `json:"mode"` // "text" or "file"
	Filename string              `json:"filename,omitempty"`
	MimeType string              `json:"mime_type,omitempty"`
	Result   classify.Prediction `json:"result"`
}

// PredictHandler holds dependencies for the predict handler
type PredictHandler struct {
	cache     *classify.Cache
	modelDir  string
	uploadDir string
}

// NewPredictHandler creates a new predict handler with dependencies
func NewPredictHandler(cache *classify.Cache, modelDir, uploadDir string) *PredictHandler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &PredictHandler{cache: cache, modelDir: modelDir, uploadDir: uploadDir}
}

// HandlePredict handles POST /api/v1/predict requests. JSON bodies are
// classified as raw text; multipart bodies carry a document under "file"
// and may also carry a "text" field, in which case the text wins and the
// file is ignored.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	classifier, err := h.cache.Get(r.Context(), h.modelDir)
	if err != nil {
		log.Printf("HandlePredict: model load failed err=%v", err)
		writeError(w, http.StatusInternalServerError, "model is not available")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		h.handleMultipart(w, r, classifier)
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "either text or a file is required")
		return
	}

	pred, err := classifier.Predict(r.Context(), req.Text)
	if err != nil {
		log.Printf("HandlePredict: mode=text err=%v", err)
		writeError(w, http.StatusInternalServerError, "classification failed")
		return
	}
	writeJSON(w, http.StatusOK, PredictResponse{Mode: "text", Result: pred})
}

func (h *PredictHandler) handleMultipart(w http.ResponseWriter, r *http.Request, classifier *classify.Classifier) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	// An explicit text field takes precedence over any uploaded file.
	if text := strings.TrimSpace(r.FormValue("text")); text != "" {
		pred, err := classifier.Predict(r.Context(), text)
		if err != nil {
			log.Printf("HandlePredict: mode=text err=%v", err)
			writeError(w, http.StatusInternalServerError, "classification failed")
			return
		}
		writeJSON(w, http.StatusOK, PredictResponse{Mode: "text", Result: pred})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "either text or a file is required")
		return
	}
	defer file.Close()

	mimeType := extractor.DetectMime(header.Filename)
	if !extractor.IsSupported(header.Filename) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q", mimeType))
		return
	}

	// Spool to a uniquely named temp file; removed on every exit path.
	tmpPath := filepath.Join(h.uploadDir, uuid.New().String()+filepath.Ext(header.Filename))
	tmp, err := os.Create(tmpPath)
	if err != nil {
		log.Printf("HandlePredict: temp file failed err=%v", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		log.Printf("HandlePredict: upload copy failed err=%v", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	tmp.Close()

	pred, err := classifier.PredictFile(r.Context(), tmpPath)
	if err != nil {
		var unsupported *extractor.UnsupportedFormatError
		if errors.As(err, &unsupported) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q", unsupported.MimeType))
			return
		}
		log.Printf("HandlePredict: mode=file filename=%s err=%v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, "classification failed")
		return
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		Mode:     "file",
		Filename: header.Filename,
		MimeType: mimeType,
		Result:   pred,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
