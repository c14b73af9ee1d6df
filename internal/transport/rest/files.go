package rest

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const maxUploadSize = 20 << 20 // 20 MiB

// uploadDocument stores a payoff letter in object storage and returns the
// key callers put in a payment's payoff_letter field.
func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if h.documents == nil {
		ErrorInternal(w, "document storage not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		ErrorBadRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		ErrorBadRequest(w, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		ErrorInternal(w, "failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key, err := h.documents.UploadDocument(r.Context(), header.Filename, data, contentType)
	if err != nil {
		log.Printf("[HTTP] uploadDocument error: %v", err)
		ErrorInternal(w, "failed to store document")
		return
	}

	SuccessCreated(w, "document stored", map[string]interface{}{"key": key})
}

func (h *Handler) getDocumentURL(w http.ResponseWriter, r *http.Request) {
	if h.documents == nil {
		ErrorInternal(w, "document storage not configured")
		return
	}

	key := chi.URLParam(r, "document_key")
	if key == "" {
		ErrorBadRequest(w, "document key is required")
		return
	}

	url, err := h.documents.GetTemporaryURL(r.Context(), key, 15*time.Minute)
	if err != nil {
		log.Printf("[HTTP] getDocumentURL error: %v", err)
		ErrorNotFound(w, "document not found")
		return
	}

	Success(w, "", map[string]interface{}{"url": url})
}
