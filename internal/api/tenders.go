package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/tenderd/internal/docparse"
	"github.com/kalambet/tenderd/internal/ingest"
	"github.com/kalambet/tenderd/internal/storage"
)

type CreateTenderRequest struct {
	Title       string     `json:"title"`
	Agency      string     `json:"agency"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
}

func handleCreateTender(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req CreateTenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		now := time.Now().UTC()
		t := storage.Tender{
			ID:          uuid.New().String(),
			Title:       req.Title,
			Agency:      req.Agency,
			Status:      storage.TenderDraft,
			PublishedAt: req.PublishedAt,
			DueAt:       req.DueAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := deps.Store.SaveTender(t); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save tender: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, t)
	}
}

func handleListTenders(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)

		tenders, err := deps.Store.ListTenders(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list tenders: %v", err)
			return
		}
		if tenders == nil {
			tenders = []storage.Tender{}
		}
		writeJSON(w, http.StatusOK, tenders)
	}
}

func handleGetTender(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		t, err := deps.Store.GetTender(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "tender not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get tender: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

type UploadDocumentRequest struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	// Content is the base64-encoded file body.
	Content string `json:"content"`
}

type UploadDocumentResponse struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	Status  string `json:"status"`
}

// handleUploadDocument stores the raw upload and queues a parse job. The
// same filename with identical content is a no-op; changed content bumps
// the version and replaces the parsed pages.
func handleUploadDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenderID := chi.URLParam(r, "id")
		if _, err := deps.Store.GetTender(tenderID); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "tender not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get tender: %v", err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		var req UploadDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Filename == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "filename is required")
			return
		}
		raw, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
			return
		}
		if len(raw) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is empty")
			return
		}

		doc, err := deps.Store.UpsertDocument(storage.Document{
			ID:          uuid.New().String(),
			TenderID:    tenderID,
			Filename:    req.Filename,
			MIMEType:    req.MIMEType,
			ContentHash: docparse.Hash(raw),
			Version:     1,
			Raw:         raw,
			UploadedAt:  time.Now().UTC(),
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save document: %v", err)
			return
		}

		status := "stored"
		if doc.ParsedAt == nil {
			payload, err := json.Marshal(ingest.ParsePayload{DocumentID: doc.ID})
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
				return
			}
			job := storage.Job{
				ID:          uuid.New().String(),
				Type:        ingest.JobType,
				PayloadJSON: string(payload),
			}
			if err := deps.Store.EnqueueJob(job); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue parse job: %v", err)
				return
			}
			status = "queued"
		}

		writeJSON(w, http.StatusOK, UploadDocumentResponse{
			ID:      doc.ID,
			Version: doc.Version,
			Status:  status,
		})
	}
}

func handleListDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenderID := chi.URLParam(r, "id")

		docs, err := deps.Store.ListDocuments(tenderID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		if docs == nil {
			docs = []storage.Document{}
		}
		writeJSON(w, http.StatusOK, docs)
	}
}
