package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/tenderd/internal/checklist"
	"github.com/kalambet/tenderd/internal/storage"
)

// ReviewPackage is everything a reviewer needs for a decision: the tender,
// the extracted fields with their trace links, the checklist and the
// summary, plus the recomputed approval predicate.
type ReviewPackage struct {
	Tender     storage.Tender                     `json:"tender"`
	Fields     map[string]storage.FieldExtraction `json:"fields"`
	Checklist  []storage.ChecklistItem            `json:"checklist"`
	Summary    []storage.SummaryBlock             `json:"summary"`
	CanApprove bool                               `json:"can_approve"`
}

func buildReviewPackage(store *storage.Store, tenderID string) (ReviewPackage, error) {
	tender, err := store.GetTender(tenderID)
	if err != nil {
		return ReviewPackage{}, err
	}
	fields, err := store.GetFieldExtractions(tenderID)
	if err != nil {
		return ReviewPackage{}, fmt.Errorf("loading extractions: %w", err)
	}
	items, err := store.ListChecklistItems(tenderID)
	if err != nil {
		return ReviewPackage{}, fmt.Errorf("loading checklist: %w", err)
	}
	blocks, err := store.ListSummaryBlocks(tenderID)
	if err != nil {
		return ReviewPackage{}, fmt.Errorf("loading summary: %w", err)
	}

	statuses := make([]string, len(items))
	for i, it := range items {
		statuses[i] = it.Status
	}

	if items == nil {
		items = []storage.ChecklistItem{}
	}
	if blocks == nil {
		blocks = []storage.SummaryBlock{}
	}
	return ReviewPackage{
		Tender:     tender,
		Fields:     fields,
		Checklist:  items,
		Summary:    blocks,
		CanApprove: len(items) > 0 && checklist.StatusesComplete(statuses),
	}, nil
}

func handleReview(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenderID := chi.URLParam(r, "id")

		pkg, err := buildReviewPackage(deps.Store, tenderID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "tender not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to build review package: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, pkg)
	}
}

type ChecklistUpdateRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
	Actor  string `json:"actor"`
}

// handleChecklistUpdate records a reviewer's manual resolution of one
// checklist item. Items without auto-check rules (conflict of interest
// declarations and the like) can only be cleared here.
func handleChecklistUpdate(deps AppDeps) http.HandlerFunc {
	validStatuses := map[string]bool{
		storage.CheckPending:       true,
		storage.CheckOK:            true,
		storage.CheckMissing:       true,
		storage.CheckNotApplicable: true,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tenderID := chi.URLParam(r, "id")
		key := chi.URLParam(r, "key")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChecklistUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if !validStatuses[req.Status] {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid checklist status %q", req.Status)
			return
		}
		if req.Actor == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "actor is required")
			return
		}

		err := deps.Store.UpdateChecklistItemStatus(tenderID, key, req.Status, req.Notes)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "checklist item not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update checklist item: %v", err)
			return
		}

		if err := deps.Store.SaveAuditRecord(storage.AuditRecord{
			ID:        uuid.New().String(),
			TenderID:  tenderID,
			Actor:     req.Actor,
			Action:    "checklist_update",
			Detail:    fmt.Sprintf("%s -> %s", key, req.Status),
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to write audit record: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"key": key, "status": req.Status})
	}
}

type DecisionRequest struct {
	Action string `json:"action"` // "approve" or "reject"
	Actor  string `json:"actor"`
	Note   string `json:"note"`
}

// handleDecision records a human approve/reject decision. Approval is
// gated on the checklist predicate, recomputed from the persisted items at
// decision time.
func handleDecision(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenderID := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req DecisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Actor == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "actor is required")
			return
		}

		var newStatus string
		switch req.Action {
		case "approve":
			newStatus = storage.TenderApproved
		case "reject":
			newStatus = storage.TenderRejected
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "action must be approve or reject")
			return
		}

		tender, err := deps.Store.GetTender(tenderID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "tender not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get tender: %v", err)
			return
		}
		if tender.Status != storage.TenderReadyForReview {
			httpError(w, http.StatusConflict, "conflict", "tender is %s, not ready for review", tender.Status)
			return
		}

		if req.Action == "approve" {
			pkg, err := buildReviewPackage(deps.Store, tenderID)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to evaluate checklist: %v", err)
				return
			}
			if !pkg.CanApprove {
				httpError(w, http.StatusConflict, "conflict", "checklist is not complete; tender cannot be approved")
				return
			}
		}

		if err := deps.Store.UpdateTenderStatus(tenderID, newStatus); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update status: %v", err)
			return
		}
		if err := deps.Store.SaveAuditRecord(storage.AuditRecord{
			ID:        uuid.New().String(),
			TenderID:  tenderID,
			Actor:     req.Actor,
			Action:    req.Action,
			Detail:    req.Note,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to write audit record: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": newStatus})
	}
}
