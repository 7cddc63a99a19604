// Package api serves the tenderd management HTTP API and the MCP surface.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/tenderd/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxUploadBodySize = 32 << 20 // 32MB

// PipelineRunner abstracts the orchestrator for the API layer.
type PipelineRunner interface {
	RunPipeline(ctx context.Context, pipelineName, tenderID, userID string) (storage.Run, error)
	RequestCancel(runID string)
}

// AppDeps holds dependencies for the management API.
type AppDeps struct {
	Store  *storage.Store
	Runner PipelineRunner
	Token  string
}

// NewAppHandler returns the management API handler. Everything except
// /health requires bearer auth.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/tenders", handleCreateTender(deps))
		r.Get("/tenders", handleListTenders(deps))
		r.Get("/tenders/{id}", handleGetTender(deps))
		r.Post("/tenders/{id}/documents", handleUploadDocument(deps))
		r.Get("/tenders/{id}/documents", handleListDocuments(deps))
		r.Post("/tenders/{id}/runs", handleStartRun(deps))
		r.Get("/tenders/{id}/runs", handleListRuns(deps))
		r.Get("/tenders/{id}/review", handleReview(deps))
		r.Patch("/tenders/{id}/checklist/{key}", handleChecklistUpdate(deps))
		r.Post("/tenders/{id}/decision", handleDecision(deps))
		r.Get("/runs/{id}", handleGetRun(deps))
		r.Post("/runs/{id}/cancel", handleCancelRun(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"type":    errType,
			"message": msg,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
