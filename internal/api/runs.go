package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/tenderd/internal/storage"
)

type StartRunRequest struct {
	Pipeline string `json:"pipeline"`
	User     string `json:"user"`
}

// handleStartRun executes a pipeline run synchronously and returns the
// finished run, logs included. A second run against a tender that already
// has one in flight is rejected with 409.
func handleStartRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenderID := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req StartRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		run, err := deps.Runner.RunPipeline(r.Context(), req.Pipeline, tenderID, req.User)
		switch {
		case errors.Is(err, storage.ErrRunActive):
			httpError(w, http.StatusConflict, "conflict", "a run is already active for this tender")
			return
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "tender not found")
			return
		case err != nil && run.ID == "":
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		// A failed run is still a run: the caller reads the outcome off the
		// run record rather than the HTTP status.
		writeJSON(w, http.StatusCreated, run)
	}
}

func handleListRuns(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenderID := chi.URLParam(r, "id")
		limit := parseIntParam(r, "limit", 20, 100)

		runs, err := deps.Store.ListRuns(tenderID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list runs: %v", err)
			return
		}
		if runs == nil {
			runs = []storage.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func handleGetRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		run, err := deps.Store.GetRun(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get run: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func handleCancelRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		run, err := deps.Store.GetRun(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get run: %v", err)
			return
		}
		if run.Status != storage.RunPending && run.Status != storage.RunRunning {
			httpError(w, http.StatusConflict, "conflict", "run is already %s", run.Status)
			return
		}

		deps.Runner.RequestCancel(id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
	}
}
