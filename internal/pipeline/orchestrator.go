// Package pipeline orchestrates pipeline runs against tenders: ordered step
// execution over a shared run context, persisted run state and logs, and
// strict success/failure semantics.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tenderd/internal/extract"
	"github.com/kalambet/tenderd/internal/render"
	"github.com/kalambet/tenderd/internal/storage"
)

// LogLine is one step log entry before persistence.
type LogLine struct {
	Level   string
	Message string
}

// StepResult is the outcome of one step execution.
type StepResult struct {
	Success bool
	Data    map[string]any
	Err     error
	Logs    []LogLine
}

// RunContext is the mutable context threaded through the steps of one run.
type RunContext struct {
	RunID    string
	TenderID string
	UserID   string

	// Results accumulates each step's data keyed by step id.
	Results map[string]map[string]any

	// Populated by prepare.
	Documents []extract.Document
	// Populated by extract: results plus the persisted trace links per key.
	Extractions map[string]extract.Result
	FieldLinks  map[string][]storage.TraceLink
}

// stepHandler executes one step against the shared run context.
type stepHandler func(ctx context.Context, rc *RunContext, step StepConfig) StepResult

// Orchestrator executes pipeline configurations against tenders.
type Orchestrator struct {
	store    *storage.Store
	renderer *render.Renderer
	loader   *Loader
	now      func() time.Time

	handlers map[string]stepHandler

	mu        sync.Mutex
	cancelled map[string]bool
}

// New wires an orchestrator. The step dispatch table is built here; new step
// types extend the table rather than adding types elsewhere.
func New(store *storage.Store, renderer *render.Renderer, loader *Loader) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		renderer:  renderer,
		loader:    loader,
		now:       time.Now,
		cancelled: make(map[string]bool),
	}
	o.handlers = map[string]stepHandler{
		StepPrepare:  o.stepPrepare,
		StepExtract:  o.stepExtract,
		StepTemplate: o.stepTemplate,
		StepGenerate: o.stepTemplate,
		StepValidate: o.stepValidate,
		StepGate:     o.stepGate,
	}
	return o
}

// RequestCancel marks a run for cancellation. In-flight step execution is
// not interrupted; the next step boundary observes the mark and halts.
func (o *Orchestrator) RequestCancel(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelled[runID] = true
}

func (o *Orchestrator) cancelRequested(runID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled[runID]
}

func (o *Orchestrator) clearCancel(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancelled, runID)
}

// RunPipeline loads and validates the named pipeline, creates a run and
// executes its steps in declaration order. Configuration problems fail
// before a run exists; step failures finish the run as failed with partial
// progress preserved. At most one run per tender is active at a time.
func (o *Orchestrator) RunPipeline(ctx context.Context, pipelineName, tenderID, userID string) (storage.Run, error) {
	cfg, err := o.loader.Load(pipelineName)
	if err != nil {
		return storage.Run{}, err
	}

	if _, err := o.store.GetTender(tenderID); err != nil {
		return storage.Run{}, fmt.Errorf("loading tender %s: %w", tenderID, err)
	}

	run := storage.Run{
		ID:        uuid.New().String(),
		TenderID:  tenderID,
		Pipeline:  cfg.Name,
		Status:    storage.RunPending,
		StartedAt: o.now().UTC(),
	}
	if err := o.store.CreateRun(run); err != nil {
		return storage.Run{}, err
	}
	defer o.clearCancel(run.ID)

	if err := o.store.UpdateRunStatus(run.ID, storage.RunRunning, ""); err != nil {
		return run, fmt.Errorf("starting run: %w", err)
	}
	if err := o.store.UpdateTenderStatus(tenderID, storage.TenderProcessing); err != nil {
		slog.Warn("could not mark tender processing", "tender_id", tenderID, "error", err)
	}

	rc := &RunContext{
		RunID:       run.ID,
		TenderID:    tenderID,
		UserID:      userID,
		Results:     make(map[string]map[string]any),
		Extractions: make(map[string]extract.Result),
		FieldLinks:  make(map[string][]storage.TraceLink),
	}

	for _, step := range cfg.Steps {
		if o.cancelRequested(run.ID) {
			o.log(run.ID, step.ID, "warn", "cancellation observed, halting before step")
			o.finish(run.ID, storage.RunCancelled, "cancelled by request")
			return o.reload(run)
		}

		res := o.executeWithRetry(ctx, rc, step)
		for _, l := range res.Logs {
			o.log(run.ID, step.ID, l.Level, l.Message)
		}

		if !res.Success {
			msg := "step failed"
			if res.Err != nil {
				msg = res.Err.Error()
			}
			o.log(run.ID, step.ID, "error", msg)
			o.finish(run.ID, storage.RunFailed, fmt.Sprintf("step %s: %s", step.ID, msg))
			final, _ := o.store.GetRun(run.ID)
			return final, fmt.Errorf("run failed at step %s: %s", step.ID, msg)
		}

		rc.Results[step.ID] = res.Data
	}

	o.finish(run.ID, storage.RunCompleted, "")
	return o.reload(run)
}

// executeWithRetry re-invokes a retryable step with exponential backoff.
// Steps not marked retryable run exactly once. Step side effects are
// upserts by natural key, so repeated attempts do not duplicate rows.
func (o *Orchestrator) executeWithRetry(ctx context.Context, rc *RunContext, step StepConfig) StepResult {
	handler, ok := o.handlers[step.Type]
	if !ok {
		// Validation catches this before any run exists; defensive here.
		return StepResult{Err: fmt.Errorf("unknown step type %q", step.Type)}
	}

	attempts := step.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var res StepResult
	for attempt := 1; attempt <= attempts; attempt++ {
		res = handler(ctx, rc, step)
		if res.Success {
			return res
		}
		if attempt < attempts {
			backoff := step.Retry.BackoffBase() * time.Duration(1<<(attempt-1))
			res.Logs = append(res.Logs, LogLine{
				Level:   "warn",
				Message: fmt.Sprintf("attempt %d/%d failed, retrying in %s", attempt, attempts, backoff),
			})
			select {
			case <-ctx.Done():
				return res
			case <-time.After(backoff):
			}
		}
	}
	return res
}

// log appends one timestamped line to the run's persisted log.
func (o *Orchestrator) log(runID, stepID, level, message string) {
	err := o.store.AppendRunLog(runID, storage.RunLog{
		At:      o.now().UTC(),
		Level:   level,
		StepID:  stepID,
		Message: message,
	})
	if err != nil {
		slog.Warn("appending run log failed", "run_id", runID, "error", err)
	}
}

// finish moves the run to a terminal status, best-effort.
func (o *Orchestrator) finish(runID, status, errMsg string) {
	if err := o.store.UpdateRunStatus(runID, status, errMsg); err != nil {
		slog.Error("persisting terminal run status failed",
			"run_id", runID, "status", status, "error", err)
	}
}

func (o *Orchestrator) reload(run storage.Run) (storage.Run, error) {
	final, err := o.store.GetRun(run.ID)
	if err != nil {
		return run, fmt.Errorf("reloading run: %w", err)
	}
	return final, nil
}
