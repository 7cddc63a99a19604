package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/tenderd/internal/docparse"
	"github.com/kalambet/tenderd/internal/render"
	"github.com/kalambet/tenderd/internal/storage"
)

const richTenderText = `SCOPE OF WORK
The contractor shall provide routine road maintenance services across the district.
Services required: pothole patching, line marking and drainage cleaning.

ELIGIBILITY CRITERIA
Bidders must have a minimum of 5 years experience in road maintenance.
Annual turnover of at least USD 2 million is required.
Firms shall be registered with the national contractors board.

EVALUATION
Evaluation criteria:
Technical merit: 40 points
Price weight: 30%

SUBMISSION
Proposals must be submitted by email to bids@agency.gov in PDF format.
Submit 3 hard copies including the original in a sealed envelope.

The submission deadline is 15 March 2029.
Proposals must be received no later than 2:00 PM on that date.
`

func testOrchestrator(t *testing.T) (*Orchestrator, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	renderer, err := render.New()
	if err != nil {
		t.Fatalf("building renderer: %v", err)
	}
	return New(store, renderer, NewLoader("")), store
}

func seedTender(t *testing.T, store *storage.Store, id string) {
	t.Helper()
	now := time.Now().UTC()
	err := store.SaveTender(storage.Tender{
		ID: id, Title: "Road maintenance tender", Agency: "City",
		Status: storage.TenderDraft, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("saving tender: %v", err)
	}
}

func seedDocument(t *testing.T, store *storage.Store, tenderID, text string) storage.Document {
	t.Helper()
	raw := []byte(text)
	doc, err := store.UpsertDocument(storage.Document{
		ID:          "doc-" + tenderID,
		TenderID:    tenderID,
		Filename:    "rfp.txt",
		MIMEType:    "text/plain",
		ContentHash: docparse.Hash(raw),
		Raw:         raw,
		UploadedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("saving document: %v", err)
	}
	return doc
}

func TestRunPipelineCompletes(t *testing.T) {
	o, store := testOrchestrator(t)
	seedTender(t, store, "t-1")
	doc := seedDocument(t, store, "t-1", richTenderText)

	run, err := o.RunPipeline(context.Background(), "", "t-1", "tester")
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if run.Status != storage.RunCompleted {
		t.Fatalf("run status = %q, error = %q", run.Status, run.Error)
	}
	if len(run.Logs) == 0 {
		t.Error("completed run has no logs")
	}

	tender, err := store.GetTender("t-1")
	if err != nil {
		t.Fatalf("GetTender: %v", err)
	}
	if tender.Status != storage.TenderReadyForReview {
		t.Errorf("tender status = %q, want ready_for_review", tender.Status)
	}

	// Prepare parsed the raw upload into pages.
	pages, err := store.GetPages(doc.ID)
	if err != nil {
		t.Fatalf("GetPages: %v", err)
	}
	if len(pages) == 0 {
		t.Error("document not parsed during prepare")
	}

	fields, err := store.GetFieldExtractions("t-1")
	if err != nil {
		t.Fatalf("GetFieldExtractions: %v", err)
	}
	if len(fields) != 5 {
		t.Errorf("extractions = %d, want 5", len(fields))
	}
	for key, fe := range fields {
		if fe.Confidence > 0 && len(fe.Links) == 0 {
			t.Errorf("%s: confidence %v persisted without trace links", key, fe.Confidence)
		}
	}

	items, err := store.ListChecklistItems("t-1")
	if err != nil {
		t.Fatalf("ListChecklistItems: %v", err)
	}
	if len(items) != 7 {
		t.Errorf("checklist items = %d, want 7", len(items))
	}
	for _, it := range items {
		if it.Key == "conflict_of_interest" && it.Status != storage.CheckPending {
			t.Errorf("conflict_of_interest status = %q, want pending", it.Status)
		}
	}

	blocks, err := store.ListSummaryBlocks("t-1")
	if err != nil {
		t.Fatalf("ListSummaryBlocks: %v", err)
	}
	if len(blocks) != 5 {
		t.Errorf("summary blocks = %d, want 5", len(blocks))
	}

	audits, err := store.ListAuditRecords("t-1")
	if err != nil {
		t.Fatalf("ListAuditRecords: %v", err)
	}
	found := false
	for _, a := range audits {
		if a.Action == "gate" && a.Actor == "tester" {
			found = true
		}
	}
	if !found {
		t.Errorf("no gate audit record from tester: %+v", audits)
	}
}

func TestRunPipelineNoDocuments(t *testing.T) {
	o, store := testOrchestrator(t)
	seedTender(t, store, "t-1")

	run, err := o.RunPipeline(context.Background(), "", "t-1", "")
	if err == nil {
		t.Fatal("run without documents succeeded")
	}
	if !strings.Contains(err.Error(), "prepare") {
		t.Errorf("error = %v, want prepare step failure", err)
	}
	if run.Status != storage.RunFailed {
		t.Errorf("run status = %q, want failed", run.Status)
	}
	if run.Error == "" {
		t.Error("failed run carries no error message")
	}
}

func TestRunPipelineUnknownPipeline(t *testing.T) {
	o, store := testOrchestrator(t)
	seedTender(t, store, "t-1")

	if _, err := o.RunPipeline(context.Background(), "nonexistent", "t-1", ""); err == nil {
		t.Fatal("unknown pipeline accepted")
	}

	// Configuration failures happen before any run exists.
	runs, err := store.ListRuns("t-1", 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs = %+v, want none", runs)
	}
}

func TestRunPipelineUnknownTender(t *testing.T) {
	o, _ := testOrchestrator(t)

	_, err := o.RunPipeline(context.Background(), "", "missing", "")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRunPipelineRejectsConcurrent(t *testing.T) {
	o, store := testOrchestrator(t)
	seedTender(t, store, "t-1")
	seedDocument(t, store, "t-1", richTenderText)

	err := store.CreateRun(storage.Run{
		ID: "r-active", TenderID: "t-1", Pipeline: "standard",
		Status: storage.RunRunning, StartedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	if _, err := o.RunPipeline(context.Background(), "", "t-1", ""); !errors.Is(err, storage.ErrRunActive) {
		t.Errorf("error = %v, want ErrRunActive", err)
	}
}

func TestRunPipelineValidationFailure(t *testing.T) {
	o, store := testOrchestrator(t)
	seedTender(t, store, "t-1")
	// Scope signal only: eligibility and deadline extract at zero confidence.
	seedDocument(t, store, "t-1",
		"Scope of work: the contractor shall provide maintenance.\nServices required: patching.")

	run, err := o.RunPipeline(context.Background(), "", "t-1", "")
	if err == nil {
		t.Fatal("run with weak extractions succeeded")
	}
	if !strings.Contains(err.Error(), "validate") {
		t.Errorf("error = %v, want validate step failure", err)
	}
	if run.Status != storage.RunFailed {
		t.Errorf("run status = %q, want failed", run.Status)
	}

	// Partial progress survives the failed run.
	fields, err := store.GetFieldExtractions("t-1")
	if err != nil {
		t.Fatalf("GetFieldExtractions: %v", err)
	}
	if len(fields) != 5 {
		t.Errorf("extractions = %d, want 5", len(fields))
	}

	// The gate never ran.
	tender, err := store.GetTender("t-1")
	if err != nil {
		t.Fatalf("GetTender: %v", err)
	}
	if tender.Status == storage.TenderReadyForReview {
		t.Error("tender gated despite failed validation")
	}
}

func TestRunPipelineRetriesLogged(t *testing.T) {
	dir := t.TempDir()
	retrying := `name: retrying
version: 1
steps:
  - id: prepare
    type: prepare
    retry:
      max_attempts: 2
      backoff: 1ms
  - id: extract
    type: extract
`
	if err := os.WriteFile(filepath.Join(dir, "retrying.yaml"), []byte(retrying), 0o644); err != nil {
		t.Fatalf("writing pipeline file: %v", err)
	}

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	renderer, err := render.New()
	if err != nil {
		t.Fatalf("building renderer: %v", err)
	}
	o := New(store, renderer, NewLoader(dir))
	seedTender(t, store, "t-1")

	// No documents: prepare fails on every attempt.
	run, err := o.RunPipeline(context.Background(), "retrying", "t-1", "")
	if err == nil {
		t.Fatal("run succeeded without documents")
	}
	if run.Status != storage.RunFailed {
		t.Errorf("run status = %q, want failed", run.Status)
	}

	retried := false
	for _, l := range run.Logs {
		if strings.Contains(l.Message, "attempt 1/2 failed") {
			retried = true
		}
	}
	if !retried {
		t.Errorf("no retry log line: %+v", run.Logs)
	}
}

func TestRunPipelineCancelledAtStepBoundary(t *testing.T) {
	o, store := testOrchestrator(t)
	seedTender(t, store, "t-1")
	seedDocument(t, store, "t-1", richTenderText)

	// Cancellation lands mid-run: request it during prepare and let the
	// next step boundary observe it.
	prepare := o.handlers[StepPrepare]
	o.handlers[StepPrepare] = func(ctx context.Context, rc *RunContext, step StepConfig) StepResult {
		res := prepare(ctx, rc, step)
		o.RequestCancel(rc.RunID)
		return res
	}

	run, err := o.RunPipeline(context.Background(), "", "t-1", "tester")
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if run.Status != storage.RunCancelled {
		t.Fatalf("run status = %q, want cancelled", run.Status)
	}
	if run.Error == "" {
		t.Error("cancelled run carries no reason")
	}

	// The prepare log and the cancellation notice are persisted; nothing
	// after the halt point ran.
	if len(run.Logs) == 0 {
		t.Fatal("cancelled run has no logs")
	}
	observed := false
	for _, l := range run.Logs {
		if strings.Contains(l.Message, "cancellation observed") {
			observed = true
		}
	}
	if !observed {
		t.Errorf("no cancellation log line: %+v", run.Logs)
	}

	fields, err := store.GetFieldExtractions("t-1")
	if err != nil {
		t.Fatalf("GetFieldExtractions: %v", err)
	}
	if len(fields) != 0 {
		t.Errorf("extract ran after cancellation: %d extractions", len(fields))
	}

	tender, err := store.GetTender("t-1")
	if err != nil {
		t.Fatalf("GetTender: %v", err)
	}
	if tender.Status == storage.TenderReadyForReview {
		t.Error("tender gated despite cancelled run")
	}

	// The mark is cleared once the run finishes.
	if o.cancelRequested(run.ID) {
		t.Error("cancellation mark survived the run")
	}
}

func TestCancelBookkeeping(t *testing.T) {
	o, _ := testOrchestrator(t)

	if o.cancelRequested("r-1") {
		t.Error("fresh run marked cancelled")
	}
	o.RequestCancel("r-1")
	if !o.cancelRequested("r-1") {
		t.Error("cancellation mark not observed")
	}
	o.clearCancel("r-1")
	if o.cancelRequested("r-1") {
		t.Error("cancellation mark survived clear")
	}
}
