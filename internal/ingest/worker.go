// Package ingest runs the background worker that turns uploaded document
// bytes into parsed pages via the SQLite job queue.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/tenderd/internal/docparse"
	"github.com/kalambet/tenderd/internal/storage"
)

// JobType is the queue type this worker consumes.
const JobType = "parse_document"

// JobStore abstracts the job queue and document operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetDocument(id string) (storage.Document, error)
	SavePages(documentID string, pages []storage.Page) error
}

// Worker processes parse_document jobs from the SQLite job queue.
type Worker struct {
	store  JobStore
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker over the given store.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single parse_document job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(_ context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// ParsePayload is the payload of a parse_document job.
type ParsePayload struct {
	DocumentID string `json:"document_id"`
}

func (w *Worker) processJob(job *storage.Job) error {
	var payload ParsePayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	parsed, err := docparse.Parse(doc.Raw, doc.MIMEType)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", doc.Filename, err)
	}

	pages := make([]storage.Page, len(parsed.Pages))
	for i, p := range parsed.Pages {
		pages[i] = storage.Page{Number: p.Number, Text: p.Text}
	}
	if err := w.store.SavePages(doc.ID, pages); err != nil {
		return fmt.Errorf("saving pages: %w", err)
	}

	w.logger.Info("document parsed",
		"document_id", doc.ID, "filename", doc.Filename, "pages", len(pages))
	return nil
}
