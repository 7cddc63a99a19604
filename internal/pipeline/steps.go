package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/tenderd/internal/checklist"
	"github.com/kalambet/tenderd/internal/docparse"
	"github.com/kalambet/tenderd/internal/extract"
	"github.com/kalambet/tenderd/internal/render"
	"github.com/kalambet/tenderd/internal/storage"
)

// Validation thresholds.
const (
	requiredConfidence = 0.3
	warnConfidence     = 0.5
)

// requiredFields must be present with sufficient confidence before gating.
var requiredFields = []string{
	extract.KeyScope,
	extract.KeyEligibility,
	extract.KeyDeadlineSubmission,
}

func failStep(err error) StepResult {
	return StepResult{Err: err}
}

// stepPrepare loads the tender's documents and makes their text available
// to later steps, parsing any document that has no pages yet. A tender with
// zero documents is a structural failure; a single unparseable document is
// absorbed with a warning.
func (o *Orchestrator) stepPrepare(_ context.Context, rc *RunContext, _ StepConfig) StepResult {
	docs, err := o.store.ListDocuments(rc.TenderID)
	if err != nil {
		return failStep(fmt.Errorf("listing documents: %w", err))
	}
	if len(docs) == 0 {
		return failStep(fmt.Errorf("tender has no documents"))
	}

	var logs []LogLine
	for _, doc := range docs {
		pages, err := o.store.GetPages(doc.ID)
		if err != nil {
			return failStep(fmt.Errorf("loading pages for %s: %w", doc.Filename, err))
		}

		if len(pages) == 0 {
			full, err := o.store.GetDocument(doc.ID)
			if err != nil {
				return failStep(fmt.Errorf("loading document %s: %w", doc.Filename, err))
			}
			parsed, err := docparse.Parse(full.Raw, full.MIMEType)
			if err != nil {
				logs = append(logs, LogLine{
					Level:   "warn",
					Message: fmt.Sprintf("document %s could not be parsed, skipping: %v", doc.Filename, err),
				})
				continue
			}
			pages = make([]storage.Page, len(parsed.Pages))
			for i, p := range parsed.Pages {
				pages[i] = storage.Page{Number: p.Number, Text: p.Text}
			}
			if err := o.store.SavePages(doc.ID, pages); err != nil {
				return failStep(fmt.Errorf("saving pages for %s: %w", doc.Filename, err))
			}
			logs = append(logs, LogLine{
				Level:   "info",
				Message: fmt.Sprintf("parsed %s into %d pages", doc.Filename, len(pages)),
			})
		}

		texts := make([]string, len(pages))
		for i, p := range pages {
			texts[i] = p.Text
		}
		rc.Documents = append(rc.Documents, extract.Document{ID: doc.ID, Pages: texts})
	}

	if len(rc.Documents) == 0 {
		return failStep(fmt.Errorf("no readable documents"))
	}

	logs = append(logs, LogLine{
		Level:   "info",
		Message: fmt.Sprintf("prepared %d of %d documents", len(rc.Documents), len(docs)),
	})
	return StepResult{
		Success: true,
		Data:    map[string]any{"documents": len(rc.Documents)},
		Logs:    logs,
	}
}

// stepExtract fans the configured extractors out over the primary (first)
// document and upserts one extraction per key, replacing prior trace links
// wholesale. Individual extractor trouble is absorbed inside extract.Run;
// persistence trouble fails the step.
func (o *Orchestrator) stepExtract(ctx context.Context, rc *RunContext, step StepConfig) StepResult {
	if len(rc.Documents) == 0 {
		return failStep(fmt.Errorf("no prepared documents in run context"))
	}

	keys := stringSlice(step.Config, "keys")
	extractors := extract.ForKeys(keys)
	if len(extractors) == 0 {
		return failStep(fmt.Errorf("no known extractor keys in %v", keys))
	}

	primary := rc.Documents[0]
	results := extract.Run(ctx, extractors, primary, rc.Documents)

	var logs []LogLine
	for _, ex := range extractors {
		key := ex.Key()
		res := results[key]

		valueJSON, err := json.Marshal(res.Value)
		if err != nil {
			return failStep(fmt.Errorf("encoding %s value: %w", key, err))
		}

		links := make([]storage.TraceLink, len(res.Citations))
		for i, c := range res.Citations {
			links[i] = storage.TraceLink{
				ID:         uuid.New().String(),
				TenderID:   rc.TenderID,
				DocumentID: c.DocumentID,
				Page:       c.Page,
				Snippet:    c.Snippet,
				Section:    c.Section,
			}
		}

		fe := storage.FieldExtraction{
			ID:          uuid.New().String(),
			TenderID:    rc.TenderID,
			Key:         key,
			Value:       valueJSON,
			Confidence:  res.Confidence,
			ExtractedAt: o.now().UTC(),
			Links:       links,
		}
		if err := o.store.SaveFieldExtraction(fe); err != nil {
			return failStep(fmt.Errorf("saving extraction %s: %w", key, err))
		}

		rc.Extractions[key] = res
		rc.FieldLinks[key] = links
		logs = append(logs, LogLine{
			Level:   "info",
			Message: fmt.Sprintf("extracted %s: confidence %.2f, %d citations", key, res.Confidence, len(links)),
		})
	}

	return StepResult{
		Success: true,
		Data:    map[string]any{"fields": len(extractors)},
		Logs:    logs,
	}
}

// stepTemplate renders the summary blocks and checklist items from the
// accumulated extraction results and persists both.
func (o *Orchestrator) stepTemplate(_ context.Context, rc *RunContext, step StepConfig) StepResult {
	tender, err := o.store.GetTender(rc.TenderID)
	if err != nil {
		return failStep(fmt.Errorf("loading tender: %w", err))
	}

	fields := make(map[string]render.Field, len(rc.Extractions))
	linkByID := make(map[string]storage.TraceLink)
	for key, res := range rc.Extractions {
		f := render.Field{Key: key, Value: res.Value, Confidence: res.Confidence}
		for _, l := range rc.FieldLinks[key] {
			f.Citations = append(f.Citations, render.Citation{ID: l.ID, Page: l.Page})
			linkByID[l.ID] = l
		}
		fields[key] = f
	}

	info := render.TenderInfo{ID: tender.ID, Title: tender.Title, Agency: tender.Agency}
	blocks, err := o.renderer.RenderSummary(info, fields, nil)
	if err != nil {
		return failStep(err)
	}

	for _, b := range blocks {
		links := make([]storage.TraceLink, 0, len(b.CitationIDs))
		for _, id := range b.CitationIDs {
			src, ok := linkByID[id]
			if !ok {
				continue
			}
			src.ID = uuid.New().String()
			links = append(links, src)
		}
		if err := o.store.SaveSummaryBlock(storage.SummaryBlock{
			ID:       uuid.New().String(),
			TenderID: rc.TenderID,
			BlockKey: b.Key,
			Markdown: b.Markdown,
			Links:    links,
		}); err != nil {
			return failStep(fmt.Errorf("saving summary block %s: %w", b.Key, err))
		}
	}

	templateID := stringVal(step.Config, "checklist_template")
	if templateID == "" {
		templateID = checklist.DefaultTemplateID
	}
	ev, err := o.renderer.RenderChecklist(templateID, rc.Extractions)
	if err != nil {
		return failStep(err)
	}
	for _, item := range ev.Items {
		links := make([]storage.TraceLink, len(item.Citations))
		for i, c := range item.Citations {
			links[i] = storage.TraceLink{
				ID:         uuid.New().String(),
				TenderID:   rc.TenderID,
				DocumentID: c.DocumentID,
				Page:       c.Page,
				Snippet:    c.Snippet,
				Section:    c.Section,
			}
		}
		if err := o.store.SaveChecklistItem(storage.ChecklistItem{
			ID:       uuid.New().String(),
			TenderID: rc.TenderID,
			Key:      item.Key,
			Label:    item.Label,
			Status:   item.Status,
			Notes:    item.Notes,
			Links:    links,
		}); err != nil {
			return failStep(fmt.Errorf("saving checklist item %s: %w", item.Key, err))
		}
	}

	return StepResult{
		Success: true,
		Data: map[string]any{
			"blocks":               len(blocks),
			"checklistItems":       len(ev.Items),
			"requiresManualReview": ev.RequiresManualReview,
		},
		Logs: []LogLine{{
			Level: "info",
			Message: fmt.Sprintf("rendered %d summary blocks and %d checklist items (%d need manual review)",
				len(blocks), len(ev.Items), ev.RequiresManualReview),
		}},
	}
}

// stepValidate fails the run when a required field is missing or below the
// confidence floor; lesser concerns (soft confidence, passed deadline) are
// warnings only.
func (o *Orchestrator) stepValidate(_ context.Context, rc *RunContext, step StepConfig) StepResult {
	required := stringSlice(step.Config, "required")
	if len(required) == 0 {
		required = requiredFields
	}

	var problems []string
	var logs []LogLine
	for _, key := range required {
		res, ok := rc.Extractions[key]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%s missing", key))
		case res.Confidence < requiredConfidence:
			problems = append(problems, fmt.Sprintf("%s confidence %.2f below %.2f", key, res.Confidence, requiredConfidence))
		}
	}
	if len(problems) > 0 {
		return failStep(fmt.Errorf("validation failed: %s", strings.Join(problems, "; ")))
	}

	for key, res := range rc.Extractions {
		if res.Confidence < warnConfidence {
			logs = append(logs, LogLine{
				Level:   "warn",
				Message: fmt.Sprintf("%s confidence %.2f is low", key, res.Confidence),
			})
		}
	}
	if res, ok := rc.Extractions[extract.KeyDeadlineSubmission]; ok {
		if dv, ok := res.Value.(extract.DeadlineValue); ok && dv.Primary != nil && dv.Primary.Valid && !dv.Primary.Future {
			logs = append(logs, LogLine{
				Level:   "warn",
				Message: "primary deadline has already passed",
			})
		}
	}

	logs = append(logs, LogLine{Level: "info", Message: "validation passed"})
	return StepResult{Success: true, Logs: logs}
}

// stepGate transitions the tender to awaiting human review and writes the
// audit record. Approval itself belongs to the external review workflow.
func (o *Orchestrator) stepGate(_ context.Context, rc *RunContext, _ StepConfig) StepResult {
	if err := o.store.UpdateTenderStatus(rc.TenderID, storage.TenderReadyForReview); err != nil {
		return failStep(fmt.Errorf("transitioning tender: %w", err))
	}

	actor := rc.UserID
	if actor == "" {
		actor = "pipeline"
	}
	if err := o.store.SaveAuditRecord(storage.AuditRecord{
		ID:        uuid.New().String(),
		TenderID:  rc.TenderID,
		Actor:     actor,
		Action:    "gate",
		Detail:    fmt.Sprintf("run %s completed processing, awaiting review", rc.RunID),
		CreatedAt: o.now().UTC(),
	}); err != nil {
		return failStep(fmt.Errorf("writing audit record: %w", err))
	}

	return StepResult{
		Success: true,
		Logs:    []LogLine{{Level: "info", Message: "tender awaiting human review"}},
	}
}
